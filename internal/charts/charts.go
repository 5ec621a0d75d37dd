package charts

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"deliverypulse/internal/metrics"
	"deliverypulse/pkg/contracts/domain"
)

const (
	MapTitle        = "Delivery Delay by Region (negative = early)"
	EmptyMapTitle   = "Delivery Delay by Region (Map)"
	HistogramTitle  = "Distribution of Delivery Delay (days)"
	CategoriesTitle = "Worst On-Time Rate by Category (Top 10)"

	MsgNoData          = "No data to display"
	MsgNoCoordinates   = "No valid coordinates"
	MsgNoDelayData     = "No delay data available"
	MsgNoDelivered     = "No delivered orders"
	MsgNoCategoryRates = "No categories with sufficient data"

	DefaultHistogramBins = 50
	DefaultTopCategories = 10

	mapZoom     = 3
	maxMarkerPx = 20
)

// Centre of Brazil, used for the empty map
var defaultCenter = LatLon{Lat: -15, Lon: -50}

var mapMargin = &Margin{R: 0, T: 40, L: 0, B: 0}

func emptyMap(message string) Figure {
	return Figure{
		Data: []Trace{{
			Type:   "scattermapbox",
			Mode:   "markers",
			Lat:    []float64{defaultCenter.Lat},
			Lon:    []float64{defaultCenter.Lon},
			Marker: &Marker{Size: 0, Opacity: floatPtr(0)},
		}},
		Layout: Layout{
			Title:       title(EmptyMapTitle),
			Mapbox:      &Mapbox{Style: "open-street-map", Zoom: mapZoom, Center: defaultCenter},
			Margin:      mapMargin,
			Annotations: []Annotation{centeredMessage(message)},
		},
	}
}

// DelayMap plots one marker per state: size by order count, colour by average delay
func DelayMap(geo []domain.GeoSummary) Figure {
	if len(geo) == 0 {
		return emptyMap(MsgNoData)
	}

	points := make([]domain.GeoSummary, 0, len(geo))
	for _, g := range geo {
		if math.IsNaN(g.MeanLat) || math.IsNaN(g.MeanLng) || math.IsInf(g.MeanLat, 0) || math.IsInf(g.MeanLng, 0) {
			continue
		}
		points = append(points, g)
	}
	if len(points) == 0 {
		return emptyMap(MsgNoCoordinates)
	}

	var (
		lats   = make([]float64, len(points))
		lngs   = make([]float64, len(points))
		sizes  = make([]float64, len(points))
		delays = make([]float64, len(points))
		text   = make([]string, len(points))
		custom = make([][]any, len(points))
	)
	for i, p := range points {
		lats[i], lngs[i] = p.MeanLat, p.MeanLng
		sizes[i] = float64(p.OrderCount)
		delays[i] = p.AvgDelayDays
		text[i] = p.CustomerState
		custom[i] = []any{p.OrderCount, p.DeliveredCount, p.OnTimeRate, p.AvgDelayDays}
	}

	// Area sizing so the largest state renders at maxMarkerPx
	sizeRef := 1.0
	if m := floats.Max(sizes); m > 0 {
		sizeRef = 2 * m / (maxMarkerPx * maxMarkerPx)
	}

	return Figure{
		Data: []Trace{{
			Type: "scattermapbox",
			Mode: "markers",
			Lat:  lats,
			Lon:  lngs,
			Text: text,
			Marker: &Marker{
				Size:         sizes,
				SizeMode:     "area",
				SizeRef:      sizeRef,
				SizeMin:      4,
				Color:        delays,
				ColorScale:   "RdYlGn",
				ReverseScale: true,
				ShowScale:    true,
				ColorBar:     &ColorBar{Title: Title{Text: "Avg delay (days)"}},
			},
			CustomData: custom,
			HoverTemplate: "<b>%{text}</b><br>" +
				"Lat: %{lat:.4f}<br>Lng: %{lon:.4f}<br>" +
				"Orders: %{customdata[0]}<br>Delivered: %{customdata[1]}<br>" +
				"On-time rate: %{customdata[2]:.2%}<br>Avg delay: %{customdata[3]:.1f} days<extra></extra>",
		}},
		Layout: Layout{
			Title: title(MapTitle),
			Mapbox: &Mapbox{
				Style:  "open-street-map",
				Zoom:   mapZoom,
				Center: LatLon{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lngs, nil)},
			},
			Margin: mapMargin,
		},
	}
}

// Bin is one histogram bucket covering the integers Lo..Hi inclusive
type Bin struct {
	Lo    int `json:"lo"`
	Hi    int `json:"hi"`
	Count int `json:"count"`
}

// DelayBins splits whole-day delays into at most maxBins equal-width integer bins.
// maxBins outside 1..DefaultHistogramBins falls back to DefaultHistogramBins.
func DelayBins(values []float64, maxBins int) []Bin {
	if len(values) == 0 {
		return nil
	}
	if maxBins <= 0 || maxBins > DefaultHistogramBins {
		maxBins = DefaultHistogramBins
	}

	x := make([]float64, len(values))
	copy(x, values)
	sort.Float64s(x)

	lo := int(math.Floor(x[0]))
	hi := int(math.Floor(x[len(x)-1]))
	span := hi - lo + 1

	bins := min(maxBins, span)
	width := (span + bins - 1) / bins
	bins = (span + width - 1) / width

	dividers := make([]float64, bins+1)
	for i := range dividers {
		dividers[i] = float64(lo + i*width)
	}
	counts := stat.Histogram(nil, dividers, x, nil)

	out := make([]Bin, bins)
	for i := range out {
		start := lo + i*width
		out[i] = Bin{Lo: start, Hi: start + width - 1, Count: int(counts[i])}
	}
	return out
}

// DelayHistogram charts the distribution of delay days across rows
func DelayHistogram(rows []domain.FactOrder, maxBins int) Figure {
	if len(rows) == 0 {
		return emptyFigure(HistogramTitle, MsgNoData)
	}

	bins := DelayBins(metrics.DelayValues(rows), maxBins)
	if len(bins) == 0 {
		return emptyFigure(HistogramTitle, MsgNoDelayData)
	}

	var (
		x      = make([]float64, len(bins))
		y      = make([]int, len(bins))
		custom = make([][]any, len(bins))
	)
	width := float64(bins[0].Hi - bins[0].Lo + 1)
	for i, b := range bins {
		x[i] = float64(b.Lo) + (width-1)/2
		y[i] = b.Count
		custom[i] = []any{b.Lo, b.Hi}
	}

	hover := "Delay: %{customdata[0]} days<br>Orders: %{y}<extra></extra>"
	if width > 1 {
		hover = "Delay: %{customdata[0]} to %{customdata[1]} days<br>Orders: %{y}<extra></extra>"
	}

	return Figure{
		Data: []Trace{{
			Type:          "bar",
			Name:          "delay_days",
			X:             x,
			Y:             y,
			Width:         width,
			CustomData:    custom,
			HoverTemplate: hover,
		}},
		Layout: Layout{
			Title:      title(HistogramTitle),
			XAxis:      &Axis{Title: title("Delay (days)")},
			YAxis:      &Axis{Title: title("Number of Orders")},
			ShowLegend: boolPtr(false),
			BarGap:     floatPtr(0.05),
		},
	}
}

// TopCategories charts the worst on-time categories among delivered orders
func TopCategories(rows []domain.FactOrder, limit int) Figure {
	if len(rows) == 0 {
		return emptyFigure(CategoriesTitle, MsgNoData)
	}
	if limit <= 0 {
		limit = DefaultTopCategories
	}

	delivered := metrics.ApplyFilters(rows, metrics.Filter{DeliveredOnly: true})
	if len(delivered) == 0 {
		return emptyFigure(CategoriesTitle, MsgNoDelivered)
	}

	cats := metrics.CategoryOnTime(delivered, limit)
	if len(cats) == 0 {
		return emptyFigure(CategoriesTitle, MsgNoCategoryRates)
	}

	var (
		x      = make([]string, len(cats))
		y      = make([]float64, len(cats))
		custom = make([][]any, len(cats))
	)
	for i, c := range cats {
		x[i] = c.Category
		y[i] = c.OnTimeRate
		custom[i] = []any{c.Total, c.OnTimeCount}
	}

	return Figure{
		Data: []Trace{{
			Type:          "bar",
			X:             x,
			Y:             y,
			CustomData:    custom,
			HoverTemplate: "Category: %{x}<br>On-Time Rate: %{y:.1%}<br>Orders: %{customdata[0]}<extra></extra>",
		}},
		Layout: Layout{
			Title:  title(CategoriesTitle),
			XAxis:  &Axis{Title: title("Product Category"), TickAngle: -45},
			YAxis:  &Axis{Title: title("On-Time Rate"), TickFormat: ".0%"},
			Margin: &Margin{R: 20, T: 60, L: 60, B: 140},
		},
	}
}
