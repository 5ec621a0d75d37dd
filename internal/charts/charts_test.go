package charts

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/pkg/contracts/domain"
)

func delivered(id, category string, delay int) domain.FactOrder {
	onTime := delay <= 0
	return domain.FactOrder{
		OrderID:             id,
		OrderStatus:         domain.OrderStatusDelivered,
		ProductCategoryMode: category,
		DelayDays:           &delay,
		OnTime:              &onTime,
	}
}

func geo() []domain.GeoSummary {
	return []domain.GeoSummary{
		{CustomerState: "RJ", MeanLat: -22.9, MeanLng: -43.2, OrderCount: 2, DeliveredCount: 2, OnTimeCount: 1, OnTimeRate: 0.5, AvgDelayDays: 1},
		{CustomerState: "SP", MeanLat: -23.6, MeanLng: -46.7, OrderCount: 4, DeliveredCount: 1, OnTimeCount: 1, OnTimeRate: 1, AvgDelayDays: -5},
	}
}

func TestDelayMap(t *testing.T) {
	fig := DelayMap(geo())

	assert.False(t, fig.IsEmpty())
	assert.Equal(t, MapTitle, fig.Layout.Title.Text)
	require.Len(t, fig.Data, 1)

	tr := fig.Data[0]
	assert.Equal(t, "scattermapbox", tr.Type)
	assert.Equal(t, []string{"RJ", "SP"}, tr.Text)
	assert.Equal(t, []float64{-22.9, -23.6}, tr.Lat)
	assert.Equal(t, []float64{2, 4}, tr.Marker.Size)
	assert.Equal(t, []float64{1, -5}, tr.Marker.Color)
	assert.InDelta(t, 2*4.0/400, tr.Marker.SizeRef, 1e-12)
	assert.Equal(t, []any{2, 2, 0.5, 1.0}, tr.CustomData[0])
	assert.Contains(t, tr.HoverTemplate, "%{customdata[2]:.2%}")

	require.NotNil(t, fig.Layout.Mapbox)
	assert.Equal(t, "open-street-map", fig.Layout.Mapbox.Style)
	assert.Equal(t, 3.0, fig.Layout.Mapbox.Zoom)
	assert.InDelta(t, -23.25, fig.Layout.Mapbox.Center.Lat, 1e-9)
	assert.InDelta(t, -44.95, fig.Layout.Mapbox.Center.Lon, 1e-9)
}

func TestDelayMap_Empty(t *testing.T) {
	fig := DelayMap(nil)
	assert.Equal(t, MsgNoData, fig.Message())
	assert.Equal(t, EmptyMapTitle, fig.Layout.Title.Text)
	assert.Equal(t, LatLon{Lat: -15, Lon: -50}, fig.Layout.Mapbox.Center)

	bad := []domain.GeoSummary{{CustomerState: "SP", MeanLat: math.NaN(), MeanLng: -46}}
	fig = DelayMap(bad)
	assert.Equal(t, MsgNoCoordinates, fig.Message())
}

func TestDelayBins(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		maxBins int
		want    []Bin
	}{
		{
			name:    "one bin per day when the range is narrow",
			values:  []float64{-5, 2, 0, -2},
			maxBins: 50,
			want: []Bin{
				{-5, -5, 1}, {-4, -4, 0}, {-3, -3, 0}, {-2, -2, 1},
				{-1, -1, 0}, {0, 0, 1}, {1, 1, 0}, {2, 2, 1},
			},
		},
		{
			name:    "wider bins when capped",
			values:  []float64{-5, 2, 0, -2},
			maxBins: 3,
			want:    []Bin{{-5, -3, 1}, {-2, 0, 2}, {1, 3, 1}},
		},
		{
			name:    "single value",
			values:  []float64{4, 4},
			maxBins: 0,
			want:    []Bin{{4, 4, 2}},
		},
		{
			name:   "empty",
			values: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DelayBins(tt.values, tt.maxBins))
		})
	}
}

func TestDelayBins_DefaultCap(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = float64(i)
	}

	bins := DelayBins(values, 0)
	require.Len(t, bins, 40)
	total := 0
	for _, b := range bins {
		assert.Equal(t, 2, b.Hi-b.Lo)
		total += b.Count
	}
	assert.Equal(t, 120, total)

	// Requests above the cap get the capped layout
	assert.Equal(t, bins, DelayBins(values, 500))
	assert.LessOrEqual(t, len(DelayBins(values, DefaultHistogramBins+1)), DefaultHistogramBins)
}

func TestDelayHistogram(t *testing.T) {
	rows := []domain.FactOrder{
		delivered("a", "x", -5),
		delivered("b", "x", 2),
		delivered("c", "x", 0),
		{OrderID: "d", OrderStatus: "shipped"},
	}

	fig := DelayHistogram(rows, 50)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, HistogramTitle, fig.Layout.Title.Text)
	assert.Equal(t, "Delay (days)", fig.Layout.XAxis.Title.Text)
	assert.Equal(t, "Number of Orders", fig.Layout.YAxis.Title.Text)

	tr := fig.Data[0]
	assert.Equal(t, "bar", tr.Type)
	assert.Len(t, tr.X, 8)
	assert.Equal(t, 1.0, tr.Width)

	assert.Equal(t, MsgNoData, DelayHistogram(nil, 50).Message())
	assert.Equal(t, MsgNoDelayData, DelayHistogram(rows[3:], 50).Message())
}

func TestTopCategories(t *testing.T) {
	rows := []domain.FactOrder{
		delivered("a", "toys", 3),
		delivered("b", "toys", -1),
		delivered("c", "books", -1),
		delivered("d", "garden", 4),
		{OrderID: "e", OrderStatus: "shipped", ProductCategoryMode: "garden"},
	}

	fig := TopCategories(rows, 10)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, CategoriesTitle, fig.Layout.Title.Text)
	assert.Equal(t, []string{"garden", "toys", "books"}, fig.Data[0].X)
	assert.Equal(t, []float64{0, 0.5, 1}, fig.Data[0].Y)
	assert.Equal(t, []any{2, 1}, fig.Data[0].CustomData[1])
	assert.Equal(t, -45, fig.Layout.XAxis.TickAngle)
	assert.Equal(t, ".0%", fig.Layout.YAxis.TickFormat)

	assert.Len(t, TopCategories(rows, 2).Data[0].X, 2)
}

func TestTopCategories_Empty(t *testing.T) {
	assert.Equal(t, MsgNoData, TopCategories(nil, 10).Message())

	shipped := []domain.FactOrder{{OrderID: "a", OrderStatus: "shipped", ProductCategoryMode: "toys"}}
	assert.Equal(t, MsgNoDelivered, TopCategories(shipped, 10).Message())

	uncategorized := []domain.FactOrder{delivered("a", "", 1)}
	assert.Equal(t, MsgNoCategoryRates, TopCategories(uncategorized, 10).Message())
}

func TestFigureJSON(t *testing.T) {
	raw, err := json.Marshal(TopCategories(nil, 10))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "data")
	assert.Contains(t, decoded, "layout")
	assert.Empty(t, decoded["data"])
}
