package charts

// Figure is a Plotly figure: traces plus layout, rendered client-side with Plotly.newPlot
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is the subset of Plotly trace attributes the dashboard uses
type Trace struct {
	Type          string    `json:"type"`
	Name          string    `json:"name,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	X             any       `json:"x,omitempty"`
	Y             any       `json:"y,omitempty"`
	Lat           []float64 `json:"lat,omitempty"`
	Lon           []float64 `json:"lon,omitempty"`
	Text          []string  `json:"text,omitempty"`
	Width         any       `json:"width,omitempty"`
	CustomData    [][]any   `json:"customdata,omitempty"`
	HoverTemplate string    `json:"hovertemplate,omitempty"`
	Marker        *Marker   `json:"marker,omitempty"`
}

// Marker styles points and bars
type Marker struct {
	Size         any       `json:"size,omitempty"`
	SizeMode     string    `json:"sizemode,omitempty"`
	SizeRef      float64   `json:"sizeref,omitempty"`
	SizeMin      float64   `json:"sizemin,omitempty"`
	Color        any       `json:"color,omitempty"`
	ColorScale   string    `json:"colorscale,omitempty"`
	ReverseScale bool      `json:"reversescale,omitempty"`
	ShowScale    bool      `json:"showscale,omitempty"`
	ColorBar     *ColorBar `json:"colorbar,omitempty"`
	Opacity      *float64  `json:"opacity,omitempty"`
}

// ColorBar labels a continuous colour scale
type ColorBar struct {
	Title Title `json:"title"`
}

// Layout is the subset of Plotly layout attributes the dashboard uses
type Layout struct {
	Title       *Title       `json:"title,omitempty"`
	Mapbox      *Mapbox      `json:"mapbox,omitempty"`
	Margin      *Margin      `json:"margin,omitempty"`
	XAxis       *Axis        `json:"xaxis,omitempty"`
	YAxis       *Axis        `json:"yaxis,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	ShowLegend  *bool        `json:"showlegend,omitempty"`
	BarGap      *float64     `json:"bargap,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type Mapbox struct {
	Style  string  `json:"style"`
	Zoom   float64 `json:"zoom"`
	Center LatLon  `json:"center"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Margin struct {
	R int `json:"r"`
	T int `json:"t"`
	L int `json:"l"`
	B int `json:"b"`
}

type Axis struct {
	Title      *Title `json:"title,omitempty"`
	TickAngle  int    `json:"tickangle,omitempty"`
	TickFormat string `json:"tickformat,omitempty"`
	Visible    *bool  `json:"visible,omitempty"`
}

// Annotation is free text placed on the figure
type Annotation struct {
	Text      string  `json:"text"`
	XRef      string  `json:"xref"`
	YRef      string  `json:"yref"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ShowArrow bool    `json:"showarrow"`
}

// Message returns the first annotation text, used for empty-state figures
func (f Figure) Message() string {
	if len(f.Layout.Annotations) == 0 {
		return ""
	}
	return f.Layout.Annotations[0].Text
}

// IsEmpty reports whether the figure is an empty-state placeholder
func (f Figure) IsEmpty() bool {
	return f.Message() != ""
}

func title(text string) *Title { return &Title{Text: text} }

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func centeredMessage(text string) Annotation {
	return Annotation{Text: text, XRef: "paper", YRef: "paper", X: 0.5, Y: 0.5}
}

// emptyFigure is a blank cartesian figure carrying a centred message
func emptyFigure(titleText, message string) Figure {
	return Figure{
		Data: []Trace{},
		Layout: Layout{
			Title:       title(titleText),
			XAxis:       &Axis{Visible: boolPtr(false)},
			YAxis:       &Axis{Visible: boolPtr(false)},
			Annotations: []Annotation{centeredMessage(message)},
		},
	}
}
