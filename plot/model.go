// Package plot holds the in-memory plot model for one connection and the
// state machine that builds and updates it.
//
// A config record (re)builds the model; data records mutate it. The model is
// the single source of truth for everything drawn: chart sinks, the tabular
// view and exports all read from it.
package plot

import (
	"slices"

	"github.com/CK6170/dataplot-go/models"
)

// Trace modes.
const (
	ModeLines   = "lines"
	ModeMarkers = "markers"
)

// Model is the plot model for the active config. It is one of *LineModel,
// *BarModel or *PieModel; the set is closed.
type Model interface {
	// Kind is the graph kind the model was built for.
	Kind() models.GraphKind
	// Clone returns a deep copy that shares no slices with the receiver.
	Clone() Model

	apply(cfg *models.Config, d *models.Data) Delta
}

// Range is a fixed axis range.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func axisRange(a *models.Axis) *Range {
	lo, hi, ok := a.Range()
	if !ok {
		return nil
	}
	return &Range{Min: lo, Max: hi}
}

func axisLabel(a *models.Axis, def string) string {
	if a == nil || a.Label == "" {
		return def
	}
	return a.Label
}

// Trace is one line or scatter series. Styling is fixed when the trace is
// built; X and Y grow together.
type Trace struct {
	Key    string    `json:"key"`
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Marker string    `json:"marker"`
	Mode   string    `json:"mode"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
}

// LineModel serves both line and scatter configs.
type LineModel struct {
	Graph  models.GraphKind `json:"graphType"`
	Title  string           `json:"title"`
	XLabel string           `json:"xLabel"`
	YLabel string           `json:"yLabel"`
	// XRange is nil when x should follow the data (scrolling time axis).
	XRange *Range  `json:"xRange,omitempty"`
	YRange *Range  `json:"yRange,omitempty"`
	Window int     `json:"window,omitempty"`
	Traces []Trace `json:"traces"`
}

// BarModel holds the current value of each bar, in series order.
type BarModel struct {
	Title      string    `json:"title"`
	XLabel     string    `json:"xLabel"`
	YLabel     string    `json:"yLabel"`
	YRange     *Range    `json:"yRange,omitempty"`
	Categories []string  `json:"categories"`
	Colors     []string  `json:"colors"`
	Values     []float64 `json:"values"`
}

// PieModel holds the current value of each slice, in series order.
type PieModel struct {
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Colors []string  `json:"colors"`
	Values []float64 `json:"values"`
}

func (m *LineModel) Kind() models.GraphKind { return m.Graph }
func (*BarModel) Kind() models.GraphKind    { return models.Bar }
func (*PieModel) Kind() models.GraphKind    { return models.Pie }

// NewModel builds an empty model for c. It returns nil if c names no known
// graph kind.
func NewModel(c *models.Config) Model {
	switch c.GraphType {
	case models.Line, models.Scatter:
		return newLineModel(c)
	case models.Bar:
		return newBarModel(c)
	case models.Pie:
		return newPieModel(c)
	}
	return nil
}

func newLineModel(c *models.Config) *LineModel {
	mode := ModeLines
	if c.GraphType == models.Scatter {
		mode = ModeMarkers
	}
	m := &LineModel{
		Graph:  c.GraphType,
		Title:  c.Title,
		XLabel: axisLabel(c.X, "x"),
		YLabel: axisLabel(c.Y, "y"),
		YRange: axisRange(c.Y),
		Window: c.Window(),
		Traces: make([]Trace, len(c.Series)),
	}
	// A scrolling time axis follows the data instead of the configured range.
	if c.X == nil || c.X.Label != models.TimeAxisLabel {
		m.XRange = axisRange(c.X)
	}
	for i, s := range c.Series {
		m.Traces[i] = Trace{
			Key:    s.YColumn,
			Name:   s.Name(),
			Color:  s.HexColor(),
			Marker: s.Marker(),
			Mode:   mode,
			X:      []float64{},
			Y:      []float64{},
		}
	}
	return m
}

func newBarModel(c *models.Config) *BarModel {
	m := &BarModel{
		Title:      c.Title,
		XLabel:     axisLabel(c.X, "Category"),
		YLabel:     axisLabel(c.Y, "value"),
		YRange:     axisRange(c.Y),
		Categories: c.Columns(),
		Colors:     make([]string, len(c.Series)),
		Values:     make([]float64, len(c.Series)),
	}
	for i, s := range c.Series {
		m.Colors[i] = s.HexColor()
	}
	return m
}

func newPieModel(c *models.Config) *PieModel {
	m := &PieModel{
		Title:  c.Title,
		Labels: c.Columns(),
		Colors: make([]string, len(c.Series)),
		Values: make([]float64, len(c.Series)),
	}
	for i, s := range c.Series {
		m.Colors[i] = s.HexColor()
	}
	return m
}

func (m *LineModel) Clone() Model {
	out := *m
	if m.XRange != nil {
		r := *m.XRange
		out.XRange = &r
	}
	if m.YRange != nil {
		r := *m.YRange
		out.YRange = &r
	}
	out.Traces = make([]Trace, len(m.Traces))
	for i, t := range m.Traces {
		t.X = slices.Clone(t.X)
		t.Y = slices.Clone(t.Y)
		out.Traces[i] = t
	}
	return &out
}

func (m *BarModel) Clone() Model {
	out := *m
	if m.YRange != nil {
		r := *m.YRange
		out.YRange = &r
	}
	out.Categories = slices.Clone(m.Categories)
	out.Colors = slices.Clone(m.Colors)
	out.Values = slices.Clone(m.Values)
	return &out
}

func (m *PieModel) Clone() Model {
	out := *m
	out.Labels = slices.Clone(m.Labels)
	out.Colors = slices.Clone(m.Colors)
	out.Values = slices.Clone(m.Values)
	return &out
}
