// Package models defines the newline-delimited JSON records a device sends to
// drive a live plot, and the decoder that classifies them.
//
// Two record shapes exist on the wire:
//
//	{"type":"config","graphType":"line","title":"...","x":{...},"y":{...},"series":[...]}
//	{"type":"data","timestamp":1234,"values":{"accelX":12}}
//
// A config describes the chart; a data record carries one timestamped sample
// batch keyed by column name.
package models

import "fmt"

// Record types.
const (
	TypeConfig = "config"
	TypeData   = "data"
)

// GraphKind is the closed set of chart kinds a config may select. The zero
// value is not a valid kind, so a config without graphType is rejected.
type GraphKind int

const (
	Line GraphKind = iota + 1
	Scatter
	Bar
	Pie
)

// String returns the wire name of the kind.
func (k GraphKind) String() string {
	switch k {
	case Line:
		return "line"
	case Scatter:
		return "scatter"
	case Bar:
		return "bar"
	case Pie:
		return "pie"
	default:
		return fmt.Sprintf("GraphKind(%d)", int(k))
	}
}

// ParseGraphKind maps a wire name to a GraphKind.
func ParseGraphKind(s string) (GraphKind, bool) {
	switch s {
	case "line":
		return Line, true
	case "scatter":
		return Scatter, true
	case "bar":
		return Bar, true
	case "pie":
		return Pie, true
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (k GraphKind) MarshalText() ([]byte, error) {
	if _, ok := ParseGraphKind(k.String()); !ok {
		return nil, fmt.Errorf("unknown graph kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *GraphKind) UnmarshalText(b []byte) error {
	v, ok := ParseGraphKind(string(b))
	if !ok {
		return fmt.Errorf("unknown graphType %q", string(b))
	}
	*k = v
	return nil
}

// DefaultColor is used for a series that carries no color.
const DefaultColor = 0x0000ff

// DefaultIcon is the marker symbol for a series that carries no icon.
const DefaultIcon = "circle"

// TimeAxisLabel is the x-axis label the stock firmware uses for scrolling
// time series. A config with this label and no explicit windowSize keeps the
// last TimeAxisWindow points per trace.
const (
	TimeAxisLabel  = "time (seconds)"
	TimeAxisWindow = 30
)

// Axis describes one chart axis. Min and Max are optional; bar configs often
// send only a label for x.
type Axis struct {
	Label string   `json:"label"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// Range returns the axis bounds when both are present.
func (a *Axis) Range() (lo, hi float64, ok bool) {
	if a == nil || a.Min == nil || a.Max == nil {
		return 0, 0, false
	}
	return *a.Min, *a.Max, true
}

// Series is one named data channel. YColumn is the key looked up in data
// records; the remaining fields only affect presentation.
type Series struct {
	DisplayName string `json:"displayName,omitempty"`
	XColumn     string `json:"x_column,omitempty"`
	YColumn     string `json:"y_column"`
	Color       *int   `json:"color,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Name is the label shown for the series.
func (s Series) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.YColumn
}

// RGB returns the series color, or DefaultColor when none was sent.
func (s Series) RGB() int {
	if s.Color == nil {
		return DefaultColor
	}
	return *s.Color
}

// HexColor returns the series color as "#rrggbb".
func (s Series) HexColor() string {
	return HexColor(s.RGB())
}

// Marker returns the series icon, or DefaultIcon.
func (s Series) Marker() string {
	if s.Icon == "" {
		return DefaultIcon
	}
	return s.Icon
}

// HexColor formats a 24-bit RGB integer as "#rrggbb".
func HexColor(rgb int) string {
	return fmt.Sprintf("#%06x", rgb&0xffffff)
}

// Config selects the chart kind and the ordered list of series. Series order
// defines the trace, bar and slice indices used by every later data update.
type Config struct {
	Type       string    `json:"type"`
	GraphType  GraphKind `json:"graphType"`
	Title      string    `json:"title"`
	X          *Axis     `json:"x,omitempty"`
	Y          *Axis     `json:"y,omitempty"`
	Series     []Series  `json:"series"`
	WindowSize *int      `json:"windowSize,omitempty"`
}

// Window returns the maximum number of points kept per trace, or 0 for
// unbounded history. An explicit windowSize wins; otherwise the stock time
// axis label selects TimeAxisWindow.
func (c *Config) Window() int {
	if c.WindowSize != nil {
		if *c.WindowSize > 0 {
			return *c.WindowSize
		}
		return 0
	}
	if c.X != nil && c.X.Label == TimeAxisLabel {
		return TimeAxisWindow
	}
	return 0
}

// Columns returns the y_column of every series, in order.
func (c *Config) Columns() []string {
	out := make([]string, len(c.Series))
	for i, s := range c.Series {
		out[i] = s.YColumn
	}
	return out
}

// Data is one timestamped sample batch. Timestamp is milliseconds since the
// device started.
type Data struct {
	Type      string             `json:"type"`
	Timestamp float64            `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
	// Skipped lists keys whose value was not a number, sorted. They are
	// left out of Values.
	Skipped []string `json:"-"`
}

// Seconds returns the timestamp in seconds, the unit plotted on x.
func (d *Data) Seconds() float64 { return d.Timestamp / 1000 }

// Record is a decoded config or data record.
type Record interface {
	record()
}

func (*Config) record() {}
func (*Data) record()   {}
