package plot

import "github.com/CK6170/dataplot-go/models"

// Delta describes one data update as applied to the model.
//
// For line and scatter, Indices lists the traces that grew and X[i], Y[i]
// hold the points appended to trace Indices[i]; Window is the per-trace cap
// (0 when unbounded). For bar and pie, Values replaces the whole value vector.
type Delta struct {
	Graph   models.GraphKind `json:"graphType"`
	Indices []int            `json:"indices,omitempty"`
	X       [][]float64      `json:"x,omitempty"`
	Y       [][]float64      `json:"y,omitempty"`
	Values  []float64        `json:"values,omitempty"`
	Window  int              `json:"window,omitempty"`
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool { return len(d.Indices) == 0 && d.Values == nil }

// State is the graph config state machine of one connection: Uninitialized
// until the first valid config, then Active with exactly one config and the
// model built from it. The zero value is Uninitialized.
type State struct {
	cfg   *models.Config
	model Model
}

// Active reports whether a config has been accepted.
func (s *State) Active() bool { return s.cfg != nil }

// Config returns the active config, or nil.
func (s *State) Config() *models.Config { return s.cfg }

// Model returns the live model, or nil before the first config. Callers on
// other goroutines must Clone it under their own lock.
func (s *State) Model() Model { return s.model }

// Configure applies a config record. A config structurally equal to the active
// one is a no-op, so devices may resend their config as a keep-alive without
// wiping history. Any other valid config replaces the active one and rebuilds
// the model from scratch; the new model is returned with changed == true.
func (s *State) Configure(c *models.Config) (m Model, changed bool) {
	if c == nil {
		return s.model, false
	}
	if s.cfg.Equal(c) {
		return s.model, false
	}
	next := NewModel(c)
	if next == nil {
		return s.model, false
	}
	s.cfg = c
	s.model = next
	return next, true
}

// Update applies a data record to the model. Before the first config there
// is no model and ok is false. Otherwise ok is true even when the delta is
// empty (no series matched).
func (s *State) Update(d *models.Data) (delta Delta, ok bool) {
	if s.cfg == nil || s.model == nil || d == nil {
		return Delta{}, false
	}
	return s.model.apply(s.cfg, d), true
}

// Reset returns to Uninitialized, discarding config and model.
func (s *State) Reset() {
	s.cfg = nil
	s.model = nil
}

// apply appends (t/1000, v) to every trace whose column is present. Absent
// columns leave their trace untouched.
func (m *LineModel) apply(cfg *models.Config, d *models.Data) Delta {
	delta := Delta{Graph: m.Graph, Window: m.Window}
	x := d.Seconds()
	for i, s := range cfg.Series {
		v, ok := d.Values[s.YColumn]
		if !ok || i >= len(m.Traces) {
			continue
		}
		t := &m.Traces[i]
		t.X = append(t.X, x)
		t.Y = append(t.Y, v)
		if m.Window > 0 && len(t.X) > m.Window {
			t.X = trimHead(t.X, m.Window)
			t.Y = trimHead(t.Y, m.Window)
		}
		delta.Indices = append(delta.Indices, i)
		delta.X = append(delta.X, []float64{x})
		delta.Y = append(delta.Y, []float64{v})
	}
	return delta
}

// apply replaces every bar value. Columns missing from d read as 0, so a
// partial record zeroes the bars it omits; a record matching no bar changes
// nothing.
func (m *BarModel) apply(cfg *models.Config, d *models.Data) Delta {
	vals := columnValues(cfg, d)
	if vals == nil {
		return Delta{Graph: models.Bar}
	}
	m.Values = vals
	return Delta{Graph: models.Bar, Values: append([]float64(nil), vals...)}
}

// apply replaces every slice value, with the same rules as bars.
func (m *PieModel) apply(cfg *models.Config, d *models.Data) Delta {
	vals := columnValues(cfg, d)
	if vals == nil {
		return Delta{Graph: models.Pie}
	}
	m.Values = vals
	return Delta{Graph: models.Pie, Values: append([]float64(nil), vals...)}
}

// columnValues returns nil when no series column is present in d, so a
// record about other columns leaves the values untouched.
func columnValues(cfg *models.Config, d *models.Data) []float64 {
	vals := make([]float64, len(cfg.Series))
	matched := false
	for i, s := range cfg.Series {
		v, ok := d.Values[s.YColumn]
		vals[i] = v
		matched = matched || ok
	}
	if !matched {
		return nil
	}
	return vals
}

// trimHead keeps the last n elements, moving them to the front of the backing
// array so a windowed trace never grows its allocation.
func trimHead(s []float64, n int) []float64 {
	return append(s[:0], s[len(s)-n:]...)
}
