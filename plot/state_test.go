package plot

import (
	"reflect"
	"testing"

	"github.com/CK6170/dataplot-go/models"
)

func mustConfig(t *testing.T, line string) *models.Config {
	t.Helper()
	rec, err := models.Decode(line)
	if err != nil {
		t.Fatalf("Decode(%s): %v", line, err)
	}
	c, ok := rec.(*models.Config)
	if !ok {
		t.Fatalf("not a config: %T", rec)
	}
	return c
}

func data(ts float64, values map[string]float64) *models.Data {
	return &models.Data{Type: models.TypeData, Timestamp: ts, Values: values}
}

const (
	barConfig  = `{"type":"config","graphType":"bar","title":"Buttons","y":{"label":"Press Count","min":0,"max":20},"series":[{"y_column":"left"},{"y_column":"right"}]}`
	pieConfig  = `{"type":"config","graphType":"pie","title":"Buttons","series":[{"y_column":"left","color":16711680},{"y_column":"right"}]}`
	lineConfig = `{"type":"config","graphType":"line","title":"Accel","x":{"label":"time (seconds)","min":0,"max":10000},"y":{"label":"mg","min":-1024,"max":1024},"series":[{"y_column":"accelX","displayName":"Accel X","color":16711680,"icon":"cross"},{"y_column":"accelY"}]}`
)

func TestUpdateBeforeConfigIgnored(t *testing.T) {
	var s State
	if _, ok := s.Update(data(1, map[string]float64{"left": 1})); ok {
		t.Fatal("update applied with no config")
	}
	if s.Active() || s.Model() != nil {
		t.Fatal("state left Uninitialized")
	}
}

func TestBarMissingKeyDefaultsToZero(t *testing.T) {
	var s State
	m, changed := s.Configure(mustConfig(t, barConfig))
	if !changed {
		t.Fatal("first config not accepted")
	}
	bar := m.(*BarModel)
	if !reflect.DeepEqual(bar.Values, []float64{0, 0}) {
		t.Fatalf("initial values = %v", bar.Values)
	}
	if !reflect.DeepEqual(bar.Categories, []string{"left", "right"}) {
		t.Fatalf("categories = %v", bar.Categories)
	}
	if bar.YRange == nil || bar.YRange.Max != 20 {
		t.Fatalf("y range = %v", bar.YRange)
	}

	s.Update(data(1, map[string]float64{"left": 5, "right": 7}))
	d, ok := s.Update(data(2, map[string]float64{"left": 3}))
	if !ok {
		t.Fatal("update not applied")
	}
	if !reflect.DeepEqual(bar.Values, []float64{3, 0}) {
		t.Fatalf("values = %v, want [3 0]", bar.Values)
	}
	if !reflect.DeepEqual(d.Values, []float64{3, 0}) || d.Graph != models.Bar {
		t.Fatalf("delta = %+v", d)
	}
}

func TestPieWholesaleReplace(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, pieConfig))
	pie := m.(*PieModel)
	if pie.Colors[0] != "#ff0000" || pie.Colors[1] != "#0000ff" {
		t.Fatalf("colors = %v", pie.Colors)
	}
	s.Update(data(1, map[string]float64{"left": 2, "right": 4}))
	s.Update(data(2, map[string]float64{"right": 9, "other": 1}))
	if !reflect.DeepEqual(pie.Values, []float64{0, 9}) {
		t.Fatalf("values = %v", pie.Values)
	}
}

func TestLineWindowKeepsLast30(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, `{"type":"config","graphType":"line","x":{"label":"time (seconds)"},"series":[{"y_column":"accelX"}]}`))
	line := m.(*LineModel)
	for i := 0; i < 40; i++ {
		d, _ := s.Update(data(float64(i*1000), map[string]float64{"accelX": float64(i)}))
		if d.Window != 30 {
			t.Fatalf("delta window = %d", d.Window)
		}
	}
	tr := line.Traces[0]
	if len(tr.X) != 30 || len(tr.Y) != 30 {
		t.Fatalf("trace length = %d/%d, want 30", len(tr.X), len(tr.Y))
	}
	for i := 0; i < 30; i++ {
		if tr.Y[i] != float64(i+10) || tr.X[i] != float64(i+10) {
			t.Fatalf("point %d = (%v, %v), want (%d, %d)", i, tr.X[i], tr.Y[i], i+10, i+10)
		}
	}
	if line.XRange != nil {
		t.Fatalf("time axis should autorange, got %v", line.XRange)
	}
}

func TestLineUnboundedWithoutTimeAxis(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, `{"type":"config","graphType":"scatter","x":{"label":"x","min":0,"max":5},"series":[{"y_column":"a"}]}`))
	line := m.(*LineModel)
	for i := 0; i < 100; i++ {
		s.Update(data(float64(i), map[string]float64{"a": 1}))
	}
	if len(line.Traces[0].X) != 100 {
		t.Fatalf("len = %d", len(line.Traces[0].X))
	}
	if line.Traces[0].Mode != ModeMarkers || line.XRange == nil || line.XRange.Max != 5 {
		t.Fatalf("scatter model = %+v", line)
	}
}

func TestLinePartialUpdate(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, lineConfig))
	line := m.(*LineModel)
	d, ok := s.Update(data(2500, map[string]float64{"accelY": -4}))
	if !ok {
		t.Fatal("update not applied")
	}
	if !reflect.DeepEqual(d.Indices, []int{1}) || d.X[0][0] != 2.5 || d.Y[0][0] != -4 {
		t.Fatalf("delta = %+v", d)
	}
	if len(line.Traces[0].X) != 0 || len(line.Traces[1].X) != 1 {
		t.Fatalf("traces = %+v", line.Traces)
	}
}

func TestLineStyleFixedAtConfig(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, lineConfig))
	tr := m.(*LineModel).Traces
	want := []Trace{
		{Key: "accelX", Name: "Accel X", Color: "#ff0000", Marker: "cross", Mode: ModeLines, X: []float64{}, Y: []float64{}},
		{Key: "accelY", Name: "accelY", Color: "#0000ff", Marker: "circle", Mode: ModeLines, X: []float64{}, Y: []float64{}},
	}
	if !reflect.DeepEqual(tr, want) {
		t.Fatalf("traces = %+v", tr)
	}
}

func TestUnknownColumnLeavesModelUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		config string
		seed   map[string]float64
	}{
		{"line", lineConfig, map[string]float64{"accelX": 7}},
		{"bar", barConfig, map[string]float64{"left": 3, "right": 4}},
		{"pie", pieConfig, map[string]float64{"left": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			m, _ := s.Configure(mustConfig(t, tt.config))
			s.Update(data(1000, tt.seed))
			before := m.Clone()

			d, ok := s.Update(data(2000, map[string]float64{"unknownColumn": 5}))
			if !ok {
				t.Fatal("update reported as not applied")
			}
			if !d.Empty() {
				t.Fatalf("delta = %+v, want empty", d)
			}
			if !reflect.DeepEqual(before, m) {
				t.Fatalf("model changed\n got %+v\nwant %+v", m, before)
			}
		})
	}
}

func TestPartialBarRecordZeroesMissing(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, barConfig))
	s.Update(data(1, map[string]float64{"left": 3, "right": 4}))
	d, _ := s.Update(data(2, map[string]float64{"right": 9, "other": 1}))
	want := []float64{0, 9}
	if !reflect.DeepEqual(d.Values, want) || !reflect.DeepEqual(m.(*BarModel).Values, want) {
		t.Fatalf("delta %v, model %v, want %v", d.Values, m.(*BarModel).Values, want)
	}
}

func TestIdenticalConfigKeepsHistory(t *testing.T) {
	var s State
	first, _ := s.Configure(mustConfig(t, lineConfig))
	s.Update(data(1000, map[string]float64{"accelX": 1}))
	s.Update(data(2000, map[string]float64{"accelX": 2}))

	// Same config, different key order.
	again := `{"series":[{"icon":"cross","color":16711680,"displayName":"Accel X","y_column":"accelX"},{"y_column":"accelY"}],` +
		`"y":{"max":1024,"min":-1024,"label":"mg"},"x":{"max":10000,"min":0,"label":"time (seconds)"},"title":"Accel","graphType":"line","type":"config"}`
	m, changed := s.Configure(mustConfig(t, again))
	if changed {
		t.Fatal("identical config reset the model")
	}
	if m != first {
		t.Fatal("model replaced")
	}
	if n := len(first.(*LineModel).Traces[0].X); n != 2 {
		t.Fatalf("history length = %d, want 2", n)
	}
}

func TestDifferentConfigResets(t *testing.T) {
	tests := []struct {
		name string
		next string
	}{
		{"different graph type", `{"type":"config","graphType":"scatter","title":"Accel","x":{"label":"time (seconds)","min":0,"max":10000},"y":{"label":"mg","min":-1024,"max":1024},"series":[{"y_column":"accelX","displayName":"Accel X","color":16711680,"icon":"cross"},{"y_column":"accelY"}]}`},
		{"different series", `{"type":"config","graphType":"line","title":"Accel","x":{"label":"time (seconds)","min":0,"max":10000},"y":{"label":"mg","min":-1024,"max":1024},"series":[{"y_column":"accelX","displayName":"Accel X","color":16711680,"icon":"cross"}]}`},
		{"to bar", barConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			s.Configure(mustConfig(t, lineConfig))
			s.Update(data(1000, map[string]float64{"accelX": 1}))
			m, changed := s.Configure(mustConfig(t, tt.next))
			if !changed {
				t.Fatal("config change not applied")
			}
			switch v := m.(type) {
			case *LineModel:
				for _, tr := range v.Traces {
					if len(tr.X) != 0 {
						t.Fatalf("trace %s kept history", tr.Key)
					}
				}
			case *BarModel:
				if !reflect.DeepEqual(v.Values, []float64{0, 0}) {
					t.Fatalf("bar values = %v", v.Values)
				}
			default:
				t.Fatalf("unexpected model %T", m)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, lineConfig))
	s.Update(data(1000, map[string]float64{"accelX": 1}))
	snap := m.Clone().(*LineModel)
	s.Update(data(2000, map[string]float64{"accelX": 2}))
	if len(snap.Traces[0].X) != 1 {
		t.Fatalf("snapshot grew with the live model: %v", snap.Traces[0].X)
	}
}

func TestReset(t *testing.T) {
	var s State
	s.Configure(mustConfig(t, barConfig))
	s.Reset()
	if s.Active() {
		t.Fatal("still active after Reset")
	}
	if _, ok := s.Update(data(1, map[string]float64{"left": 1})); ok {
		t.Fatal("update applied after Reset")
	}
}
