package plot

import (
	"reflect"
	"testing"
)

func TestTabulateLine(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, lineConfig))
	s.Update(data(1000, map[string]float64{"accelX": 1, "accelY": 10}))
	s.Update(data(2000, map[string]float64{"accelX": 3}))

	tab := Tabulate(m)
	if !reflect.DeepEqual(tab.Header, []string{"time (seconds)", "Accel X", "accelY"}) {
		t.Fatalf("header = %v", tab.Header)
	}
	want := [][]any{
		{1.0, 1.0, 10.0},
		{2.0, 3.0, nil},
	}
	if !reflect.DeepEqual(tab.Rows, want) {
		t.Fatalf("rows = %v", tab.Rows)
	}
	if len(tab.Stats) != 2 {
		t.Fatalf("stats = %+v", tab.Stats)
	}
	x := tab.Stats[0]
	if x.Count != 2 || x.Min != 1 || x.Max != 3 || x.Mean != 2 {
		t.Fatalf("accelX stats = %+v", x)
	}
}

func TestTabulateLineRepeatedTimestamp(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, lineConfig))
	s.Update(data(1000, map[string]float64{"accelX": 1, "accelY": 10}))
	s.Update(data(1000, map[string]float64{"accelX": 2}))
	s.Update(data(500, map[string]float64{"accelY": 4}))

	want := [][]any{
		{0.5, nil, 4.0},
		{1.0, 1.0, 10.0},
		{1.0, 2.0, nil},
	}
	if tab := Tabulate(m); !reflect.DeepEqual(tab.Rows, want) {
		t.Fatalf("rows = %v, want %v", tab.Rows, want)
	}
}

func TestTabulateBarAndPie(t *testing.T) {
	var bar State
	bm, _ := bar.Configure(mustConfig(t, barConfig))
	bar.Update(data(1, map[string]float64{"left": 3}))
	tab := Tabulate(bm)
	if !reflect.DeepEqual(tab.Header, []string{"Category", "Press Count"}) {
		t.Fatalf("bar header = %v", tab.Header)
	}
	if !reflect.DeepEqual(tab.Rows, [][]any{{"left", 3.0}, {"right", 0.0}}) {
		t.Fatalf("bar rows = %v", tab.Rows)
	}
	if tab.Stats[0].Max != 3 || tab.Stats[0].Mean != 1.5 {
		t.Fatalf("bar stats = %+v", tab.Stats)
	}

	var pie State
	pm, _ := pie.Configure(mustConfig(t, pieConfig))
	pie.Update(data(1, map[string]float64{"right": 2}))
	tab = Tabulate(pm)
	if !reflect.DeepEqual(tab.Header, []string{"Buttons", "value"}) {
		t.Fatalf("pie header = %v", tab.Header)
	}
	if !reflect.DeepEqual(tab.Rows, [][]any{{"left", 0.0}, {"right", 2.0}}) {
		t.Fatalf("pie rows = %v", tab.Rows)
	}
}

func TestTabulateEmptyModel(t *testing.T) {
	var s State
	m, _ := s.Configure(mustConfig(t, lineConfig))
	tab := Tabulate(m)
	if len(tab.Rows) != 0 {
		t.Fatalf("rows = %v", tab.Rows)
	}
	if tab.Stats[0].Count != 0 {
		t.Fatalf("stats = %+v", tab.Stats)
	}
	if got := Tabulate(nil); got.Header != nil {
		t.Fatalf("nil model table = %+v", got)
	}
}
