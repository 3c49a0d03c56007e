package plot

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Table is a tabular projection of a model. Cells are string (labels),
// float64 (values) or nil (a trace with no point at that x).
type Table struct {
	Title  string        `json:"title"`
	Header []string      `json:"header"`
	Rows   [][]any       `json:"rows"`
	Stats  []ColumnStats `json:"stats"`
}

// ColumnStats summarizes one numeric column.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// Tabulate projects m into rows. It reads m directly, so pass a Clone when m
// is shared.
func Tabulate(m Model) Table {
	switch v := m.(type) {
	case *LineModel:
		return tabulateLine(v)
	case *BarModel:
		t := Table{Title: v.Title, Header: []string{v.XLabel, v.YLabel}}
		t.Rows = labelRows(v.Categories, v.Values)
		t.Stats = []ColumnStats{columnStats(v.YLabel, v.Values)}
		return t
	case *PieModel:
		head := v.Title
		if head == "" {
			head = "slice"
		}
		t := Table{Title: v.Title, Header: []string{head, "value"}}
		t.Rows = labelRows(v.Labels, v.Values)
		t.Stats = []ColumnStats{columnStats("value", v.Values)}
		return t
	}
	return Table{}
}

// tabulateLine emits rows in ascending x. Traces sharing an x share a row;
// when one trace holds several points at the same x, each gets its own row,
// so every point in the model appears exactly once.
func tabulateLine(m *LineModel) Table {
	t := Table{Title: m.Title, Header: make([]string, 0, len(m.Traces)+1)}
	t.Header = append(t.Header, m.XLabel)

	// need[x] is the most points any single trace has at x.
	need := make(map[float64]int)
	var xs []float64
	for _, tr := range m.Traces {
		t.Header = append(t.Header, tr.Name)
		seen := make(map[float64]int, len(tr.X))
		for _, x := range tr.X {
			seen[x]++
			if seen[x] > need[x] {
				if need[x] == 0 {
					xs = append(xs, x)
				}
				need[x] = seen[x]
			}
		}
	}
	slices.Sort(xs)

	first := make(map[float64]int, len(xs))
	for _, x := range xs {
		first[x] = len(t.Rows)
		for range need[x] {
			r := make([]any, len(m.Traces)+1)
			r[0] = x
			t.Rows = append(t.Rows, r)
		}
	}
	for j, tr := range m.Traces {
		used := make(map[float64]int, len(tr.X))
		for k, x := range tr.X {
			t.Rows[first[x]+used[x]][j+1] = tr.Y[k]
			used[x]++
		}
		t.Stats = append(t.Stats, columnStats(tr.Name, tr.Y))
	}
	return t
}

func labelRows(labels []string, values []float64) [][]any {
	rows := make([][]any, len(labels))
	for i, l := range labels {
		var v float64
		if i < len(values) {
			v = values[i]
		}
		rows[i] = []any{l, v}
	}
	return rows
}

func columnStats(name string, vals []float64) ColumnStats {
	cs := ColumnStats{Column: name, Count: len(vals)}
	if len(vals) == 0 {
		return cs
	}
	cs.Min = floats.Min(vals)
	cs.Max = floats.Max(vals)
	cs.Mean = stat.Mean(vals, nil)
	if math.IsNaN(cs.Mean) {
		cs.Mean = 0
	}
	return cs
}
