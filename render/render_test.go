package render

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/CK6170/dataplot-go/models"
	"github.com/CK6170/dataplot-go/plot"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"github.com/xuri/excelize/v2"
)

func state(t *testing.T, config string, points ...map[string]float64) (*plot.State, plot.Model) {
	t.Helper()
	rec, err := models.Decode(config)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s := &plot.State{}
	m, _ := s.Configure(rec.(*models.Config))
	for i, p := range points {
		s.Update(&models.Data{Type: models.TypeData, Timestamp: float64(i * 1000), Values: p})
	}
	return s, m
}

func decodePNG(t *testing.T, b []byte) (w, h int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	r := img.Bounds()
	return r.Dx(), r.Dy()
}

func TestChartKinds(t *testing.T) {
	tests := []struct {
		name   string
		config string
		points []map[string]float64
	}{
		{"line", `{"type":"config","graphType":"line","x":{"label":"time (seconds)"},"series":[{"y_column":"a"},{"y_column":"b","color":65280}]}`,
			[]map[string]float64{{"a": 1, "b": 2}, {"a": 3}, {"a": 2, "b": 5}}},
		{"scatter single point", `{"type":"config","graphType":"scatter","series":[{"y_column":"a"}]}`,
			[]map[string]float64{{"a": 4}}},
		{"line flat", `{"type":"config","graphType":"line","series":[{"y_column":"a"}]}`,
			[]map[string]float64{{"a": 4}, {"a": 4}}},
		{"bar", `{"type":"config","graphType":"bar","y":{"min":0,"max":20},"series":[{"y_column":"left"},{"y_column":"right"}]}`,
			[]map[string]float64{{"left": 3}}},
		{"bar all zero", `{"type":"config","graphType":"bar","series":[{"y_column":"left"}]}`, nil},
		{"pie", `{"type":"config","graphType":"pie","series":[{"y_column":"left","color":16711680},{"y_column":"right"}]}`,
			[]map[string]float64{{"left": 1, "right": 3}}},
		{"pie empty", `{"type":"config","graphType":"pie","series":[{"y_column":"left"}]}`, nil},
		{"line empty", `{"type":"config","graphType":"line","series":[{"y_column":"a"}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, m := state(t, tt.config, tt.points...)
			b, err := Chart(m, Size{Width: 320, Height: 200})
			if err != nil {
				t.Fatalf("Chart: %v", err)
			}
			if w, h := decodePNG(t, b); w != 320 || h != 200 {
				t.Fatalf("size = %dx%d", w, h)
			}
		})
	}
}

func TestChartNoModel(t *testing.T) {
	if _, err := Chart(nil, Size{}); !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v", err)
	}
}

func TestColor(t *testing.T) {
	if got := Color("#ff0000"); got != drawing.ColorFromHex("ff0000") {
		t.Fatalf("Color = %v", got)
	}
	if got := Color("bogus"); got != drawing.ColorBlue {
		t.Fatalf("fallback = %v", got)
	}
}

func TestWorkbook(t *testing.T) {
	_, m := state(t, `{"type":"config","graphType":"line","title":"Accel","x":{"label":"t"},"series":[{"y_column":"a"},{"y_column":"b"}]}`,
		map[string]float64{"a": 1, "b": 2}, map[string]float64{"a": 3})
	b, err := Workbook(plot.Tabulate(m))
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(DataSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][0] != "t" || rows[0][1] != "a" || rows[0][2] != "b" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[2][1] != "3" || len(rows[2]) != 2 {
		t.Fatalf("second row = %v", rows[2])
	}

	stats, err := f.GetRows(StatsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 || stats[1][0] != "a" || stats[1][4] != "2" {
		t.Fatalf("stats = %v", stats)
	}
	props, err := f.GetDocProps()
	if err != nil || props.Title != "Accel" {
		t.Fatalf("props = %+v, %v", props, err)
	}
}
