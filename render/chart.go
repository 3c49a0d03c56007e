// Package render draws plot models as PNG charts and exports their tables as
// spreadsheets.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/CK6170/dataplot-go/plot"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Default image size.
const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// ErrNoModel is returned when there is nothing to draw.
var ErrNoModel = errors.New("no model")

// Size is the output image size in pixels. Zero fields take the defaults.
type Size struct {
	Width  int
	Height int
}

func (s Size) orDefault() Size {
	if s.Width <= 0 {
		s.Width = DefaultWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}
	return s
}

// Chart renders m as a PNG. A model with no points yet renders as a blank
// image of the requested size.
func Chart(m plot.Model, size Size) ([]byte, error) {
	size = size.orDefault()
	switch v := m.(type) {
	case *plot.LineModel:
		return lineChart(v, size)
	case *plot.BarModel:
		return barChart(v, size)
	case *plot.PieModel:
		return pieChart(v, size)
	case nil:
		return nil, ErrNoModel
	default:
		return nil, fmt.Errorf("render: unsupported model %T", m)
	}
}

// Color converts a "#rrggbb" string. Bad input falls back to blue.
func Color(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return drawing.ColorBlue
	}
	return drawing.ColorFromHex(hex)
}

// pointStyle renders points only, with no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: col,
	}
}

func lineChart(m *plot.LineModel, size Size) ([]byte, error) {
	series := make([]chart.Series, 0, len(m.Traces))
	var allY [][]float64
	for _, tr := range m.Traces {
		if len(tr.X) == 0 {
			continue
		}
		col := Color(tr.Color)
		st := lineStyle(col)
		if tr.Mode == plot.ModeMarkers {
			st = pointStyle(col)
		}
		xs, ys := tr.X, tr.Y
		// Pad to at least two X values for go-chart.
		if len(xs) == 1 {
			xs = []float64{xs[0], xs[0] + 1}
			ys = []float64{ys[0], ys[0]}
		}
		series = append(series, chart.ContinuousSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: st})
		allY = append(allY, ys)
	}
	if len(series) == 0 {
		return blank(size)
	}
	yr := continuousRange(m.YRange)
	if yr == nil {
		yr = flatRange(allY)
	}

	ch := chart.Chart{
		Title:      m.Title,
		Width:      size.Width,
		Height:     size.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: m.XLabel, Range: continuousRange(m.XRange)},
		YAxis:      chart.YAxis{Name: m.YLabel, Range: yr},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return encode(ch.Render)
}

func barChart(m *plot.BarModel, size Size) ([]byte, error) {
	if len(m.Values) == 0 {
		return blank(size)
	}
	bars := make([]chart.Value, len(m.Values))
	lo, hi := 0.0, 0.0
	for i, v := range m.Values {
		col := Color(m.Colors[i])
		bars[i] = chart.Value{
			Label: m.Categories[i],
			Value: v,
			Style: chart.Style{FillColor: col, StrokeColor: col},
		}
		lo, hi = min(lo, v), max(hi, v)
	}
	yr := continuousRange(m.YRange)
	if yr == nil && lo == hi {
		// go-chart rejects a zero-height range; all bars are zero here.
		yr = &chart.ContinuousRange{Min: 0, Max: 1}
	}
	bc := chart.BarChart{
		Title:    m.Title,
		Width:    size.Width,
		Height:   size.Height,
		BarWidth: max(8, size.Width/(2*len(bars)+1)),
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{Name: m.YLabel, Range: yr},
		Bars:  bars,
	}
	return encode(bc.Render)
}

func pieChart(m *plot.PieModel, size Size) ([]byte, error) {
	values := make([]chart.Value, 0, len(m.Values))
	for i, v := range m.Values {
		// Slices must be positive to have an angle.
		if v <= 0 {
			continue
		}
		col := Color(m.Colors[i])
		values = append(values, chart.Value{
			Label: m.Labels[i],
			Value: v,
			Style: chart.Style{FillColor: col, StrokeColor: drawing.ColorWhite},
		})
	}
	if len(values) == 0 {
		return blank(size)
	}
	pc := chart.PieChart{
		Title:  m.Title,
		Width:  size.Width,
		Height: size.Height,
		Values: values,
	}
	return encode(pc.Render)
}

// continuousRange returns a nil interface for an autoranged axis; go-chart
// treats a typed nil pointer as a fixed range.
func continuousRange(r *plot.Range) chart.Range {
	if r == nil || r.Min >= r.Max {
		return nil
	}
	return &chart.ContinuousRange{Min: r.Min, Max: r.Max}
}

// flatRange widens an autoranged axis whose values are all equal, which
// go-chart refuses to draw.
func flatRange(values [][]float64) chart.Range {
	first := true
	var lo, hi float64
	for _, vs := range values {
		for _, v := range vs {
			if first {
				lo, hi, first = v, v, false
				continue
			}
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if first || lo != hi {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

func encode(render func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// blank is shown before the first data point arrives.
func blank(size Size) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
