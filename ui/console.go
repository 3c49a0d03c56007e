package ui

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/CK6170/dataplot-go/plot"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// View selects how the console draws the model.
type View int

const (
	ChartView View = iota
	TableView
)

func (v View) String() string {
	if v == TableView {
		return "table"
	}
	return "chart"
}

const (
	barWidth   = 40
	sparkWidth = 48
	tableRows  = 20
)

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Console is a stream.Sink that draws the session's live model. Sink events
// only update the status line; each frame reads the model through source,
// normally Session.Snapshot, so chart and table always show the model
// itself.
type Console struct {
	w      io.Writer
	source func() plot.Model

	mu          sync.Mutex
	view        View
	transport   string
	fingerprint string
	status      string
	updates     int
}

var _ stream.Sink = (*Console)(nil)

// NewConsole returns a console drawing to w the model returned by source.
func NewConsole(w io.Writer, view View, source func() plot.Model) *Console {
	return &Console{w: w, source: source, view: view, status: "waiting for config"}
}

// SessionSource adapts Session.Snapshot for NewConsole.
func SessionSource(s *stream.Session) func() plot.Model {
	return func() plot.Model {
		_, m := s.Snapshot()
		return m
	}
}

func (c *Console) Initialize(i stream.Init) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = i.Transport
	c.fingerprint = i.Fingerprint
	c.updates = 0
	c.status = "configured"
}

func (c *Console) ApplyDelta(plot.Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates++
}

func (c *Console) Reset(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprint = ""
	c.updates = 0
	c.status = reason
}

// Toggle switches between chart and table views and returns the new view.
func (c *Console) Toggle() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == ChartView {
		c.view = TableView
	} else {
		c.view = ChartView
	}
	return c.view
}

// View returns the current view.
func (c *Console) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Draw clears the terminal and writes one frame.
func (c *Console) Draw() error {
	frame := c.Render()
	ClearScreen(c.w)
	_, err := io.WriteString(c.w, frame)
	return err
}

// Render returns one frame as text.
func (c *Console) Render() string {
	// The source takes the session lock, which is held while sink methods
	// take c.mu; read it before locking c.
	var m plot.Model
	if c.source != nil {
		m = c.source()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	if m == nil {
		b.WriteString(statusStyle.Render(c.status))
		b.WriteString("\n")
	} else {
		if c.view == TableView {
			b.WriteString(renderTable(m))
		} else {
			b.WriteString(renderChart(m))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s  view=%s  updates=%d  config=%s  [t] toggle  [q] quit",
		c.transport, c.view, c.updates, c.fingerprint)))
	b.WriteString("\n")
	return b.String()
}

func renderChart(m plot.Model) string {
	switch v := m.(type) {
	case *plot.LineModel:
		return renderLines(v)
	case *plot.BarModel:
		return renderBars(v.Title, v.Categories, v.Colors, v.Values, v.YRange, false)
	case *plot.PieModel:
		return renderBars(v.Title, v.Labels, v.Colors, v.Values, nil, true)
	}
	return ""
}

func heading(title, sub string) string {
	if title == "" {
		title = "dataplot"
	}
	s := titleStyle.Render(title)
	if sub != "" {
		s += " " + dimStyle.Render(sub)
	}
	return s + "\n\n"
}

func renderLines(m *plot.LineModel) string {
	sub := fmt.Sprintf("%s / %s", m.XLabel, m.YLabel)
	if m.Window > 0 {
		sub += fmt.Sprintf("  last %d", m.Window)
	}
	var b strings.Builder
	b.WriteString(heading(m.Title, sub))

	lo, hi := math.Inf(1), math.Inf(-1)
	if m.YRange != nil {
		lo, hi = m.YRange.Min, m.YRange.Max
	} else {
		for _, t := range m.Traces {
			for _, y := range t.Y {
				lo, hi = math.Min(lo, y), math.Max(hi, y)
			}
		}
	}
	width := 0
	for _, t := range m.Traces {
		width = max(width, lipgloss.Width(t.Name))
	}
	for _, t := range m.Traces {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color))
		last := "-"
		if n := len(t.Y); n > 0 {
			last = formatValue(t.Y[n-1])
		}
		b.WriteString(labelStyle.Width(width).Render(t.Name))
		b.WriteString(" ")
		b.WriteString(style.Render(Sparkline(t.Y, lo, hi, sparkWidth)))
		b.WriteString(" ")
		b.WriteString(last)
		b.WriteString("\n")
	}
	return b.String()
}

func renderBars(title string, labels, colors []string, values []float64, yr *plot.Range, percent bool) string {
	var b strings.Builder
	b.WriteString(heading(title, ""))

	scale := 0.0
	total := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
		total += math.Max(v, 0)
	}
	if yr != nil && yr.Max > 0 {
		scale = yr.Max
	}
	width := 0
	for _, l := range labels {
		width = max(width, lipgloss.Width(l))
	}
	for i, v := range values {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(colors[i]))
		frac := 0.0
		if percent && total > 0 {
			frac = math.Max(v, 0) / total
		} else if scale > 0 {
			frac = math.Abs(v) / scale
		}
		bar := Bar(frac, barWidth)
		value := formatValue(v)
		if percent {
			value = fmt.Sprintf("%s (%.1f%%)", value, frac*100)
		}
		b.WriteString(labelStyle.Width(width).Render(labels[i]))
		b.WriteString(" ")
		b.WriteString(style.Render(bar))
		b.WriteString(" ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	return b.String()
}

func renderTable(m plot.Model) string {
	t := plot.Tabulate(m)
	rows := t.Rows
	if len(rows) > tableRows {
		rows = rows[len(rows)-tableRows:]
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(r))
		for j, v := range r {
			cells[i][j] = formatCell(v)
		}
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(t.Header...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(heading(t.Title, fmt.Sprintf("%d rows", len(t.Rows))))
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	for _, s := range t.Stats {
		if s.Count == 0 {
			continue
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s: n=%d min=%s max=%s mean=%s",
			s.Column, s.Count, formatValue(s.Min), formatValue(s.Max), formatValue(s.Mean))))
		b.WriteString("\n")
	}
	return b.String()
}

// Sparkline draws the last width values scaled to [lo, hi].
func Sparkline(values []float64, lo, hi float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	out := make([]rune, len(values))
	span := hi - lo
	top := len(sparkTicks) - 1
	for i, v := range values {
		idx := top / 2
		if span > 0 && !math.IsInf(span, 0) {
			idx = int(math.Round((v - lo) / span * float64(top)))
		}
		out[i] = sparkTicks[min(max(idx, 0), top)]
	}
	return string(out)
}

// Bar draws a horizontal bar filling frac of width cells.
func Bar(frac float64, width int) string {
	frac = math.Min(math.Max(frac, 0), 1)
	n := int(math.Round(frac * float64(width)))
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatValue(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}
