package chart

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
)

var (
	lineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	axisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
)

const minCanvasWidth = 20

// Render draws the chart into a width x height block of terminal text:
// a title line, the braille canvas, the x range and the x title.
// Only the first series is plotted; the legend names every series.
func (c *Convergence) Render(width, height int) string {
	if c == nil || c.Len() == 0 {
		return axisStyle.Render("  (no convergence data)")
	}

	plotW := max(width, minCanvasWidth)
	plotH := max(height-3, 3)

	data := c.canvasData()
	canvas := plot.NewCanvas(plotW, plotH)
	canvas.ShowAxis = true
	canvas.NumDataPoints = len(data[0])
	canvas.LineColors = []plot.Color{plot.Red, plot.DimGray}[:len(data)]
	canvas.Fill(data)

	var b strings.Builder
	legend := make([]string, len(c.Series))
	for i, s := range c.Series {
		legend[i] = "━ " + s.Label
	}
	b.WriteString(titleStyle.Render(c.YTitle))
	b.WriteString("  ")
	b.WriteString(lineStyle.Render(strings.Join(legend, "  ")))
	b.WriteRune('\n')

	for _, line := range fitLines(canvas.String(), plotH) {
		b.WriteString(line)
		b.WriteRune('\n')
	}

	xlo, xhi := c.xBounds()
	left, right := formatTick(xlo), formatTick(xhi)
	gap := max(1, plotW-len(left)-len(right))
	b.WriteString(axisStyle.Render(left + strings.Repeat(" ", gap) + right))
	b.WriteRune('\n')

	pad := max(0, (plotW-len(c.XTitle))/2)
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(titleStyle.Render(c.XTitle))

	return b.String()
}

// canvasData returns the series handed to the canvas. The canvas scales to
// the data it is given, so a flat series at the lower bound pins the floor
// when the chart begins at zero. A single sample is widened to a segment.
func (c *Convergence) canvasData() [][]float64 {
	loss := append([]float64(nil), c.Series[0].Data...)
	if len(loss) == 1 {
		loss = append(loss, loss[0])
	}
	if !c.BeginAtZero {
		return [][]float64{loss}
	}
	lo, _ := c.yBounds()
	floor := make([]float64, len(loss))
	for i := range floor {
		floor[i] = lo
	}
	return [][]float64{loss, floor}
}

// fitLines pads or clips the canvas output to exactly n lines.
func fitLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if s == "" {
		lines = nil
	}
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}

func formatTick(v float64) string {
	return fmt.Sprintf("%.4g", v)
}
