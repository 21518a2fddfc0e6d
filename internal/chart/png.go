package chart

import (
	"errors"
	"io"
	"os"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmpty is returned when exporting a chart without samples.
var ErrEmpty = errors.New("chart has no samples")

var seriesColor = drawing.Color{R: 75, G: 192, B: 192, A: 255}

// WritePNG renders the chart as a PNG image.
func (c *Convergence) WritePNG(w io.Writer, width, height int) error {
	if c == nil || c.Len() == 0 {
		return ErrEmpty
	}

	ylo, yhi := c.yBounds()
	series := make([]gochart.Series, 0, len(c.Series))
	for _, s := range c.Series {
		xs := append([]float64(nil), c.Labels...)
		ys := append([]float64(nil), s.Data...)
		// go-chart needs at least two x values to build a range.
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: seriesColor,
				StrokeWidth: 2,
			},
		})
	}

	graph := gochart.Chart{
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      gochart.XAxis{Name: c.XTitle},
		YAxis: gochart.YAxis{
			Name:  c.YTitle,
			Range: &gochart.ContinuousRange{Min: ylo, Max: yhi},
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	return graph.Render(gochart.PNG, w)
}

// SavePNG writes the chart to a PNG file at path.
func (c *Convergence) SavePNG(path string, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WritePNG(f, width, height); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
