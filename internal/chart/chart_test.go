package chart

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/daviddao/simdash/internal/api"
)

func descending(n int) []api.Sample {
	out := make([]api.Sample, n+1)
	for i := 0; i <= n; i++ {
		out[i] = api.Sample{Seconds: float64(i), Loss: 1.0 - 0.9*float64(i)/float64(n)}
	}
	return out
}

func TestNewMirrorsSamples(t *testing.T) {
	samples := descending(10)
	c := New(samples)

	if c.Len() != len(samples) {
		t.Fatalf("Len() = %d, want %d", c.Len(), len(samples))
	}
	if len(c.Series) != 1 || c.Series[0].Label != "Loss" {
		t.Fatalf("series = %+v", c.Series)
	}
	for i, s := range samples {
		if c.Labels[i] != s.Seconds {
			t.Errorf("label[%d] = %v, want %v", i, c.Labels[i], s.Seconds)
		}
		if c.Series[0].Data[i] != s.Loss {
			t.Errorf("data[%d] = %v, want %v", i, c.Series[0].Data[i], s.Loss)
		}
	}
	if c.XTitle != "Time (seconds)" || c.YTitle != "Loss" || !c.BeginAtZero {
		t.Errorf("axes = %q/%q zero=%v", c.XTitle, c.YTitle, c.BeginAtZero)
	}
}

func TestAppendGrowsByOne(t *testing.T) {
	c := New(descending(5))
	before := append([]float64(nil), c.Labels...)
	beforeData := append([]float64(nil), c.Series[0].Data...)

	c.Append(api.Sample{Seconds: 6, Loss: 0.05})

	if len(c.Labels) != len(before)+1 || len(c.Series[0].Data) != len(beforeData)+1 {
		t.Fatalf("lengths = %d/%d, want %d", len(c.Labels), len(c.Series[0].Data), len(before)+1)
	}
	for i := range before {
		if c.Labels[i] != before[i] || c.Series[0].Data[i] != beforeData[i] {
			t.Errorf("entry %d changed", i)
		}
	}
	if c.Labels[6] != 6 || c.Series[0].Data[6] != 0.05 {
		t.Errorf("appended = (%v, %v)", c.Labels[6], c.Series[0].Data[6])
	}
}

func TestAppendToEverySeries(t *testing.T) {
	c := New(nil)
	c.Series = append(c.Series, Series{Label: "Smoothed"})
	c.Append(api.Sample{Seconds: 1, Loss: 0.7})

	for _, s := range c.Series {
		if len(s.Data) != len(c.Labels) {
			t.Errorf("series %q has %d points, labels %d", s.Label, len(s.Data), len(c.Labels))
		}
	}
}

func TestYBoundsZeroBased(t *testing.T) {
	c := New([]api.Sample{{Seconds: 0, Loss: 0.8}, {Seconds: 1, Loss: 0.4}})
	lo, hi := c.yBounds()
	if lo != 0 || hi != 0.8 {
		t.Errorf("yBounds = %v..%v, want 0..0.8", lo, hi)
	}
}

func TestRenderEmpty(t *testing.T) {
	out := New(nil).Render(60, 12)
	if !strings.Contains(out, "no convergence data") {
		t.Errorf("empty render = %q", out)
	}
	var c *Convergence
	if !strings.Contains(c.Render(60, 12), "no convergence data") {
		t.Error("nil chart should render placeholder")
	}
}

func hasBraille(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r > 0x2800 && r <= 0x28FF }) >= 0
}

func TestRenderContainsAxes(t *testing.T) {
	out := New(descending(20)).Render(60, 14)
	for _, want := range []string{"Loss", "Time (seconds)", "━ Loss"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
	if !hasBraille(out) {
		t.Errorf("render has no plotted dots:\n%s", out)
	}
	// title + canvas rows + x range + x title
	if lines := strings.Count(out, "\n") + 1; lines != 14 {
		t.Errorf("render has %d lines, want 14", lines)
	}
}

func TestRenderSinglePoint(t *testing.T) {
	out := New([]api.Sample{{Seconds: 3, Loss: 0.5}}).Render(40, 10)
	if !hasBraille(out) {
		t.Errorf("single sample should still plot:\n%s", out)
	}
	if lines := strings.Count(out, "\n") + 1; lines != 10 {
		t.Errorf("render has %d lines, want 10", lines)
	}
}

func TestCanvasDataPinsZeroFloor(t *testing.T) {
	tests := []struct {
		name    string
		samples []api.Sample
		want    [][]float64
	}{
		{"series", []api.Sample{{Seconds: 0, Loss: 0.8}, {Seconds: 1, Loss: 0.4}}, [][]float64{{0.8, 0.4}, {0, 0}}},
		{"single sample", []api.Sample{{Seconds: 3, Loss: 0.5}}, [][]float64{{0.5, 0.5}, {0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.samples).canvasData()
			if len(got) != len(tt.want) {
				t.Fatalf("canvasData has %d series, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if !slices.Equal(got[i], tt.want[i]) {
					t.Errorf("series %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCanvasDataWithoutZeroFloor(t *testing.T) {
	c := New([]api.Sample{{Seconds: 0, Loss: 0.8}, {Seconds: 1, Loss: 0.4}})
	c.BeginAtZero = false
	if got := c.canvasData(); len(got) != 1 {
		t.Errorf("canvasData = %v, want the loss series only", got)
	}
}

func TestCanvasDataLeavesSeriesUntouched(t *testing.T) {
	c := New([]api.Sample{{Seconds: 3, Loss: 0.5}})
	c.canvasData()
	if len(c.Series[0].Data) != 1 {
		t.Errorf("series mutated: %v", c.Series[0].Data)
	}
}

func TestFitLines(t *testing.T) {
	if got := fitLines("a\nb\nc\n", 2); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("clip = %q", got)
	}
	if got := fitLines("a", 3); !slices.Equal(got, []string{"a", "", ""}) {
		t.Errorf("pad = %q", got)
	}
	if got := fitLines("", 2); !slices.Equal(got, []string{"", ""}) {
		t.Errorf("empty = %q", got)
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := New(descending(10)).WritePNG(&buf, 640, 360); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestWritePNGSinglePoint(t *testing.T) {
	var buf bytes.Buffer
	if err := New([]api.Sample{{Seconds: 0, Loss: 1}}).WritePNG(&buf, 320, 200); err != nil {
		t.Fatalf("WritePNG single point: %v", err)
	}
}

func TestWritePNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := New(nil).WritePNG(&buf, 320, 200); !errors.Is(err, ErrEmpty) {
		t.Errorf("WritePNG empty = %v, want ErrEmpty", err)
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.png")
	if err := New(descending(4)).SavePNG(path, 320, 200); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("file is not a PNG")
	}
}
