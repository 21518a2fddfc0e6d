// Package chart holds the convergence chart state and renders it.
//
// A Convergence is built from a full sample history and then grown one
// sample at a time. Labels and every series always have the same length.
package chart

import (
	"github.com/daviddao/simdash/internal/api"
)

const (
	LossLabel = "Loss"
	TimeTitle = "Time (seconds)"
	LossTitle = "Loss"
)

// Series is one named line of the chart.
type Series struct {
	Label string
	Data  []float64
}

// Convergence is the chart state of one detail page.
type Convergence struct {
	Labels      []float64
	Series      []Series
	XTitle      string
	YTitle      string
	BeginAtZero bool
}

// New builds a fresh chart from an ordered sample history.
func New(samples []api.Sample) *Convergence {
	labels := make([]float64, len(samples))
	loss := make([]float64, len(samples))
	for i, s := range samples {
		labels[i] = s.Seconds
		loss[i] = s.Loss
	}
	return &Convergence{
		Labels:      labels,
		Series:      []Series{{Label: LossLabel, Data: loss}},
		XTitle:      TimeTitle,
		YTitle:      LossTitle,
		BeginAtZero: true,
	}
}

// Append adds one sample to the label sequence and to every series.
func (c *Convergence) Append(s api.Sample) {
	c.Labels = append(c.Labels, s.Seconds)
	for i := range c.Series {
		c.Series[i].Data = append(c.Series[i].Data, s.Loss)
	}
}

// Len returns the number of points on the chart.
func (c *Convergence) Len() int {
	return len(c.Labels)
}

// yBounds returns the vertical range covering every series.
func (c *Convergence) yBounds() (lo, hi float64) {
	first := true
	for _, s := range c.Series {
		for _, v := range s.Data {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if c.BeginAtZero && lo > 0 {
		lo = 0
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// xBounds returns the first and last label, widened when they coincide.
func (c *Convergence) xBounds() (lo, hi float64) {
	if len(c.Labels) == 0 {
		return 0, 1
	}
	lo, hi = c.Labels[0], c.Labels[0]
	for _, v := range c.Labels {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}
