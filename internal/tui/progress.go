package tui

import (
	"math"
	"strconv"

	"github.com/charmbracelet/bubbles/progress"
)

// Gauge renders the current heart rate as a fraction of a maximum.
type Gauge struct {
	bar progress.Model
	max float64
	bpm float64
}

// NewGauge creates a gauge that is full at maxBPM.
func NewGauge(maxBPM int) Gauge {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
	)
	return Gauge{bar: p, max: float64(maxBPM)}
}

// Set updates the gauge from a formatted heart rate. Anything that is not a
// positive number, including the placeholder, empties it.
func (g *Gauge) Set(text string) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || v <= 0 {
		g.bpm = 0
		return
	}
	g.bpm = v
}

// Percent returns the fill level in [0, 1].
func (g Gauge) Percent() float64 {
	if g.max <= 0 {
		return 0
	}
	return math.Min(g.bpm/g.max, 1)
}

// SetWidth resizes the bar.
func (g *Gauge) SetWidth(w int) {
	g.bar.Width = w
}

// View renders the bar.
func (g Gauge) View() string {
	return g.bar.ViewAs(g.Percent())
}
