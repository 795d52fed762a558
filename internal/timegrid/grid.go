// Package timegrid converts between wall-clock strings, decimal hours and
// slot indices on a fixed-step day grid.
package timegrid

import (
	"errors"
	"math"
)

const (
	HoursPerDay        = 24
	DefaultSlotMinutes = 30
)

const alignEpsilon = 1e-9

type Grid struct {
	minutes int
}

func New(slotMinutes int) (Grid, error) {
	if slotMinutes <= 0 || 60%slotMinutes != 0 {
		return Grid{}, errors.New("slot minutes must evenly divide an hour")
	}
	return Grid{minutes: slotMinutes}, nil
}

// Default is the 30-minute grid.
func Default() Grid {
	return Grid{minutes: DefaultSlotMinutes}
}

func (g Grid) SlotMinutes() int {
	if g.minutes == 0 {
		return DefaultSlotMinutes
	}
	return g.minutes
}

// Step is the slot size in decimal hours.
func (g Grid) Step() float64 {
	return float64(g.SlotMinutes()) / 60
}

// Len is the number of slots in one day.
func (g Grid) Len() int {
	return HoursPerDay * 60 / g.SlotMinutes()
}

// Slots enumerates every slot start in [0, 24).
func (g Grid) Slots() []float64 {
	out := make([]float64, g.Len())
	for i := range out {
		out[i] = g.At(i)
	}
	return out
}

// Index is the rendering index of a decimal hour.
func (g Grid) Index(d float64) int {
	return int(math.Round(d / g.Step()))
}

// At is the decimal hour of slot i. Computed from integer minutes so repeated
// conversions never drift.
func (g Grid) At(i int) float64 {
	return float64(i*g.SlotMinutes()) / 60
}

func (g Grid) Aligned(d float64) bool {
	return math.Abs(g.At(g.Index(d))-d) < alignEpsilon
}

// Span lists the slots covering [start, start+minutes/60).
func (g Grid) Span(start float64, minutes int) []float64 {
	first := g.Index(start)
	n := int(math.Ceil(float64(minutes) / float64(g.SlotMinutes())))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.At(first+i))
	}
	return out
}

// InDay reports whether [start, start+minutes/60) fits inside one calendar day.
func InDay(start float64, minutes int) bool {
	return start >= 0 && start+float64(minutes)/60 <= HoursPerDay+alignEpsilon
}
