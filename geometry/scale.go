// Package geometry maps trace time and node identity onto canvas pixels.
package geometry

import "math"

// LinearScale maps a continuous domain onto a pixel range.
type LinearScale struct {
	D0, D1 float64
	R0, R1 float64
}

// NewLinear builds a linear scale from [d0,d1] to [r0,r1].
func NewLinear(d0, d1, r0, r1 float64) LinearScale {
	return LinearScale{D0: d0, D1: d1, R0: r0, R1: r1}
}

// Degenerate reports a zero-width (or non-finite) domain.
func (s LinearScale) Degenerate() bool {
	w := s.D1 - s.D0
	return w == 0 || math.IsNaN(w) || math.IsInf(w, 0)
}

// Map converts a domain value to pixels. A degenerate domain maps every
// value to the middle of the range.
func (s LinearScale) Map(v float64) float64 {
	if s.Degenerate() {
		return (s.R0 + s.R1) / 2
	}
	return s.R0 + (v-s.D0)*(s.R1-s.R0)/(s.D1-s.D0)
}

// Invert converts pixels back to a domain value.
func (s LinearScale) Invert(p float64) float64 {
	if s.R1 == s.R0 || s.Degenerate() {
		return (s.D0 + s.D1) / 2
	}
	return s.D0 + (p-s.R0)*(s.D1-s.D0)/(s.R1-s.R0)
}

// Domain returns the ordered domain bounds.
func (s LinearScale) Domain() (lo, hi float64) {
	if s.D0 <= s.D1 {
		return s.D0, s.D1
	}
	return s.D1, s.D0
}

// Contains reports whether v lies within the domain, bounds inclusive.
func (s LinearScale) Contains(v float64) bool {
	lo, hi := s.Domain()
	return v >= lo && v <= hi
}

// Overlaps reports whether [a,b] intersects the domain.
func (s LinearScale) Overlaps(a, b float64) bool {
	lo, hi := s.Domain()
	return a <= hi && b >= lo
}

// BandScale maps discrete keys onto evenly spaced bands.
type BandScale struct {
	keys    []string
	index   map[string]int
	r0, r1  float64
	padding float64
	step    float64
	start   float64
	band    float64
}

// NewBand lays out keys over [r0,r1]. padding applies to inner and outer
// gaps as a fraction of the step, with bands centered in the range.
func NewBand(keys []string, r0, r1, padding float64) BandScale {
	b := BandScale{
		keys:    append([]string(nil), keys...),
		index:   make(map[string]int, len(keys)),
		r0:      r0,
		r1:      r1,
		padding: padding,
	}
	for i, k := range b.keys {
		b.index[k] = i
	}
	n := float64(len(keys))
	if n == 0 {
		return b
	}
	denom := math.Max(1, n-padding+2*padding)
	b.step = (r1 - r0) / denom
	b.start = r0 + (r1-r0-b.step*(n-padding))*0.5
	b.band = b.step * (1 - padding)
	return b
}

// Map returns the top of key's band; ok is false for unknown keys.
func (b BandScale) Map(key string) (float64, bool) {
	i, ok := b.index[key]
	if !ok {
		return 0, false
	}
	return b.start + b.step*float64(i), true
}

// Center returns the vertical center of key's band.
func (b BandScale) Center(key string) (float64, bool) {
	y, ok := b.Map(key)
	if !ok {
		return 0, false
	}
	return y + b.band/2, true
}

// Bandwidth returns the height of one band.
func (b BandScale) Bandwidth() float64 { return b.band }

// Step returns the distance between band starts.
func (b BandScale) Step() float64 { return b.step }

// Keys returns the domain in band order.
func (b BandScale) Keys() []string { return b.keys }

// Len returns the number of bands.
func (b BandScale) Len() int { return len(b.keys) }
