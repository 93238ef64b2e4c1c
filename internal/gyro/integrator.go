// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"math"
	"time"
)

// DefaultIntegrationInterval is the window used when none is configured
// (250 Hz publish rate).
const DefaultIntegrationInterval = 4 * time.Millisecond

// Integrator accumulates angular rate into a delta-angle over a time window
// and reports a flush once the window has elapsed.
type Integrator struct {
	interval uint64 // µs

	started bool
	last    uint64 // µs
	delta   Vector3
	elapsed uint64 // µs

	regressions uint64
	nonFinite   uint64
}

// NewIntegrator returns an integrator that flushes once at least interval
// has elapsed since the previous flush. A non-positive interval flushes on
// every sample that advances the clock.
func NewIntegrator(interval time.Duration) *Integrator {
	i := &Integrator{}
	i.SetInterval(interval)
	return i
}

// SetInterval changes the flush window. The current accumulation is kept.
func (i *Integrator) SetInterval(interval time.Duration) {
	if interval < 0 {
		interval = 0
	}
	i.interval = uint64(interval / time.Microsecond)
}

// Interval returns the flush window.
func (i *Integrator) Interval() time.Duration {
	return time.Duration(i.interval) * time.Microsecond
}

// Put integrates v (rad/s or deg/s, any rate unit) at timestamp (µs).
//
// The first call only seeds the clock. A timestamp at or before the previous
// one contributes zero time, and the clock is never moved backwards.
// Non-finite samples advance the clock but are not accumulated.
func (i *Integrator) Put(timestamp uint64, v Vector3) (flushed bool, delta Vector3, window time.Duration) {
	if !i.started {
		i.started = true
		i.last = timestamp
		return false, Vector3{}, 0
	}

	var dt uint64
	switch {
	case timestamp > i.last:
		dt = timestamp - i.last
		i.last = timestamp
	case timestamp < i.last:
		i.regressions++
	}

	if finite(v) {
		i.delta = i.delta.Add(v.Scale(float64(dt) / 1e6))
	} else {
		i.nonFinite++
	}
	i.elapsed += dt

	if i.elapsed == 0 || i.elapsed < i.interval {
		return false, Vector3{}, 0
	}

	delta = i.delta
	window = time.Duration(i.elapsed) * time.Microsecond
	i.delta = Vector3{}
	i.elapsed = 0
	return true, delta, window
}

// Reset discards the accumulation and the clock seed.
func (i *Integrator) Reset() {
	i.started = false
	i.last = 0
	i.delta = Vector3{}
	i.elapsed = 0
}

// ClockRegressions counts samples whose timestamp went backwards.
func (i *Integrator) ClockRegressions() uint64 { return i.regressions }

// NonFiniteSamples counts samples dropped for NaN or Inf components.
func (i *Integrator) NonFiniteSamples() uint64 { return i.nonFinite }

func finite(v Vector3) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
