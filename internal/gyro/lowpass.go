// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFilterConfig is returned for a non-positive sample rate or a
// negative cutoff. The filter keeps its previous configuration in that case.
var ErrInvalidFilterConfig = errors.New("invalid low-pass filter configuration")

// LowPassFilter is a single-pole (RC) recursive low-pass filter.
//
// The zero value passes samples through unchanged. A cutoff of 0 also
// disables filtering, and cutoffs at or above Nyquist are clamped to
// sampleFreq/2.
type LowPassFilter struct {
	sampleFreq float64
	cutoffFreq float64
	alpha      float64

	out    float64
	seeded bool
}

// NewLowPassFilter returns a filter configured for the given rates.
func NewLowPassFilter(sampleFreq, cutoffFreq float64) (*LowPassFilter, error) {
	f := &LowPassFilter{}
	if err := f.Configure(sampleFreq, cutoffFreq); err != nil {
		return nil, err
	}
	return f, nil
}

// Configure re-derives the coefficient. It must be called whenever either
// the sample rate or the cutoff changes.
func (f *LowPassFilter) Configure(sampleFreq, cutoffFreq float64) error {
	if !(sampleFreq > 0) || math.IsInf(sampleFreq, 0) {
		return fmt.Errorf("%w: sample rate %v Hz", ErrInvalidFilterConfig, sampleFreq)
	}
	if !(cutoffFreq >= 0) {
		return fmt.Errorf("%w: cutoff %v Hz", ErrInvalidFilterConfig, cutoffFreq)
	}

	if nyquist := sampleFreq / 2; cutoffFreq > nyquist {
		cutoffFreq = nyquist
	}

	f.sampleFreq = sampleFreq
	f.cutoffFreq = cutoffFreq
	if cutoffFreq == 0 {
		f.alpha = 1
		return nil
	}
	dt := 1 / sampleFreq
	rc := 1 / (2 * math.Pi * cutoffFreq)
	f.alpha = dt / (rc + dt)
	return nil
}

// Apply feeds one sample and returns the new output.
// The first sample after construction or Reset seeds the output.
func (f *LowPassFilter) Apply(x float64) float64 {
	if !f.seeded || f.cutoffFreq == 0 {
		f.out = x
		f.seeded = true
		return x
	}
	f.out += f.alpha * (x - f.out)
	return f.out
}

// Reset drops the filter state; the next Apply re-seeds it.
func (f *LowPassFilter) Reset() {
	f.out = 0
	f.seeded = false
}

// SampleFreq returns the configured sample rate in Hz.
func (f *LowPassFilter) SampleFreq() float64 { return f.sampleFreq }

// CutoffFreq returns the effective (possibly clamped) cutoff in Hz.
func (f *LowPassFilter) CutoffFreq() float64 { return f.cutoffFreq }

// Alpha returns the current smoothing coefficient.
func (f *LowPassFilter) Alpha() float64 { return f.alpha }

// FilterBank holds one independent filter per axis, all sharing the same
// configuration.
type FilterBank struct {
	x, y, z LowPassFilter

	// requested cutoff, before any Nyquist clamp
	cutoffFreq float64
}

// Configure applies the same rates to all three axes. On error no axis is
// changed.
func (b *FilterBank) Configure(sampleFreq, cutoffFreq float64) error {
	if err := b.x.Configure(sampleFreq, cutoffFreq); err != nil {
		return err
	}
	// x accepted the same values, so y and z cannot fail.
	_ = b.y.Configure(sampleFreq, cutoffFreq)
	_ = b.z.Configure(sampleFreq, cutoffFreq)
	b.cutoffFreq = cutoffFreq
	return nil
}

// SetCutoff changes the cutoff, keeping the current sample rate.
func (b *FilterBank) SetCutoff(cutoffFreq float64) error {
	return b.Configure(b.x.sampleFreq, cutoffFreq)
}

// SetSampleFreq changes the sample rate, keeping the requested cutoff.
func (b *FilterBank) SetSampleFreq(sampleFreq float64) error {
	return b.Configure(sampleFreq, b.cutoffFreq)
}

// Apply filters each axis of v.
func (b *FilterBank) Apply(v Vector3) Vector3 {
	return Vector3{
		X: b.x.Apply(v.X),
		Y: b.y.Apply(v.Y),
		Z: b.z.Apply(v.Z),
	}
}

// Reset clears all three filter states.
func (b *FilterBank) Reset() {
	b.x.Reset()
	b.y.Reset()
	b.z.Reset()
}

// SampleFreq returns the shared sample rate in Hz.
func (b *FilterBank) SampleFreq() float64 { return b.x.sampleFreq }

// CutoffFreq returns the shared effective cutoff in Hz.
func (b *FilterBank) CutoffFreq() float64 { return b.x.cutoffFreq }
