// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"time"
)

// Report is one published gyro measurement.
type Report struct {
	Timestamp  uint64  `json:"timestamp"` // µs
	DeviceID   uint32  `json:"device_id"`
	ErrorCount uint64  `json:"error_count"`
	Scaling    float64 `json:"scaling"`

	// Raw values, before rotation and scaling
	XRaw float64 `json:"x_raw"`
	YRaw float64 `json:"y_raw"`
	ZRaw float64 `json:"z_raw"`

	// Rotated, scaled and low-pass filtered
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Delta-angle over the integration window
	XIntegral  float64 `json:"x_integral"`
	YIntegral  float64 `json:"y_integral"`
	ZIntegral  float64 `json:"z_integral"`
	IntegralDt uint64  `json:"integral_dt"` // µs
}

// Filtered returns the filtered rate vector.
func (r Report) Filtered() Vector3 { return Vector3{X: r.X, Y: r.Y, Z: r.Z} }

// Integral returns the integrated delta-angle vector.
func (r Report) Integral() Vector3 {
	return Vector3{X: r.XIntegral, Y: r.YIntegral, Z: r.ZIntegral}
}

// Window returns the integration window duration.
func (r Report) Window() time.Duration {
	return time.Duration(r.IntegralDt) * time.Microsecond
}

// PipelineConfig holds the rates a Pipeline is built with.
type PipelineConfig struct {
	SampleFreq          float64       // Hz
	CutoffFreq          float64       // Hz, 0 disables filtering
	IntegrationInterval time.Duration // flush window
}

// Stats are hazard and throughput counters. Hazards never stop processing.
type Stats struct {
	Samples          uint64
	Reports          uint64
	ClockRegressions uint64
	NonFiniteSamples uint64
	NonPositiveScale uint64
	Errors           uint64
}

// Pipeline turns raw gyro samples into reports. It is not safe for
// concurrent use; one pipeline belongs to one device.
type Pipeline struct {
	filters    FilterBank
	integrator *Integrator
	filtered   Vector3 // last filter output

	samples          uint64
	reports          uint64
	nonPositiveScale uint64
	errors           uint64
}

// NewPipeline builds a pipeline with configured filters and integrator.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	interval := cfg.IntegrationInterval
	if interval == 0 {
		interval = DefaultIntegrationInterval
	}
	p := &Pipeline{integrator: NewIntegrator(interval)}
	if err := p.filters.Configure(cfg.SampleFreq, cfg.CutoffFreq); err != nil {
		return nil, err
	}
	return p, nil
}

// Process runs one raw sample through rotate, scale, filter and integrate.
// Filter and integrator state change on every call; a report is returned
// only when the integrator closes a window.
func (p *Pipeline) Process(x, y, z float64, deviceID uint32, scale float64, rot Rotation, timestamp uint64) (Report, bool) {
	raw := RawSample{X: x, Y: y, Z: z, Timestamp: timestamp}
	p.samples++

	v := rot.Rotate(raw.Vector())
	if !(scale > 0) {
		p.nonPositiveScale++
	}
	v = v.Scale(scale)

	// A NaN would stick in the filter state forever. Non-finite samples
	// bypass the filters and are dropped and counted by the integrator.
	in := v
	if finite(v) {
		p.filtered = p.filters.Apply(v)
		in = p.filtered
	}
	filtered := p.filtered

	flushed, delta, window := p.integrator.Put(raw.Timestamp, in)
	if !flushed {
		return Report{}, false
	}
	p.reports++

	return Report{
		Timestamp:  raw.Timestamp,
		DeviceID:   deviceID,
		ErrorCount: p.errors,
		Scaling:    scale,
		XRaw:       raw.X,
		YRaw:       raw.Y,
		ZRaw:       raw.Z,
		X:          filtered.X,
		Y:          filtered.Y,
		Z:          filtered.Z,
		XIntegral:  delta.X,
		YIntegral:  delta.Y,
		ZIntegral:  delta.Z,
		IntegralDt: uint64(window / time.Microsecond),
	}, true
}

// ConfigureFilter sets sample rate and cutoff on all three axes.
func (p *Pipeline) ConfigureFilter(sampleFreq, cutoffFreq float64) error {
	return p.filters.Configure(sampleFreq, cutoffFreq)
}

// SetCutoff changes the filter cutoff at the current sample rate.
func (p *Pipeline) SetCutoff(cutoffFreq float64) error {
	return p.filters.SetCutoff(cutoffFreq)
}

// SetIntegrationInterval changes the flush window.
func (p *Pipeline) SetIntegrationInterval(d time.Duration) {
	p.integrator.SetInterval(d)
}

// SampleFreq returns the filter sample rate in Hz.
func (p *Pipeline) SampleFreq() float64 { return p.filters.SampleFreq() }

// CutoffFreq returns the effective filter cutoff in Hz.
func (p *Pipeline) CutoffFreq() float64 { return p.filters.CutoffFreq() }

// IntegrationInterval returns the flush window.
func (p *Pipeline) IntegrationInterval() time.Duration { return p.integrator.Interval() }

// RecordError counts a device-side failure; the count is carried in
// subsequent reports.
func (p *Pipeline) RecordError() { p.errors++ }

// Reset clears filter and integrator state. Counters are kept.
func (p *Pipeline) Reset() {
	p.filters.Reset()
	p.integrator.Reset()
	p.filtered = Vector3{}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Samples:          p.samples,
		Reports:          p.reports,
		ClockRegressions: p.integrator.ClockRegressions(),
		NonFiniteSamples: p.integrator.NonFiniteSamples(),
		NonPositiveScale: p.nonPositiveScale,
		Errors:           p.errors,
	}
}
