// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Clock supplies monotonic timestamps in microseconds.
type Clock interface {
	NowMicros() uint64
}

// MonotonicClock counts microseconds since it was created.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock starts a clock at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// NowMicros returns the elapsed time since construction. time.Since uses the
// monotonic reading, so wall clock steps do not affect it.
func (c *MonotonicClock) NowMicros() uint64 {
	return uint64(time.Since(c.start) / time.Microsecond)
}

// CalibrationStore holds the scale applied to every sample.
// No validation is performed on SetScale.
type CalibrationStore interface {
	Scale() float64
	SetScale(scale float64)
}

// MemoryCalibration keeps the scale in memory.
type MemoryCalibration struct {
	scale float64
}

// NewMemoryCalibration returns a store holding scale.
func NewMemoryCalibration(scale float64) *MemoryCalibration {
	return &MemoryCalibration{scale: scale}
}

func (c *MemoryCalibration) Scale() float64         { return c.scale }
func (c *MemoryCalibration) SetScale(scale float64) { c.scale = scale }

// Identifier reports the opaque id of the physical sensor.
type Identifier interface {
	DeviceID() uint32
}

// StaticID is an Identifier with a fixed value.
type StaticID uint32

func (id StaticID) DeviceID() uint32 { return uint32(id) }

// Sink delivers reports to a bus or observer.
type Sink interface {
	Publish(r Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Report) error

func (f SinkFunc) Publish(r Report) error { return f(r) }

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(r Report) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Publish(r))
	}
	return err
}

// Close closes every sink that implements io.Closer.
func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// DeviceOptions wires a Device to its collaborators. Only Sink is required.
type DeviceOptions struct {
	Rotation    Rotation
	Pipeline    PipelineConfig
	Clock       Clock
	Calibration CalibrationStore
	ID          Identifier
	Sink        Sink
}

// Device is one gyro instance: a pipeline plus the clock, calibration,
// identity and sink it publishes through. Its methods may be called from
// different goroutines; calls are serialised.
type Device struct {
	mu sync.Mutex

	pipeline *Pipeline
	rotation Rotation
	clock    Clock
	calib    CalibrationStore
	id       Identifier
	sink     Sink
}

// NewDevice validates opts and builds the device pipeline.
// The device takes ownership of the sink and closes it in Close.
func NewDevice(opts DeviceOptions) (*Device, error) {
	if !opts.Rotation.Valid() {
		return nil, fmt.Errorf("gyro device: %w: %v", ErrUnknownRotation, opts.Rotation)
	}
	if opts.Sink == nil {
		return nil, errors.New("gyro device: sink is required")
	}
	p, err := NewPipeline(opts.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("gyro device: %w", err)
	}

	d := &Device{
		pipeline: p,
		rotation: opts.Rotation,
		clock:    opts.Clock,
		calib:    opts.Calibration,
		id:       opts.ID,
		sink:     opts.Sink,
	}
	if d.clock == nil {
		d.clock = NewMonotonicClock()
	}
	if d.calib == nil {
		d.calib = NewMemoryCalibration(1)
	}
	if d.id == nil {
		d.id = StaticID(0)
	}
	return d, nil
}

// Publish processes one raw sample and, when the integration window closes,
// hands the report to the sink. It reports whether a report was emitted.
func (d *Device) Publish(x, y, z float64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.pipeline.Process(x, y, z, d.id.DeviceID(), d.calib.Scale(), d.rotation, d.clock.NowMicros())
	if !ok {
		return false, nil
	}
	if err := d.sink.Publish(r); err != nil {
		d.pipeline.RecordError()
		return true, fmt.Errorf("publish gyro report: %w", err)
	}
	return true, nil
}

// RecordError counts a failed sensor read against this device.
func (d *Device) RecordError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipeline.RecordError()
}

// Scale returns the current calibration scale.
func (d *Device) Scale() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calib.Scale()
}

// SetScale overwrites the calibration scale.
func (d *Device) SetScale(scale float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calib.SetScale(scale)
}

// DeviceID returns the sensor id.
func (d *Device) DeviceID() uint32 {
	return d.id.DeviceID()
}

// Rotation returns the mounting rotation.
func (d *Device) Rotation() Rotation {
	return d.rotation
}

// ConfigureFilter sets the low-pass sample rate and cutoff.
func (d *Device) ConfigureFilter(sampleFreq, cutoffFreq float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.ConfigureFilter(sampleFreq, cutoffFreq)
}

// SetCutoff changes the low-pass cutoff at the current sample rate.
func (d *Device) SetCutoff(cutoffFreq float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.SetCutoff(cutoffFreq)
}

// FilterConfig returns the sample rate and effective cutoff in Hz.
func (d *Device) FilterConfig() (sampleFreq, cutoffFreq float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.SampleFreq(), d.pipeline.CutoffFreq()
}

// Stats returns the pipeline counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.Stats()
}

// Close releases the sink.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
