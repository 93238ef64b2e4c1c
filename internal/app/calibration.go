// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

var (
	errCalibrationActive   = errors.New("calibration already running")
	errCalibrationInactive = errors.New("no calibration running")
	errCalibrationAborted  = errors.New("calibration aborted")
)

// minCalibrationDeg is the smallest integrated turn accepted for a scale
// estimate.
const minCalibrationDeg = 10.0

var axisIndex = map[string]int{"x": 0, "y": 1, "z": 2}

// CalibrationResult is the outcome of one scale calibration turn.
type CalibrationResult struct {
	Axis        string        `json:"axis"`
	KnownDeg    float64       `json:"known_deg"`
	MeasuredDeg float64       `json:"measured_deg"`
	OldScale    float64       `json:"old_scale"`
	NewScale    float64       `json:"new_scale"`
	Reports     int           `json:"reports"`
	Duration    time.Duration `json:"duration"`

	// Filtered rate on the other two axes, rad/s. A large mean means the
	// turn was not about a single axis.
	CrossAxisMean   float64 `json:"cross_axis_mean"`
	CrossAxisStdDev float64 `json:"cross_axis_stddev"`
}

// ScaleCalibration estimates the calibration scale from a turn through a
// known angle about one axis. Reports are fed from the bus while the board
// is rotated; Finish compares the integrated angle with the known one.
type ScaleCalibration struct {
	mu      sync.Mutex
	active  bool
	axis    string
	angle   float64 // rad
	window  uint64  // µs
	scale   float64
	samples [][3]float64

	// why the last session ended early, reported by the next Finish
	aborted error
}

// Start begins a session for axis "x", "y" or "z".
func (c *ScaleCalibration) Start(axis string) error {
	if _, ok := axisIndex[axis]; !ok {
		return fmt.Errorf("unknown axis %q", axis)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return errCalibrationActive
	}
	c.active, c.axis = true, axis
	c.angle, c.window, c.scale = 0, 0, 0
	c.samples = nil
	c.aborted = nil
	return nil
}

// Active reports whether a session is running.
func (c *ScaleCalibration) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Observe adds a report to the running session. It is a no-op otherwise.
func (c *ScaleCalibration) Observe(r gyro.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	if len(c.samples) == 0 {
		c.scale = r.Scaling
	} else if r.Scaling != c.scale {
		// the integral so far would mix two scales
		c.active = false
		c.aborted = fmt.Errorf("%w: scale changed from %g to %g during the turn", errCalibrationAborted, c.scale, r.Scaling)
		return
	}
	c.angle += r.Integral().Component(axisIndex[c.axis])
	c.window += r.IntegralDt
	c.samples = append(c.samples, [3]float64{r.X, r.Y, r.Z})
}

// Cancel aborts the running session.
func (c *ScaleCalibration) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.aborted = nil
}

// Finish ends the session and computes the corrected scale for a turn of
// knownDeg degrees.
func (c *ScaleCalibration) Finish(knownDeg float64) (CalibrationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		if err := c.aborted; err != nil {
			c.aborted = nil
			return CalibrationResult{}, err
		}
		return CalibrationResult{}, errCalibrationInactive
	}
	c.active = false

	measuredDeg := c.angle * radToDeg
	if math.Abs(measuredDeg) < minCalibrationDeg {
		return CalibrationResult{}, fmt.Errorf("integrated turn of %.1f° is too small", measuredDeg)
	}
	if math.Abs(knownDeg) < minCalibrationDeg {
		return CalibrationResult{}, fmt.Errorf("known turn must be at least %.0f°", minCalibrationDeg)
	}

	res := CalibrationResult{
		Axis:        c.axis,
		KnownDeg:    knownDeg,
		MeasuredDeg: measuredDeg,
		OldScale:    c.scale,
		NewScale:    c.scale * math.Abs(knownDeg/measuredDeg),
		Reports:     len(c.samples),
		Duration:    time.Duration(c.window) * time.Microsecond,
	}

	idx := axisIndex[c.axis]
	for axis := 0; axis < 3; axis++ {
		if axis == idx {
			continue
		}
		res.CrossAxisMean += mean(c.samples, axis) / 2
		res.CrossAxisStdDev += stddev(c.samples, axis) / 2
	}
	return res, nil
}

func mean(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v[axis]
	}
	return sum / float64(len(data))
}

func stddev(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	m := mean(data, axis)
	variance := 0.0
	for _, v := range data {
		diff := v[axis] - m
		variance += diff * diff
	}
	variance /= float64(len(data))
	return math.Sqrt(variance)
}
