// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"
)

type mockSource struct {
	start    time.Time
	now      func() time.Time
	rangeDPS float64
}

// NewMockSource creates a mock gyro that generates smoothly changing rates
// within a fraction of the ±rangeDPS full scale.
func NewMockSource(rangeDPS float64) RateReader {
	return newMockSource(time.Now, rangeDPS)
}

func newMockSource(now func() time.Time, rangeDPS float64) *mockSource {
	return &mockSource{start: now(), now: now, rangeDPS: rangeDPS}
}

func (m *mockSource) ReadRates() (RawRates, error) {
	elapsed := m.now().Sub(m.start).Seconds()
	lsbPerDPS := 32768.0 / m.rangeDPS

	// roll and pitch oscillate, yaw turns slowly at 30°/s
	return RawRates{
		X: counts(20 * math.Cos(elapsed) * lsbPerDPS),
		Y: counts(-15 * 0.7 * math.Sin(elapsed*0.7) * lsbPerDPS),
		Z: counts(30 * lsbPerDPS),
	}, nil
}

func counts(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}
