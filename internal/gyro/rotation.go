// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRotation is returned when a rotation name is not supported.
var ErrUnknownRotation = errors.New("unknown rotation")

// Rotation selects the fixed mounting correction that maps the sensor frame
// to the body frame. Every supported rotation is a composition of quarter
// turns applied roll first, then pitch, then yaw.
type Rotation int

const (
	RotationNone Rotation = iota
	RotationYaw90
	RotationYaw180
	RotationYaw270
	RotationRoll180
	RotationRoll180Yaw90
	RotationPitch180
	RotationRoll180Yaw270
	RotationRoll90
	RotationRoll90Yaw90
	RotationRoll270
	RotationRoll270Yaw90
	RotationPitch90
	RotationPitch270
	RotationPitch180Yaw90
	RotationPitch180Yaw270
	RotationRoll90Pitch90
	RotationRoll180Pitch90
	RotationRoll270Pitch90
	RotationRoll90Pitch180
	RotationRoll270Pitch180
	RotationRoll90Pitch270
	RotationRoll180Pitch270
	RotationRoll270Pitch270
	RotationRoll90Pitch180Yaw90
	RotationRoll90Yaw270

	rotationCount
)

// quarterTurns is the number of +90° turns about each body axis.
type quarterTurns struct {
	roll, pitch, yaw int
}

func (r Rotation) turns() (quarterTurns, bool) {
	switch r {
	case RotationNone:
		return quarterTurns{0, 0, 0}, true
	case RotationYaw90:
		return quarterTurns{0, 0, 1}, true
	case RotationYaw180:
		return quarterTurns{0, 0, 2}, true
	case RotationYaw270:
		return quarterTurns{0, 0, 3}, true
	case RotationRoll180:
		return quarterTurns{2, 0, 0}, true
	case RotationRoll180Yaw90:
		return quarterTurns{2, 0, 1}, true
	case RotationPitch180:
		return quarterTurns{0, 2, 0}, true
	case RotationRoll180Yaw270:
		return quarterTurns{2, 0, 3}, true
	case RotationRoll90:
		return quarterTurns{1, 0, 0}, true
	case RotationRoll90Yaw90:
		return quarterTurns{1, 0, 1}, true
	case RotationRoll270:
		return quarterTurns{3, 0, 0}, true
	case RotationRoll270Yaw90:
		return quarterTurns{3, 0, 1}, true
	case RotationPitch90:
		return quarterTurns{0, 1, 0}, true
	case RotationPitch270:
		return quarterTurns{0, 3, 0}, true
	case RotationPitch180Yaw90:
		return quarterTurns{0, 2, 1}, true
	case RotationPitch180Yaw270:
		return quarterTurns{0, 2, 3}, true
	case RotationRoll90Pitch90:
		return quarterTurns{1, 1, 0}, true
	case RotationRoll180Pitch90:
		return quarterTurns{2, 1, 0}, true
	case RotationRoll270Pitch90:
		return quarterTurns{3, 1, 0}, true
	case RotationRoll90Pitch180:
		return quarterTurns{1, 2, 0}, true
	case RotationRoll270Pitch180:
		return quarterTurns{3, 2, 0}, true
	case RotationRoll90Pitch270:
		return quarterTurns{1, 3, 0}, true
	case RotationRoll180Pitch270:
		return quarterTurns{2, 3, 0}, true
	case RotationRoll270Pitch270:
		return quarterTurns{3, 3, 0}, true
	case RotationRoll90Pitch180Yaw90:
		return quarterTurns{1, 2, 1}, true
	case RotationRoll90Yaw270:
		return quarterTurns{1, 0, 3}, true
	default:
		return quarterTurns{}, false
	}
}

// Valid reports whether r is one of the supported mounting rotations.
func (r Rotation) Valid() bool {
	_, ok := r.turns()
	return ok
}

// Rotate applies the mounting correction to v.
// An unsupported selector leaves v unchanged; configuration is expected to
// reject those with Valid or ParseRotation before any sample is processed.
func (r Rotation) Rotate(v Vector3) Vector3 {
	t, ok := r.turns()
	if !ok {
		return v
	}
	v = rollQuarter(v, t.roll)
	v = pitchQuarter(v, t.pitch)
	return yawQuarter(v, t.yaw)
}

// Inverse undoes Rotate exactly.
func (r Rotation) Inverse(v Vector3) Vector3 {
	t, ok := r.turns()
	if !ok {
		return v
	}
	v = yawQuarter(v, (4-t.yaw)%4)
	v = pitchQuarter(v, (4-t.pitch)%4)
	return rollQuarter(v, (4-t.roll)%4)
}

func rollQuarter(v Vector3, n int) Vector3 {
	for i := 0; i < n; i++ {
		v = Vector3{X: v.X, Y: -v.Z, Z: v.Y}
	}
	return v
}

func pitchQuarter(v Vector3, n int) Vector3 {
	for i := 0; i < n; i++ {
		v = Vector3{X: v.Z, Y: v.Y, Z: -v.X}
	}
	return v
}

func yawQuarter(v Vector3, n int) Vector3 {
	for i := 0; i < n; i++ {
		v = Vector3{X: -v.Y, Y: v.X, Z: v.Z}
	}
	return v
}

var rotationNames = map[Rotation]string{
	RotationNone:                "none",
	RotationYaw90:               "yaw_90",
	RotationYaw180:              "yaw_180",
	RotationYaw270:              "yaw_270",
	RotationRoll180:             "roll_180",
	RotationRoll180Yaw90:        "roll_180_yaw_90",
	RotationPitch180:            "pitch_180",
	RotationRoll180Yaw270:       "roll_180_yaw_270",
	RotationRoll90:              "roll_90",
	RotationRoll90Yaw90:         "roll_90_yaw_90",
	RotationRoll270:             "roll_270",
	RotationRoll270Yaw90:        "roll_270_yaw_90",
	RotationPitch90:             "pitch_90",
	RotationPitch270:            "pitch_270",
	RotationPitch180Yaw90:       "pitch_180_yaw_90",
	RotationPitch180Yaw270:      "pitch_180_yaw_270",
	RotationRoll90Pitch90:       "roll_90_pitch_90",
	RotationRoll180Pitch90:      "roll_180_pitch_90",
	RotationRoll270Pitch90:      "roll_270_pitch_90",
	RotationRoll90Pitch180:      "roll_90_pitch_180",
	RotationRoll270Pitch180:     "roll_270_pitch_180",
	RotationRoll90Pitch270:      "roll_90_pitch_270",
	RotationRoll180Pitch270:     "roll_180_pitch_270",
	RotationRoll270Pitch270:     "roll_270_pitch_270",
	RotationRoll90Pitch180Yaw90: "roll_90_pitch_180_yaw_90",
	RotationRoll90Yaw270:        "roll_90_yaw_270",
}

func (r Rotation) String() string {
	if name, ok := rotationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rotation(%d)", int(r))
}

// Rotations lists every supported selector in declaration order.
func Rotations() []Rotation {
	out := make([]Rotation, 0, rotationCount)
	for r := RotationNone; r < rotationCount; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRotation accepts a rotation name such as "roll_180_yaw_90".
// Numeric selectors are rejected: flight stacks number their rotations
// differently, and a copied number would pick the wrong mounting.
func ParseRotation(s string) (Rotation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range rotationNames {
		if name == s {
			return r, nil
		}
	}
	return RotationNone, fmt.Errorf("%w: %q", ErrUnknownRotation, s)
}
