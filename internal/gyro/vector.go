// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

// Vector3 is a three-axis value in sensor or body frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale multiplies every axis by the same factor k.
// Zero or negative factors are not rejected here.
func (v Vector3) Scale(k float64) Vector3 {
	return Vector3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Add returns the component-wise sum.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Component returns axis i: 0 for X, 1 for Y, anything else for Z.
func (v Vector3) Component(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// RawSample is a single unscaled, unrotated angular-rate reading.
type RawSample struct {
	X, Y, Z   float64
	Timestamp uint64 // monotonic, microseconds
}

// Vector returns the sample axes as a Vector3.
func (s RawSample) Vector() Vector3 {
	return Vector3{X: s.X, Y: s.Y, Z: s.Z}
}
