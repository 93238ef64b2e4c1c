// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"encoding/json"
	"fmt"
)

// Controller is the runtime configuration surface of a gyro device.
type Controller interface {
	Scale() float64
	SetScale(scale float64)
	SetCutoff(cutoffFreq float64) error
	ConfigureFilter(sampleFreq, cutoffFreq float64) error
}

// Control actions carried on the control topic and the websocket stream.
const (
	ActionSetScale        = "set_scale"
	ActionSetCutoff       = "set_cutoff"
	ActionConfigureFilter = "configure_filter"
)

// ControlMessage is a configuration write for a device.
type ControlMessage struct {
	Action     string  `json:"action"`
	DeviceID   *uint32 `json:"device_id,omitempty"` // nil addresses every device
	Value      float64 `json:"value,omitempty"`
	SampleFreq float64 `json:"sample_freq,omitempty"`
	CutoffFreq float64 `json:"cutoff_freq,omitempty"`
}

// ApplyControl decodes payload and applies it to target if the message is
// addressed to deviceID. It reports whether the message was applied.
func ApplyControl(payload []byte, deviceID uint32, target Controller) (bool, error) {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return false, fmt.Errorf("control: decode: %w", err)
	}
	if msg.DeviceID != nil && *msg.DeviceID != deviceID {
		return false, nil
	}

	switch msg.Action {
	case ActionSetScale:
		target.SetScale(msg.Value)
	case ActionSetCutoff:
		if err := target.SetCutoff(msg.Value); err != nil {
			return false, fmt.Errorf("control: set cutoff: %w", err)
		}
	case ActionConfigureFilter:
		if err := target.ConfigureFilter(msg.SampleFreq, msg.CutoffFreq); err != nil {
			return false, fmt.Errorf("control: configure filter: %w", err)
		}
	default:
		return false, fmt.Errorf("control: unknown action %q", msg.Action)
	}
	return true, nil
}
