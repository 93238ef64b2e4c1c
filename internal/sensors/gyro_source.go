// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gyro_computer/internal/config"
)

// RawRates is one raw gyroscope reading in sensor LSB counts.
type RawRates struct {
	X int16 `json:"gx"`
	Y int16 `json:"gy"`
	Z int16 `json:"gz"`
}

// RateReader reads raw angular rates from a gyroscope.
type RateReader interface {
	ReadRates() (RawRates, error)
}

type mpu9250Source struct {
	imu *mpu9250.MPU9250
}

// NewRateReader returns the mock source when GYRO_USE_MOCK is set and the
// SPI MPU9250 otherwise.
func NewRateReader(cfg *config.Config, logger *zap.SugaredLogger) (RateReader, error) {
	if cfg.GyroUseMock {
		logger.Infof("gyro: using mock source (±%.0f°/s range)", cfg.GyroRangeDPS())
		return NewMockSource(cfg.GyroRangeDPS()), nil
	}
	return NewMPU9250Source(cfg.GyroSPIDevice, cfg.GyroCSPin, cfg.GyroRange, logger)
}

// NewMPU9250Source initializes an MPU9250 over SPI for gyro reads.
func NewMPU9250Source(spiDev, csPin string, gyroRange byte, logger *zap.SugaredLogger) (RateReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gyro: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("gyro: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("gyro: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("gyro: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("gyro: initialization: %w", err)
	}

	if err := imu.SetGyroRange(gyroRange); err != nil {
		return nil, fmt.Errorf("gyro: set gyro range: %w", err)
	}
	logger.Infof("gyro: range set to %d (±%d°/s)", gyroRange, []int{250, 500, 1000, 2000}[gyroRange])

	if _, err := imu.SelfTest(); err != nil {
		logger.Warnf("gyro: self-test failed: %v", err)
	} else {
		logger.Info("gyro: self-test passed")
	}

	// Bias calibration expects the board to be at rest.
	if err := imu.Calibrate(); err != nil {
		logger.Warnf("gyro: calibration failed: %v", err)
	} else {
		logger.Info("gyro: calibration complete")
	}

	return &mpu9250Source{imu: imu}, nil
}

// ReadRates reads the three gyroscope axes.
func (s *mpu9250Source) ReadRates() (RawRates, error) {
	gx, err := s.imu.GetRotationX()
	if err != nil {
		return RawRates{}, fmt.Errorf("gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return RawRates{}, fmt.Errorf("gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return RawRates{}, fmt.Errorf("gyro Z: %w", err)
	}
	return RawRates{X: gx, Y: gy, Z: gz}, nil
}
