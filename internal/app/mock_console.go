// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/gyro_computer/internal/config"
	"github.com/relabs-tech/gyro_computer/internal/gyro"
	"github.com/relabs-tech/gyro_computer/internal/sensors"
)

// RunMockConsole runs the full pipeline on the mock gyro and prints reports
// locally, without a broker.
func RunMockConsole(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	device, err := gyro.NewDevice(gyro.DeviceOptions{
		Rotation:    cfg.GyroRotation,
		Pipeline:    cfg.PipelineConfig(),
		Calibration: gyro.NewMemoryCalibration(cfg.EffectiveGyroScale()),
		ID:          gyro.StaticID(cfg.GyroDeviceID),
		Sink: gyro.SinkFunc(func(r gyro.Report) error {
			fmt.Println(formatReport(r))
			return nil
		}),
	})
	if err != nil {
		return err
	}
	defer device.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := NewProducer(device, sensors.NewMockSource(cfg.GyroRangeDPS()), nil, logger)
	return p.Run(ctx, cfg.SampleInterval())
}
