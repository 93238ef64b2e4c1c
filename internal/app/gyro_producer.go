// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/relabs-tech/gyro_computer/internal/bus"
	"github.com/relabs-tech/gyro_computer/internal/config"
	"github.com/relabs-tech/gyro_computer/internal/gyro"
	"github.com/relabs-tech/gyro_computer/internal/metrics"
	"github.com/relabs-tech/gyro_computer/internal/sensors"
)

// Producer reads the gyro at a fixed rate and feeds the device pipeline.
type Producer struct {
	device  *gyro.Device
	reader  sensors.RateReader
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

// NewProducer wires a reader to a device. m may be nil.
func NewProducer(device *gyro.Device, reader sensors.RateReader, m *metrics.Metrics, logger *zap.SugaredLogger) *Producer {
	return &Producer{device: device, reader: reader, metrics: m, logger: logger}
}

// Step reads one sample and pushes it through the device. It reports
// whether a report was published.
func (p *Producer) Step() (bool, error) {
	raw, err := p.reader.ReadRates()
	if err != nil {
		p.device.RecordError()
		if p.metrics != nil {
			p.metrics.ReadErrors.Inc()
		}
		return false, fmt.Errorf("read gyro: %w", err)
	}

	published, err := p.device.Publish(float64(raw.X), float64(raw.Y), float64(raw.Z))
	if err != nil && p.metrics != nil {
		p.metrics.PublishErrors.Inc()
	}
	return published, err
}

// Run steps every interval until ctx is done.
func (p *Producer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Step(); err != nil {
				p.logger.Warnf("gyro producer: %v", err)
			}
		}
	}
}

// RunGyroProducer runs the gyro pipeline against the configured sensor and
// publishes reports to MQTT until interrupted.
func RunGyroProducer(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	reader, err := sensors.NewRateReader(cfg, logger)
	if err != nil {
		return fmt.Errorf("gyro producer: %w", err)
	}

	publisher, err := bus.Advertise(cfg.MQTTBroker, cfg.MQTTClientIDProducer, cfg.TopicGyro, logger)
	if err != nil {
		return fmt.Errorf("gyro producer: %w", err)
	}
	logger.Infof("gyro producer: connected to MQTT at %s", cfg.MQTTBroker)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, nil)
	if err != nil {
		publisher.Close()
		return err
	}

	device, err := gyro.NewDevice(gyro.DeviceOptions{
		Rotation:    cfg.GyroRotation,
		Pipeline:    cfg.PipelineConfig(),
		Calibration: gyro.NewMemoryCalibration(cfg.EffectiveGyroScale()),
		ID:          gyro.StaticID(cfg.GyroDeviceID),
		Sink:        gyro.MultiSink{publisher, m},
	})
	if err != nil {
		publisher.Close()
		return fmt.Errorf("gyro producer: %w", err)
	}
	defer func() {
		if err := device.Close(); err != nil {
			logger.Warnf("gyro producer: close: %v", err)
		}
	}()
	reg.MustRegister(metrics.NewCollector(device))

	fs, fc := device.FilterConfig()
	logger.Infow("gyro producer: pipeline ready",
		"device_id", cfg.GyroDeviceID,
		"rotation", cfg.GyroRotation.String(),
		"scale", device.Scale(),
		"sample_freq", fs,
		"cutoff_freq", fc,
		"integration_interval", cfg.GyroIntegrationInterval,
	)

	if cfg.TopicGyroControl != "" {
		if err := bus.SubscribeControl(publisher.Client(), cfg.TopicGyroControl, cfg.GyroDeviceID, device, logger); err != nil {
			return fmt.Errorf("gyro producer: %w", err)
		}
	}

	if cfg.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
		go func() {
			logger.Infof("gyro producer: metrics on %s/metrics", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("gyro producer: metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("gyro producer: publishing on %s every %v", cfg.TopicGyro, cfg.SampleInterval())
	err = NewProducer(device, reader, m, logger).Run(ctx, cfg.SampleInterval())

	s := device.Stats()
	logger.Infow("gyro producer: shutting down",
		"samples", s.Samples,
		"reports", s.Reports,
		"errors", s.Errors,
		"clock_regressions", s.ClockRegressions,
	)
	return err
}
