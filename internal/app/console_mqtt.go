package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/gyro_computer/internal/bus"
	"github.com/relabs-tech/gyro_computer/internal/config"
	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

// formatReport renders one report as a console line.
func formatReport(r gyro.Report) string {
	return fmt.Sprintf(
		"[GYRO %d] rate x=%8.4f y=%8.4f z=%8.4f rad/s  dθ x=%9.6f y=%9.6f z=%9.6f rad over %5dµs  scale=%.6g err=%d",
		r.DeviceID, r.X, r.Y, r.Z, r.XIntegral, r.YIntegral, r.ZIntegral, r.IntegralDt, r.Scaling, r.ErrorCount,
	)
}

func printReports(w io.Writer) func(gyro.Report) {
	return func(r gyro.Report) {
		fmt.Fprintln(w, formatReport(r))
	}
}

// RunConsoleMQTT prints every gyro report from the broker until Ctrl+C.
func RunConsoleMQTT(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	logger.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := bus.SubscribeReports(client, cfg.TopicGyro, logger, printReports(os.Stdout)); err != nil {
		client.Disconnect(250)
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
