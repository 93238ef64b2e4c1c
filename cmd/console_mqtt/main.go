// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/gyro_computer/internal/app"
	"github.com/relabs-tech/gyro_computer/internal/config"
	"github.com/relabs-tech/gyro_computer/internal/logging"
)

func main() {
	configPath := flag.String("config", "./gyro_config.txt", "path to configuration file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger("console", config.Get().LogDebug)
	defer logger.Sync()

	logger.Info("starting gyro-computer console (MQTT subscriber)")

	if err := app.RunConsoleMQTT(logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
