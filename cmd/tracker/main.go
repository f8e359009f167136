// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_lorawan/internal/app"
	"github.com/relabs-tech/gps_lorawan/internal/config"
	"github.com/relabs-tech/gps_lorawan/internal/logging"
)

func main() {
	configPath := flag.String("config", "tracker_config.txt", "path to the KEY=VALUE config file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	closer, err := logging.Configure(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}, nil)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	defer closer.Close()

	log.Info("starting GPS LoRaWAN tracker (NMEA → LoRaWAN)")

	if err := app.RunTracker(); err != nil {
		closer.Close()
		log.Fatalf("fatal: %v", err)
	}
}
