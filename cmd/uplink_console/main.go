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

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if _, err := logging.Configure(logging.Options{Level: cfg.LogLevel}, nil); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	log.Info("starting uplink console (MQTT subscriber)")

	if err := app.RunUplinkConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
