package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the application configuration. The yaml file is
// searched at the given path, then config.yml in the working directory.
// Environment variables (optionally from a .env file) override selected
// fields afterwards.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	paths := []string{path, "config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if p := os.Getenv("PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			cfg.Server.Port = n
		}
	}
	if u := os.Getenv("GTFS_STATIC_URL"); u != "" {
		cfg.GTFS.StaticURL = u
	}
	if u := os.Getenv("GTFSRT_TRIP_UPDATES_URL"); u != "" {
		cfg.GTFSRT.TripUpdatesURL = u
	}
	if u := os.Getenv("GTFSRT_VEHICLE_POSITIONS_URL"); u != "" {
		cfg.GTFSRT.VehiclePositionsURL = u
	}
	if u := os.Getenv("NATS_URL"); u != "" {
		cfg.NATS.URL = u
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.GTFS.DataDir == "" {
		cfg.GTFS.DataDir = "data/gtfs"
	}
	if cfg.GTFSRT.TimeoutMS == 0 {
		cfg.GTFSRT.TimeoutMS = 15000
	}
	if cfg.Poller.IntervalMS == 0 {
		cfg.Poller.IntervalMS = 60000
	}
	if cfg.Poller.MaxConsecutiveFailures == 0 {
		cfg.Poller.MaxConsecutiveFailures = 3
	}
	if cfg.Poller.MaxHeadwayCapSecs == 0 {
		cfg.Poller.MaxHeadwayCapSecs = 1800
	}
	if cfg.Thresholds.Mode == "" {
		cfg.Thresholds.Mode = "pct"
	}
	if cfg.Thresholds.BunchingPct == 0 {
		cfg.Thresholds.BunchingPct = 20
	}
	if cfg.Thresholds.GappingPct == 0 {
		cfg.Thresholds.GappingPct = 150
	}
	if cfg.Thresholds.BunchingMins == 0 {
		cfg.Thresholds.BunchingMins = 3
	}
	if cfg.Thresholds.GappingMins == 0 {
		cfg.Thresholds.GappingMins = 12
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "headway.snapshot"
	}
}
