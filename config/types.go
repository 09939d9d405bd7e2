package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// GTFSConfig contains GTFS static feed configuration
type GTFSConfig struct {
	StaticURL string `yaml:"staticURL" validate:"omitempty,url"`
	// DataDir holds the locally cached copy of the static zip.
	DataDir string `yaml:"dataDir"`
	// Timezone overrides the feed timezone when agency.txt is absent.
	Timezone string `yaml:"timezone"`
}

// GTFSRTConfig contains GTFS-Realtime feed configuration
type GTFSRTConfig struct {
	TripUpdatesURL      string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gte=0"`
}

// PollerConfig controls the fetch/fuse/compute cycle.
type PollerConfig struct {
	IntervalMS             int `yaml:"intervalMS" validate:"gte=0"`
	MaxConsecutiveFailures int `yaml:"maxConsecutiveFailures" validate:"gte=0"`
	MaxHeadwayCapSecs      int `yaml:"maxHeadwayCapSecs" validate:"gte=0"`
}

// ThresholdConfig holds default classification thresholds. Consumers may
// override them per request within clamped bounds.
type ThresholdConfig struct {
	Mode         string  `yaml:"mode" validate:"omitempty,oneof=pct abs"`
	BunchingPct  float64 `yaml:"bunchingPct"`
	GappingPct   float64 `yaml:"gappingPct"`
	BunchingMins float64 `yaml:"bunchingMins"`
	GappingMins  float64 `yaml:"gappingMins"`
}

// NATSConfig configures the optional snapshot publisher. Empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig    `yaml:"server" validate:"required"`
	GTFS       GTFSConfig      `yaml:"gtfs"`
	GTFSRT     GTFSRTConfig    `yaml:"gtfsrt"`
	Poller     PollerConfig    `yaml:"poller"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	NATS       NATSConfig      `yaml:"nats"`
}
