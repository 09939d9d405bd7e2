package main

import (
	"flag"
	"log"
	"path/filepath"
	"time"

	headwaymonitor "github.com/theoremus-urban-solutions/bus-headway-monitor"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/config"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/metrics"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/poller"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/publisher"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/realtime"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	headwaymonitor.InitLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}

	collector := metrics.NewCollector()
	server := headwaymonitor.NewServer(cfg, collector)

	// Serve immediately; attach the store and poller once the static feed
	// is ready so a slow download never blocks the health endpoint.
	server.Start()

	go func() {
		store, err := loadStore(cfg.GTFS)
		if err != nil {
			log.Printf("[main] static feed load failed, staying unloaded: %v", err)
			return
		}
		log.Printf("[main] static feed loaded: %d routes, %d stops, %d trips",
			len(store.Routes), len(store.Stops), len(store.Trips))

		var pub poller.SnapshotPublisher
		if cfg.NATS.URL != "" {
			np, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, collector)
			if err != nil {
				log.Printf("[main] nats disabled: %v", err)
			} else {
				pub = np
			}
		}

		client := realtime.NewClient(cfg.GTFSRT)
		p := poller.New(store, client, poller.Options{
			Interval:    time.Duration(cfg.Poller.IntervalMS) * time.Millisecond,
			MaxFailures: cfg.Poller.MaxConsecutiveFailures,
			CapSecs:     cfg.Poller.MaxHeadwayCapSecs,
		}, collector, pub)
		p.Start()

		server.Attach(store, p)
	}()

	server.HandleGracefulShutdown()
}

// loadStore prefers the serialized store cache over reparsing the zip. A
// stale or unreadable cache falls through to a full load, which then
// refreshes the cache.
func loadStore(cfg config.GTFSConfig) (*gtfs.Store, error) {
	cachePath := filepath.Join(cfg.DataDir, "store.gob")

	if store, err := gtfs.DeserializeStoreFromFile(cachePath); err == nil {
		log.Printf("[main] loaded store from cache %s", cachePath)
		return store, nil
	}

	store, err := gtfs.LoadFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := gtfs.SerializeStoreToFile(store, cachePath); err != nil {
		log.Printf("[main] store cache write failed: %v", err)
	}
	return store, nil
}
