// Package headwaymonitor wires the headway pipeline behind a thin HTTP API.
package headwaymonitor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/config"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/metrics"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/poller"
)

// Server serves read-only access to the latest snapshot and metric rollups.
// It owns no global state: the store and poller are attached once loading
// finishes, and until then consumers get an explicit "not loaded" signal.
type Server struct {
	cfg       *config.AppConfig
	collector *metrics.Collector

	mu     sync.RWMutex
	store  *gtfs.Store
	poller *poller.Poller

	// memoized GeoJSON, built on first request after the store attaches
	geoOnce   sync.Once
	routesGeo []byte
	stopsGeo  []byte

	httpServer *http.Server
}

func NewServer(cfg *config.AppConfig, collector *metrics.Collector) *Server {
	return &Server{cfg: cfg, collector: collector}
}

// Attach hands the loaded store and running poller to the server. Called
// once after the static feed loads; requests before that see 503s.
func (s *Server) Attach(store *gtfs.Store, p *poller.Poller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	s.poller = p
}

func (s *Server) deps() (*gtfs.Store, *poller.Poller) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store, s.poller
}

// Start begins listening. It returns immediately; errors other than a clean
// shutdown are fatal.
func (s *Server) Start() {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/vehicles", s.handleVehicles).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/api/routes", s.handleRoutes).Methods(http.MethodGet)
	r.HandleFunc("/api/stops", s.handleStops).Methods(http.MethodGet)
	r.HandleFunc("/api/stop-headways", s.handleStopHeadways).Methods(http.MethodGet)
	if s.collector != nil {
		r.Handle("/metrics", s.collector.Handler()).Methods(http.MethodGet)
	}

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] %v", err)
		}
	}()
	log.Printf("[server] listening on %s", addr)
}

// HandleGracefulShutdown blocks until SIGINT/SIGTERM, then shuts down the
// HTTP server and stops the poller.
func (s *Server) HandleGracefulShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Printf("[server] shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[server] shutdown error: %v", err)
		}
	}
	if _, p := s.deps(); p != nil {
		p.Stop()
	}
}
