// Package poller drives the periodic fetch/fuse/compute/publish cycle.
package poller

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/headway"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/metrics"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/realtime"
)

// Fetcher fetches both live feeds. Satisfied by *realtime.Client; tests
// substitute stubs.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]realtime.VehiclePosition, []realtime.TripUpdate, error)
}

// SnapshotPublisher receives each successful cycle's snapshot.
type SnapshotPublisher interface {
	Publish(v any)
}

// Snapshot is the atomically published output of one successful cycle.
// Readers always observe a complete snapshot, never a partial one.
type Snapshot struct {
	Vehicles     []model.Vehicle               `json:"vehicles"`
	Headways     []model.HeadwayResult         `json:"headways"`
	StopHeadways []model.StopHeadway           `json:"stopHeadways"`
	OnwardCalls  map[string][]model.OnwardCall `json:"-"`
	FetchedAt    time.Time                     `json:"fetchedAt"`
}

// Options configures a Poller beyond its collaborators.
type Options struct {
	Interval    time.Duration
	MaxFailures int
	CapSecs     int
}

// Poller owns the poll loop state: the last published snapshot and the
// consecutive-failure counter. One Poller runs at most one cycle at a time;
// a tick that arrives mid-cycle is skipped, not queued.
type Poller struct {
	store     *gtfs.Store
	fetcher   Fetcher
	engine    *headway.Engine
	opts      Options
	collector *metrics.Collector
	publisher SnapshotPublisher

	mu       sync.RWMutex
	snapshot *Snapshot
	failures int

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Poller. collector and publisher may be nil.
func New(store *gtfs.Store, fetcher Fetcher, opts Options, collector *metrics.Collector, publisher SnapshotPublisher) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	return &Poller{
		store:     store,
		fetcher:   fetcher,
		engine:    headway.NewEngine(store, opts.CapSecs),
		opts:      opts,
		collector: collector,
		publisher: publisher,
		stopCh:    make(chan struct{}),
	}
}

// Start runs an immediate cycle, then one per interval until Stop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) loop() {
	defer p.wg.Done()

	p.RunCycle(context.Background())

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.RunCycle(context.Background())
		case <-p.stopCh:
			return
		}
	}
}

// RunCycle executes one fetch/fuse/compute/publish cycle. If a cycle is
// already in flight the call is a no-op. On failure the previous snapshot is
// retained and the consecutive-failure counter advances; crossing the
// configured threshold logs a warning once per streak.
func (p *Poller) RunCycle(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		if p.collector != nil {
			p.collector.CyclesSkipped.Inc()
		}
		log.Printf("[poller] previous cycle still running, skipping")
		return
	}
	defer p.running.Store(false)

	start := time.Now()
	if p.collector != nil {
		p.collector.Cycles.Inc()
	}

	vps, tus, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		p.recordFailure(err)
		return
	}

	now := time.Now()
	fused := realtime.Fuse(vps, tus, p.store)
	headways := p.engine.Compute(fused.Vehicles, fused.OnwardCalls, now)
	stopHeadways := p.engine.ComputeStopHeadways(fused.Vehicles, fused.OnwardCalls, p.opts.CapSecs)

	snap := &Snapshot{
		Vehicles:     fused.Vehicles,
		Headways:     headways,
		StopHeadways: stopHeadways,
		OnwardCalls:  fused.OnwardCalls,
		FetchedAt:    now,
	}

	p.mu.Lock()
	p.snapshot = snap
	p.failures = 0
	p.mu.Unlock()

	if p.collector != nil {
		p.collector.ConsecutiveFailures.Set(0)
		p.collector.Vehicles.Set(float64(len(snap.Vehicles)))
		p.collector.HeadwayResults.Set(float64(len(snap.Headways)))
		p.collector.ObserveCycle(time.Since(start))
	}
	if p.publisher != nil {
		p.publisher.Publish(snap)
	}

	log.Printf("[poller] %s: %d vehicles, %d headway results",
		now.Format(time.RFC3339), len(snap.Vehicles), len(snap.Headways))
}

func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	p.mu.Unlock()

	if p.collector != nil {
		p.collector.CycleFailures.Inc()
		p.collector.ConsecutiveFailures.Set(float64(failures))
	}
	log.Printf("[poller] cycle failed (attempt %d): %v", failures, err)
	if failures == p.opts.MaxFailures {
		log.Printf("[poller] %d consecutive failures, serving stale data", failures)
	}
}

// Snapshot returns the last published snapshot, or nil before the first
// successful cycle.
func (p *Poller) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// ConsecutiveFailures returns the current failure streak.
func (p *Poller) ConsecutiveFailures() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.failures
}
