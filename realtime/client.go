package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/config"
)

// Client fetches the two GTFS-RT protobuf feeds. The two fetches within a
// cycle are independent network calls and run concurrently; either failing
// fails the whole fetch, since a cycle is all-or-nothing.
type Client struct {
	httpClient          *http.Client
	tripUpdatesURL      string
	vehiclePositionsURL string
}

// NewClient creates a feed client with the configured per-feed timeout.
func NewClient(cfg config.GTFSRTConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:          &http.Client{Timeout: timeout},
		tripUpdatesURL:      cfg.TripUpdatesURL,
		vehiclePositionsURL: cfg.VehiclePositionsURL,
	}
}

// FetchAll fetches vehicle positions and trip updates concurrently and
// returns the decoded records.
func (c *Client) FetchAll(ctx context.Context) ([]VehiclePosition, []TripUpdate, error) {
	var (
		vps []VehiclePosition
		tus []TripUpdate
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fm, err := c.fetchFeed(ctx, c.vehiclePositionsURL)
		if err != nil {
			return fmt.Errorf("vehicle positions: %w", err)
		}
		vps = decodeVehiclePositions(fm)
		return nil
	})
	g.Go(func() error {
		fm, err := c.fetchFeed(ctx, c.tripUpdatesURL)
		if err != nil {
			return fmt.Errorf("trip updates: %w", err)
		}
		tus = decodeTripUpdates(fm)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vps, tus, nil
}

// fetchFeed fetches one feed and unmarshals the protobuf FeedMessage.
// An empty URL yields an empty feed (allows optional feeds).
func (c *Client) fetchFeed(ctx context.Context, url string) (*gtfsrtpb.FeedMessage, error) {
	if url == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("unmarshal feed from %s: %w", url, err)
	}
	return &fm, nil
}
