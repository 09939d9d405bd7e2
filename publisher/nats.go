// Package publisher optionally publishes each cycle's snapshot to NATS.
package publisher

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
)

// Metrics is the narrow instrumentation surface the publisher needs.
type Metrics interface {
	PublishedInc()
	PublishErrInc()
}

// NATSPublisher publishes JSON-encoded snapshots to a fixed subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	metrics Metrics
}

// NewNATSPublisher connects to the NATS server. Publish failures never fail
// a poll cycle; they are logged and counted.
func NewNATSPublisher(url, subject string, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bus-headway-monitor"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Printf("[nats] disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("[nats] reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subject: subject, metrics: m}, nil
}

// Publish encodes v as JSON and publishes it.
func (p *NATSPublisher) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[nats] encode snapshot: %v", err)
		if p.metrics != nil {
			p.metrics.PublishErrInc()
		}
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		log.Printf("[nats] publish: %v", err)
		if p.metrics != nil {
			p.metrics.PublishErrInc()
		}
		return
	}
	if p.metrics != nil {
		p.metrics.PublishedInc()
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
