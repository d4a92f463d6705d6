// Package datadog ships harness metrics to a DogStatsD agent. Metric labels
// are sent as "key:value" tags.
package datadog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"

	"dbbench/internal/metrics"
)

// Config points the backend at an agent.
type Config struct {
	// Addr is host:port for UDP or unix:///path for a socket.
	Addr       string
	Namespace  string
	GlobalTags []string
}

// Backend implements metrics.Backend.
type Backend struct {
	client statsd.ClientInterface
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend dials the agent. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: no agent address")
	}
	opts := []statsd.Option{statsd.WithTags(cfg.GlobalTags)}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a count. DogStatsD counts are integral, so delta is
// truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	_ = b.client.Count(name, int64(delta), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	_ = b.client.Histogram(name, value, tags(labels), 1)
}

// Flush sends buffered datagrams without closing the client.
func (b *Backend) Flush() error { return b.client.Flush() }

func (b *Backend) Close() error { return b.client.Close() }

func tags(l metrics.Labels) []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for k, v := range l {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
