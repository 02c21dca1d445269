package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/fanload/internal/httpclient"
)

// Collector records per-request metrics grouped by resource in a thread-safe manner.
type Collector struct {
	mu        sync.Mutex
	resources map[string]*series
	start     time.Time
}

type series struct {
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	errors     map[string]int64
}

// Stats represents aggregated metrics for one resource.
type Stats struct {
	Resource    string           `json:"resource"`
	Total       int64            `json:"total"`
	Successes   int64            `json:"successes"`
	Failures    int64            `json:"failures"`
	MinLatency  time.Duration    `json:"min_latency"`
	MaxLatency  time.Duration    `json:"max_latency"`
	MeanLatency time.Duration    `json:"mean_latency"`
	P50Latency  time.Duration    `json:"p50_latency"`
	P90Latency  time.Duration    `json:"p90_latency"`
	P99Latency  time.Duration    `json:"p99_latency"`
	Errors      map[string]int64 `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		resources: make(map[string]*series),
		start:     time.Now(),
	}
}

func newSeries() *series {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &series{
		hist:   hdrhistogram.New(1, 60_000_000, 3),
		errors: make(map[string]int64),
	}
}

// RecordRequest records a single request's latency and error state under resource.
func (c *Collector) RecordRequest(resource string, latency time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.resources[resource]
	if !ok {
		s = newSeries()
		c.resources[resource] = s
	}

	if latency > 0 {
		us := latency.Microseconds()
		if us < s.hist.LowestTrackableValue() {
			us = s.hist.LowestTrackableValue()
		}
		if us > s.hist.HighestTrackableValue() {
			us = s.hist.HighestTrackableValue()
		}
		_ = s.hist.RecordValue(us)
	}
	s.sumLatency += latency

	if s.minLatency == 0 || latency < s.minLatency {
		s.minLatency = latency
	}
	if latency > s.maxLatency {
		s.maxLatency = latency
	}

	if err == nil {
		s.successes++
		return
	}
	s.failures++
	s.errors[ErrorKind(err)]++
}

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.start)
}

// Stats returns aggregated statistics for every resource, sorted by name.
func (c *Collector) Stats() []Stats {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Stats, 0, len(names))
	for _, name := range names {
		s := c.resources[name]
		total := s.successes + s.failures
		stats := Stats{
			Resource:   name,
			Total:      total,
			Successes:  s.successes,
			Failures:   s.failures,
			MinLatency: s.minLatency,
			MaxLatency: s.maxLatency,
		}
		if total > 0 {
			stats.MeanLatency = time.Duration(int64(s.sumLatency) / total)
		}
		if s.hist.TotalCount() > 0 {
			stats.P50Latency = time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond
			stats.P90Latency = time.Duration(s.hist.ValueAtQuantile(90)) * time.Microsecond
			stats.P99Latency = time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond
		}
		if len(s.errors) > 0 {
			stats.Errors = make(map[string]int64, len(s.errors))
			for k, v := range s.errors {
				stats.Errors[k] = v
			}
		}
		out = append(out, stats)
	}
	return out
}

// ErrorKind returns a short label used to bucket request failures.
func ErrorKind(err error) string {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	return "other"
}
