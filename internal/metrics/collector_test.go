package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/torosent/fanload/internal/httpclient"
	"github.com/torosent/fanload/internal/metrics"
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	// Record deterministic latencies.
	c.RecordRequest("fans", 10*time.Millisecond, nil)
	c.RecordRequest("fans", 20*time.Millisecond, nil)
	c.RecordRequest("fans", 30*time.Millisecond, nil)
	c.RecordRequest("fans", 40*time.Millisecond, nil)
	c.RecordRequest("fans", 50*time.Millisecond, nil)

	all := c.Stats()
	if len(all) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(all))
	}
	stats := all[0]

	if stats.Resource != "fans" {
		t.Errorf("expected resource fans, got %q", stats.Resource)
	}
	if stats.Total != 5 || stats.Successes != 5 || stats.Failures != 0 {
		t.Errorf("unexpected counts %+v", stats)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordRequest("videos", time.Duration(i)*time.Millisecond, nil)
	}

	stats := c.Stats()[0]
	within := func(got, want time.Duration) bool {
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		return diff <= time.Millisecond
	}
	if !within(stats.P50Latency, 50*time.Millisecond) {
		t.Errorf("p50 = %s, want ~50ms", stats.P50Latency)
	}
	if !within(stats.P90Latency, 90*time.Millisecond) {
		t.Errorf("p90 = %s, want ~90ms", stats.P90Latency)
	}
	if !within(stats.P99Latency, 99*time.Millisecond) {
		t.Errorf("p99 = %s, want ~99ms", stats.P99Latency)
	}
}

func TestStatsSortedByResource(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest("videos", time.Millisecond, nil)
	c.RecordRequest("fans", time.Millisecond, nil)
	c.RecordRequest("login", time.Millisecond, nil)

	var names []string
	for _, s := range c.Stats() {
		names = append(names, s.Resource)
	}
	want := []string{"fans", "login", "videos"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("resources = %v, want %v", names, want)
	}
}

func TestErrorBuckets(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest("videos", time.Millisecond, &httpclient.HTTPError{StatusCode: 500})
	c.RecordRequest("videos", time.Millisecond, &httpclient.HTTPError{StatusCode: 500})
	c.RecordRequest("videos", time.Millisecond, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	c.RecordRequest("videos", time.Millisecond, errors.New("boom"))
	c.RecordRequest("videos", time.Millisecond, nil)

	stats := c.Stats()[0]
	if stats.Failures != 4 || stats.Successes != 1 {
		t.Fatalf("counts = %+v", stats)
	}
	if stats.Errors["HTTP 500"] != 2 {
		t.Errorf("HTTP 500 bucket = %d, want 2", stats.Errors["HTTP 500"])
	}
	if stats.Errors["timeout"] != 1 {
		t.Errorf("timeout bucket = %d, want 1", stats.Errors["timeout"])
	}
	if stats.Errors["other"] != 1 {
		t.Errorf("other bucket = %d, want 1", stats.Errors["other"])
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&httpclient.HTTPError{StatusCode: 404}, "HTTP 404"},
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("x"), "other"},
	}
	for _, tt := range tests {
		if got := metrics.ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.RecordRequest("videos", time.Duration(i+1)*time.Millisecond, nil)
		}(i)
	}
	wg.Wait()

	if got := c.Stats()[0].Total; got != 50 {
		t.Errorf("total = %d, want 50", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *metrics.Collector
	c.RecordRequest("fans", time.Millisecond, nil)
	if c.Stats() != nil {
		t.Error("nil collector Stats() should be nil")
	}
}
