// Package metrics collects latency and failure counts for the setup API calls.
//
// Latencies are kept per resource (login, fans, schedules, videos) in an
// HdrHistogram so the fan-out can be summarized with percentiles once the
// run finishes:
//
//	collector := metrics.NewCollector()
//	collector.RecordRequest("videos", latency, err)
//	for _, s := range collector.Stats() {
//		fmt.Println(s.Resource, s.P99Latency)
//	}
//
// The Collector is safe to call from multiple goroutines.
package metrics
