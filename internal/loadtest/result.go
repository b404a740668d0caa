package loadtest

import (
	"math"
	"sort"
	"time"

	"github.com/bookedbarber/cacheops/internal/workload"
)

// LoadTestResult aggregates the statistics of one test run. It is derived
// entirely from the run's OperationResults and never mutated afterwards.
type LoadTestResult struct {
	TestName             string            `json:"test_name"`
	DurationSeconds      float64           `json:"duration_seconds"`
	TotalOperations      int               `json:"total_operations"`
	SuccessfulOperations int               `json:"successful_operations"`
	FailedOperations     int               `json:"failed_operations"`
	OperationsPerSecond  float64           `json:"operations_per_second"`
	MinResponseTime      time.Duration     `json:"min_response_time"`
	AvgResponseTime      time.Duration     `json:"avg_response_time"`
	MaxResponseTime      time.Duration     `json:"max_response_time"`
	P95ResponseTime      time.Duration     `json:"p95_response_time"`
	P99ResponseTime      time.Duration     `json:"p99_response_time"`
	ErrorRatePercent     float64           `json:"error_rate_percent"`
	ConcurrentUsers      int               `json:"concurrent_users"`
	TestConfig           map[string]string `json:"test_config,omitempty"`
}

// analyzeResults computes a LoadTestResult from a flat result list. It is a
// pure function of its inputs: the same list always yields the same output.
//
// Only successful operations contribute latency samples. Failed operations
// carry a zero response time, and folding those zeros in would drag the
// percentiles down, so they are counted but excluded from timing stats.
func analyzeResults(testName string, results []workload.OperationResult, wallClock time.Duration, users int, config map[string]string) *LoadTestResult {
	r := &LoadTestResult{
		TestName:        testName,
		DurationSeconds: wallClock.Seconds(),
		ConcurrentUsers: users,
		TestConfig:      config,
	}

	// Degenerate case: nothing ran at all.
	if len(results) == 0 {
		r.ErrorRatePercent = 100
		return r
	}

	latencies := make([]time.Duration, 0, len(results))
	for _, res := range results {
		r.TotalOperations++
		if res.Success {
			r.SuccessfulOperations++
			latencies = append(latencies, res.ResponseTime)
		} else {
			r.FailedOperations++
		}
	}

	r.ErrorRatePercent = float64(r.FailedOperations) / float64(r.TotalOperations) * 100
	if wallClock > 0 {
		// Wall clock of the whole concurrent run, not per-worker time.
		r.OperationsPerSecond = float64(r.TotalOperations) / wallClock.Seconds()
	}

	if len(latencies) == 0 {
		return r
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	r.MinResponseTime = latencies[0]
	r.MaxResponseTime = latencies[len(latencies)-1]
	r.AvgResponseTime = total / time.Duration(len(latencies))
	r.P95ResponseTime = percentile(latencies, 95)
	r.P99ResponseTime = percentile(latencies, 99)
	return r
}

// percentile computes the nearest-rank percentile of a sorted sample:
// index = floor(p/100 * n), clamped to n-1.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p / 100 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
