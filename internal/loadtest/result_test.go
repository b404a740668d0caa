package loadtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedbarber/cacheops/internal/workload"
)

func opResult(success bool, rt time.Duration) workload.OperationResult {
	res := workload.OperationResult{
		Op:        workload.OpGetBookingSlots,
		Success:   success,
		Timestamp: time.Now(),
	}
	if success {
		res.ResponseTime = rt
	} else {
		res.Err = "injected failure"
	}
	return res
}

func TestAnalyzeResults_CountsAndErrorRate(t *testing.T) {
	results := []workload.OperationResult{
		opResult(true, 10*time.Millisecond),
		opResult(true, 20*time.Millisecond),
		opResult(true, 30*time.Millisecond),
		opResult(false, 0),
	}

	r := analyzeResults("mixed", results, 2*time.Second, 4, nil)

	assert.Equal(t, "mixed", r.TestName)
	assert.Equal(t, 4, r.TotalOperations)
	assert.Equal(t, 3, r.SuccessfulOperations)
	assert.Equal(t, 1, r.FailedOperations)
	assert.Equal(t, r.TotalOperations, r.SuccessfulOperations+r.FailedOperations)
	assert.InDelta(t, 25.0, r.ErrorRatePercent, 0.001)
	assert.InDelta(t, 2.0, r.OperationsPerSecond, 0.001)
	assert.Equal(t, 4, r.ConcurrentUsers)
}

func TestAnalyzeResults_FailuresExcludedFromLatency(t *testing.T) {
	// Failed operations carry zero response times. If they leaked into the
	// latency sample the minimum would collapse to zero.
	results := []workload.OperationResult{
		opResult(true, 50*time.Millisecond),
		opResult(false, 0),
		opResult(false, 0),
	}

	r := analyzeResults("failures", results, time.Second, 1, nil)

	assert.Equal(t, 50*time.Millisecond, r.MinResponseTime)
	assert.Equal(t, 50*time.Millisecond, r.MaxResponseTime)
	assert.Equal(t, 50*time.Millisecond, r.AvgResponseTime)
}

func TestAnalyzeResults_Empty(t *testing.T) {
	r := analyzeResults("empty", nil, time.Second, 3, nil)

	assert.Equal(t, 0, r.TotalOperations)
	assert.InDelta(t, 100.0, r.ErrorRatePercent, 0.001)
	assert.Zero(t, r.OperationsPerSecond)
	assert.Zero(t, r.MinResponseTime)
	assert.Zero(t, r.P99ResponseTime)
}

func TestAnalyzeResults_AllFailed(t *testing.T) {
	results := []workload.OperationResult{opResult(false, 0), opResult(false, 0)}

	r := analyzeResults("all_failed", results, time.Second, 2, nil)

	assert.Equal(t, 2, r.TotalOperations)
	assert.Equal(t, 0, r.SuccessfulOperations)
	assert.InDelta(t, 100.0, r.ErrorRatePercent, 0.001)
	assert.Zero(t, r.AvgResponseTime)
}

func TestAnalyzeResults_PercentileOrdering(t *testing.T) {
	var results []workload.OperationResult
	for i := 1; i <= 200; i++ {
		results = append(results, opResult(true, time.Duration(i)*time.Millisecond))
	}

	r := analyzeResults("percentiles", results, 10*time.Second, 1, nil)

	assert.LessOrEqual(t, r.MinResponseTime, r.P95ResponseTime)
	assert.LessOrEqual(t, r.P95ResponseTime, r.P99ResponseTime)
	assert.LessOrEqual(t, r.P99ResponseTime, r.MaxResponseTime)
	// Nearest rank on 200 samples: p95 picks index 190, p99 index 198.
	assert.Equal(t, 191*time.Millisecond, r.P95ResponseTime)
	assert.Equal(t, 199*time.Millisecond, r.P99ResponseTime)
}

func TestAnalyzeResults_Pure(t *testing.T) {
	results := []workload.OperationResult{
		opResult(true, 5*time.Millisecond),
		opResult(true, 7*time.Millisecond),
		opResult(false, 0),
	}

	first := analyzeResults("pure", results, time.Second, 2, map[string]string{"k": "v"})
	second := analyzeResults("pure", results, time.Second, 2, map[string]string{"k": "v"})
	assert.Equal(t, first, second)
}

func TestPercentile_NearestRank(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, time.Duration(6), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 95))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(0), percentile(nil, 95))

	single := []time.Duration{42}
	require.Equal(t, time.Duration(42), percentile(single, 99))
}
