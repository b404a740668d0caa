// Package loadtest drives concurrent booking workloads against a cache and
// reports throughput and latency statistics for each scenario.
package loadtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bookedbarber/cacheops/internal/metrics"
	"github.com/bookedbarber/cacheops/internal/store"
	"github.com/bookedbarber/cacheops/internal/workload"
)

const (
	defaultCooldown    = 5 * time.Second
	sustainedOpsPerSec = 5 // low per-user rate so the harness itself is not the bottleneck
	burstOpsPerSec     = 10
)

// Tester coordinates simulator workers under the different load patterns.
// Each worker gets its own store connection from the factory; workers share
// nothing but the store itself.
type Tester struct {
	factory   store.Factory
	logger    *zap.Logger
	collector *metrics.Collector
	cooldown  time.Duration
	seed      atomic.Int64
}

// Option configures a Tester.
type Option func(*Tester)

// WithCollector attaches Prometheus instrumentation to every worker.
func WithCollector(c *metrics.Collector) Option {
	return func(t *Tester) { t.collector = c }
}

// WithCooldown overrides the pause between scalability steps.
func WithCooldown(d time.Duration) Option {
	return func(t *Tester) { t.cooldown = d }
}

// WithSeed fixes the base RNG seed so runs are reproducible.
func WithSeed(seed int64) Option {
	return func(t *Tester) { t.seed.Store(seed) }
}

// New creates a load tester.
func New(factory store.Factory, logger *zap.Logger, opts ...Option) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tester{
		factory:  factory,
		logger:   logger,
		cooldown: defaultCooldown,
	}
	t.seed.Store(time.Now().UnixNano())
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tester) nextSeed() int64 {
	return t.seed.Add(1)
}

// RunSingleUser runs one simulator in a paced loop for the given duration.
// Pacing is a best-effort soft limit: actual throughput falls below target
// when store latency spikes, which is the realistic backpressure behavior.
// The returned error covers connection setup only; per-operation failures
// appear as failed OperationResults.
func (t *Tester) RunSingleUser(ctx context.Context, duration time.Duration, opsPerSecond int) ([]workload.OperationResult, error) {
	st, err := t.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("loadtest: open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	sim := workload.NewSimulator(st, t.nextSeed(), t.logger)
	return t.runUserLoop(ctx, sim, duration, opsPerSecond), nil
}

// runUserLoop executes operations strictly sequentially so each measured
// latency reflects a true round trip.
func (t *Tester) runUserLoop(ctx context.Context, sim *workload.Simulator, duration time.Duration, opsPerSecond int) []workload.OperationResult {
	if opsPerSecond <= 0 {
		opsPerSecond = 1
	}
	limiter := rate.NewLimiter(rate.Limit(opsPerSecond), 1)

	runCtx, cancel := context.WithDeadline(ctx, time.Now().Add(duration))
	defer cancel()

	var results []workload.OperationResult
	for {
		if err := limiter.Wait(runCtx); err != nil {
			return results // deadline reached or caller cancelled
		}
		res := sim.ExecuteRandomOperation(runCtx)
		if t.collector != nil {
			t.collector.Observe(res)
		}
		results = append(results, res)
	}
}

// RunConcurrent drives the standard concurrent scenario: one worker per
// simulated user, merged and analyzed after every worker finishes.
func (t *Tester) RunConcurrent(ctx context.Context, users int, duration time.Duration, opsPerSecond int) (*LoadTestResult, error) {
	return t.runConcurrent(ctx, "concurrent_load", users, duration, opsPerSecond, nil)
}

// runConcurrent is the shared concurrency primitive. delays, when non-nil,
// staggers each worker's start for burst ramp-up. A worker whose connection
// fails is logged and dropped; the test never aborts on one worker.
func (t *Tester) runConcurrent(ctx context.Context, name string, users int, duration time.Duration, opsPerSecond int, delays []time.Duration) (*LoadTestResult, error) {
	if users <= 0 {
		return nil, fmt.Errorf("loadtest: users must be positive, got %d", users)
	}

	start := time.Now()
	resultsCh := make(chan []workload.OperationResult, users)

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			if delays != nil && delays[worker] > 0 {
				select {
				case <-time.After(delays[worker]):
				case <-ctx.Done():
					return
				}
			}

			st, err := t.factory(ctx)
			if err != nil {
				t.logger.Warn("worker connection failed, dropping user",
					zap.Int("worker", worker), zap.Error(err))
				return
			}
			defer func() { _ = st.Close() }()

			sim := workload.NewSimulator(st, t.nextSeed(), t.logger)
			resultsCh <- t.runUserLoop(ctx, sim, duration, opsPerSecond)
		}(i)
	}

	wg.Wait()
	close(resultsCh)

	var merged []workload.OperationResult
	for batch := range resultsCh {
		merged = append(merged, batch...)
	}

	result := analyzeResults(name, merged, time.Since(start), users, map[string]string{
		"users":          fmt.Sprintf("%d", users),
		"duration":       duration.String(),
		"ops_per_second": fmt.Sprintf("%d", opsPerSecond),
	})

	t.logger.Info("load test complete",
		zap.String("test", name),
		zap.Int("total_ops", result.TotalOperations),
		zap.Float64("ops_per_second", result.OperationsPerSecond),
		zap.Float64("error_rate_pct", result.ErrorRatePercent),
		zap.Duration("p95", result.P95ResponseTime))

	return result, nil
}

// RunBurst staggers worker starts across rampUp so load rises roughly
// linearly instead of as a step function, then holds peak concurrency for
// burstDuration.
func (t *Tester) RunBurst(ctx context.Context, peakUsers int, burstDuration, rampUp time.Duration) (*LoadTestResult, error) {
	if peakUsers <= 0 {
		return nil, fmt.Errorf("loadtest: peakUsers must be positive, got %d", peakUsers)
	}
	delays := make([]time.Duration, peakUsers)
	for i := range delays {
		delays[i] = time.Duration(float64(i) / float64(peakUsers) * float64(rampUp))
	}
	return t.runConcurrent(ctx, "burst_load", peakUsers, burstDuration, burstOpsPerSec, delays)
}

// RunSustained holds a moderate per-user rate for an extended period.
func (t *Tester) RunSustained(ctx context.Context, users int, durationMinutes int) (*LoadTestResult, error) {
	return t.runConcurrent(ctx, "sustained_load", users,
		time.Duration(durationMinutes)*time.Minute, sustainedOpsPerSec, nil)
}

// RunScalability sweeps user counts from step to maxUsers in step increments,
// pausing between runs so the store can recover. Results come back in sweep
// order for trend analysis.
func (t *Tester) RunScalability(ctx context.Context, maxUsers, step int, perRunDuration time.Duration) ([]*LoadTestResult, error) {
	if step <= 0 || maxUsers < step {
		return nil, fmt.Errorf("loadtest: invalid sweep maxUsers=%d step=%d", maxUsers, step)
	}

	var results []*LoadTestResult
	for users := step; users <= maxUsers; users += step {
		name := fmt.Sprintf("scalability_%d_users", users)
		result, err := t.runConcurrent(ctx, name, users, perRunDuration, burstOpsPerSec, nil)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if users+step <= maxUsers {
			select {
			case <-time.After(t.cooldown):
			case <-ctx.Done():
				return results, ctx.Err()
			}
		}
	}
	return results, nil
}

// FailureScenarioResult bundles the outcomes of the fixed failure scenarios.
type FailureScenarioResult struct {
	ConnectionExhaustion *LoadTestResult       `json:"connection_exhaustion"`
	MemoryPressure       *MemoryPressureResult `json:"memory_pressure"`
}

// MemoryPressureResult captures latency degradation under a sequential
// large-value write burst, plus the cleanup outcome.
type MemoryPressureResult struct {
	KeysWritten    int           `json:"keys_written"`
	WriteFailures  int           `json:"write_failures"`
	EarlyAvg       time.Duration `json:"early_avg"`
	LateAvg        time.Duration `json:"late_avg"`
	DegradationPct float64       `json:"degradation_pct"`
	CleanupErrors  int           `json:"cleanup_errors"`
}

const (
	memoryPressureKeys    = 1000
	memoryPressureValueKB = 10
)

// RunFailureScenarios runs the two fixed failure-injection scenarios:
// connection exhaustion via a very high concurrency run, and memory pressure
// via sequential large writes. Cleanup of pressure keys is best effort and
// happens regardless of scenario outcome.
func (t *Tester) RunFailureScenarios(ctx context.Context) (*FailureScenarioResult, error) {
	exhaustion, err := t.runConcurrent(ctx, "connection_exhaustion", 100, 10*time.Second, burstOpsPerSec, nil)
	if err != nil {
		return nil, err
	}

	pressure, err := t.runMemoryPressure(ctx)
	if err != nil {
		return nil, err
	}

	return &FailureScenarioResult{
		ConnectionExhaustion: exhaustion,
		MemoryPressure:       pressure,
	}, nil
}

func (t *Tester) runMemoryPressure(ctx context.Context) (*MemoryPressureResult, error) {
	st, err := t.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("loadtest: open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	value := strings.Repeat("x", memoryPressureValueKB*1024)
	result := &MemoryPressureResult{}

	keys := make([]string, 0, memoryPressureKeys)
	latencies := make([]time.Duration, 0, memoryPressureKeys)

	for i := 0; i < memoryPressureKeys; i++ {
		if ctx.Err() != nil {
			break
		}
		key := fmt.Sprintf("pressure:key:%d", i)

		start := time.Now()
		err := st.Set(ctx, key, value, time.Hour)
		elapsed := time.Since(start)
		if err != nil {
			result.WriteFailures++
			continue
		}
		keys = append(keys, key)
		latencies = append(latencies, elapsed)
	}
	result.KeysWritten = len(keys)

	// Compare the first and last slices of the run to expose degradation.
	const window = 100
	if len(latencies) >= 2*window {
		result.EarlyAvg = avgDuration(latencies[:window])
		result.LateAvg = avgDuration(latencies[len(latencies)-window:])
		if result.EarlyAvg > 0 {
			result.DegradationPct = (float64(result.LateAvg)/float64(result.EarlyAvg) - 1) * 100
		}
	}

	// Best-effort cleanup, not transactional.
	for _, key := range keys {
		if err := st.Delete(context.WithoutCancel(ctx), key); err != nil {
			result.CleanupErrors++
		}
	}

	t.logger.Info("memory pressure scenario complete",
		zap.Int("keys_written", result.KeysWritten),
		zap.Int("write_failures", result.WriteFailures),
		zap.Float64("degradation_pct", result.DegradationPct),
		zap.Int("cleanup_errors", result.CleanupErrors))

	return result, nil
}

func avgDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}
