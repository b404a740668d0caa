package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookedbarber/cacheops/internal/loadtest"
	"github.com/bookedbarber/cacheops/internal/metrics"
	"github.com/bookedbarber/cacheops/internal/reporting"
	"github.com/bookedbarber/cacheops/internal/store"
)

func newLoadCmd() *cobra.Command {
	var (
		redisURL        string
		password        string
		concurrentUsers int
		durationSec     int
		opsPerSecond    int
		testType        string
		maxUsers        int
		stepSize        int
		outputReport    string
		quick           bool
		metricsAddr     string
		logLevel        string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run a booking-workload load test against a Redis endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if redisURL != "" {
				cfg.Redis.URL = redisURL
			}
			if password != "" {
				cfg.Redis.Password = password
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}

			if quick {
				concurrentUsers = 5
				durationSec = 10
				maxUsers = 20
			}
			duration := time.Duration(durationSec) * time.Second

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			factory := store.NewFactory(store.Config{
				URL:      cfg.Redis.URL,
				Password: cfg.Redis.Password,
			})

			collector := metrics.NewCollector()
			tester := loadtest.New(factory, logger, loadtest.WithCollector(collector))

			if cfg.MetricsAddr != "" {
				srv := metrics.Serve(cfg.MetricsAddr, collector, logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			results, err := runScenario(ctx, tester, testType, concurrentUsers, duration, opsPerSecond, maxUsers, stepSize)
			if err != nil {
				return err
			}

			title := fmt.Sprintf("Redis Load Test Report: %s", testType)
			fmt.Print(reporting.RenderText(title, results))

			if outputReport != "" {
				if strings.HasSuffix(outputReport, ".json") {
					err = reporting.WriteJSONReport(outputReport, results)
				} else {
					err = reporting.WriteTextReport(outputReport, title, results)
				}
				if err != nil {
					return err
				}
				fmt.Printf("\nReport written to %s\n", outputReport)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", "", "redis connection URL (default from CACHEOPS_REDIS_URL)")
	cmd.Flags().StringVar(&password, "password", "", "redis password")
	cmd.Flags().IntVar(&concurrentUsers, "concurrent-users", 10, "simulated users")
	cmd.Flags().IntVar(&durationSec, "duration", 60, "test duration in seconds")
	cmd.Flags().IntVar(&opsPerSecond, "ops-per-second", 10, "target operations per second per user")
	cmd.Flags().StringVar(&testType, "test-type", "basic", "scenario: basic, burst, sustained, scalability, failure")
	cmd.Flags().IntVar(&maxUsers, "max-users", 50, "peak users for burst and scalability scenarios")
	cmd.Flags().IntVar(&stepSize, "step-size", 10, "user increment for the scalability sweep")
	cmd.Flags().StringVar(&outputReport, "output-report", "", "write the report to this file (.json for JSON)")
	cmd.Flags().BoolVar(&quick, "quick", false, "short smoke-test parameters")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address during the run")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func runScenario(ctx context.Context, tester *loadtest.Tester, testType string, users int, duration time.Duration, opsPerSecond, maxUsers, stepSize int) ([]*loadtest.LoadTestResult, error) {
	switch testType {
	case "basic":
		result, err := tester.RunConcurrent(ctx, users, duration, opsPerSecond)
		if err != nil {
			return nil, err
		}
		return []*loadtest.LoadTestResult{result}, nil

	case "burst":
		result, err := tester.RunBurst(ctx, maxUsers, duration, 10*time.Second)
		if err != nil {
			return nil, err
		}
		return []*loadtest.LoadTestResult{result}, nil

	case "sustained":
		minutes := int(duration.Minutes())
		if minutes < 1 {
			minutes = 1
		}
		result, err := tester.RunSustained(ctx, users, minutes)
		if err != nil {
			return nil, err
		}
		return []*loadtest.LoadTestResult{result}, nil

	case "scalability":
		return tester.RunScalability(ctx, maxUsers, stepSize, duration)

	case "failure":
		scenario, err := tester.RunFailureScenarios(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Memory pressure: wrote %d keys (%d failures), latency %s -> %s (%.1f%% degradation), %d cleanup errors\n",
			scenario.MemoryPressure.KeysWritten,
			scenario.MemoryPressure.WriteFailures,
			scenario.MemoryPressure.EarlyAvg,
			scenario.MemoryPressure.LateAvg,
			scenario.MemoryPressure.DegradationPct,
			scenario.MemoryPressure.CleanupErrors)
		return []*loadtest.LoadTestResult{scenario.ConnectionExhaustion}, nil

	default:
		return nil, fmt.Errorf("unknown test type %q", testType)
	}
}
