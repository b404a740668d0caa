// Package reporting renders load-test results to human-readable text and
// machine-readable JSON artifacts.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bookedbarber/cacheops/internal/loadtest"
)

// RenderText formats results as a plain-text report. Empty input renders a
// header with no sections rather than failing.
func RenderText(title string, results []*loadtest.LoadTestResult) string {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString(fmt.Sprintf("%s\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("\nTest: %s\n", r.TestName))
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		sb.WriteString(fmt.Sprintf("  Duration:            %.1fs\n", r.DurationSeconds))
		sb.WriteString(fmt.Sprintf("  Concurrent users:    %d\n", r.ConcurrentUsers))
		sb.WriteString(fmt.Sprintf("  Total operations:    %d (%d ok, %d failed)\n",
			r.TotalOperations, r.SuccessfulOperations, r.FailedOperations))
		sb.WriteString(fmt.Sprintf("  Throughput:          %.1f ops/sec\n", r.OperationsPerSecond))
		sb.WriteString(fmt.Sprintf("  Error rate:          %.2f%%\n", r.ErrorRatePercent))
		sb.WriteString(fmt.Sprintf("  Latency min/avg/max: %s / %s / %s\n",
			r.MinResponseTime, r.AvgResponseTime, r.MaxResponseTime))
		sb.WriteString(fmt.Sprintf("  Latency p95/p99:     %s / %s\n",
			r.P95ResponseTime, r.P99ResponseTime))
	}

	return sb.String()
}

// WriteTextReport writes the text rendering to path.
func WriteTextReport(path, title string, results []*loadtest.LoadTestResult) error {
	if err := os.WriteFile(path, []byte(RenderText(title, results)), 0o640); err != nil {
		return fmt.Errorf("reporting: write %s: %w", path, err)
	}
	return nil
}

// WriteJSONReport writes the results as indented JSON to path.
func WriteJSONReport(path string, results []*loadtest.LoadTestResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("reporting: marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("reporting: write %s: %w", path, err)
	}
	return nil
}

// DefaultReportPath builds a timestamped report filename.
func DefaultReportPath(prefix, ext string) string {
	return fmt.Sprintf("%s-%s.%s", prefix, time.Now().Format("20060102-150405"), ext)
}
