package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedbarber/cacheops/internal/loadtest"
)

func sampleResults() []*loadtest.LoadTestResult {
	return []*loadtest.LoadTestResult{
		{
			TestName:             "concurrent_load",
			DurationSeconds:      60.2,
			TotalOperations:      12000,
			SuccessfulOperations: 11940,
			FailedOperations:     60,
			OperationsPerSecond:  199.3,
			MinResponseTime:      800 * time.Microsecond,
			AvgResponseTime:      3 * time.Millisecond,
			MaxResponseTime:      95 * time.Millisecond,
			P95ResponseTime:      9 * time.Millisecond,
			P99ResponseTime:      24 * time.Millisecond,
			ErrorRatePercent:     0.5,
			ConcurrentUsers:      20,
		},
		{
			TestName:        "scalability_40_users",
			ConcurrentUsers: 40,
		},
	}
}

func TestRenderText(t *testing.T) {
	out := RenderText("Redis Load Test Report", sampleResults())

	assert.Contains(t, out, "Redis Load Test Report")
	assert.Contains(t, out, "Test: concurrent_load")
	assert.Contains(t, out, "Test: scalability_40_users")
	assert.Contains(t, out, "12000 (11940 ok, 60 failed)")
	assert.Contains(t, out, "199.3 ops/sec")
	assert.Contains(t, out, "0.50%")
}

func TestRenderText_Empty(t *testing.T) {
	out := RenderText("Empty Run", nil)

	assert.Contains(t, out, "Empty Run")
	assert.NotContains(t, out, "Test:")
}

func TestWriteTextReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, WriteTextReport(path, "Report", sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "concurrent_load")
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteJSONReport(path, sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []*loadtest.LoadTestResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "concurrent_load", decoded[0].TestName)
	assert.Equal(t, 12000, decoded[0].TotalOperations)
}

func TestDefaultReportPath(t *testing.T) {
	path := DefaultReportPath("loadtest", "json")
	assert.Regexp(t, regexp.MustCompile(`^loadtest-\d{8}-\d{6}\.json$`), path)
}
