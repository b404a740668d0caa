package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedbarber/cacheops/internal/workload"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollectorObserve(t *testing.T) {
	c := NewCollector()

	c.Observe(workload.OperationResult{
		Op:           workload.OpGetBookingSlots,
		Success:      true,
		ResponseTime: 2 * time.Millisecond,
	})
	c.Observe(workload.OperationResult{
		Op:      workload.OpCacheUserSession,
		Success: false,
		Err:     "connection reset",
	})

	body := scrape(t, c)
	assert.Contains(t, body, `cacheops_operations_total{operation="get_booking_slots",status="success"} 1`)
	assert.Contains(t, body, `cacheops_operations_total{operation="cache_user_session",status="failure"} 1`)
	// Only the successful operation lands in the latency histogram.
	assert.Contains(t, body, "cacheops_operation_latency_seconds_count 1")
}

func TestCollectorIsolatedRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.Observe(workload.OperationResult{Op: workload.OpRateLimitCheck, Success: true})

	assert.Contains(t, scrape(t, a), `operation="rate_limit_check"`)
	assert.NotContains(t, scrape(t, b), `operation="rate_limit_check"`)
}
