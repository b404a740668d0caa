// Package workload generates a booking-shaped mix of cache operations for
// load testing: slot caches, session caches, rate-limit counters and
// analytics counters, weighted to match production traffic.
package workload

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/bookedbarber/cacheops/internal/store"
)

// Operation identifies one kind of cache operation.
type Operation string

const (
	OpCacheBookingSlots Operation = "cache_booking_slots"
	OpGetBookingSlots   Operation = "get_booking_slots"
	OpCacheUserSession  Operation = "cache_user_session"
	OpGetUserSession    Operation = "get_user_session"
	OpRateLimitCheck    Operation = "rate_limit_check"
	OpAnalyticsIncr     Operation = "analytics_increment"
)

// opWeight pairs an operation with its share of the workload.
type opWeight struct {
	op     Operation
	weight float64
}

// Production traffic is read-heavy on slots and sessions; counters are rare.
var distribution = []opWeight{
	{OpCacheBookingSlots, 0.25},
	{OpGetBookingSlots, 0.30},
	{OpCacheUserSession, 0.15},
	{OpGetUserSession, 0.20},
	{OpRateLimitCheck, 0.05},
	{OpAnalyticsIncr, 0.05},
}

// OperationResult records the outcome of a single executed operation.
// ResponseTime covers the store round trip only; failed operations carry a
// zero ResponseTime so they cannot skew latency statistics.
type OperationResult struct {
	Op           Operation     `json:"operation"`
	Success      bool          `json:"success"`
	ResponseTime time.Duration `json:"response_time"`
	Err          string        `json:"error,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Simulator produces one representative cache operation per call against a
// single dedicated store connection. It is not safe for concurrent use; run
// one Simulator per worker.
type Simulator struct {
	store  store.Store
	rng    *rand.Rand
	logger *zap.Logger

	// Keys written so far, so reads can target real entries.
	slotKeys    []string
	sessionKeys []string
}

// NewSimulator creates a simulator with a seeded RNG. Each worker should use
// a distinct seed so key cardinality stays varied across workers.
func NewSimulator(s store.Store, seed int64, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		store:  s,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// ExecuteRandomOperation draws an operation from the configured distribution
// and runs it. Store errors surface as failed results, never as panics or
// returned errors; the caller's loop continues unconditionally.
func (s *Simulator) ExecuteRandomOperation(ctx context.Context) OperationResult {
	switch s.pickOperation() {
	case OpCacheBookingSlots:
		return s.cacheBookingSlots(ctx)
	case OpGetBookingSlots:
		return s.getBookingSlots(ctx)
	case OpCacheUserSession:
		return s.cacheUserSession(ctx)
	case OpGetUserSession:
		return s.getUserSession(ctx)
	case OpRateLimitCheck:
		return s.rateLimitCheck(ctx)
	case OpAnalyticsIncr:
		return s.analyticsIncrement(ctx)
	}
	return s.getBookingSlots(ctx)
}

// pickOperation walks the cumulative distribution. The fallback covers
// floating-point edge cases at the distribution boundary.
func (s *Simulator) pickOperation() Operation {
	draw := s.rng.Float64()
	var cumulative float64
	for _, w := range distribution {
		cumulative += w.weight
		if draw < cumulative {
			return w.op
		}
	}
	return OpGetBookingSlots
}

func (s *Simulator) cacheBookingSlots(ctx context.Context) OperationResult {
	key := fmt.Sprintf("slots:barber:%d:%s", s.barberID(), s.bookingDate())
	value := s.slotPayload()

	start := time.Now()
	err := s.store.Set(ctx, key, value, time.Hour)
	elapsed := time.Since(start)
	if err != nil {
		return s.failed(OpCacheBookingSlots, err)
	}

	s.slotKeys = append(s.slotKeys, key)
	return s.succeeded(OpCacheBookingSlots, elapsed)
}

func (s *Simulator) getBookingSlots(ctx context.Context) OperationResult {
	// Warm up with an untimed write if nothing has been cached yet.
	if len(s.slotKeys) == 0 {
		if res := s.cacheBookingSlots(ctx); !res.Success {
			return s.failed(OpGetBookingSlots, fmt.Errorf("warm-up write: %s", res.Err))
		}
	}
	key := s.slotKeys[s.rng.Intn(len(s.slotKeys))]

	start := time.Now()
	_, err := s.store.Get(ctx, key)
	elapsed := time.Since(start)
	if err != nil && err != store.ErrNotFound {
		return s.failed(OpGetBookingSlots, err)
	}
	// A miss on an expired key is still a successful round trip.
	return s.succeeded(OpGetBookingSlots, elapsed)
}

func (s *Simulator) cacheUserSession(ctx context.Context) OperationResult {
	key := fmt.Sprintf("session:user:%d", s.rng.Intn(100000))
	value := s.sessionPayload()

	start := time.Now()
	err := s.store.Set(ctx, key, value, 30*time.Minute)
	elapsed := time.Since(start)
	if err != nil {
		return s.failed(OpCacheUserSession, err)
	}

	s.sessionKeys = append(s.sessionKeys, key)
	return s.succeeded(OpCacheUserSession, elapsed)
}

func (s *Simulator) getUserSession(ctx context.Context) OperationResult {
	if len(s.sessionKeys) == 0 {
		if res := s.cacheUserSession(ctx); !res.Success {
			return s.failed(OpGetUserSession, fmt.Errorf("warm-up write: %s", res.Err))
		}
	}
	key := s.sessionKeys[s.rng.Intn(len(s.sessionKeys))]

	start := time.Now()
	_, err := s.store.Get(ctx, key)
	elapsed := time.Since(start)
	if err != nil && err != store.ErrNotFound {
		return s.failed(OpGetUserSession, err)
	}
	return s.succeeded(OpGetUserSession, elapsed)
}

func (s *Simulator) rateLimitCheck(ctx context.Context) OperationResult {
	key := fmt.Sprintf("ratelimit:ip:%d.%d.%d.%d",
		s.rng.Intn(256), s.rng.Intn(256), s.rng.Intn(256), s.rng.Intn(256))

	start := time.Now()
	_, err := s.store.IncrWithExpire(ctx, key, time.Minute)
	elapsed := time.Since(start)
	if err != nil {
		return s.failed(OpRateLimitCheck, err)
	}
	return s.succeeded(OpRateLimitCheck, elapsed)
}

func (s *Simulator) analyticsIncrement(ctx context.Context) OperationResult {
	key := fmt.Sprintf("analytics:bookings:%s:barber:%d",
		time.Now().Format("2006-01-02"), s.barberID())

	start := time.Now()
	_, err := s.store.IncrWithExpire(ctx, key, 24*time.Hour)
	elapsed := time.Since(start)
	if err != nil {
		return s.failed(OpAnalyticsIncr, err)
	}
	return s.succeeded(OpAnalyticsIncr, elapsed)
}

func (s *Simulator) succeeded(op Operation, elapsed time.Duration) OperationResult {
	return OperationResult{
		Op:           op,
		Success:      true,
		ResponseTime: elapsed,
		Timestamp:    time.Now(),
	}
}

func (s *Simulator) failed(op Operation, err error) OperationResult {
	return OperationResult{
		Op:        op,
		Success:   false,
		Err:       err.Error(),
		Timestamp: time.Now(),
	}
}

func (s *Simulator) barberID() int {
	return 1 + s.rng.Intn(20)
}

func (s *Simulator) bookingDate() string {
	return time.Now().AddDate(0, 0, s.rng.Intn(30)).Format("2006-01-02")
}

// slotPayload builds a small JSON document of open time slots between
// 9am and 6pm with realistic prices.
func (s *Simulator) slotPayload() string {
	count := 1 + s.rng.Intn(5)
	payload := `{"slots":[`
	for i := 0; i < count; i++ {
		if i > 0 {
			payload += ","
		}
		hour := 9 + s.rng.Intn(9) // 09:00 through 17:00 starts
		price := 25 + s.rng.Intn(126)
		payload += fmt.Sprintf(`{"time":"%02d:%02d","price":%d}`, hour, 30*s.rng.Intn(2), price)
	}
	return payload + `]}`
}

func (s *Simulator) sessionPayload() string {
	return fmt.Sprintf(`{"user_id":%d,"barber_id":%d,"cart_total":%d,"created":"%s"}`,
		s.rng.Intn(100000), s.barberID(), 25+s.rng.Intn(126),
		time.Now().Format(time.RFC3339))
}
