package workload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedbarber/cacheops/internal/store"
)

// fakeStore is an in-memory Store with injectable latency and errors.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	latency time.Duration
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.err }

func (f *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return val, nil
}

func (f *fakeStore) Delete(ctx context.Context, keys ...string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = "1"
	return 1, nil
}

func (f *fakeStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeStore) DumpValue(ctx context.Context, key string) (*store.ValueDump, error) {
	val, err := f.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &store.ValueDump{Key: key, Type: "string", Value: val, TTLSeconds: -1}, nil
}

func (f *fakeStore) Close() error { return nil }

func TestSimulator_OperationDistribution(t *testing.T) {
	sim := NewSimulator(newFakeStore(), 42, nil)

	const draws = 10000
	counts := map[Operation]int{}
	for i := 0; i < draws; i++ {
		counts[sim.pickOperation()]++
	}

	expected := map[Operation]float64{
		OpCacheBookingSlots: 0.25,
		OpGetBookingSlots:   0.30,
		OpCacheUserSession:  0.15,
		OpGetUserSession:    0.20,
		OpRateLimitCheck:    0.05,
		OpAnalyticsIncr:     0.05,
	}
	for op, want := range expected {
		got := float64(counts[op]) / draws
		assert.InDeltaf(t, want, got, 0.02, "operation %s frequency %.3f outside ±2%% of %.2f", op, got, want)
	}
}

func TestSimulator_ExecuteRandomOperation_Success(t *testing.T) {
	fs := newFakeStore()
	sim := NewSimulator(fs, 1, nil)

	for i := 0; i < 200; i++ {
		res := sim.ExecuteRandomOperation(context.Background())
		require.True(t, res.Success, "operation %s failed: %s", res.Op, res.Err)
		assert.Empty(t, res.Err)
		assert.False(t, res.Timestamp.IsZero())
		assert.GreaterOrEqual(t, res.ResponseTime, time.Duration(0))
	}
	assert.NotEmpty(t, fs.data, "operations should have written keys")
}

func TestSimulator_StoreErrorsBecomeFailedResults(t *testing.T) {
	fs := newFakeStore()
	fs.err = errors.New("connection refused")
	sim := NewSimulator(fs, 7, nil)

	for i := 0; i < 100; i++ {
		res := sim.ExecuteRandomOperation(context.Background())
		require.False(t, res.Success)
		assert.Contains(t, res.Err, "connection refused")
		// Failed operations must not contribute timing data.
		assert.Equal(t, time.Duration(0), res.ResponseTime)
	}
}

func TestSimulator_ReadWarmsUpEmptyIndex(t *testing.T) {
	fs := newFakeStore()
	sim := NewSimulator(fs, 3, nil)

	require.Empty(t, sim.slotKeys)
	res := sim.getBookingSlots(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, OpGetBookingSlots, res.Op)
	assert.NotEmpty(t, sim.slotKeys, "warm-up should populate the slot key index")

	res = sim.getUserSession(context.Background())
	require.True(t, res.Success)
	assert.NotEmpty(t, sim.sessionKeys)
}

func TestSimulator_SeededRunsAreReproducible(t *testing.T) {
	a := NewSimulator(newFakeStore(), 99, nil)
	b := NewSimulator(newFakeStore(), 99, nil)

	for i := 0; i < 500; i++ {
		assert.Equal(t, a.pickOperation(), b.pickOperation())
	}
}

func TestSimulator_SlotPayloadBounds(t *testing.T) {
	sim := NewSimulator(newFakeStore(), 5, nil)

	for i := 0; i < 100; i++ {
		id := sim.barberID()
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, 20)
	}

	for i := 0; i < 100; i++ {
		price := 25 + sim.rng.Intn(126)
		assert.GreaterOrEqual(t, price, 25)
		assert.LessOrEqual(t, price, 150)
	}
}
