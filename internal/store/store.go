// Package store abstracts the key-value operations the load and recovery
// tooling needs, so workers and exports can run against a fake in tests.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// ValueDump captures a key's type, value and remaining TTL for export.
type ValueDump struct {
	Key        string      `json:"key"`
	Type       string      `json:"type"`
	Value      interface{} `json:"value"`
	TTLSeconds int64       `json:"ttl_seconds"` // -1 means no expiry
}

// Store is the narrow key-value surface used by the workload simulator
// and the cluster data export.
type Store interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error

	// IncrWithExpire increments a counter and refreshes its TTL in a single
	// pipelined round trip, returning the new counter value.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// ScanKeys iterates all keys matching pattern using cursor-based SCAN.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// DumpValue reads a key's value and remaining TTL, branching on type.
	DumpValue(ctx context.Context, key string) (*ValueDump, error)

	Close() error
}

// Factory builds a dedicated Store connection for one worker. Workers never
// share connections, so connection count tracks worker count under load.
type Factory func(ctx context.Context) (Store, error)
