package db

import (
	"context"
	"time"
)

// Store is the database facade used by planguard.
// Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	HashStore
	Scripter
	StreamWriter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Scripter runs Lua scripts atomically on the server.
// Scripts must return an array of strings.
type Scripter interface {
	Eval(ctx context.Context, script string, keys, args []string) ([]string, error)
}

// StreamWriter appends entries to a capped stream.
type StreamWriter interface {
	XAdd(ctx context.Context, stream string, maxLen int64, fields map[string]string) (string, error)
}
