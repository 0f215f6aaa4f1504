package ledger

import (
	"context"
	"testing"
	"time"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	evalFn    func(ctx context.Context, script string, keys, args []string) ([]string, error)
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
}

func (m *mockStore) Eval(ctx context.Context, script string, keys, args []string) ([]string, error) {
	if m.evalFn != nil {
		return m.evalFn(ctx, script, keys, args)
	}
	return nil, nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "planguard:", 24*time.Hour), ms
}

// march2025 is 2025-03-01T00:00:00Z.
var march2025 = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

const (
	marchStartMs = "1740787200000"
	aprilStartMs = "1743465600000"
	mayStartMs   = "1746057600000"
)
