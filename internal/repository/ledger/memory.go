package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

type archivedRecord struct {
	rec     usage.Record
	expires time.Time
}

type account struct {
	current  usage.Record
	archived map[int64]archivedRecord
}

// Memory is an in-process ledger for single-replica deployments and tests.
// It follows the same period rules as Repo.
type Memory struct {
	mu         sync.Mutex
	accounts   map[string]*account
	archiveTTL time.Duration
	now        func() time.Time
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(archiveTTL time.Duration) *Memory {
	return &Memory{
		accounts:   make(map[string]*account),
		archiveTTL: archiveTTL,
		now:        time.Now,
	}
}

// lookup returns the account, opening the calendar month of now on first touch.
// Caller holds mu.
func (m *Memory) lookup(accountID string, now time.Time) *account {
	a, ok := m.accounts[accountID]
	if !ok {
		a = &account{
			current:  usage.Zero(accountID, usage.CalendarMonth(now)),
			archived: make(map[int64]archivedRecord),
		}
		m.accounts[accountID] = a
	}
	return a
}

// Apply adds d to the open period of accountID.
func (m *Memory) Apply(ctx context.Context, accountID string, now time.Time, d usage.Delta) (usage.Change, error) {
	if err := ctx.Err(); err != nil {
		return usage.Change{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.lookup(accountID, now)
	p := a.current.Period()
	if !p.Contains(now) {
		return usage.Change{}, fmt.Errorf("%w: account %s, last period ended %s",
			domain.ErrNoOpenPeriod, accountID, p.End.Format(time.RFC3339))
	}
	if err := a.current.CheckFits(d); err != nil {
		return usage.Change{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	before := a.current
	a.current = a.current.Add(d)
	return usage.Change{Before: before, After: a.current}, nil
}

// Current returns the latest period's counters.
func (m *Memory) Current(ctx context.Context, accountID string, now time.Time) (usage.Record, error) {
	if err := ctx.Err(); err != nil {
		return usage.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(accountID, now).current, nil
}

// Open archives the current period and starts p with zeroed counters.
func (m *Memory) Open(ctx context.Context, accountID string, p usage.Period) (usage.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return usage.Record{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		m.accounts[accountID] = &account{
			current:  usage.Zero(accountID, p),
			archived: make(map[int64]archivedRecord),
		}
		return usage.Record{}, false, nil
	}

	cur := a.current.Period()
	if cur.Equal(p) {
		return usage.Record{}, false, nil
	}
	if !p.Start.After(cur.Start) {
		return usage.Record{}, false, fmt.Errorf("%w: start %s is not after open period start %s",
			domain.ErrInvalidPeriod, p.Start.Format(time.RFC3339), cur.Start.Format(time.RFC3339))
	}

	old := a.current.Close()
	a.archived[cur.Start.UnixMilli()] = archivedRecord{rec: old, expires: m.now().Add(m.archiveTTL)}
	a.current = usage.Zero(accountID, p)
	return old, true, nil
}

// Archived returns a closed period by its start. Expired archives are dropped.
func (m *Memory) Archived(ctx context.Context, accountID string, start time.Time) (usage.Record, error) {
	if err := ctx.Err(); err != nil {
		return usage.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	notFound := fmt.Errorf("%w: account %s, start %s",
		domain.ErrPeriodNotFound, accountID, start.UTC().Format(time.RFC3339))
	a, ok := m.accounts[accountID]
	if !ok {
		return usage.Record{}, notFound
	}
	key := start.UnixMilli()
	ar, ok := a.archived[key]
	if !ok {
		return usage.Record{}, notFound
	}
	if m.archiveTTL > 0 && !m.now().Before(ar.expires) {
		delete(a.archived, key)
		return usage.Record{}, notFound
	}
	return ar.rec, nil
}
