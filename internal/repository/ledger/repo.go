package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// store is the consumer interface for the ledger (ISP).
type store interface {
	Eval(ctx context.Context, script string, keys, args []string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo keeps usage counters in Redis/Valkey. Each mutation is one Lua
// script, so before/after snapshots are consistent across processes.
type Repo struct {
	store      store
	prefix     string
	archiveTTL time.Duration
}

// New creates a Redis-backed ledger repository.
func New(s store, prefix string, archiveTTL time.Duration) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	if archiveTTL <= 0 {
		archiveTTL = domain.DefaultPolicyConfig().ArchiveTTL
	}
	return &Repo{store: s, prefix: prefix, archiveTTL: archiveTTL}
}

// Apply adds d to the open period of accountID.
func (r *Repo) Apply(ctx context.Context, accountID string, now time.Time, d usage.Delta) (usage.Change, error) {
	return r.run(ctx, accountID, now, d, "apply")
}

// Current returns the latest period's counters, opening the calendar month of
// now when the account has never been seen.
func (r *Repo) Current(ctx context.Context, accountID string, now time.Time) (usage.Record, error) {
	ch, err := r.run(ctx, accountID, now, usage.Delta{}, "read")
	if err != nil {
		return usage.Record{}, err
	}
	return ch.After, nil
}

func (r *Repo) run(ctx context.Context, accountID string, now time.Time, d usage.Delta, mode string) (usage.Change, error) {
	def := usage.CalendarMonth(now)
	reply, err := r.store.Eval(ctx, applyScript,
		[]string{pointerKey(r.prefix, accountID)},
		[]string{
			counterPrefix(r.prefix, accountID),
			msString(now),
			msString(def.Start),
			msString(def.End),
			strconv.FormatInt(d.Requests, 10),
			strconv.FormatInt(d.Tokens, 10),
			strconv.FormatInt(d.CostMicros(), 10),
			mode,
		})
	if err != nil {
		return usage.Change{}, fmt.Errorf("%s usage %s: %w", mode, accountID, err)
	}
	return parseApplyReply(accountID, reply)
}

// Open archives the current period and starts p with zeroed counters.
// Reopening the open period is a no-op. hadPrevious is false when nothing
// was archived.
func (r *Repo) Open(ctx context.Context, accountID string, p usage.Period) (usage.Record, bool, error) {
	reply, err := r.store.Eval(ctx, openScript,
		[]string{pointerKey(r.prefix, accountID)},
		[]string{
			counterPrefix(r.prefix, accountID),
			msString(p.Start),
			msString(p.End),
			strconv.FormatInt(r.archiveTTL.Milliseconds(), 10),
		})
	if err != nil {
		return usage.Record{}, false, fmt.Errorf("open period %s: %w", accountID, err)
	}
	if len(reply) == 0 {
		return usage.Record{}, false, fmt.Errorf("empty open reply")
	}

	switch reply[0] {
	case "same", "none":
		return usage.Record{}, false, nil
	case "stale":
		if len(reply) != 3 {
			return usage.Record{}, false, fmt.Errorf("malformed stale reply: %v", reply)
		}
		cur, err := parsePeriod(reply[1], reply[2])
		if err != nil {
			return usage.Record{}, false, err
		}
		return usage.Record{}, false, fmt.Errorf("%w: start %s is not after open period start %s",
			domain.ErrInvalidPeriod, p.Start.Format(time.RFC3339), cur.Start.Format(time.RFC3339))
	case "archived":
		if len(reply) != 6 {
			return usage.Record{}, false, fmt.Errorf("malformed archived reply: %v", reply)
		}
		old, err := parsePeriod(reply[1], reply[2])
		if err != nil {
			return usage.Record{}, false, err
		}
		rec, err := parseCounters(accountID, old, true, reply[3:6]...)
		if err != nil {
			return usage.Record{}, false, err
		}
		return rec, true, nil
	default:
		return usage.Record{}, false, fmt.Errorf("unexpected open status %q", reply[0])
	}
}

// Archived returns a closed period by its start.
func (r *Repo) Archived(ctx context.Context, accountID string, start time.Time) (usage.Record, error) {
	m, err := r.store.HGetAll(ctx, counterKey(r.prefix, accountID, start))
	if err != nil {
		return usage.Record{}, fmt.Errorf("hgetall usage %s: %w", accountID, err)
	}
	if len(m) == 0 || m["closed"] != "1" {
		return usage.Record{}, fmt.Errorf("%w: account %s, start %s",
			domain.ErrPeriodNotFound, accountID, start.UTC().Format(time.RFC3339))
	}
	return recordFromHash(accountID, m)
}
