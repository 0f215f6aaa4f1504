package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// Valkey key patterns:
//   planguard:ledger:{acct}:period              pointer to the open period
//   planguard:ledger:{acct}:usage:<start ms>    counters of one period

func pointerKey(prefix, accountID string) string {
	return fmt.Sprintf("%sledger:{%s}:period", prefix, accountID)
}

func counterPrefix(prefix, accountID string) string {
	return fmt.Sprintf("%sledger:{%s}:usage:", prefix, accountID)
}

func counterKey(prefix, accountID string, start time.Time) string {
	return counterPrefix(prefix, accountID) + msString(start)
}

func msString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMs(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parsePeriod(start, end string) (usage.Period, error) {
	s, err := parseMs(start)
	if err != nil {
		return usage.Period{}, err
	}
	e, err := parseMs(end)
	if err != nil {
		return usage.Period{}, err
	}
	return usage.Period{Start: s, End: e}, nil
}

// parseCounters builds a record from requests, tokens and cost strings.
func parseCounters(accountID string, p usage.Period, closed bool, vals ...string) (usage.Record, error) {
	if len(vals) != 3 {
		return usage.Record{}, fmt.Errorf("expected 3 counters, got %d", len(vals))
	}
	n := make([]int64, 3)
	for i, v := range vals {
		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return usage.Record{}, fmt.Errorf("invalid counter %q: %w", v, err)
		}
		n[i] = x
	}
	return usage.NewRecord(accountID, p, n[0], n[1], n[2], closed), nil
}

// parseApplyReply decodes the applyScript reply.
func parseApplyReply(accountID string, reply []string) (usage.Change, error) {
	if len(reply) == 0 {
		return usage.Change{}, fmt.Errorf("empty apply reply")
	}
	switch reply[0] {
	case "noperiod":
		if len(reply) != 3 {
			return usage.Change{}, fmt.Errorf("malformed noperiod reply: %v", reply)
		}
		p, err := parsePeriod(reply[1], reply[2])
		if err != nil {
			return usage.Change{}, err
		}
		return usage.Change{}, fmt.Errorf("%w: account %s, last period ended %s",
			domain.ErrNoOpenPeriod, accountID, p.End.Format(time.RFC3339))
	case "overflow":
		if len(reply) != 4 {
			return usage.Change{}, fmt.Errorf("malformed overflow reply: %v", reply)
		}
		return usage.Change{}, fmt.Errorf("%w: account %s, %s counter would overflow (%s + %s)",
			domain.ErrInvalidUsageDelta, accountID, reply[1], reply[2], reply[3])
	case "ok":
		if len(reply) != 9 {
			return usage.Change{}, fmt.Errorf("malformed apply reply: %v", reply)
		}
		p, err := parsePeriod(reply[1], reply[2])
		if err != nil {
			return usage.Change{}, err
		}
		before, err := parseCounters(accountID, p, false, reply[3:6]...)
		if err != nil {
			return usage.Change{}, err
		}
		after, err := parseCounters(accountID, p, false, reply[6:9]...)
		if err != nil {
			return usage.Change{}, err
		}
		return usage.Change{Before: before, After: after}, nil
	default:
		return usage.Change{}, fmt.Errorf("unexpected apply status %q", reply[0])
	}
}

// recordFromHash hydrates a record from an HGETALL result of a counter hash.
func recordFromHash(accountID string, m map[string]string) (usage.Record, error) {
	p, err := parsePeriod(m["start"], m["end"])
	if err != nil {
		return usage.Record{}, err
	}
	return parseCounters(accountID, p, m["closed"] == "1",
		orZero(m["requests"]), orZero(m["tokens"]), orZero(m["cost"]))
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
