package alert

import (
	"testing"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

func TestNew_AssignsUniqueIDs(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	a := New("acct", plan.Starter, usage.MetricTokens, KindThreshold, 81, 80, at)
	b := New("acct", plan.Starter, usage.MetricTokens, KindThreshold, 81, 80, at)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.At.Location() != time.UTC {
		t.Error("timestamp must be normalized to UTC")
	}
}

func TestToPayload(t *testing.T) {
	a := New("acct-9", plan.Free, usage.MetricRequests, KindQuotaExceeded, 100.5, 80, time.Now())
	p := a.ToPayload()

	if p.Plan != "free" || p.Metric != "requests" || p.Kind != "quota_exceeded" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.AccountID != "acct-9" || p.Percent != 100.5 || p.ThresholdPct != 80 {
		t.Errorf("unexpected payload values: %+v", p)
	}
}
