package usage

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain"
)

func TestCalendarMonth(t *testing.T) {
	p := CalendarMonth(time.Date(2026, time.February, 17, 13, 4, 0, 0, time.UTC))

	wantStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) || !p.End.Equal(wantEnd) {
		t.Errorf("unexpected period: %v - %v", p.Start, p.End)
	}
	if !p.Contains(wantStart) {
		t.Error("period must contain its start")
	}
	if p.Contains(wantEnd) {
		t.Error("period must not contain its end")
	}
}

func TestPeriod_Validate(t *testing.T) {
	now := time.Now()
	if err := (Period{Start: now, End: now}).Validate(); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod for empty period, got %v", err)
	}
	if err := (Period{End: now}).Validate(); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod for zero start, got %v", err)
	}
	if err := (Period{Start: now, End: now.Add(time.Hour)}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDelta_Validate(t *testing.T) {
	invalid := []Delta{
		{Requests: -1},
		{Tokens: -5},
		{Cost: -0.01},
		{Cost: math.NaN()},
		{Cost: math.Inf(1)},
		{Cost: 1e13},
		{Cost: MaxCost + 1},
	}
	for _, d := range invalid {
		if err := d.Validate(); !errors.Is(err, domain.ErrInvalidUsageDelta) {
			t.Errorf("Validate(%+v): expected ErrInvalidUsageDelta, got %v", d, err)
		}
	}

	if err := (Delta{Requests: 1, Tokens: 10, Cost: 0.5}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Delta{Requests: math.MaxInt64, Tokens: math.MaxInt64, Cost: MaxCost}).Validate(); err != nil {
		t.Errorf("largest delta: unexpected error: %v", err)
	}
	if got := (Delta{Cost: MaxCost}).CostMicros(); got <= 0 {
		t.Errorf("MaxCost must convert to positive micros, got %d", got)
	}
	if !(Delta{}).IsZero() {
		t.Error("empty delta should be zero")
	}
}

func TestRecord_CheckFits(t *testing.T) {
	p := CalendarMonth(time.Now())
	full := NewRecord("acct-1", p, 0, math.MaxInt64, 0, false)

	if err := full.CheckFits(Delta{Tokens: 1}); !errors.Is(err, domain.ErrInvalidUsageDelta) {
		t.Errorf("tokens overflow: expected ErrInvalidUsageDelta, got %v", err)
	}
	if err := full.CheckFits(Delta{Requests: 1, Cost: 1}); err != nil {
		t.Errorf("other counters have room: unexpected error %v", err)
	}
	if err := Zero("acct-1", p).CheckFits(Delta{Requests: math.MaxInt64, Tokens: math.MaxInt64, Cost: MaxCost}); err != nil {
		t.Errorf("empty record: unexpected error %v", err)
	}
}

func TestRecord_Add(t *testing.T) {
	p := CalendarMonth(time.Now())
	r := Zero("acct-1", p).
		Add(Delta{Requests: 5, Tokens: 100, Cost: 0.25}).
		Add(Delta{Requests: 3, Tokens: 50, Cost: 0.000001})

	if r.RequestCount() != 8 {
		t.Errorf("expected 8 requests, got %d", r.RequestCount())
	}
	if r.TokenCount() != 150 {
		t.Errorf("expected 150 tokens, got %d", r.TokenCount())
	}
	if r.CostMicros() != 250_001 {
		t.Errorf("expected 250001 micros, got %d", r.CostMicros())
	}
	if r.Value(MetricCost) != r.CostMicros() || r.Value(MetricRequests) != 8 {
		t.Error("Value does not match counters")
	}
}

func TestRecord_ClosedIsReadOnly(t *testing.T) {
	r := Zero("acct-1", CalendarMonth(time.Now())).Add(Delta{Requests: 1}).Close()
	after := r.Add(Delta{Requests: 10})

	if after.RequestCount() != 1 {
		t.Errorf("closed record mutated: %d", after.RequestCount())
	}
	if !after.Closed() {
		t.Error("expected closed record")
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(810, 1000); got != 81 {
		t.Errorf("expected 81, got %v", got)
	}
}

func TestParseMetric(t *testing.T) {
	for _, m := range Metered {
		got, err := ParseMetric(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMetric(%q) = %q, %v", m, got, err)
		}
	}
	if _, err := ParseMetric("bytes"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
