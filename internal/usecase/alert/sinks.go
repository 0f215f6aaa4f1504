package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/planguard/internal/db"
	domalert "github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/metrics"
)

// LogSink writes alerts to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements named.
func (s *LogSink) Name() string { return "log" }

// Send logs a at warn level.
func (s *LogSink) Send(_ context.Context, a domalert.Alert) error {
	s.logger.Warn("Quota alert",
		zap.String("alert_id", a.ID),
		zap.String("account_id", a.AccountID),
		zap.Stringer("plan", a.Plan),
		zap.String("metric", string(a.Metric)),
		zap.String("kind", string(a.Kind)),
		zap.Float64("percent", a.Percent),
		zap.Float64("threshold_pct", a.ThresholdPct),
		zap.Time("at", a.At),
	)
	return nil
}

// WebhookSink POSTs the alert payload as JSON to the notification service.
type WebhookSink struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSink creates a WebhookSink. client may be nil.
func NewWebhookSink(url, token string, client *http.Client) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSink{url: url, token: token, client: client}
}

// Name implements named.
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts a. Any non-2xx status is an error.
func (s *WebhookSink) Send(ctx context.Context, a domalert.Alert) error {
	body, err := json.Marshal(a.ToPayload())
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", a.ID)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

// StreamSink appends alerts to a capped Redis/Valkey stream.
type StreamSink struct {
	writer db.StreamWriter
	stream string
	maxLen int64
}

// NewStreamSink creates a StreamSink. maxLen <= 0 leaves the stream untrimmed.
func NewStreamSink(w db.StreamWriter, stream string, maxLen int64) *StreamSink {
	return &StreamSink{writer: w, stream: stream, maxLen: maxLen}
}

// Name implements named.
func (s *StreamSink) Name() string { return "stream" }

// Send adds one stream entry per alert.
func (s *StreamSink) Send(ctx context.Context, a domalert.Alert) error {
	p := a.ToPayload()
	fields := map[string]string{
		"id":            p.ID,
		"account_id":    p.AccountID,
		"plan":          p.Plan,
		"metric":        p.Metric,
		"kind":          p.Kind,
		"percent":       strconv.FormatFloat(p.Percent, 'f', -1, 64),
		"threshold_pct": strconv.FormatFloat(p.ThresholdPct, 'f', -1, 64),
		"timestamp":     strconv.FormatInt(p.Timestamp.UnixMilli(), 10),
	}
	if _, err := s.writer.XAdd(ctx, s.stream, s.maxLen, fields); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Fanout delivers every alert to all sinks in parallel.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Name implements named.
func (f *Fanout) Name() string { return "fanout" }

// Send waits for all sinks. One failing sink does not stop the others; the
// first error is returned.
func (f *Fanout) Send(ctx context.Context, a domalert.Alert) error {
	var g errgroup.Group
	for _, s := range f.sinks {
		g.Go(func() error {
			name := sinkName(s)
			if err := s.Send(ctx, a); err != nil {
				metrics.AlertDeliveriesTotal.WithLabelValues(name, "error").Inc()
				return fmt.Errorf("%s: %w", name, err)
			}
			metrics.AlertDeliveriesTotal.WithLabelValues(name, "ok").Inc()
			return nil
		})
	}
	return g.Wait()
}
