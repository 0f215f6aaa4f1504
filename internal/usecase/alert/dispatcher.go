// Package alert delivers threshold alerts to notification sinks off the
// request path.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domalert "github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/metrics"
)

// DispatcherConfig sizes the dispatcher.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
}

// Dispatcher queues alerts and delivers them from a fixed worker pool.
// Publish never blocks: when the queue is full the alert is dropped.
type Dispatcher struct {
	sink    Sink
	queue   chan domalert.Alert
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers.
func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan domalert.Alert, cfg.QueueSize),
		timeout: cfg.SendTimeout,
		logger:  logger,
	}
	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.work()
	}
	return d
}

// Publish enqueues a for delivery.
func (d *Dispatcher) Publish(a domalert.Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(a, "dispatcher closed")
		return
	}
	select {
	case d.queue <- a:
	default:
		d.drop(a, "queue full")
	}
}

func (d *Dispatcher) drop(a domalert.Alert, why string) {
	metrics.AlertsDroppedTotal.Inc()
	d.logger.Warn("Alert dropped",
		zap.String("alert_id", a.ID),
		zap.String("account_id", a.AccountID),
		zap.String("reason", why),
	)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	name := sinkName(d.sink)
	for a := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sink.Send(ctx, a)
		cancel()
		if err != nil {
			metrics.AlertDeliveriesTotal.WithLabelValues(name, "error").Inc()
			d.logger.Error("Alert delivery failed",
				zap.String("sink", name),
				zap.String("alert_id", a.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.AlertDeliveriesTotal.WithLabelValues(name, "ok").Inc()
	}
}

// Close stops accepting alerts and waits for queued ones to be delivered,
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain alert queue: %w", ctx.Err())
	}
}
