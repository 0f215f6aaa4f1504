package planguard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory", "redis" or "valkey"
	addrs    []string
	password string

	catalogFile      string
	keyPrefix        string
	ledgerTimeout    time.Duration
	archiveTTL       time.Duration
	defaultThreshold float64

	sinks []AlertSink

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps usage in process memory (default). Counters are lost on
// exit and not shared between processes.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
		c.addrs = nil
		c.password = ""
	})
}

// WithRedis stores usage in Redis.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey stores usage in Valkey.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCatalogFile loads roles, plans and models from a YAML file.
// Sections left out of the file use the built-in tables.
func WithCatalogFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.catalogFile = path
	})
}

// WithAlertSink adds a receiver for threshold and quota-exceeded alerts.
// Alerts are delivered asynchronously; may be given more than once.
func WithAlertSink(s AlertSink) Option {
	return optionFunc(func(c *clientConfig) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithRegisterer registers client metrics (operation counts and durations)
// on reg. Pass nil to disable (default).
func WithRegisterer(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// WithLedgerTimeout bounds every ledger call. Default: 2s.
func WithLedgerTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.ledgerTimeout = d
	})
}

// WithDefaultThreshold sets the alert threshold used when MeterUsage gets 0.
// Default: 80.
func WithDefaultThreshold(pct float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultThreshold = pct
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys. Default: "planguard:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}
