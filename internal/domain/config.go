package domain

import "time"

// DefaultKeyPrefix namespaces every key planguard writes to Redis/Valkey.
const DefaultKeyPrefix = "planguard:"

// PolicyConfig holds engine-wide defaults, not exposed to clients.
type PolicyConfig struct {
	DefaultThresholdPct float64
	LedgerTimeout       time.Duration
	ArchiveTTL          time.Duration
}

// DefaultPolicyConfig returns defaults tuned for the admin console's usage screen.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		DefaultThresholdPct: 80,
		LedgerTimeout:       2 * time.Second,
		ArchiveTTL:          400 * 24 * time.Hour,
	}
}
