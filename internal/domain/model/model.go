// Package model describes LLM models offered through the console.
package model

import (
	"fmt"
	"strings"
)

// Tier is the minimum plan class a model requires.
type Tier string

// Tier constants.
const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// ParseTier parses a tier case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFree:
		return TierFree, nil
	case TierPaid:
		return TierPaid, nil
	default:
		return "", fmt.Errorf("unknown model tier %q", s)
	}
}

// Model is a catalog entry.
type Model struct {
	id          string
	displayName string
	provider    string
	tier        Tier
}

// New creates a Model. An empty display name falls back to the id.
func New(id, displayName, provider string, tier Tier) Model {
	if displayName == "" {
		displayName = id
	}
	return Model{id: id, displayName: displayName, provider: provider, tier: tier}
}

// ID returns the model identifier.
func (m Model) ID() string { return m.id }

// DisplayName returns the human-readable name.
func (m Model) DisplayName() string { return m.displayName }

// Provider returns the provider name.
func (m Model) Provider() string { return m.provider }

// Tier returns the plan class required.
func (m Model) Tier() Tier { return m.tier }

// IsFree reports whether every plan may use the model.
func (m Model) IsFree() bool { return m.tier == TierFree }
