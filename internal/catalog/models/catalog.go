// Package models holds the model catalog supplied by the external catalog service.
// Readers see an immutable snapshot; refreshes swap it atomically.
package models

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/model"
)

// Catalog maps model ids to catalog entries.
type Catalog struct {
	snap atomic.Pointer[map[string]model.Model]
}

// DefaultModels is the catalog used when no models are configured.
func DefaultModels() []model.Model {
	return []model.Model{
		model.New("llama-3-8b", "Llama 3 8B", "meta", model.TierFree),
		model.New("mistral-7b", "Mistral 7B", "mistral", model.TierFree),
		model.New("gpt-4o-mini", "GPT-4o mini", "openai", model.TierPaid),
		model.New("gpt-4", "GPT-4", "openai", model.TierPaid),
		model.New("gpt-4o", "GPT-4o", "openai", model.TierPaid),
		model.New("o1-mini", "o1-mini", "openai", model.TierPaid),
		model.New("claude-3-haiku", "Claude 3 Haiku", "anthropic", model.TierPaid),
		model.New("claude-3-5-sonnet", "Claude 3.5 Sonnet", "anthropic", model.TierPaid),
		model.New("claude-3-opus", "Claude 3 Opus", "anthropic", model.TierPaid),
	}
}

// New creates a catalog holding ms.
func New(ms []model.Model) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(ms); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace swaps in a new snapshot. Duplicate or empty ids are rejected.
func (c *Catalog) Replace(ms []model.Model) error {
	m := make(map[string]model.Model, len(ms))
	for _, md := range ms {
		if md.ID() == "" {
			return fmt.Errorf("model with empty id")
		}
		if _, dup := m[md.ID()]; dup {
			return fmt.Errorf("model %q listed twice", md.ID())
		}
		m[md.ID()] = md
	}
	c.snap.Store(&m)
	return nil
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (model.Model, bool) {
	m, ok := (*c.snap.Load())[id]
	return m, ok
}

// Get is Lookup returning ErrUnknownModel for absent ids.
func (c *Catalog) Get(id string) (model.Model, error) {
	m, ok := c.Lookup(id)
	if !ok {
		return model.Model{}, fmt.Errorf("%w: %q", domain.ErrUnknownModel, id)
	}
	return m, nil
}

// All lists models sorted by id.
func (c *Catalog) All() []model.Model {
	snap := *c.snap.Load()
	out := make([]model.Model, 0, len(snap))
	for _, m := range snap {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of models.
func (c *Catalog) Len() int { return len(*c.snap.Load()) }
