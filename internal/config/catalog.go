package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/planguard/internal/domain/model"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/role"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// CatalogConfig holds the role, plan and model tables. Empty sections fall
// back to the built-in tables.
type CatalogConfig struct {
	// Roles maps a role to the capabilities it adds on top of lower roles.
	Roles  map[string][]string `yaml:"roles"`
	Plans  []PlanConfig        `yaml:"plans"`
	Models []ModelConfig       `yaml:"models"`
	Sync   SyncConfig          `yaml:"sync"`
}

// PlanConfig describes one plan.
type PlanConfig struct {
	ID           string   `yaml:"id"`
	DisplayName  string   `yaml:"display_name"`
	PriceCents   int64    `yaml:"price_cents"`
	AllModels    bool     `yaml:"all_models"`
	Models       []string `yaml:"models"`
	RequestQuota *int64   `yaml:"request_quota"`
	TokenQuota   *int64   `yaml:"token_quota"`
	// CostQuota is in billing currency units.
	CostQuota *float64 `yaml:"cost_quota"`
	Features  []string `yaml:"features"`
}

// ModelConfig describes one catalog model.
type ModelConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Provider    string `yaml:"provider"`
	Tier        string `yaml:"tier"`
}

// SyncConfig configures model catalog sync from an OpenAI-compatible API.
type SyncConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	IntervalSec int      `yaml:"interval_sec"`
	FreeModels  []string `yaml:"free_models"`
}

// LoadCatalogFile reads a standalone catalog YAML (the body of the catalog section).
func LoadCatalogFile(path string) (CatalogConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return CatalogConfig{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var c CatalogConfig
	if err := yaml.Unmarshal(expandEnvVars(data), &c); err != nil {
		return CatalogConfig{}, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return CatalogConfig{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// Validate checks that every entry converts to a domain value.
func (c *CatalogConfig) Validate() error {
	if _, err := c.RoleGrants(); err != nil {
		return err
	}
	if _, err := c.PlanDefinitions(); err != nil {
		return err
	}
	if _, err := c.ModelList(); err != nil {
		return err
	}
	return nil
}

// RoleGrants converts the roles section. nil means use defaults.
func (c *CatalogConfig) RoleGrants() (map[role.Role][]role.Capability, error) {
	if len(c.Roles) == 0 {
		return nil, nil
	}
	out := make(map[role.Role][]role.Capability, len(c.Roles))
	for name, caps := range c.Roles {
		r, err := role.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("catalog.roles: %w", err)
		}
		tags := make([]role.Capability, len(caps))
		for i, s := range caps {
			tags[i] = role.Capability(s)
		}
		out[r] = tags
	}
	return out, nil
}

// PlanDefinitions converts the plans section. nil means use defaults.
func (c *CatalogConfig) PlanDefinitions() ([]plan.Definition, error) {
	if len(c.Plans) == 0 {
		return nil, nil
	}
	out := make([]plan.Definition, 0, len(c.Plans))
	for i, pc := range c.Plans {
		p, err := plan.Parse(pc.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog.plans[%d]: %w", i, err)
		}
		access := plan.Allowlist(pc.Models...)
		if pc.AllModels {
			access = plan.AllModels()
		}
		d := plan.Definition{
			Plan:         p,
			DisplayName:  pc.DisplayName,
			PriceCents:   pc.PriceCents,
			ModelAccess:  access,
			RequestQuota: pc.RequestQuota,
			TokenQuota:   pc.TokenQuota,
			Features:     pc.Features,
		}
		if pc.CostQuota != nil {
			v := *pc.CostQuota
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("catalog.plans[%d]: cost_quota must be finite", i)
			}
			d.CostQuota = plan.Limit(int64(math.Round(v * usage.MicrosPerUnit)))
		}
		if d.DisplayName == "" {
			d.DisplayName = p.String()
		}
		out = append(out, d)
	}
	return out, nil
}

// ModelList converts the models section. nil means use defaults.
func (c *CatalogConfig) ModelList() ([]model.Model, error) {
	if len(c.Models) == 0 {
		return nil, nil
	}
	out := make([]model.Model, 0, len(c.Models))
	for i, mc := range c.Models {
		if mc.ID == "" {
			return nil, fmt.Errorf("catalog.models[%d]: id is required", i)
		}
		tier, err := model.ParseTier(mc.Tier)
		if err != nil {
			return nil, fmt.Errorf("catalog.models[%d]: %w", i, err)
		}
		out = append(out, model.New(mc.ID, mc.DisplayName, mc.Provider, tier))
	}
	return out, nil
}
