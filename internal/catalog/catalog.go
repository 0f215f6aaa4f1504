// Package catalog assembles the role, plan and model catalogs from configuration.
package catalog

import (
	"fmt"

	"github.com/kailas-cloud/planguard/internal/catalog/models"
	"github.com/kailas-cloud/planguard/internal/catalog/plans"
	"github.com/kailas-cloud/planguard/internal/catalog/roles"
	"github.com/kailas-cloud/planguard/internal/config"
)

// Bundle holds the three catalogs the policy engine reads.
type Bundle struct {
	Roles  *roles.Catalog
	Plans  *plans.Catalog
	Models *models.Catalog
}

// Build creates catalogs from cfg, using built-in tables for empty sections.
func Build(cfg config.CatalogConfig) (*Bundle, error) {
	grants, err := cfg.RoleGrants()
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = roles.DefaultGrants()
	}
	rc, err := roles.New(grants)
	if err != nil {
		return nil, fmt.Errorf("role catalog: %w", err)
	}

	defs, err := cfg.PlanDefinitions()
	if err != nil {
		return nil, err
	}
	if defs == nil {
		defs = plans.DefaultDefinitions()
	}
	pc, err := plans.New(defs)
	if err != nil {
		return nil, fmt.Errorf("plan catalog: %w", err)
	}

	ms, err := cfg.ModelList()
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = models.DefaultModels()
	}
	mc, err := models.New(ms)
	if err != nil {
		return nil, fmt.Errorf("model catalog: %w", err)
	}

	return &Bundle{Roles: rc, Plans: pc, Models: mc}, nil
}

// Defaults returns the built-in catalogs.
func Defaults() *Bundle {
	return &Bundle{Roles: roles.Default(), Plans: plans.Default(), Models: mustModels()}
}

func mustModels() *models.Catalog {
	mc, err := models.New(models.DefaultModels())
	if err != nil {
		panic(err) // static table
	}
	return mc
}
