// Package roles is the static role → capability table.
// Immutable after construction; safe for concurrent use without locking.
package roles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/role"
)

// Catalog answers capability questions for canonical roles.
type Catalog struct {
	sets map[role.Role]role.Set
}

// DefaultGrants lists what each role adds on top of the roles ranked below it.
func DefaultGrants() map[role.Role][]role.Capability {
	return map[role.Role][]role.Capability{
		role.Viewer: {role.ViewDashboard, role.ViewUsage, role.ViewModels},
		role.Member: {role.InvokeModels, role.ViewAPIKeys, role.CreateAPIKeys},
		role.Admin:  {role.ViewAdvancedRouting, role.ManageAPIKeys, role.ManageMembers, role.EditSettings},
		role.Owner:  {role.EditBilling, role.ManageSubscription, role.DeleteOrganization, role.TransferOwnership},
	}
}

// Default returns the catalog built from DefaultGrants.
func Default() *Catalog {
	c, err := New(DefaultGrants())
	if err != nil {
		panic(err) // static table
	}
	return c
}

// New builds a catalog from per-role grants. Each role inherits every capability
// of the roles ranked below it, so the strict hierarchy holds by construction.
func New(grants map[role.Role][]role.Capability) (*Catalog, error) {
	for r, tags := range grants {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownRole, uint8(r))
		}
		for _, t := range tags {
			if strings.TrimSpace(string(t)) == "" {
				return nil, fmt.Errorf("role %s: empty capability tag", r)
			}
		}
	}

	sets := make(map[role.Role]role.Set, len(role.All))
	acc := role.NewSet()
	for _, r := range role.All { // ascending rank
		for _, t := range grants[r] {
			acc[t] = struct{}{}
		}
		sets[r] = acc.Clone()
	}
	return &Catalog{sets: sets}, nil
}

// CapabilitiesFor returns a copy of the role's capability set.
func (c *Catalog) CapabilitiesFor(r role.Role) (role.Set, error) {
	s, ok := c.sets[r]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRole, r)
	}
	return s.Clone(), nil
}

// HasCapability reports whether r holds tag. Unknown roles hold nothing.
func (c *Catalog) HasCapability(r role.Role, tag role.Capability) bool {
	return c.sets[r].Has(tag)
}

// HasCapabilityString parses raw first. On ErrUnknownRole the answer is false.
func (c *Catalog) HasCapabilityString(raw string, tag role.Capability) (bool, error) {
	r, err := role.Parse(raw)
	if err != nil {
		return false, err
	}
	return c.HasCapability(r, tag), nil
}

// Entry is one row of the catalog listing.
type Entry struct {
	Role         role.Role
	Capabilities []role.Capability
}

// Entries lists roles in ascending rank with sorted capabilities.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(role.All))
	for _, r := range role.All {
		caps := make([]role.Capability, 0, len(c.sets[r]))
		for t := range c.sets[r] {
			caps = append(caps, t)
		}
		sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
		out = append(out, Entry{Role: r, Capabilities: caps})
	}
	return out
}
