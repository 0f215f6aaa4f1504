// Package role defines organization roles and the capability tags they gate.
package role

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/planguard/internal/domain"
)

// Role is a canonical organization role. The zero value is invalid.
type Role uint8

// Roles, declared in ascending rank.
const (
	Viewer Role = iota + 1
	Member
	Admin
	Owner
)

// All lists every role in ascending rank.
var All = []Role{Viewer, Member, Admin, Owner}

var names = map[Role]string{
	Viewer: "VIEWER",
	Member: "MEMBER",
	Admin:  "ADMIN",
	Owner:  "OWNER",
}

// Parse normalizes s (trim + uppercase) into a Role.
// Raw role strings must not be compared anywhere past this call.
func Parse(s string) (Role, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	for r, name := range names {
		if name == norm {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownRole, s)
}

// Valid reports whether r is one of the four roles.
func (r Role) Valid() bool {
	_, ok := names[r]
	return ok
}

// Rank orders roles; OWNER is highest.
func (r Role) Rank() int { return int(r) }

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool { return r >= other }

func (r Role) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// MarshalText renders the canonical upper-case name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses case-insensitively.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Capability is an opaque tag naming a UI/API action gated by role.
type Capability string

// Capabilities shipped with the default catalog.
const (
	ViewDashboard       Capability = "view-dashboard"
	ViewUsage           Capability = "view-usage"
	ViewModels          Capability = "view-models"
	InvokeModels        Capability = "invoke-models"
	ViewAPIKeys         Capability = "view-api-keys"
	CreateAPIKeys       Capability = "create-api-keys"
	ViewAdvancedRouting Capability = "view-advanced-routing"
	ManageAPIKeys       Capability = "manage-api-keys"
	ManageMembers       Capability = "manage-members"
	EditSettings        Capability = "edit-settings"
	EditBilling         Capability = "edit-billing"
	ManageSubscription  Capability = "manage-subscription"
	DeleteOrganization  Capability = "delete-organization"
	TransferOwnership   Capability = "transfer-ownership"
)

// Set is an immutable-by-convention capability set.
type Set map[Capability]struct{}

// NewSet builds a set from tags.
func NewSet(tags ...Capability) Set {
	s := make(Set, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(tag Capability) bool {
	_, ok := s[tag]
	return ok
}

// SupersetOf reports whether every tag of other is in s.
func (s Set) SupersetOf(other Set) bool {
	for t := range other {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}
