package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// allRoles fixes the canonical order used when a RoleSet is listed.
var allRoles = [...]Role{RoleBuyer, RoleSeller, RoleAdmin}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// SelfService reports whether a user may grant themselves the role.
func (r Role) SelfService() bool {
	return r == RoleBuyer || r == RoleSeller
}

func (r Role) bit() RoleSet {
	switch r {
	case RoleBuyer:
		return 1 << 0
	case RoleSeller:
		return 1 << 1
	case RoleAdmin:
		return 1 << 2
	default:
		return 0
	}
}

// RoleSet is a set of roles. The zero value is the empty set.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.Add(r)
	}
	return s
}

// ParseRoleSet parses role names, rejecting unknown ones.
func ParseRoleSet(names []string) (RoleSet, error) {
	var s RoleSet
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return 0, err
		}
		s = s.Add(r)
	}
	return s, nil
}

func (s RoleSet) Has(r Role) bool {
	b := r.bit()
	return b != 0 && s&b != 0
}

func (s RoleSet) Add(r Role) RoleSet {
	return s | r.bit()
}

func (s RoleSet) Intersects(other RoleSet) bool {
	return s&other != 0
}

func (s RoleSet) IsEmpty() bool {
	return s == 0
}

func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(allRoles))
	for _, r := range allRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) Strings() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (s RoleSet) String() string {
	return strings.Join(s.Strings(), ",")
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseRoleSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
