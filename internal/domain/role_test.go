package domain_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/ErlanBelekov/marketplace/internal/domain"
)

func TestParseRole(t *testing.T) {
	for in, want := range map[string]domain.Role{
		"buyer":   domain.RoleBuyer,
		" Seller": domain.RoleSeller,
		"ADMIN":   domain.RoleAdmin,
	} {
		got, err := domain.ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := domain.ParseRole("moderator"); !errors.Is(err, domain.ErrInvalidRole) {
		t.Errorf("want ErrInvalidRole, got %v", err)
	}
}

func TestRoleSet_AddIsIdempotentAndOrdered(t *testing.T) {
	s := domain.NewRoleSet(domain.RoleSeller)
	s = s.Add(domain.RoleBuyer).Add(domain.RoleSeller)

	if got, want := s.Strings(), []string{"buyer", "seller"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
	if s.Has(domain.RoleAdmin) {
		t.Error("set must not contain admin")
	}
	if s.Has(domain.Role("ghost")) {
		t.Error("unknown role must never be a member")
	}
}

func TestRoleSet_JSON(t *testing.T) {
	s := domain.NewRoleSet(domain.RoleAdmin, domain.RoleBuyer)

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `["buyer","admin"]` {
		t.Errorf("json = %s", b)
	}

	var back domain.RoleSet
	if err := json.Unmarshal([]byte(`["seller","buyer"]`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != domain.NewRoleSet(domain.RoleBuyer, domain.RoleSeller) {
		t.Errorf("unmarshal = %v", back)
	}

	if err := json.Unmarshal([]byte(`["root"]`), &back); !errors.Is(err, domain.ErrInvalidRole) {
		t.Errorf("want ErrInvalidRole, got %v", err)
	}
}

func TestRole_SelfService(t *testing.T) {
	if !domain.RoleBuyer.SelfService() || !domain.RoleSeller.SelfService() {
		t.Error("buyer and seller are self-service")
	}
	if domain.RoleAdmin.SelfService() {
		t.Error("admin must not be self-service")
	}
}

func TestUser_HasInvalidated(t *testing.T) {
	u := &domain.User{InvalidatedTokens: []domain.RevokedToken{{Token: "a"}, {Token: "b"}}}
	if !u.HasInvalidated("b") {
		t.Error("b is invalidated")
	}
	if u.HasInvalidated("c") {
		t.Error("c is not invalidated")
	}
}
