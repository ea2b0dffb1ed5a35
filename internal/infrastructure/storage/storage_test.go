package storage_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ErlanBelekov/marketplace/config"
	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/storage"
)

func TestOpen_Memory(t *testing.T) {
	st, err := storage.Open(context.Background(), &config.Config{StoreDriver: "memory"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if st.Shared() {
		t.Error("memory store reported as shared")
	}
	if len(st.Pingers) != 0 {
		t.Errorf("pingers = %v", st.Pingers)
	}

	u, err := st.Users.Create(context.Background(), &domain.User{Email: "a@x.com", Roles: domain.NewRoleSet(domain.RoleBuyer)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Listings.ListBySeller(context.Background(), u.ID); err != nil {
		t.Errorf("listings: %v", err)
	}
}
