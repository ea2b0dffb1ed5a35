// seed creates an admin, a seller and a handful of listings in the local dev
// database. Re-running it reuses existing accounts.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/objstore"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminEmail   = "admin@test.local"
	sellerEmail  = "seller@test.local"
	seedPassword = "password123"
)

var listings = []usecase.CreateListingInput{
	{Title: "iPhone 13, 128GB", Description: "Battery at 89%, no scratches", Price: 420, Category: "Mobiles", Location: "Bishkek", Condition: "Like New"},
	{Title: "Toyota Corolla 2012", Description: "Single owner, full service history", Price: 8900, Category: "Cars", Location: "Osh", Condition: "Good"},
	{Title: "Mountain bike, 27.5 inch", Description: "Hydraulic brakes, new tyres", Price: 350, Category: "Sports", Location: "Bishkek", Condition: "Good"},
	{Title: "ThinkPad X1 Carbon", Description: "i7, 16GB RAM, charger included", Price: 610, Category: "Electronics", Location: "Karakol", Condition: "Good"},
	{Title: "Oak dining table", Description: "Seats six", Price: 150, Category: "Furniture", Location: "Bishkek", Condition: "Fair"},
	{Title: "Winter jacket, size M", Description: "Worn one season", Price: 40, Category: "Fashion", Location: "Naryn", Condition: "Like New"},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	users := postgres.NewUserRepository(pool)
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	admin, err := upsertUser(ctx, users, adminEmail, "Admin", string(hash), "", domain.RoleAdmin)
	if err != nil {
		log.Fatalf("admin: %v", err)
	}
	seller, err := upsertUser(ctx, users, sellerEmail, "Sample Seller", string(hash), "+996 555 010 203", domain.RoleSeller, domain.RoleBuyer)
	if err != nil {
		log.Fatalf("seller: %v", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := usecase.NewListingUsecase(postgres.NewListingRepository(pool), users, objstore.NewMemory("http://localhost:8080/images"), quiet)
	id := seller.Identity(domain.TokenClaims{})

	existing, err := uc.Mine(ctx, id)
	if err != nil {
		log.Fatalf("list seller listings: %v", err)
	}

	var created int
	if len(existing) == 0 {
		for _, in := range listings {
			if _, err := uc.Create(ctx, id, in, nil); err != nil {
				log.Fatalf("create %q: %v", in.Title, err)
			}
			created++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Admin:     %s  (id %s)\n", admin.Email, admin.ID)
	fmt.Printf("  Seller:    %s  (id %s)\n", seller.Email, seller.ID)
	fmt.Printf("  Password:  %s\n", seedPassword)
	fmt.Printf("  Listings:  %d created, %d already present\n", created, len(existing))
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/api/auth/login \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", adminEmail, seedPassword)
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/api/products/admin/all -H \"Authorization: Bearer $JWT\"")
}

// upsertUser creates the account or, if the email exists, makes sure it holds roles.
func upsertUser(ctx context.Context, users repository.UserRepository, email, name, hash, phone string, roles ...domain.Role) (*domain.User, error) {
	u, err := users.Create(ctx, &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Phone:        phone,
		Roles:        domain.NewRoleSet(roles...),
	})
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		return nil, err
	}

	u, err = users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if _, err := users.AddRole(ctx, u.ID, r); err != nil && !errors.Is(err, domain.ErrRoleConflict) {
			return nil, err
		}
	}
	if phone != "" && u.Phone == "" {
		return users.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Phone: phone})
	}
	return users.FindByID(ctx, u.ID)
}
