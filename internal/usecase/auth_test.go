package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/memory"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/ErlanBelekov/marketplace/internal/session"
	"github.com/ErlanBelekov/marketplace/internal/token"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

// ---- fakes ----

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeEmailSender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return s.err
}

// failingUsers wraps a real repository and lets a test replace single methods.
type failingUsers struct {
	repository.UserRepository
	findByEmail func(ctx context.Context, email string) (*domain.User, error)
	appendToken func(ctx context.Context, userID string, tok domain.RevokedToken) error
}

func (f *failingUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if f.findByEmail != nil {
		return f.findByEmail(ctx, email)
	}
	return f.UserRepository.FindByEmail(ctx, email)
}

func (f *failingUsers) AppendInvalidatedToken(ctx context.Context, userID string, tok domain.RevokedToken) error {
	if f.appendToken != nil {
		return f.appendToken(ctx, userID, tok)
	}
	return f.UserRepository.AppendInvalidatedToken(ctx, userID, tok)
}

// ---- helpers ----

const testJWTKey = "usecase-test-secret-at-least-32-chars!"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type authFixture struct {
	users  repository.UserRepository
	tokens *token.Service
	mail   *fakeEmailSender
	auth   *usecase.AuthUsecase
	guard  *session.Guard
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	return newAuthFixtureWith(t, memory.NewStore().Users())
}

func newAuthFixtureWith(t *testing.T, users repository.UserRepository) *authFixture {
	t.Helper()
	tokens := token.NewService([]byte(testJWTKey), time.Hour)
	mail := &fakeEmailSender{}
	return &authFixture{
		users:  users,
		tokens: tokens,
		mail:   mail,
		auth:   usecase.NewAuthUsecase(users, tokens, mail, bcrypt.MinCost, discard),
		guard:  session.NewGuard(tokens, users),
	}
}

func (f *authFixture) register(t *testing.T, email string, roles ...string) *usecase.Session {
	t.Helper()
	s, err := f.auth.Register(context.Background(), usecase.RegisterInput{
		Name: "Test", Email: email, Password: "secret1", Roles: roles,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return s
}

func (f *authFixture) authenticate(raw string) (*domain.Identity, error) {
	return f.guard.Authenticate(context.Background(), "Bearer "+raw)
}

// ---- Register ----

func TestRegister_DefaultsToBuyerAndHashesPassword(t *testing.T) {
	f := newAuthFixture(t)

	s := f.register(t, "  New@Example.com ")
	if s.User.Email != "new@example.com" {
		t.Errorf("email = %q, want normalized", s.User.Email)
	}
	if s.User.Roles != domain.NewRoleSet(domain.RoleBuyer) {
		t.Errorf("roles = %v, want [buyer]", s.User.Roles)
	}
	if s.User.PasswordHash == "secret1" {
		t.Error("password stored in clear text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.User.PasswordHash), []byte("secret1")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0] != "new@example.com" {
		t.Errorf("welcome emails = %v", f.mail.sent)
	}
}

func TestRegister_RejectsAdminAndUnknownRoles(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, usecase.RegisterInput{Email: "a@x.com", Password: "secret1", Roles: []string{"buyer", "admin"}})
	if !errors.Is(err, domain.ErrRoleNotSelfService) {
		t.Errorf("admin: want ErrRoleNotSelfService, got %v", err)
	}

	_, err = f.auth.Register(ctx, usecase.RegisterInput{Email: "a@x.com", Password: "secret1", Roles: []string{"wizard"}})
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Errorf("unknown: want ErrInvalidRole, got %v", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Register(context.Background(), usecase.RegisterInput{Email: "a@x.com", Password: "12345"})
	if !errors.Is(err, domain.ErrWeakPassword) {
		t.Errorf("want ErrWeakPassword, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "dup@x.com")

	_, err := f.auth.Register(context.Background(), usecase.RegisterInput{Email: "DUP@x.com", Password: "secret1"})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Errorf("want ErrDuplicateEmail, got %v", err)
	}
}

func TestRegister_EmailFailureDoesNotFailRegistration(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.err = errors.New("smtp down")

	if _, err := f.auth.Register(context.Background(), usecase.RegisterInput{Email: "a@x.com", Password: "secret1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ---- Login ----

func TestRegisterThenLogin_TokenAuthenticates(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "u@x.com", "buyer")

	s, err := f.auth.Login(context.Background(), "u@x.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := f.authenticate(s.Token.Raw)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.ID != reg.User.ID || id.Roles != domain.NewRoleSet(domain.RoleBuyer) {
		t.Errorf("identity = %+v", id)
	}
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "u@x.com")
	ctx := context.Background()

	if _, err := f.auth.Login(ctx, "nobody@x.com", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.auth.Login(ctx, "u@x.com", "wrong-pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	users := &failingUsers{
		UserRepository: memory.NewStore().Users(),
		findByEmail: func(context.Context, string) (*domain.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	f := newAuthFixtureWith(t, users)

	_, err := f.auth.Login(context.Background(), "u@x.com", "secret1")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("want ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Error("store failure reported as invalid credentials")
	}
}

// ---- Logout ----

func TestLogout_TokenIsRevokedAndOtherTokensSurvive(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "u@x.com")
	other, err := f.auth.Login(context.Background(), "u@x.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := f.authenticate(reg.Token.Raw)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := f.auth.Logout(context.Background(), id, reg.Token.Raw); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := f.authenticate(reg.Token.Raw); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Errorf("logged-out token: want ErrTokenRevoked, got %v", err)
	}
	if _, err := f.authenticate(other.Token.Raw); err != nil {
		t.Errorf("other token: %v", err)
	}
}

func TestLogout_IsIdempotentAndStoresTokenExpiry(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "u@x.com")
	id, _ := f.authenticate(reg.Token.Raw)

	for range 2 {
		if err := f.auth.Logout(context.Background(), id, reg.Token.Raw); err != nil {
			t.Fatalf("logout: %v", err)
		}
	}

	u, err := f.users.FindByID(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(u.InvalidatedTokens) != 1 {
		t.Fatalf("invalidated tokens = %d, want 1", len(u.InvalidatedTokens))
	}
	if !u.InvalidatedTokens[0].ExpiresAt.Equal(reg.Token.ExpiresAt) {
		t.Errorf("expires_at = %v, want %v", u.InvalidatedTokens[0].ExpiresAt, reg.Token.ExpiresAt)
	}
}

func TestLogout_StoreFailure(t *testing.T) {
	users := &failingUsers{
		UserRepository: memory.NewStore().Users(),
		appendToken: func(context.Context, string, domain.RevokedToken) error {
			return errors.New("write conflict")
		},
	}
	f := newAuthFixtureWith(t, users)
	reg := f.register(t, "u@x.com")
	id, _ := f.authenticate(reg.Token.Raw)

	if err := f.auth.Logout(context.Background(), id, reg.Token.Raw); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("want ErrStoreUnavailable, got %v", err)
	}
}

// ---- AddRole ----

func TestAddRole_SellerThenConflict(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "u@x.com", "buyer")
	ctx := context.Background()

	id, _ := f.authenticate(reg.Token.Raw)
	roles, err := f.auth.AddRole(ctx, id, "seller")
	if err != nil {
		t.Fatalf("add role: %v", err)
	}
	if roles != domain.NewRoleSet(domain.RoleBuyer, domain.RoleSeller) {
		t.Errorf("roles = %v", roles)
	}

	// A fresh guard pass sees the new role set.
	id, _ = f.authenticate(reg.Token.Raw)
	if _, err := f.auth.AddRole(ctx, id, "seller"); !errors.Is(err, domain.ErrRoleConflict) {
		t.Errorf("want ErrRoleConflict, got %v", err)
	}
}

func TestAddRole_StaleIdentityStillConflicts(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "u@x.com")
	ctx := context.Background()
	stale, _ := f.authenticate(reg.Token.Raw)

	if _, err := f.auth.AddRole(ctx, stale, "seller"); err != nil {
		t.Fatalf("add role: %v", err)
	}
	if _, err := f.auth.AddRole(ctx, stale, "seller"); !errors.Is(err, domain.ErrRoleConflict) {
		t.Errorf("want ErrRoleConflict from the store, got %v", err)
	}
}

func TestAddRole_ConcurrentCallsKeepBothRoles(t *testing.T) {
	f := newAuthFixture(t)
	reg, err := f.auth.Register(context.Background(), usecase.RegisterInput{
		Email: "u@x.com", Password: "secret1", Roles: []string{"seller"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id, _ := f.authenticate(reg.Token.Raw)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.auth.AddRole(context.Background(), id, "buyer")
		}()
	}
	wg.Wait()

	u, _ := f.users.FindByID(context.Background(), reg.User.ID)
	if u.Roles != domain.NewRoleSet(domain.RoleBuyer, domain.RoleSeller) {
		t.Errorf("roles = %v", u.Roles)
	}
}

func TestAddRole_RejectsAdminAndUnknown(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "u@x.com")
	id, _ := f.authenticate(reg.Token.Raw)

	if _, err := f.auth.AddRole(context.Background(), id, "admin"); !errors.Is(err, domain.ErrRoleNotSelfService) {
		t.Errorf("admin: want ErrRoleNotSelfService, got %v", err)
	}
	if _, err := f.auth.AddRole(context.Background(), id, "moderator"); !errors.Is(err, domain.ErrInvalidRole) {
		t.Errorf("unknown: want ErrInvalidRole, got %v", err)
	}
}
