package token_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

const testKey = "token-test-secret-at-least-32-chars!"

// fakeClock is a settable clock shared by issuer and verifier.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newService(clock *fakeClock) *token.Service {
	return token.NewService([]byte(testKey), token.DefaultTTL, token.WithClock(clock.now))
}

func TestIssueThenVerify_ReturnsSameUser(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	issued, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := svc.Verify(issued.Raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("user id = %q, want user-1", got.UserID)
	}
	if got.TokenID != issued.TokenID {
		t.Errorf("token id = %q, want %q", got.TokenID, issued.TokenID)
	}
	if want := clock.t.Add(7 * 24 * time.Hour); !got.ExpiresAt.Equal(want) {
		t.Errorf("expires at = %v, want %v", got.ExpiresAt, want)
	}
}

func TestIssue_SameSecond_DistinctTokens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	a, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a.Raw == b.Raw {
		t.Error("two tokens issued in the same second must differ")
	}
}

func TestVerify_AtAndAfterExpiry_ReturnsExpired(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	svc := newService(clock)

	issued, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = issued.ExpiresAt.Add(-time.Second)
	if _, err := svc.Verify(issued.Raw); err != nil {
		t.Fatalf("one second before expiry: %v", err)
	}

	for _, offset := range []time.Duration{0, time.Second, time.Hour, 30 * 24 * time.Hour} {
		clock.t = issued.ExpiresAt.Add(offset)
		_, err := svc.Verify(issued.Raw)
		if !errors.Is(err, domain.ErrTokenExpired) {
			t.Errorf("at exp+%s: want ErrTokenExpired, got %v", offset, err)
		}
	}
}

func TestVerify_Garbage_ReturnsMalformed(t *testing.T) {
	svc := newService(&fakeClock{t: time.Now()})

	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		if _, err := svc.Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
			t.Errorf("Verify(%q): want ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestVerify_TamperedSignature_ReturnsMalformed(t *testing.T) {
	svc := newService(&fakeClock{t: time.Now()})
	issued, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(issued.Raw, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Verify(tampered); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("want ErrTokenMalformed, got %v", err)
	}
}

func TestVerify_WrongKey_ReturnsMalformed(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	other := token.NewService([]byte("another-secret-that-is-32-chars!!"), time.Hour, token.WithClock(clock.now))
	issued, err := other.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := newService(clock).Verify(issued.Raw); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("want ErrTokenMalformed, got %v", err)
	}
}

func TestVerify_NoneAlgorithm_ReturnsMalformed(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := newService(&fakeClock{t: time.Now()}).Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("want ErrTokenMalformed, got %v", err)
	}
}

func TestVerify_MissingExpiry_ReturnsMalformed(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := newService(&fakeClock{t: time.Now()}).Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("want ErrTokenMalformed, got %v", err)
	}
}

func TestVerify_MissingSubject_ReturnsMalformed(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := newService(&fakeClock{t: time.Now()}).Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("want ErrTokenMalformed, got %v", err)
	}
}
