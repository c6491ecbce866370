package pix

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTOwner_SignAndResolve(t *testing.T) {
	a, err := NewJWTOwner(testSecret)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tok, err := a.Sign("user-42", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	owner, err := a.Owner(tok)
	if err != nil || owner != "user-42" {
		t.Fatalf("expected user-42, got %q err=%v", owner, err)
	}
}

func TestJWTOwner_Rejects(t *testing.T) {
	a, _ := NewJWTOwner(testSecret)
	other, _ := NewJWTOwner("another-secret")

	noExpiry, _ := a.Sign("user-1", 0)
	wrongKey, _ := other.Sign("user-1", time.Minute)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(testSecret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte(testSecret))

	// ttl <= 0 emite sem expiração
	if _, err := a.Owner(noExpiry); err != nil {
		t.Fatalf("expected token without expiry to be accepted, got %v", err)
	}

	for name, tok := range map[string]string{
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"wrong alg":  wrongAlg,
		"garbage":    "not.a.jwt",
	} {
		if _, err := a.Owner(tok); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestJWTOwner_RejectsExpired(t *testing.T) {
	a, _ := NewJWTOwner(testSecret)
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if _, err := a.Owner(tok); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestNewJWTOwner_RequiresSecret(t *testing.T) {
	if _, err := NewJWTOwner("  "); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}

func TestRequireOwner_NilResolverFailsClosed(t *testing.T) {
	called := false
	h := RequireOwner(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	r := httptest.NewRequest(http.MethodGet, "/pix", nil)
	r.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without calling next, got %d called=%v", w.Code, called)
	}
}

func TestRequireOwner_PutsOwnerInContext(t *testing.T) {
	a, _ := NewJWTOwner(testSecret)
	tok, _ := a.Sign("user-7", time.Minute)

	var got string
	h := RequireOwner(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = OwnerFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/pix", nil)
	r.Header.Set("Authorization", "bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "user-7" {
		t.Fatalf("expected owner user-7, got %q", got)
	}
}
