package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret-value"

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func assertAnonymous(t *testing.T, p Principal) {
	t.Helper()
	if p.Role != RoleAnonymous {
		t.Fatalf("expected anonymous principal, got %+v", p)
	}
	if _, err := uuid.Parse(p.SessionID); err != nil {
		t.Fatalf("expected fresh uuid session id, got %q", p.SessionID)
	}
	if p.Email != "" {
		t.Fatalf("anonymous principal must not carry an email, got %q", p.Email)
	}
}

func TestResolveWithoutCredentials(t *testing.T) {
	t.Parallel()

	r := NewResolver(testSecret, "")
	a := r.Resolve(requestWithToken(""))
	b := r.Resolve(requestWithToken(""))
	assertAnonymous(t, a)
	assertAnonymous(t, b)
	if a.SessionID == b.SessionID {
		t.Fatalf("expected a new session id per anonymous request")
	}
	assertAnonymous(t, r.Resolve(nil))
}

func TestResolveValidToken(t *testing.T) {
	t.Parallel()

	r := NewResolver(testSecret, "catalog")
	token, exp, err := r.Issue(Principal{Role: RoleModerator, Email: "mod@example.com", SessionID: "sess-9"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("unexpected expiry: %v", exp)
	}

	p := r.Resolve(requestWithToken(token))
	if p.Role != RoleModerator || p.Email != "mod@example.com" || p.SessionID != "sess-9" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.CanModerate() {
		t.Fatalf("moderator must be able to moderate")
	}
}

func TestResolveDefaultsRoleToContributor(t *testing.T) {
	t.Parallel()

	r := NewResolver(testSecret, "")
	token, _, err := r.Issue(Principal{SessionID: "sess-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p := r.Resolve(requestWithToken(token))
	if p.Role != RoleContributor || p.CanModerate() {
		t.Fatalf("expected contributor without moderation rights, got %+v", p)
	}
}

func TestResolveFailsClosed(t *testing.T) {
	t.Parallel()

	r := NewResolver(testSecret, "catalog")
	now := time.Now()

	expired, _, err := r.Issue(Principal{Role: RoleAdmin, SessionID: "s"}, -time.Minute)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	forged, _, err := NewResolver("other-secret", "catalog").Issue(Principal{Role: RoleAdmin, SessionID: "s"}, time.Hour)
	if err != nil {
		t.Fatalf("issue forged: %v", err)
	}
	wrongIssuer, _, err := NewResolver(testSecret, "elsewhere").Issue(Principal{Role: RoleAdmin, SessionID: "s"}, time.Hour)
	if err != nil {
		t.Fatalf("issue wrong issuer: %v", err)
	}
	unknownRole, _, err := r.Issue(Principal{Role: Role("superuser"), SessionID: "s"}, time.Hour)
	if err != nil {
		t.Fatalf("issue unknown role: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "catalog",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "catalog"},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token without exp: %v", err)
	}

	cases := map[string]string{
		"expired":      expired,
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"unknown role": unknownRole,
		"alg none":     unsigned,
		"no expiry":    noExpiry,
		"garbage":      "not.a.jwt",
	}
	for name, token := range cases {
		p := r.Resolve(requestWithToken(token))
		if p.Role != RoleAnonymous {
			t.Fatalf("%s: expected anonymous, got %+v", name, p)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assertAnonymous(t, r.Resolve(req))
}

func TestResolverWithoutSecretRejectsEverything(t *testing.T) {
	t.Parallel()

	signed, _, err := NewResolver(testSecret, "").Issue(Principal{Role: RoleAdmin, SessionID: "s"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := NewResolver("", "")
	assertAnonymous(t, r.Resolve(requestWithToken(signed)))
	if _, _, err := r.Issue(Principal{Role: RoleAdmin}, time.Hour); err == nil {
		t.Fatalf("expected issue to fail without a secret")
	}
}
