package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sandgraal/retro-games-sub003/internal/globaltime"
)

type Role string

const (
	RoleAnonymous   Role = "anonymous"
	RoleContributor Role = "contributor"
	RoleModerator   Role = "moderator"
	RoleAdmin       Role = "admin"
)

var errNoSecret = errors.New("token verification is not configured")

// Principal is the caller identity resolved for one request.
type Principal struct {
	Role      Role   `json:"role"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sessionId"`
}

func (p Principal) CanModerate() bool {
	return p.Role == RoleModerator || p.Role == RoleAdmin
}

// Anonymous returns an anonymous principal with a fresh session id.
func Anonymous() Principal {
	return Principal{Role: RoleAnonymous, SessionID: uuid.NewString()}
}

type Claims struct {
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Resolver verifies HS256 bearer tokens. Any token it cannot verify resolves
// to an anonymous principal.
type Resolver struct {
	secret []byte
	issuer string
}

func NewResolver(secret, issuer string) *Resolver {
	return &Resolver{
		secret: []byte(strings.TrimSpace(secret)),
		issuer: strings.TrimSpace(issuer),
	}
}

// Resolve never fails: missing, malformed, expired or forged credentials all
// yield Anonymous().
func (r *Resolver) Resolve(req *http.Request) Principal {
	if req == nil {
		return Anonymous()
	}
	raw, ok := bearerToken(req.Header.Get("Authorization"))
	if !ok {
		return Anonymous()
	}
	claims, err := r.Parse(raw)
	if err != nil {
		return Anonymous()
	}

	role := RoleContributor
	if claimed := strings.ToLower(strings.TrimSpace(claims.Role)); claimed != "" {
		role = Role(claimed)
	}
	switch role {
	case RoleContributor, RoleModerator, RoleAdmin:
	default:
		return Anonymous()
	}

	sessionID := strings.TrimSpace(claims.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(claims.Subject)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return Principal{
		Role:      role,
		Email:     strings.TrimSpace(claims.Email),
		SessionID: sessionID,
	}
}

func (r *Resolver) Parse(tokenString string) (*Claims, error) {
	if len(r.secret) == 0 {
		return nil, errNoSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(globaltime.Now),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Issue signs a token for p valid for ttl.
func (r *Resolver) Issue(p Principal, ttl time.Duration) (string, time.Time, error) {
	if len(r.secret) == 0 {
		return "", time.Time{}, errNoSecret
	}
	now := globaltime.Now()
	exp := now.Add(ttl)

	claims := Claims{
		Role:      string(p.Role),
		Email:     p.Email,
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.issuer,
			Subject:   p.SessionID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(header[len("bearer "):])
	return raw, raw != ""
}
