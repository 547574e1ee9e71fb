package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryThreshold is how close to expiry a JWT must be before it is due for refresh
const ExpiryThreshold = 5 * time.Minute

// Kind identifies the shape of a bearer credential
type Kind int

const (
	KindOpaque Kind = iota
	KindJWT
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindJWT:
		return "jwt"
	case KindMalformed:
		return "malformed"
	default:
		return "opaque"
	}
}

// Claims are the JWT claims the client reads. The signature is never verified
// client side; the backend remains the authority on validity.
type Claims struct {
	UserID string `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Token is a parsed bearer credential. Its kind is decided once by Parse.
type Token struct {
	raw    string
	kind   Kind
	claims *Claims
}

// Parse classifies a raw credential. Dotted strings are decoded as JWTs and
// become KindMalformed when decoding fails; anything else is an opaque legacy token.
func Parse(raw string) Token {
	if !strings.Contains(raw, ".") {
		return Token{raw: raw, kind: KindOpaque}
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Token{raw: raw, kind: KindMalformed}
	}

	return Token{raw: raw, kind: KindJWT, claims: claims}
}

// String returns the raw credential
func (t Token) String() string {
	return t.raw
}

func (t Token) Kind() Kind {
	return t.kind
}

// Claims returns the decoded claims, or nil for non-JWT tokens
func (t Token) Claims() *Claims {
	return t.claims
}

// ExpiresAt returns the exp claim of a JWT
func (t Token) ExpiresAt() (time.Time, bool) {
	if t.kind != KindJWT || t.claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return t.claims.ExpiresAt.Time, true
}

// ValidAt reports whether the token is usable at the given instant.
// A JWT without an exp claim is never valid.
func (t Token) ValidAt(now time.Time) bool {
	switch t.kind {
	case KindJWT:
		exp, ok := t.ExpiresAt()
		return ok && exp.After(now)
	case KindOpaque:
		return len(t.raw) > 0
	default:
		return false
	}
}

// ExpiringSoonAt reports whether a JWT expires within ExpiryThreshold of now.
// Opaque and malformed tokens never expire soon.
func (t Token) ExpiringSoonAt(now time.Time) bool {
	exp, ok := t.ExpiresAt()
	if !ok {
		return false
	}
	return exp.Sub(now) < ExpiryThreshold
}
