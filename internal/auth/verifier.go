package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const issuerPrefix = "https://securetoken.google.com/"

// Identity is what a verified ID token tells us about the caller.
type Identity struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	Picture    string `json:"picture,omitempty"`
	AdminClaim bool   `json:"-"`
	Admin      bool   `json:"isAdmin"`
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

var ErrInvalidToken = errors.New("invalid id token")

// FirebaseVerifier checks Firebase ID tokens against Google's published keys.
type FirebaseVerifier struct {
	keys      jwk.Set
	projectID string
	clock     jwt.Clock
}

// NewFirebaseVerifier keeps the JWKS in a background-refreshed cache bound to ctx.
// Keys are fetched lazily on the first verification.
func NewFirebaseVerifier(ctx context.Context, jwksURL, projectID string) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("register jwks: %w", err)
	}
	return NewKeySetVerifier(jwk.NewCachedSet(cache, jwksURL), projectID), nil
}

func NewKeySetVerifier(keys jwk.Set, projectID string) *FirebaseVerifier {
	return &FirebaseVerifier{keys: keys, projectID: projectID, clock: jwt.ClockFunc(time.Now)}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	t, err := jwt.ParseString(token,
		jwt.WithContext(ctx),
		jwt.WithKeySet(v.keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithClock(v.clock),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if t.Subject() == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := t.PrivateClaims()
	id := Identity{
		UID:        t.Subject(),
		Email:      strings.ToLower(str(claims["email"])),
		Name:       str(claims["name"]),
		Picture:    str(claims["picture"]),
		AdminClaim: boolVal(claims["admin"]),
	}
	return id, nil
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func boolVal(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return s == "true"
	}
	return false
}
