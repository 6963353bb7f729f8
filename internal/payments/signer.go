package payments

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const callbackIssuer = "cake-api/mpesa-callback"

// CallbackSigner mints the token embedded in each STK CallBackURL, so only the
// gateway we handed the URL to can resolve that order.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCallbackSigner(secret []byte, ttl time.Duration) (*CallbackSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("callback signing secret must be at least 16 bytes")
	}
	return &CallbackSigner{secret: secret, ttl: ttl, now: time.Now}, nil
}

// EphemeralSigner is for deployments without a configured secret. Tokens die with the process.
func EphemeralSigner(ttl time.Duration) (*CallbackSigner, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return NewCallbackSigner(secret, ttl)
}

func (s *CallbackSigner) Sign(orderNumber string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    callbackIssuer,
		Subject:   orderNumber,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the order number the token was minted for.
func (s *CallbackSigner) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(callbackIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("callback token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("callback token: missing subject")
	}
	return claims.Subject, nil
}
