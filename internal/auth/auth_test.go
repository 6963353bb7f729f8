package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const project = "cake-shop-test"

type keypair struct {
	priv jwk.Key
	set  jwk.Set
}

func newKeypair(t *testing.T, kid string) keypair {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, kid))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(priv)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return keypair{priv: priv, set: set}
}

func (k keypair) token(t *testing.T, mutate func(jwt.Token)) string {
	t.Helper()
	tok := jwt.New()
	now := time.Now()
	require.NoError(t, tok.Set(jwt.IssuerKey, issuerPrefix+project))
	require.NoError(t, tok.Set(jwt.AudienceKey, project))
	require.NoError(t, tok.Set(jwt.SubjectKey, "uid-1"))
	require.NoError(t, tok.Set(jwt.IssuedAtKey, now))
	require.NoError(t, tok.Set(jwt.ExpirationKey, now.Add(time.Hour)))
	require.NoError(t, tok.Set("email", "Baker@Cakes.co.ke"))
	if mutate != nil {
		mutate(tok)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, k.priv))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	kp := newKeypair(t, "k1")
	v := NewKeySetVerifier(kp.set, project)

	id, err := v.Verify(context.Background(), kp.token(t, func(tok jwt.Token) {
		_ = tok.Set("admin", true)
		_ = tok.Set("name", "Baker")
	}))
	require.NoError(t, err)
	assert.Equal(t, "uid-1", id.UID)
	assert.Equal(t, "baker@cakes.co.ke", id.Email)
	assert.Equal(t, "Baker", id.Name)
	assert.True(t, id.AdminClaim)
}

func TestVerifierRejects(t *testing.T) {
	kp := newKeypair(t, "k1")
	other := newKeypair(t, "k1")
	v := NewKeySetVerifier(kp.set, project)

	cases := map[string]string{
		"garbage":      "not.a.jwt",
		"wrong key":    other.token(t, nil),
		"wrong aud":    kp.token(t, func(tok jwt.Token) { _ = tok.Set(jwt.AudienceKey, "someone-else") }),
		"wrong issuer": kp.token(t, func(tok jwt.Token) { _ = tok.Set(jwt.IssuerKey, "https://evil.example") }),
		"expired":      kp.token(t, func(tok jwt.Token) { _ = tok.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour)) }),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func gated(t *testing.T, admins []string) (http.Handler, http.Handler, keypair) {
	t.Helper()
	kp := newKeypair(t, "k1")
	g := NewGate(NewKeySetVerifier(kp.set, project), admins, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := FromContext(r.Context())
		require.True(t, found)
		w.Header().Set("X-UID", id.UID)
		w.WriteHeader(http.StatusNoContent)
	})
	return g.Authenticate(ok), g.RequireAdmin(ok), kp
}

func call(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/cakes/black-forest", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateStatusCodes(t *testing.T) {
	authn, admin, kp := gated(t, []string{" BAKER@cakes.co.ke "})

	assert.Equal(t, http.StatusUnauthorized, call(admin, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(admin, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call(admin, "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, call(admin, "Bearer junk").Code)

	allowListed := kp.token(t, nil)
	rec := call(admin, "Bearer "+allowListed)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "uid-1", rec.Header().Get("X-UID"))

	customer := kp.token(t, func(tok jwt.Token) { _ = tok.Set("email", "customer@example.com") })
	assert.Equal(t, http.StatusForbidden, call(admin, "Bearer "+customer).Code)
	assert.Equal(t, http.StatusNoContent, call(authn, "Bearer "+customer).Code)

	claimAdmin := kp.token(t, func(tok jwt.Token) {
		_ = tok.Set("email", "owner@example.com")
		_ = tok.Set("admin", true)
	})
	assert.Equal(t, http.StatusNoContent, call(admin, "bearer "+claimAdmin).Code)
}

type roleMap map[string]bool

func (m roleMap) StoredAdmin(_ context.Context, uid string) (bool, error) {
	if uid == "broken" {
		return true, errors.New("db down")
	}
	return m[uid], nil
}

func TestGateConsultsStoredRoles(t *testing.T) {
	kp := newKeypair(t, "k1")
	g := NewGate(NewKeySetVerifier(kp.set, project), nil, zap.NewNop())
	g.Roles = roleMap{"uid-1": true}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	admin := g.RequireAdmin(ok)

	registered := kp.token(t, func(tok jwt.Token) { _ = tok.Set("email", "owner@example.com") })
	assert.Equal(t, http.StatusNoContent, call(admin, "Bearer "+registered).Code)

	other := kp.token(t, func(tok jwt.Token) { _ = tok.Set(jwt.SubjectKey, "uid-2") })
	assert.Equal(t, http.StatusForbidden, call(admin, "Bearer "+other).Code)

	broken := kp.token(t, func(tok jwt.Token) { _ = tok.Set(jwt.SubjectKey, "broken") })
	assert.Equal(t, http.StatusForbidden, call(admin, "Bearer "+broken).Code, "lookup errors fail closed")
}

func TestIsAdminIgnoresEmptyEmail(t *testing.T) {
	g := NewGate(nil, []string{""}, zap.NewNop())
	assert.False(t, g.IsAdmin(Identity{}))
	assert.True(t, g.IsAdmin(Identity{AdminClaim: true}))
}
