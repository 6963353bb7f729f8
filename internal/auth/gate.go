package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"go.uber.org/zap"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// RoleStore reports whether uid was registered as an admin.
type RoleStore interface {
	StoredAdmin(ctx context.Context, uid string) (bool, error)
}

// Gate guards routes with a bearer ID token. Authenticate only needs a valid
// token; RequireAdmin additionally needs the admin claim, an allow-listed
// email, or an admin record in Roles.
type Gate struct {
	verifier Verifier
	admins   map[string]struct{}
	log      *zap.Logger

	// Roles is consulted when neither the claim nor the allow-list grants admin.
	Roles RoleStore

	// Fail writes the rejection. Defaults to a bare JSON body.
	Fail func(w http.ResponseWriter, r *http.Request, err error)
}

func NewGate(v Verifier, adminEmails []string, log *zap.Logger) *Gate {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Gate{verifier: v, admins: admins, log: log, Fail: defaultFail}
}

// IsAdmin applies the role rule: explicit claim or allow-list.
func (g *Gate) IsAdmin(id Identity) bool {
	if id.AdminClaim {
		return true
	}
	_, ok := g.admins[strings.ToLower(id.Email)]
	return ok && id.Email != ""
}

// Identify verifies the request's bearer token.
func (g *Gate) Identify(r *http.Request) (Identity, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if h == "" {
		return Identity{}, apperr.Unauthenticated("No token provided", nil)
	}
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Identity{}, apperr.Unauthenticated("Malformed authorization header", nil)
	}
	id, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		return Identity{}, apperr.Unauthenticated("Invalid token", err)
	}
	id.Admin = g.IsAdmin(id)
	if !id.Admin && g.Roles != nil {
		stored, err := g.Roles.StoredAdmin(r.Context(), id.UID)
		if err != nil {
			// lookup gagal: anggap bukan admin
			g.log.Warn("admin role lookup failed", zap.String("uid", id.UID), zap.Error(err))
		}
		id.Admin = stored && err == nil
	}
	return id, nil
}

func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Identify(r)
		if err != nil {
			g.log.Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
			g.Fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := FromContext(r.Context())
		if !id.Admin {
			g.log.Info("non-admin blocked",
				zap.String("uid", id.UID),
				zap.String("email", id.Email),
				zap.String("path", r.URL.Path))
			g.Fail(w, r, apperr.Forbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func defaultFail(w http.ResponseWriter, _ *http.Request, err error) {
	code := http.StatusUnauthorized
	if apperr.Is(err, apperr.KindForbidden) {
		code = http.StatusForbidden
	}
	msg := "Unauthorized"
	if e, ok := err.(*apperr.Error); ok {
		msg = e.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
