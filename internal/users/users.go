package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/postgres"
	"github.com/ariefcatur/go-cake-orders/internal/validate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// MaxAdmins caps how many users may register with the admin flag.
const MaxAdmins = 3

// advisory lock key serialising admin-cap checks across API replicas
const registerLockKey int64 = 0x63616b65

var (
	ErrNotFound   = errors.New("user not found")
	ErrDuplicate  = errors.New("user already registered")
	ErrAdminLimit = errors.New("admin limit reached")
)

type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RegisterInput struct {
	UID         string `json:"-" validate:"required"`
	Email       string `json:"-" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,min=2"`
	IsAdmin     bool   `json:"isAdmin"`
	PhotoURL    string `json:"photoURL,omitempty" validate:"omitempty,url"`
}

type Availability struct {
	CanRegisterAsAdmin bool `json:"canRegisterAsAdmin"`
	AdminCount         int  `json:"adminCount"`
	MaxAdmins          int  `json:"maxAdmins"`
}

type Store interface {
	Register(ctx context.Context, u User, maxAdmins int) (User, error)
	CountAdmins(ctx context.Context) (int, error)
	Get(ctx context.Context, uid string) (User, error)
}

type Repo struct{ DB *pgxpool.Pool }

// Register inserts u. When u.IsAdmin the cap check and insert happen under
// one transaction-scoped advisory lock, so concurrent sign-ups cannot overshoot it.
func (r *Repo) Register(ctx context.Context, u User, maxAdmins int) (User, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if u.IsAdmin {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, registerLockKey); err != nil {
			return User{}, err
		}
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_admin`).Scan(&n); err != nil {
			return User{}, err
		}
		if n >= maxAdmins {
			return User{}, ErrAdminLimit
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users(uid, email, display_name, is_admin, photo_url)
		VALUES ($1,$2,$3,$4,NULLIF($5,''))
		RETURNING created_at`,
		u.UID, u.Email, u.DisplayName, u.IsAdmin, u.PhotoURL).Scan(&u.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return User{}, ErrDuplicate
	}
	if err != nil {
		return User{}, err
	}
	return u, tx.Commit(ctx)
}

func (r *Repo) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_admin`).Scan(&n)
	return n, err
}

func (r *Repo) Get(ctx context.Context, uid string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
		SELECT uid, email, display_name, is_admin, COALESCE(photo_url, ''), created_at
		FROM users WHERE uid=$1`, uid).
		Scan(&u.UID, &u.Email, &u.DisplayName, &u.IsAdmin, &u.PhotoURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

type Service struct {
	Store Store
	Log   *zap.Logger
}

func NewService(s Store, log *zap.Logger) *Service {
	return &Service{Store: s, Log: log}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return User{}, err
	}
	u, err := s.Store.Register(ctx, User{
		UID:         in.UID,
		Email:       in.Email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		IsAdmin:     in.IsAdmin,
		PhotoURL:    in.PhotoURL,
	}, MaxAdmins)
	switch {
	case errors.Is(err, ErrDuplicate):
		return User{}, apperr.Conflict("User already registered")
	case errors.Is(err, ErrAdminLimit):
		return User{}, apperr.Conflict("Admin registration limit reached. Only customers can register at this time.")
	case err != nil:
		return User{}, apperr.Internal("Failed to register user", err)
	}
	s.Log.Info("user registered", zap.String("uid", u.UID), zap.Bool("is_admin", u.IsAdmin))
	return u, nil
}

func (s *Service) AdminAvailability(ctx context.Context) (Availability, error) {
	n, err := s.Store.CountAdmins(ctx)
	if err != nil {
		return Availability{}, apperr.Internal("Failed to check admin availability", err)
	}
	return Availability{CanRegisterAsAdmin: n < MaxAdmins, AdminCount: n, MaxAdmins: MaxAdmins}, nil
}

// StoredAdmin reports the is_admin flag recorded at registration. Unknown
// users are not admins.
func (s *Service) StoredAdmin(ctx context.Context, uid string) (bool, error) {
	u, err := s.Store.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// Get returns uid's profile. Callers may read their own record; admins may read any.
func (s *Service) Get(ctx context.Context, callerUID string, callerAdmin bool, uid string) (User, error) {
	if callerUID != uid && !callerAdmin {
		return User{}, apperr.Forbidden("Cannot read another user's profile")
	}
	u, err := s.Store.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return User{}, apperr.NotFound("User not found")
	}
	if err != nil {
		return User{}, apperr.Internal("Failed to fetch user", err)
	}
	return u, nil
}
