package contacts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/notify"
	"github.com/ariefcatur/go-cake-orders/internal/validate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusNew       = "new"
	StatusRead      = "read"
	StatusResponded = "responded"

	defaultLimit = 20
	maxLimit     = 100
)

var ErrNotFound = errors.New("contact not found")

type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Subject   string    `json:"subject"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SubmitInput struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,kephone"`
	Subject  string `json:"subject" validate:"required,min=5"`
	Category string `json:"category" validate:"required,oneof=general order support feedback other"`
	Message  string `json:"message" validate:"required,min=10"`
}

type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

type Page struct {
	Data       []Contact  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type Store interface {
	Insert(ctx context.Context, c Contact) (Contact, error)
	List(ctx context.Context, status string, limit, offset int) ([]Contact, int, error)
	UpdateStatus(ctx context.Context, id, status string) (Contact, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, eventType, key string, payload any)
}

type Repo struct{ DB *pgxpool.Pool }

const contactCols = `id, name, email, phone, subject, category, message, status, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanContact(row scanner) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Subject, &c.Category, &c.Message, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repo) Insert(ctx context.Context, c Contact) (Contact, error) {
	return scanContact(r.DB.QueryRow(ctx, `
		INSERT INTO contacts(id, name, email, phone, subject, category, message, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+contactCols,
		c.ID, c.Name, c.Email, c.Phone, c.Subject, c.Category, c.Message, c.Status))
}

// List returns one page, newest first, plus the total matching rows. Empty status means all.
func (r *Repo) List(ctx context.Context, status string, limit, offset int) ([]Contact, int, error) {
	var (
		out   []Contact
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.DB.QueryRow(gctx, `SELECT COUNT(*) FROM contacts WHERE ($1 = '' OR status = $1)`, status).Scan(&total)
	})
	g.Go(func() error {
		rows, err := r.DB.Query(gctx, `
			SELECT `+contactCols+` FROM contacts
			WHERE ($1 = '' OR status = $1)
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`, status, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanContact(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id, status string) (Contact, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE contacts SET status=$2, updated_at=now() WHERE id=$1
		RETURNING `+contactCols, id, status)
	if err != nil {
		return Contact{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Contact{}, err
		}
		return Contact{}, ErrNotFound
	}
	return scanContact(rows)
}

type Service struct {
	Store    Store
	Notifier Notifier
	Log      *zap.Logger
}

func NewService(s Store, n Notifier, log *zap.Logger) *Service {
	return &Service{Store: s, Notifier: n, Log: log}
}

// Submit stores a public inquiry and queues the acknowledgement e-mail.
// Notification failures never fail the submission.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Contact, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return Contact{}, err
	}
	c, err := s.Store.Insert(ctx, Contact{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Subject:  in.Subject,
		Category: in.Category,
		Message:  in.Message,
		Status:   StatusNew,
	})
	if err != nil {
		return Contact{}, apperr.Internal("Failed to submit contact form", err)
	}
	s.Notifier.Dispatch(ctx, notify.EventContactReceived, c.ID, notify.ContactReceivedPayload{
		ContactID: c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Subject:   c.Subject,
		Category:  c.Category,
		Message:   c.Message,
	})
	s.Log.Info("contact received", zap.String("id", c.ID), zap.String("category", c.Category))
	return c, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	status := f.Status
	if status == "all" {
		status = ""
	}
	if status != "" {
		if err := validate.Var("status", status, "oneof=new read responded"); err != nil {
			return Page{}, err
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	items, total, err := s.Store.List(ctx, status, f.Limit, (f.Page-1)*f.Limit)
	if err != nil {
		return Page{}, apperr.Internal("Failed to fetch contacts", err)
	}
	if items == nil {
		items = []Contact{}
	}
	return Page{
		Data: items,
		Pagination: Pagination{
			Total: total,
			Page:  f.Page,
			Limit: f.Limit,
			Pages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Contact, error) {
	if err := validate.Var("status", status, "required,oneof=new read responded"); err != nil {
		return Contact{}, err
	}
	c, err := s.Store.UpdateStatus(ctx, id, status)
	if errors.Is(err, ErrNotFound) {
		return Contact{}, apperr.NotFound("Contact not found")
	}
	if err != nil {
		return Contact{}, apperr.Internal("Failed to update contact", err)
	}
	return c, nil
}
