package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-cake-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store interface {
	InsertCake(ctx context.Context, c Cake) (Cake, error)
	GetCake(ctx context.Context, id string) (Cake, error)
	ListCakes(ctx context.Context, f CakeFilter) ([]Cake, error)
	UpdateCake(ctx context.Context, id string, p CakePatch) (Cake, error)
	DeleteCake(ctx context.Context, id string) (Cake, error)

	InsertFlavor(ctx context.Context, f Flavor) (Flavor, error)
	GetFlavorBySlug(ctx context.Context, slug string) (Flavor, error)
	ListFlavors(ctx context.Context, activeOnly bool) ([]Flavor, error)
	UpdateFlavor(ctx context.Context, id string, in FlavorInput) (Flavor, error)
	DeleteFlavor(ctx context.Context, id string) error
}

type Repo struct{ DB *pgxpool.Pool }

const cakeCols = `id, name, description, price::float8, image, category, flavors, toppings, sizes,
	rating, reviews, bestseller, created_at, updated_at`

func scanCake(row pgx.Row) (Cake, error) {
	var c Cake
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.Image,
		&c.Category, &c.Flavors, &c.Toppings, &c.Sizes,
		&c.Rating, &c.Reviews, &c.Bestseller, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cake{}, ErrNotFound
	}
	return c, err
}

func (r *Repo) InsertCake(ctx context.Context, c Cake) (Cake, error) {
	out, err := scanCake(r.DB.QueryRow(ctx, `
		INSERT INTO cakes(id, name, description, price, image, category, flavors, toppings, sizes,
			rating, reviews, bestseller)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+cakeCols,
		c.ID, c.Name, c.Description, c.Price, c.Image, c.Category, c.Flavors, c.Toppings, c.Sizes,
		c.Rating, c.Reviews, c.Bestseller))
	if postgres.IsUniqueViolation(err, "cakes_pkey") {
		return Cake{}, ErrDuplicate
	}
	return out, err
}

func (r *Repo) GetCake(ctx context.Context, id string) (Cake, error) {
	return scanCake(r.DB.QueryRow(ctx, `SELECT `+cakeCols+` FROM cakes WHERE id=$1`, id))
}

func (r *Repo) ListCakes(ctx context.Context, f CakeFilter) ([]Cake, error) {
	var conds []string
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("$%d = ANY(category)", len(args)))
	}
	if f.Bestseller != nil {
		args = append(args, *f.Bestseller)
		conds = append(conds, fmt.Sprintf("bestseller = $%d", len(args)))
	}
	q := `SELECT ` + cakeCols + ` FROM cakes`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	rows, err := r.DB.Query(ctx, q+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cake
	for rows.Next() {
		c, err := scanCake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCake leaves columns whose patch field is nil untouched.
func (r *Repo) UpdateCake(ctx context.Context, id string, p CakePatch) (Cake, error) {
	return scanCake(r.DB.QueryRow(ctx, `
		UPDATE cakes SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			price       = COALESCE($4, price),
			image       = COALESCE($5, image),
			category    = COALESCE($6, category),
			flavors     = COALESCE($7, flavors),
			toppings    = COALESCE($8, toppings),
			sizes       = COALESCE($9, sizes),
			rating      = COALESCE($10, rating),
			reviews     = COALESCE($11, reviews),
			bestseller  = COALESCE($12, bestseller),
			updated_at  = now()
		WHERE id=$1
		RETURNING `+cakeCols,
		id, p.Name, p.Description, p.Price, p.Image, p.Category, p.Flavors, p.Toppings, p.Sizes,
		p.Rating, p.Reviews, p.Bestseller))
}

func (r *Repo) DeleteCake(ctx context.Context, id string) (Cake, error) {
	return scanCake(r.DB.QueryRow(ctx, `DELETE FROM cakes WHERE id=$1 RETURNING `+cakeCols, id))
}

const flavorCols = `id, name, slug, description, images, is_active, created_at, updated_at`

func scanFlavor(row pgx.Row) (Flavor, error) {
	var f Flavor
	err := row.Scan(&f.ID, &f.Name, &f.Slug, &f.Description, &f.Images, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Flavor{}, ErrNotFound
	}
	return f, err
}

func (r *Repo) InsertFlavor(ctx context.Context, f Flavor) (Flavor, error) {
	out, err := scanFlavor(r.DB.QueryRow(ctx, `
		INSERT INTO flavors(id, name, slug, description, images, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+flavorCols,
		f.ID, f.Name, f.Slug, f.Description, f.Images, f.IsActive))
	if postgres.IsUniqueViolation(err, "flavors_slug_key") {
		return Flavor{}, ErrDuplicate
	}
	return out, err
}

func (r *Repo) GetFlavorBySlug(ctx context.Context, slug string) (Flavor, error) {
	return scanFlavor(r.DB.QueryRow(ctx, `SELECT `+flavorCols+` FROM flavors WHERE slug=$1`, slug))
}

func (r *Repo) ListFlavors(ctx context.Context, activeOnly bool) ([]Flavor, error) {
	q := `SELECT ` + flavorCols + ` FROM flavors`
	if activeOnly {
		q += ` WHERE is_active`
	}
	rows, err := r.DB.Query(ctx, q+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Flavor
	for rows.Next() {
		f, err := scanFlavor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFlavor replaces the editable fields. The slug stays as created.
func (r *Repo) UpdateFlavor(ctx context.Context, id string, in FlavorInput) (Flavor, error) {
	return scanFlavor(r.DB.QueryRow(ctx, `
		UPDATE flavors SET name=$2, description=$3, images=$4, is_active=$5, updated_at=now()
		WHERE id=$1
		RETURNING `+flavorCols,
		id, in.Name, in.Description, in.Images, in.active()))
}

func (r *Repo) DeleteFlavor(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM flavors WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
