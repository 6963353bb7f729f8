package catalog

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	Store Store
	Log   *zap.Logger
}

func NewService(s Store, log *zap.Logger) *Service {
	return &Service{Store: s, Log: log}
}

func (s *Service) CreateCake(ctx context.Context, in CakeInput) (Cake, error) {
	if err := validate.Struct(in); err != nil {
		return Cake{}, err
	}
	c, err := s.Store.InsertCake(ctx, Cake{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		Category:    in.Category,
		Flavors:     in.Flavors,
		Toppings:    in.Toppings,
		Sizes:       in.Sizes,
		Rating:      in.Rating,
		Reviews:     in.Reviews,
		Bestseller:  in.Bestseller,
	})
	if errors.Is(err, ErrDuplicate) {
		return Cake{}, apperr.Conflict("Cake with this ID already exists")
	}
	if err != nil {
		return Cake{}, apperr.Internal("Failed to create cake", err)
	}
	s.Log.Info("cake created", zap.String("cake_id", c.ID))
	return c, nil
}

func (s *Service) GetCake(ctx context.Context, id string) (Cake, error) {
	c, err := s.Store.GetCake(ctx, id)
	return c, cakeErr(err, "Failed to fetch cake")
}

func (s *Service) ListCakes(ctx context.Context, f CakeFilter) ([]Cake, error) {
	list, err := s.Store.ListCakes(ctx, f)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch cakes", err)
	}
	if list == nil {
		list = []Cake{}
	}
	return list, nil
}

func (s *Service) UpdateCake(ctx context.Context, id string, p CakePatch) (Cake, error) {
	if err := validate.Struct(p); err != nil {
		return Cake{}, err
	}
	c, err := s.Store.UpdateCake(ctx, id, p)
	return c, cakeErr(err, "Failed to update cake")
}

func (s *Service) DeleteCake(ctx context.Context, id string) (Cake, error) {
	c, err := s.Store.DeleteCake(ctx, id)
	if err == nil {
		s.Log.Info("cake deleted", zap.String("cake_id", id))
	}
	return c, cakeErr(err, "Failed to delete cake")
}

func (s *Service) CreateFlavor(ctx context.Context, in FlavorInput) (Flavor, error) {
	if err := validate.Struct(in); err != nil {
		return Flavor{}, err
	}
	slug := Slugify(in.Name)
	if slug == "" {
		return Flavor{}, apperr.Validation("Validation error", apperr.FieldError{Field: "name", Message: "must contain letters or digits"})
	}
	f, err := s.Store.InsertFlavor(ctx, Flavor{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        slug,
		Description: in.Description,
		Images:      in.Images,
		IsActive:    in.active(),
	})
	if errors.Is(err, ErrDuplicate) {
		return Flavor{}, apperr.Conflict("A flavor with this name already exists")
	}
	if err != nil {
		return Flavor{}, apperr.Internal("Failed to create flavor", err)
	}
	return f, nil
}

func (s *Service) GetFlavor(ctx context.Context, slug string) (Flavor, error) {
	f, err := s.Store.GetFlavorBySlug(ctx, slug)
	return f, flavorErr(err, "Failed to fetch flavor")
}

func (s *Service) ListFlavors(ctx context.Context) ([]Flavor, error) {
	list, err := s.Store.ListFlavors(ctx, true)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch flavors", err)
	}
	if list == nil {
		list = []Flavor{}
	}
	return list, nil
}

func (s *Service) UpdateFlavor(ctx context.Context, id string, in FlavorInput) (Flavor, error) {
	if err := validate.Struct(in); err != nil {
		return Flavor{}, err
	}
	f, err := s.Store.UpdateFlavor(ctx, id, in)
	return f, flavorErr(err, "Failed to update flavor")
}

func (s *Service) DeleteFlavor(ctx context.Context, id string) error {
	return flavorErr(s.Store.DeleteFlavor(ctx, id), "Failed to delete flavor")
}

func cakeErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Cake not found")
	default:
		return apperr.Internal(msg, err)
	}
}

func flavorErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Flavor not found")
	default:
		return apperr.Internal(msg, err)
	}
}
