package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type CatalogService interface {
	CreateCake(ctx context.Context, in catalog.CakeInput) (catalog.Cake, error)
	GetCake(ctx context.Context, id string) (catalog.Cake, error)
	ListCakes(ctx context.Context, f catalog.CakeFilter) ([]catalog.Cake, error)
	UpdateCake(ctx context.Context, id string, p catalog.CakePatch) (catalog.Cake, error)
	DeleteCake(ctx context.Context, id string) (catalog.Cake, error)

	CreateFlavor(ctx context.Context, in catalog.FlavorInput) (catalog.Flavor, error)
	GetFlavor(ctx context.Context, slug string) (catalog.Flavor, error)
	ListFlavors(ctx context.Context) ([]catalog.Flavor, error)
	UpdateFlavor(ctx context.Context, id string, in catalog.FlavorInput) (catalog.Flavor, error)
	DeleteFlavor(ctx context.Context, id string) error
}

type catalogHandler struct {
	svc CatalogService
	err errorWriter
}

func (h *catalogHandler) listCakes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.CakeFilter{Category: q.Get("category")}
	if v := q.Get("bestseller"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.err.write(w, r, apperr.Validation("Validation error", apperr.FieldError{Field: "bestseller", Message: "must be true or false"}))
			return
		}
		f.Bestseller = &b
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cakes, err := h.svc.ListCakes(ctx, f)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", cakes)
}

func (h *catalogHandler) getCake(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.svc.GetCake(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", c)
}

func (h *catalogHandler) createCake(w http.ResponseWriter, r *http.Request) {
	var in catalog.CakeInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.svc.CreateCake(ctx, in)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Cake created successfully", c)
}

func (h *catalogHandler) updateCake(w http.ResponseWriter, r *http.Request) {
	var p catalog.CakePatch
	if err := decode(w, r, &p); err != nil {
		h.err.write(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.svc.UpdateCake(ctx, chi.URLParam(r, "id"), p)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Cake updated successfully", c)
}

func (h *catalogHandler) deleteCake(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.svc.DeleteCake(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Cake deleted successfully", c)
}

func (h *catalogHandler) listFlavors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	fs, err := h.svc.ListFlavors(ctx)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", fs)
}

func (h *catalogHandler) getFlavor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	f, err := h.svc.GetFlavor(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", f)
}

func (h *catalogHandler) createFlavor(w http.ResponseWriter, r *http.Request) {
	var in catalog.FlavorInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f, err := h.svc.CreateFlavor(ctx, in)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Flavor created successfully", f)
}

func (h *catalogHandler) updateFlavor(w http.ResponseWriter, r *http.Request) {
	var in catalog.FlavorInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f, err := h.svc.UpdateFlavor(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Flavor updated successfully", f)
}

func (h *catalogHandler) deleteFlavor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.DeleteFlavor(ctx, chi.URLParam(r, "id")); err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Flavor deleted successfully", nil)
}
