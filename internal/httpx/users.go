package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/auth"
	"github.com/ariefcatur/go-cake-orders/internal/users"
	"github.com/go-chi/chi/v5"
)

type UserService interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
	AdminAvailability(ctx context.Context) (users.Availability, error)
	Get(ctx context.Context, callerUID string, callerAdmin bool, uid string) (users.User, error)
}

type usersHandler struct {
	svc UserService
	err errorWriter
}

type availabilityResp struct {
	Success bool `json:"success"`
	users.Availability
}

func (h *usersHandler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	av, err := h.svc.AdminAvailability(ctx)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResp{Success: true, Availability: av})
}

// register binds the profile to the verified token; uid and email in the body are ignored.
func (h *usersHandler) register(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var in users.RegisterInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}
	in.UID, in.Email = id.UID, id.Email

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.svc.Register(ctx, in)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User registered successfully", u)
}

func (h *usersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.Get(ctx, id.UID, id.Admin, chi.URLParam(r, "uid"))
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", u)
}
