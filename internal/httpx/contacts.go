package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/contacts"
	"github.com/go-chi/chi/v5"
)

type ContactService interface {
	Submit(ctx context.Context, in contacts.SubmitInput) (contacts.Contact, error)
	List(ctx context.Context, f contacts.ListFilter) (contacts.Page, error)
	UpdateStatus(ctx context.Context, id, status string) (contacts.Contact, error)
}

type contactsHandler struct {
	svc ContactService
	err errorWriter
}

type contactList struct {
	Success bool `json:"success"`
	contacts.Page
}

func (h *contactsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var in contacts.SubmitInput
	if err := decode(w, r, &in); err != nil {
		h.err.write(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.svc.Submit(ctx, in)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated,
		"Thank you for contacting us! We will respond to your inquiry soon.",
		map[string]string{"id": c.ID})
}

func (h *contactsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := h.svc.List(ctx, contacts.ListFilter{
		Status: q.Get("status"),
		Page:   atoi(q.Get("page")),
		Limit:  atoi(q.Get("limit")),
	})
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contactList{Success: true, Page: page})
}

func (h *contactsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(w, r, &body); err != nil {
		h.err.write(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.svc.UpdateStatus(ctx, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.err.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Contact status updated", c)
}
