package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEventInput
	if !h.readBody(w, r, &req) {
		return
	}

	event, err := h.svc.Events.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /events/{id}
// Only the fields present in the body change.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateEventInput
	if !h.readBody(w, r, &req) {
		return
	}

	event, err := h.svc.Events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ListEvents handles GET /events
// Authenticated callers also get is_booked for each event.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var viewerID string
	if u, ok := userFromContext(r.Context()); ok {
		viewerID = u.ID
	}

	events, err := h.svc.Events.ListEvents(r.Context(), viewerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.EventView{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type remainingResponse struct {
	EventID   string `json:"event_id"`
	Remaining int    `json:"remaining"`
}

// Remaining handles GET /events/{id}/remaining
func (h *Handler) Remaining(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.Bookings.Remaining(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remainingResponse{EventID: id, Remaining: n})
}
