package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// SubmitBooking handles POST /bookings
// The booker is always the authenticated user, never a body field.
func (h *Handler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req service.SubmitBookingInput
	if !h.readBody(w, r, &req) {
		return
	}

	booking, err := h.svc.Bookings.SubmitBooking(r.Context(), user.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// CancelBooking handles POST /bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	booking, err := h.svc.Bookings.CancelBooking(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// MyBookings handles GET /my-bookings
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	bookings, err := h.svc.Bookings.MyBookings(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.BookingDetail{}
	}
	writeJSON(w, http.StatusOK, bookings)
}
