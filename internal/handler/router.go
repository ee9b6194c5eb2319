package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the API router with its middleware stack.
func NewRouter(h *Handler, auth *Authenticator, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.logger))
	r.Use(CORS(corsOrigins))

	r.Get("/health", HealthCheck)
	r.Post("/users", h.Register)

	r.Route("/events", func(r chi.Router) {
		r.With(auth.OptionalAuth).Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/remaining", h.Remaining)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate, RequireAdmin)
			r.Post("/", h.CreateEvent)
			r.Put("/{id}", h.UpdateEvent)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Get("/me", h.Me)
		r.Get("/my-bookings", h.MyBookings)
		r.Post("/bookings", h.SubmitBooking)
		r.Post("/bookings/{id}/cancel", h.CancelBooking)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Authenticate, RequireAdmin)
		r.Get("/stats", h.AdminStats)
		r.Get("/users", h.ListUsers)
		r.Post("/users/{id}/toggle", h.ToggleUser)
		r.Delete("/users/{id}", h.DeleteUser)
	})

	return r
}
