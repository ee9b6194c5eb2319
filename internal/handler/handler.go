// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// Services groups the service layer the handlers call into.
type Services struct {
	Events   *service.EventService
	Bookings *service.BookingService
	Users    *service.UserService
	Admin    *service.AdminService
}

// Handler holds all HTTP handlers for the booking API.
type Handler struct {
	svc    Services
	logger *slog.Logger
}

// New constructs a Handler.
func New(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Success: false, Code: code, Message: msg})
}

// writeError maps a service error onto its HTTP status. Anything outside the
// error taxonomy is logged and reported as a bare 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason, ok := model.ReasonOf(err)
	if !ok {
		h.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeStatus(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := model.ErrorResponse{Success: false, Code: string(reason), Message: err.Error()}
	status := http.StatusInternalServerError
	switch reason {
	case model.ReasonValidationFailed:
		status = http.StatusUnprocessableEntity
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
	case model.ReasonNotFound:
		status = http.StatusNotFound
	case model.ReasonDuplicateBooking, model.ReasonCapacityExceeded:
		status = http.StatusConflict
	case model.ReasonConcurrencyConflict:
		status = http.StatusConflict
		resp.Message = "the event changed while booking, please retry"
		w.Header().Set("Retry-After", "1")
	case model.ReasonStorageUnavailable:
		status = http.StatusServiceUnavailable
		resp.Message = "service temporarily unavailable, please retry"
		w.Header().Set("Retry-After", "1")
		h.logger.Warn("storage unavailable",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// readBody decodes the request body into dst and writes the error response
// when it cannot. Well-formed JSON with a mistyped or unexpected field is a
// validation failure on that field; anything else is an invalid body.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(w, r, dst)
	if err == nil {
		return true
	}
	if verr := bodyFieldError(err); verr != nil {
		h.writeError(w, r, verr)
		return false
	}
	writeStatus(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
	return false
}

func bodyFieldError(err error) *model.ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return model.NewValidationError(typeErr.Field, "must be a "+jsonKind(typeErr.Type.Kind().String()))
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return model.NewValidationError(strings.Trim(name, `"`), "is not a recognized field")
	}
	return nil
}

func jsonKind(kind string) string {
	switch {
	case strings.HasPrefix(kind, "int"), strings.HasPrefix(kind, "uint"), strings.HasPrefix(kind, "float"):
		return "number"
	case kind == "bool":
		return "boolean"
	case kind == "slice", kind == "array":
		return "list"
	case kind == "struct", kind == "map":
		return "object"
	}
	return kind
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
