package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// DuplicatePolicy decides what happens when a user books an event they
// already hold a confirmed booking for.
type DuplicatePolicy string

const (
	// AllowRepeatBookings records every admitted request as its own booking.
	AllowRepeatBookings DuplicatePolicy = "allow"
	// RejectDuplicates refuses a second confirmed booking per user and event.
	RejectDuplicates DuplicatePolicy = "reject"
)

const defaultStorageTimeout = 5 * time.Second

// admissionState is where a booking attempt stopped.
type admissionState string

const (
	stateReceived        admissionState = "received"
	stateValidated       admissionState = "validated"
	stateCapacityChecked admissionState = "capacity_checked"
	stateAdmitted        admissionState = "admitted"
	stateRejected        admissionState = "rejected"
)

// BookingService is the admission controller: it decides, one event at a
// time, whether a booking request fits in the remaining capacity and records
// it atomically when it does.
type BookingService struct {
	ledger   Ledger
	capacity *Capacity
	payments PaymentGateway
	clock    clock.Clock
	logger   *slog.Logger
	policy   DuplicatePolicy
	timeout  time.Duration
}

type BookingServiceOption func(*BookingService)

// WithDuplicatePolicy overrides the default AllowRepeatBookings policy.
func WithDuplicatePolicy(p DuplicatePolicy) BookingServiceOption {
	return func(s *BookingService) {
		if p == RejectDuplicates || p == AllowRepeatBookings {
			s.policy = p
		}
	}
}

// WithStorageTimeout bounds each admission, lock wait included.
func WithStorageTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPaymentGateway replaces the default MockGateway.
func WithPaymentGateway(g PaymentGateway) BookingServiceOption {
	return func(s *BookingService) {
		if g != nil {
			s.payments = g
		}
	}
}

// NewBookingService constructs the admission controller. capacity must wrap
// the same ledger.
func NewBookingService(ledger Ledger, capacity *Capacity, clk clock.Clock, logger *slog.Logger, opts ...BookingServiceOption) *BookingService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BookingService{
		ledger:   ledger,
		capacity: capacity,
		payments: MockGateway{},
		clock:    clk,
		logger:   logger,
		policy:   AllowRepeatBookings,
		timeout:  defaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitBookingInput struct {
	EventID  string         `json:"event_id" validate:"required"`
	Quantity int            `json:"quantity" validate:"min=1"`
	Payment  PaymentDetails `json:"payment"`
}

// SubmitBooking admits or rejects a booking request. On success the booking
// is durable and its total price is the event price at this instant times
// the quantity. Rejections are *model.ValidationError,
// *model.NotFoundError, *model.DuplicateBookingError or
// *model.CapacityExceededError; storage trouble surfaces as
// *model.TransientStorageError or *model.ConcurrencyConflictError with
// nothing written.
func (s *BookingService) SubmitBooking(ctx context.Context, userID string, in SubmitBookingInput) (model.Booking, error) {
	state := stateReceived

	if userID == "" {
		return model.Booking{}, s.reject(state, userID, in, model.NewValidationError("user_id", "is required"))
	}
	if err := validateStruct(in); err != nil {
		return model.Booking{}, s.reject(state, userID, in, err)
	}
	state = stateValidated

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var booking model.Booking
	err := s.ledger.WithEventLock(ctx, in.EventID, func(txCtx context.Context, ev model.Event) error {
		if s.policy == RejectDuplicates {
			exists, err := s.ledger.Exists(txCtx, userID, ev.ID)
			if err != nil {
				return err
			}
			if exists {
				return &model.DuplicateBookingError{UserID: userID, EventID: ev.ID}
			}
		}

		remaining, err := s.capacity.remaining(txCtx, ev)
		if err != nil {
			return err
		}
		state = stateCapacityChecked
		if in.Quantity > remaining {
			return &model.CapacityExceededError{EventID: ev.ID, Requested: in.Quantity, Remaining: remaining}
		}

		if ev.Price > 0 && int64(in.Quantity) > math.MaxInt64/ev.Price {
			return model.NewValidationError("quantity", "order total is too large")
		}
		total := ev.Price * int64(in.Quantity)
		receipt, err := s.payments.Charge(txCtx, Charge{
			UserID:  userID,
			EventID: ev.ID,
			Amount:  total,
			Details: in.Payment,
		})
		if err != nil {
			return fmt.Errorf("charge payment: %w", err)
		}

		b := model.Booking{
			ID:               uuid.New().String(),
			UserID:           userID,
			EventID:          ev.ID,
			Quantity:         in.Quantity,
			TotalPrice:       total,
			PaymentMethod:    in.Payment.Method,
			PaymentReference: receipt.Reference,
			PaymentStatus:    receipt.Status,
			Status:           model.BookingConfirmed,
			CreatedAt:        s.clock.Now(),
		}
		if err := s.ledger.Append(txCtx, b); err != nil {
			return err
		}
		if err := s.capacity.reserve(txCtx, ev.ID, in.Quantity); err != nil {
			if errors.Is(err, repository.ErrCapacityFloor) {
				return &model.ConcurrencyConflictError{EventID: ev.ID, Err: err}
			}
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return model.Booking{}, s.reject(state, userID, in, translate("submit booking", "event", in.EventID, err))
	}

	s.logger.Info("booking admitted",
		"state", stateAdmitted,
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"user_id", userID,
		"quantity", booking.Quantity,
		"total_price", booking.TotalPrice,
	)
	return booking, nil
}

func (s *BookingService) reject(reached admissionState, userID string, in SubmitBookingInput, err error) error {
	attrs := []any{
		"state", stateRejected,
		"reached", reached,
		"event_id", in.EventID,
		"user_id", userID,
		"quantity", in.Quantity,
	}
	reason, ok := model.ReasonOf(err)
	switch {
	case model.IsRejection(err):
		s.logger.Info("booking rejected", append(attrs, "reason", reason, "message", err.Error())...)
	case ok:
		s.logger.Warn("booking failed", append(attrs, "reason", reason, "error", err)...)
	default:
		s.logger.Error("booking failed", append(attrs, "error", err)...)
	}
	return err
}

// Remaining returns the seats left for an event, read under the event lock.
func (s *BookingService) Remaining(ctx context.Context, eventID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var remaining int
	err := s.ledger.WithEventLock(ctx, eventID, func(txCtx context.Context, ev model.Event) error {
		n, err := s.capacity.remaining(txCtx, ev)
		remaining = n
		return err
	})
	if err != nil {
		return 0, translate("remaining capacity", "event", eventID, err)
	}
	return remaining, nil
}

// CancelBooking flips one of the user's confirmed bookings to cancelled and
// gives its seats back. Bookings of other users look like missing ones.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID string) (model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	current, err := s.ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, translate("cancel booking", "booking", bookingID, err)
	}
	if current.UserID != userID {
		return model.Booking{}, &model.NotFoundError{Resource: "booking", ID: bookingID}
	}

	err = s.ledger.WithEventLock(ctx, current.EventID, func(txCtx context.Context, ev model.Event) error {
		b, err := s.ledger.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingConfirmed {
			return model.NewValidationError("status", "booking is already cancelled")
		}
		if err := s.ledger.SetBookingStatus(txCtx, bookingID, model.BookingCancelled); err != nil {
			return err
		}
		if err := s.capacity.release(txCtx, ev.ID, b.Quantity); err != nil {
			return err
		}
		current = b
		current.Status = model.BookingCancelled
		return nil
	})
	if err != nil {
		return model.Booking{}, translate("cancel booking", "booking", bookingID, err)
	}

	s.logger.Info("booking cancelled", "booking_id", bookingID, "event_id", current.EventID, "user_id", userID)
	return current, nil
}

// MyBookings lists the user's bookings, newest first.
func (s *BookingService) MyBookings(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	bookings, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate("list bookings", "user", userID, err)
	}
	return bookings, nil
}
