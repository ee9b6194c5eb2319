package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// CapacityStrategy selects where the number of booked seats comes from.
type CapacityStrategy string

const (
	// LedgerDerived sums confirmed ledger quantities inside the locked
	// admission step. The ledger is the only source of truth.
	LedgerDerived CapacityStrategy = "ledger"
	// LiveCounter keeps a booked_count column on the event row, moved in the
	// same transaction as every ledger write.
	LiveCounter CapacityStrategy = "counter"
)

// Ledger is the booking ledger plus the per-event critical section the
// admission controller runs in.
type Ledger interface {
	WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, ev model.Event) error) error
	BookedQuantity(ctx context.Context, eventID string) (int, error)
	BookedQuantities(ctx context.Context) (map[string]int, error)
	AdjustBookedCount(ctx context.Context, eventID string, delta int) error
	Exists(ctx context.Context, userID, eventID string) (bool, error)
	Append(ctx context.Context, b model.Booking) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	SetBookingStatus(ctx context.Context, id string, status model.BookingStatus) error
	ListByUser(ctx context.Context, userID string) ([]model.BookingDetail, error)
	BookedEventIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// Capacity computes remaining seats according to the configured strategy.
type Capacity struct {
	ledger   Ledger
	strategy CapacityStrategy
}

// NewCapacity returns capacity accounting over ledger. Unknown strategies
// fall back to LedgerDerived.
func NewCapacity(ledger Ledger, strategy CapacityStrategy) *Capacity {
	if strategy != LiveCounter {
		strategy = LedgerDerived
	}
	return &Capacity{ledger: ledger, strategy: strategy}
}

func (c *Capacity) Strategy() CapacityStrategy {
	return c.strategy
}

// booked returns the seats held by confirmed bookings of ev. Decisions based
// on it must run under ev's lock.
func (c *Capacity) booked(ctx context.Context, ev model.Event) (int, error) {
	if c.strategy == LiveCounter {
		return ev.BookedCount, nil
	}
	n, err := c.ledger.BookedQuantity(ctx, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("booked quantity: %w", err)
	}
	return n, nil
}

func (c *Capacity) remaining(ctx context.Context, ev model.Event) (int, error) {
	booked, err := c.booked(ctx, ev)
	if err != nil {
		return 0, err
	}
	return clampRemaining(ev.Capacity - booked), nil
}

// reserve and release keep the live counter in step with the ledger. They are
// no-ops under LedgerDerived.
func (c *Capacity) reserve(ctx context.Context, eventID string, qty int) error {
	if c.strategy != LiveCounter {
		return nil
	}
	return c.ledger.AdjustBookedCount(ctx, eventID, qty)
}

func (c *Capacity) release(ctx context.Context, eventID string, qty int) error {
	if c.strategy != LiveCounter {
		return nil
	}
	return c.ledger.AdjustBookedCount(ctx, eventID, -qty)
}

// remainingAll is the unlocked, display-only view used by catalog listings.
func (c *Capacity) remainingAll(ctx context.Context, events []model.Event) (map[string]int, error) {
	out := make(map[string]int, len(events))
	if c.strategy == LiveCounter {
		for _, ev := range events {
			out[ev.ID] = clampRemaining(ev.Capacity - ev.BookedCount)
		}
		return out, nil
	}

	booked, err := c.ledger.BookedQuantities(ctx)
	if err != nil {
		return nil, fmt.Errorf("booked quantities: %w", err)
	}
	for _, ev := range events {
		out[ev.ID] = clampRemaining(ev.Capacity - booked[ev.ID])
	}
	return out, nil
}

func clampRemaining(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
