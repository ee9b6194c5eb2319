package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

var memNow = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

func seedMemoryEvent(t *testing.T, s *MemoryStore, id string, capacity int) {
	t.Helper()
	if err := s.CreateEvent(context.Background(), model.Event{ID: id, Title: id, Capacity: capacity, Date: memNow, CreatedAt: memNow}); err != nil {
		t.Fatalf("create event: %v", err)
	}
}

func memBooking(id, eventID string, qty int) model.Booking {
	return model.Booking{
		ID: id, UserID: "user-1", EventID: eventID, Quantity: qty, TotalPrice: int64(qty) * 100,
		PaymentMethod: model.PaymentCard, PaymentStatus: "paid", Status: model.BookingConfirmed, CreatedAt: memNow,
	}
}

func TestMemoryStore_WithEventLock(t *testing.T) {
	t.Parallel()

	t.Run("writes apply only when fn succeeds", func(t *testing.T) {
		s := NewMemoryStore()
		seedMemoryEvent(t, s, "ev-1", 5)
		ctx := context.Background()

		boom := errors.New("boom")
		err := s.WithEventLock(ctx, "ev-1", func(txCtx context.Context, ev model.Event) error {
			if err := s.Append(txCtx, memBooking("b-1", ev.ID, 2)); err != nil {
				return err
			}
			if err := s.AdjustBookedCount(txCtx, ev.ID, 2); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := s.GetBooking(ctx, "b-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected staged booking discarded, got %v", err)
		}

		err = s.WithEventLock(ctx, "ev-1", func(txCtx context.Context, ev model.Event) error {
			if err := s.Append(txCtx, memBooking("b-2", ev.ID, 2)); err != nil {
				return err
			}
			return s.AdjustBookedCount(txCtx, ev.ID, 2)
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		ev, _ := s.GetEvent(ctx, "ev-1")
		if ev.BookedCount != 2 {
			t.Fatalf("expected booked_count 2, got %d", ev.BookedCount)
		}
		if n, _ := s.BookedQuantity(ctx, "ev-1"); n != 2 {
			t.Fatalf("expected 2 booked seats, got %d", n)
		}
	})

	t.Run("waiters give up at their deadline", func(t *testing.T) {
		s := NewMemoryStore()
		seedMemoryEvent(t, s, "ev-1", 5)
		seedMemoryEvent(t, s, "ev-2", 5)

		held := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = s.WithEventLock(context.Background(), "ev-1", func(context.Context, model.Event) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held
		defer func() {
			close(release)
			<-done
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := s.WithEventLock(ctx, "ev-1", func(context.Context, model.Event) error { return nil })
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}

		other, cancelOther := context.WithTimeout(context.Background(), time.Second)
		defer cancelOther()
		if err := s.WithEventLock(other, "ev-2", func(context.Context, model.Event) error { return nil }); err != nil {
			t.Fatalf("expected other event unaffected, got %v", err)
		}
	})

	t.Run("unknown event and nested locks", func(t *testing.T) {
		s := NewMemoryStore()
		seedMemoryEvent(t, s, "ev-1", 5)
		seedMemoryEvent(t, s, "ev-2", 5)

		if err := s.WithEventLock(context.Background(), "nope", func(context.Context, model.Event) error { return nil }); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		err := s.WithEventLock(context.Background(), "ev-1", func(txCtx context.Context, _ model.Event) error {
			return s.WithEventLock(txCtx, "ev-2", func(context.Context, model.Event) error { return nil })
		})
		if err == nil {
			t.Fatalf("expected nested lock to fail")
		}
	})
}

func TestMemoryStore_Counter(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seedMemoryEvent(t, s, "ev-1", 3)
	ctx := context.Background()

	if err := s.AdjustBookedCount(ctx, "ev-1", 4); !errors.Is(err, ErrCapacityFloor) {
		t.Fatalf("expected ErrCapacityFloor, got %v", err)
	}
	if err := s.AdjustBookedCount(ctx, "ev-1", 3); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	ev, _ := s.GetEvent(ctx, "ev-1")
	ev.Capacity = 2
	if err := s.UpdateEvent(ctx, ev); !errors.Is(err, ErrCapacityFloor) {
		t.Fatalf("expected ErrCapacityFloor shrinking capacity, got %v", err)
	}
}

func TestMemoryStore_Users(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	u := model.User{ID: "u-1", Email: "Sam@Example.com", IsActive: true, CreatedAt: memNow}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, model.User{ID: "u-2", Email: "sam@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if err := s.SoftDeleteUser(ctx, "u-1", memNow); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.SoftDeleteUser(ctx, "u-1", memNow.Add(time.Hour)); err != nil {
		t.Fatalf("delete again: %v", err)
	}
	got, _ := s.GetUser(ctx, "u-1")
	if !got.DeletedAt.Equal(memNow) {
		t.Fatalf("expected first deletion time kept, got %v", got.DeletedAt)
	}
}
