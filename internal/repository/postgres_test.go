package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/Shivanand-hulikatti/event-booking/internal/testutil"
)

var pgNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func insertEvent(t *testing.T, events *repository.EventRepository, capacity int, price int64) model.Event {
	t.Helper()
	ev := model.Event{
		ID:        uuid.NewString(),
		Title:     "Integration",
		Price:     price,
		Capacity:  capacity,
		Date:      pgNow.Add(72 * time.Hour),
		CreatedAt: pgNow,
		UpdatedAt: pgNow,
	}
	if err := events.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func newPGBookingService(pool *pgxpool.Pool, strategy service.CapacityStrategy) *service.BookingService {
	ledger := repository.NewBookingRepository(pool)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewBookingService(ledger, service.NewCapacity(ledger, strategy), clock.NewFixed(pgNow), logger)
}

func cardBooking(eventID string, qty int) service.SubmitBookingInput {
	return service.SubmitBookingInput{
		EventID:  eventID,
		Quantity: qty,
		Payment: service.PaymentDetails{
			Method:     model.PaymentCard,
			CardNumber: "5555555555554444",
			Expiry:     "02/31",
			CVV:        "321",
		},
	}
}

func TestPostgres_ConcurrentAdmission(t *testing.T) {
	pool := testutil.NewTestPool(t)
	events := repository.NewEventRepository(pool)
	ledger := repository.NewBookingRepository(pool)

	for _, strategy := range []service.CapacityStrategy{service.LedgerDerived, service.LiveCounter} {
		t.Run(string(strategy), func(t *testing.T) {
			svc := newPGBookingService(pool, strategy)
			ev := insertEvent(t, events, 5, 300)

			var wg sync.WaitGroup
			var mu sync.Mutex
			admitted, exceeded := 0, 0
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.SubmitBooking(context.Background(), uuid.NewString(), cardBooking(ev.ID, 1))
					mu.Lock()
					defer mu.Unlock()
					var capErr *model.CapacityExceededError
					switch {
					case err == nil:
						admitted++
					case errors.As(err, &capErr):
						exceeded++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if admitted != 5 || exceeded != 15 {
				t.Fatalf("expected 5 admitted and 15 rejected, got %d and %d", admitted, exceeded)
			}
			booked, err := ledger.BookedQuantity(context.Background(), ev.ID)
			if err != nil {
				t.Fatalf("booked quantity: %v", err)
			}
			if booked != 5 {
				t.Fatalf("expected 5 seats in ledger, got %d", booked)
			}

			stored, err := events.GetEvent(context.Background(), ev.ID)
			if err != nil {
				t.Fatalf("get event: %v", err)
			}
			wantCounter := 0
			if strategy == service.LiveCounter {
				wantCounter = 5
			}
			if stored.BookedCount != wantCounter {
				t.Fatalf("expected booked_count %d, got %d", wantCounter, stored.BookedCount)
			}
		})
	}
}

func TestPostgres_WithEventLock(t *testing.T) {
	pool := testutil.NewTestPool(t)
	events := repository.NewEventRepository(pool)
	ledger := repository.NewBookingRepository(pool)
	ctx := context.Background()

	t.Run("failed unit of work writes nothing", func(t *testing.T) {
		ev := insertEvent(t, events, 10, 100)
		boom := errors.New("boom")

		err := ledger.WithEventLock(ctx, ev.ID, func(txCtx context.Context, locked model.Event) error {
			if err := ledger.Append(txCtx, model.Booking{
				ID: uuid.NewString(), UserID: uuid.NewString(), EventID: locked.ID, Quantity: 2, TotalPrice: 200,
				PaymentMethod: model.PaymentCard, PaymentStatus: "paid", Status: model.BookingConfirmed, CreatedAt: pgNow,
			}); err != nil {
				return err
			}
			if err := ledger.AdjustBookedCount(txCtx, locked.ID, 2); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		booked, _ := ledger.BookedQuantity(ctx, ev.ID)
		stored, _ := events.GetEvent(ctx, ev.ID)
		if booked != 0 || stored.BookedCount != 0 {
			t.Fatalf("expected rollback, got ledger %d counter %d", booked, stored.BookedCount)
		}
	})

	t.Run("lock wait is bounded by the context", func(t *testing.T) {
		ev := insertEvent(t, events, 10, 100)
		held := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = ledger.WithEventLock(ctx, ev.ID, func(context.Context, model.Event) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := ledger.WithEventLock(waitCtx, ev.ID, func(context.Context, model.Event) error { return nil })
		cancel()
		close(release)
		<-done

		if !errors.Is(err, repository.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("other events are not blocked", func(t *testing.T) {
		a := insertEvent(t, events, 10, 100)
		b := insertEvent(t, events, 10, 100)
		held := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = ledger.WithEventLock(ctx, a.ID, func(context.Context, model.Event) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := ledger.WithEventLock(waitCtx, b.ID, func(context.Context, model.Event) error { return nil })
		cancel()
		close(release)
		<-done
		if err != nil {
			t.Fatalf("expected independent event lock, got %v", err)
		}
	})

	t.Run("counter never exceeds capacity", func(t *testing.T) {
		ev := insertEvent(t, events, 3, 100)
		if err := ledger.AdjustBookedCount(ctx, ev.ID, 4); !errors.Is(err, repository.ErrCapacityFloor) {
			t.Fatalf("expected ErrCapacityFloor, got %v", err)
		}
		if err := ledger.AdjustBookedCount(ctx, ev.ID, -1); !errors.Is(err, repository.ErrCapacityFloor) {
			t.Fatalf("expected ErrCapacityFloor below zero, got %v", err)
		}
	})

	t.Run("malformed and unknown ids are not found", func(t *testing.T) {
		if err := ledger.WithEventLock(ctx, "not-a-uuid", func(context.Context, model.Event) error { return nil }); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := ledger.WithEventLock(ctx, uuid.NewString(), func(context.Context, model.Event) error { return nil }); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPostgres_EventsAndStats(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	events := repository.NewEventRepository(pool)
	users := repository.NewUserRepository(pool)
	stats := repository.NewStatsRepository(pool)
	svc := newPGBookingService(pool, service.LedgerDerived)

	priced := insertEvent(t, events, 100, 300)
	other := insertEvent(t, events, 100, 500)
	buyer := uuid.NewString()
	for _, qty := range []int{1, 2, 3} {
		if _, err := svc.SubmitBooking(ctx, buyer, cardBooking(priced.ID, qty)); err != nil {
			t.Fatalf("book %d: %v", qty, err)
		}
	}
	b, err := svc.SubmitBooking(ctx, buyer, cardBooking(other.ID, 1))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.CancelBooking(ctx, buyer, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	revenue, err := stats.ConfirmedRevenue(ctx)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if revenue != 1800 {
		t.Fatalf("expected revenue 1800, got %d", revenue)
	}
	total, err := stats.CountBookings(ctx)
	if err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 bookings, got %d", total)
	}

	t.Run("capacity cannot drop below the counter", func(t *testing.T) {
		ev := insertEvent(t, events, 5, 100)
		if err := repository.NewBookingRepository(pool).AdjustBookedCount(ctx, ev.ID, 4); err != nil {
			t.Fatalf("adjust: %v", err)
		}
		ev.Capacity = 3
		if err := events.UpdateEvent(ctx, ev); !errors.Is(err, repository.ErrCapacityFloor) {
			t.Fatalf("expected ErrCapacityFloor, got %v", err)
		}
	})

	t.Run("emails are unique regardless of case", func(t *testing.T) {
		u := model.User{ID: uuid.NewString(), Name: "Lee", Email: "lee@example.com", PasswordHash: "x", Role: model.RoleUser, IsActive: true, CreatedAt: pgNow}
		if err := users.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		u.ID = uuid.NewString()
		u.Email = "LEE@example.com"
		if err := users.CreateUser(ctx, u); !errors.Is(err, repository.ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("soft delete keeps the first timestamp", func(t *testing.T) {
		u := model.User{ID: uuid.NewString(), Name: "Max", Email: "max@example.com", PasswordHash: "x", Role: model.RoleUser, IsActive: true, CreatedAt: pgNow}
		if err := users.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := users.SoftDeleteUser(ctx, u.ID, pgNow); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := users.SoftDeleteUser(ctx, u.ID, pgNow.Add(time.Hour)); err != nil {
			t.Fatalf("delete again: %v", err)
		}
		got, err := users.GetUser(ctx, u.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if got.DeletedAt == nil || !got.DeletedAt.Equal(pgNow) {
			t.Fatalf("expected deleted_at %v, got %v", pgNow, got.DeletedAt)
		}
	})
}
