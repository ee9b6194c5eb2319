package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

func newEventHarness(t *testing.T, now time.Time, strategy CapacityStrategy, opts ...EventServiceOption) (*EventService, *BookingService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	capacity := NewCapacity(store, strategy)
	clk := clock.NewFixed(now)
	events := NewEventService(store, store, capacity, clk, discardLogger(), opts...)
	bookings := NewBookingService(store, capacity, clk, discardLogger())
	return events, bookings, store
}

func ptr[T any](v T) *T { return &v }

func TestEventService_CreateEvent(t *testing.T) {
	t.Parallel()

	t.Run("stores a valid event", func(t *testing.T) {
		svc, _, store := newEventHarness(t, testNow, LedgerDerived)

		ev, err := svc.CreateEvent(context.Background(), CreateEventInput{
			Title:    "  Rock Night ",
			Price:    1500,
			Capacity: 200,
			Date:     "2025-04-01T19:30:00+06:00",
			Location: "Dhaka",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ev.Title != "Rock Night" {
			t.Fatalf("expected trimmed title, got %q", ev.Title)
		}
		want := time.Date(2025, 4, 1, 13, 30, 0, 0, time.UTC)
		if !ev.Date.Equal(want) || ev.Date.Location() != time.UTC {
			t.Fatalf("expected date %v in UTC, got %v", want, ev.Date)
		}
		if _, err := store.GetEvent(context.Background(), ev.ID); err != nil {
			t.Fatalf("expected event persisted, got %v", err)
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		svc, _, _ := newEventHarness(t, testNow, LedgerDerived)

		_, err := svc.CreateEvent(context.Background(), CreateEventInput{
			Price:    -1,
			Capacity: 0,
			Date:     "tomorrow",
		})
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"title", "price", "capacity", "date"} {
			if _, ok := verr.Fields[field]; !ok {
				t.Fatalf("expected %s field error, got %v", field, verr.Fields)
			}
		}
	})

	t.Run("caps the price", func(t *testing.T) {
		svc, _, store := newEventHarness(t, testNow, LedgerDerived)

		_, err := svc.CreateEvent(context.Background(), CreateEventInput{
			Title:    "Gala",
			Price:    MaxPrice + 1,
			Capacity: 10,
			Date:     "2025-03-01T19:00:00Z",
		})
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := verr.Fields["price"]; !ok {
			t.Fatalf("expected price field error, got %v", verr.Fields)
		}

		seedEvent(t, store, "ev-1", 10, 100)
		_, err = svc.UpdateEvent(context.Background(), "ev-1", UpdateEventInput{Price: ptr(MaxPrice + 1)})
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error on update, got %v", err)
		}
		if _, ok := verr.Fields["price"]; !ok {
			t.Fatalf("expected price field error on update, got %v", verr.Fields)
		}
		if _, err := svc.CreateEvent(context.Background(), CreateEventInput{
			Title: "Gala", Price: MaxPrice, Capacity: 10, Date: "2025-03-01T19:00:00Z",
		}); err != nil {
			t.Fatalf("expected price at the cap accepted, got %v", err)
		}
	})
}

func TestEventService_UpdateEvent(t *testing.T) {
	t.Parallel()

	for _, strategy := range []CapacityStrategy{LedgerDerived, LiveCounter} {
		strategy := strategy
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()
			svc, bookings, store := newEventHarness(t, testNow, strategy)
			seedEvent(t, store, "ev-1", 10, 100)

			if _, err := book(bookings, "user-1", "ev-1", 4); err != nil {
				t.Fatalf("book: %v", err)
			}

			_, err := svc.UpdateEvent(context.Background(), "ev-1", UpdateEventInput{Capacity: ptr(3)})
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error shrinking below booked seats, got %v", err)
			}
			if _, ok := verr.Fields["capacity"]; !ok {
				t.Fatalf("expected capacity field error, got %v", verr.Fields)
			}

			updated, err := svc.UpdateEvent(context.Background(), "ev-1", UpdateEventInput{Capacity: ptr(4), Price: ptr(int64(250))})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Capacity != 4 || updated.Price != 250 {
				t.Fatalf("unexpected update result %+v", updated)
			}

			remaining, err := bookings.Remaining(context.Background(), "ev-1")
			if err != nil {
				t.Fatalf("remaining: %v", err)
			}
			if remaining != 0 {
				t.Fatalf("expected remaining 0, got %d", remaining)
			}

			history, err := bookings.MyBookings(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("my bookings: %v", err)
			}
			if history[0].TotalPrice != 400 {
				t.Fatalf("expected price snapshot 400 to survive the edit, got %d", history[0].TotalPrice)
			}
		})
	}

	t.Run("unknown event is not found", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newEventHarness(t, testNow, LedgerDerived)

		_, err := svc.UpdateEvent(context.Background(), "missing", UpdateEventInput{Title: ptr("x")})
		var nf *model.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestEventService_ListEvents(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	svc, bookings, store := newEventHarness(t, now, LedgerDerived, WithLiveWindow(2*time.Hour))

	seed := func(id string, date time.Time, created time.Time, capacity int) {
		t.Helper()
		err := store.CreateEvent(context.Background(), model.Event{
			ID: id, Title: id, Price: 100, Capacity: capacity, Date: date, CreatedAt: created, UpdatedAt: created,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seed("future", now.Add(24*time.Hour), now.Add(-3*time.Hour), 10)
	seed("live", now.Add(-time.Hour), now.Add(-2*time.Hour), 5)
	seed("past", now.Add(-5*time.Hour), now.Add(-time.Hour), 5)

	if _, err := book(bookings, "user-1", "live", 2); err != nil {
		t.Fatalf("book: %v", err)
	}

	t.Run("annotates booked and live for the viewer", func(t *testing.T) {
		views, err := svc.ListEvents(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(views) != 3 {
			t.Fatalf("expected 3 events, got %d", len(views))
		}
		if views[0].ID != "past" || views[1].ID != "live" || views[2].ID != "future" {
			t.Fatalf("expected date order past, live, future; got %s, %s, %s", views[0].ID, views[1].ID, views[2].ID)
		}
		live := views[1]
		if !live.IsLive || !live.IsBooked || live.Remaining != 3 {
			t.Fatalf("unexpected live view %+v", live)
		}
		if views[0].IsLive || views[2].IsLive {
			t.Fatalf("expected only the running event to be live")
		}
		if views[2].IsBooked {
			t.Fatalf("expected future event not booked")
		}
	})

	t.Run("anonymous viewers see nothing booked", func(t *testing.T) {
		views, err := svc.ListEvents(context.Background(), "")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, v := range views {
			if v.IsBooked {
				t.Fatalf("expected %s not booked for anonymous viewer", v.ID)
			}
		}
	})

	t.Run("recent order lists newest first", func(t *testing.T) {
		recent := NewEventService(store, store, NewCapacity(store, LedgerDerived), clock.NewFixed(now), discardLogger(), WithEventOrder(model.OrderByRecent))
		views, err := recent.ListEvents(context.Background(), "")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if views[0].ID != "past" || views[2].ID != "future" {
			t.Fatalf("expected newest first, got %s first and %s last", views[0].ID, views[2].ID)
		}
	})
}
