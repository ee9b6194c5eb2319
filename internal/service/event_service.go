package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// EventStore persists the event catalog.
type EventStore interface {
	CreateEvent(ctx context.Context, e model.Event) error
	UpdateEvent(ctx context.Context, e model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, order model.EventOrder) ([]model.Event, error)
}

const defaultLiveWindow = 3 * time.Hour

// EventService orchestrates catalog operations.
type EventService struct {
	events     EventStore
	ledger     Ledger
	capacity   *Capacity
	clock      clock.Clock
	logger     *slog.Logger
	liveWindow time.Duration
	order      model.EventOrder
}

type EventServiceOption func(*EventService)

// WithLiveWindow sets how long after its start an event counts as live.
func WithLiveWindow(d time.Duration) EventServiceOption {
	return func(s *EventService) {
		if d > 0 {
			s.liveWindow = d
		}
	}
}

// WithEventOrder sets the listing order.
func WithEventOrder(o model.EventOrder) EventServiceOption {
	return func(s *EventService) {
		if o == model.OrderByDate || o == model.OrderByRecent {
			s.order = o
		}
	}
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, ledger Ledger, capacity *Capacity, clk clock.Clock, logger *slog.Logger, opts ...EventServiceOption) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &EventService{
		events:     events,
		ledger:     ledger,
		capacity:   capacity,
		clock:      clk,
		logger:     logger,
		liveWindow: defaultLiveWindow,
		order:      model.OrderByDate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxPrice caps an event price, in minor units.
const MaxPrice int64 = 1_000_000_000_000

type CreateEventInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Price       int64  `json:"price" validate:"gte=0,lte=1000000000000"`
	Capacity    int    `json:"capacity" validate:"gte=1,lte=100000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Location    string `json:"location" validate:"max=300"`
	Category    string `json:"category" validate:"max=100"`
}

// UpdateEventInput carries the fields to change; nil fields stay as they are.
type UpdateEventInput struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0,lte=1000000000000"`
	Capacity    *int    `json:"capacity" validate:"omitempty,gte=1,lte=100000"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Location    *string `json:"location" validate:"omitempty,max=300"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
}

// CreateEvent validates the request and stores a new event.
func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (model.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return model.Event{}, err
	}
	date, err := time.Parse(time.RFC3339, in.Date)
	if err != nil {
		return model.Event{}, model.NewValidationError("date", "must be an RFC 3339 timestamp")
	}

	now := s.clock.Now()
	event := model.Event{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Capacity:    in.Capacity,
		Date:        date.UTC(),
		Location:    strings.TrimSpace(in.Location),
		Category:    strings.TrimSpace(in.Category),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return model.Event{}, translate("create event", "event", event.ID, err)
	}

	s.logger.Info("event created", "event_id", event.ID, "capacity", event.Capacity, "price", event.Price)
	return event, nil
}

// UpdateEvent applies an admin edit. Capacity may not drop below the seats
// already booked; the check and the write share the event lock with
// admissions. Price edits leave existing bookings untouched.
func (s *EventService) UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (model.Event, error) {
	if err := validateStruct(in); err != nil {
		return model.Event{}, err
	}
	var date time.Time
	if in.Date != nil {
		parsed, err := time.Parse(time.RFC3339, *in.Date)
		if err != nil {
			return model.Event{}, model.NewValidationError("date", "must be an RFC 3339 timestamp")
		}
		date = parsed.UTC()
	}

	var updated model.Event
	err := s.ledger.WithEventLock(ctx, id, func(txCtx context.Context, ev model.Event) error {
		if in.Title != nil {
			ev.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			ev.Description = *in.Description
		}
		if in.Price != nil {
			ev.Price = *in.Price
		}
		if in.Date != nil {
			ev.Date = date
		}
		if in.Location != nil {
			ev.Location = strings.TrimSpace(*in.Location)
		}
		if in.Category != nil {
			ev.Category = strings.TrimSpace(*in.Category)
		}
		if in.Capacity != nil {
			booked, err := s.capacity.booked(txCtx, ev)
			if err != nil {
				return err
			}
			if *in.Capacity < booked {
				return model.NewValidationError("capacity", fmt.Sprintf("must be at least %d, the number of seats already booked", booked))
			}
			ev.Capacity = *in.Capacity
		}
		if ev.Title == "" {
			return model.NewValidationError("title", "is required")
		}
		ev.UpdatedAt = s.clock.Now()

		if err := s.events.UpdateEvent(txCtx, ev); err != nil {
			if errors.Is(err, repository.ErrCapacityFloor) {
				return model.NewValidationError("capacity", "must not be below the seats already booked")
			}
			return err
		}
		updated = ev
		return nil
	})
	if err != nil {
		return model.Event{}, translate("update event", "event", id, err)
	}

	s.logger.Info("event updated", "event_id", id)
	return updated, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (model.Event, error) {
	if id == "" {
		return model.Event{}, model.NewValidationError("id", "is required")
	}
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, translate("get event", "event", id, err)
	}
	return event, nil
}

// ListEvents returns the catalog annotated for viewerID, who may be empty
// for anonymous callers.
func (s *EventService) ListEvents(ctx context.Context, viewerID string) ([]model.EventView, error) {
	events, err := s.events.ListEvents(ctx, s.order)
	if err != nil {
		return nil, translate("list events", "event", "", err)
	}

	remaining, err := s.capacity.remainingAll(ctx, events)
	if err != nil {
		return nil, translate("list events", "event", "", err)
	}

	booked := map[string]bool{}
	if viewerID != "" {
		booked, err = s.ledger.BookedEventIDs(ctx, viewerID)
		if err != nil {
			return nil, translate("list events", "event", "", err)
		}
	}

	now := s.clock.Now()
	views := make([]model.EventView, 0, len(events))
	for _, ev := range events {
		views = append(views, model.EventView{
			Event:     ev,
			Remaining: remaining[ev.ID],
			IsBooked:  booked[ev.ID],
			IsLive:    ev.IsLiveAt(now, s.liveWindow),
		})
	}
	return views, nil
}
