package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const eventColumns = `id, title, description, price, capacity, booked_count, date, location, category, created_at, updated_at`

// EventRepository handles persistence for the event catalog.
type EventRepository struct {
	q querier
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{q: querier{db: db}}
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Price, &e.Capacity, &e.BookedCount,
		&e.Date, &e.Location, &e.Category, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, e model.Event) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Title, e.Description, e.Price, e.Capacity, e.BookedCount,
		e.Date, e.Location, e.Category, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", classify(err))
	}
	return nil
}

// UpdateEvent overwrites the editable fields of an event. booked_count is
// left alone; it only moves through AdjustBookedCount.
func (r *EventRepository) UpdateEvent(ctx context.Context, e model.Event) error {
	if !validID(e.ID) {
		return ErrNotFound
	}
	tag, err := r.q.exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, price = $4, capacity = $5,
		     date = $6, location = $7, category = $8, updated_at = $9
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Price, e.Capacity, e.Date, e.Location, e.Category, e.UpdatedAt,
	)
	if err != nil {
		if isCheckViolation(err) {
			return ErrCapacityFloor
		}
		return fmt.Errorf("update event: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEvent returns a single event or ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (model.Event, error) {
	if !validID(id) {
		return model.Event{}, ErrNotFound
	}
	e, err := scanEvent(r.q.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, fmt.Errorf("get event: %w", classify(err))
	}
	return e, nil
}

// ListEvents returns all events in the requested order.
func (r *EventRepository) ListEvents(ctx context.Context, order model.EventOrder) ([]model.Event, error) {
	orderBy := `date ASC, created_at ASC`
	if order == model.OrderByRecent {
		orderBy = `created_at DESC`
	}

	rows, err := r.q.query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY `+orderBy+`, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", classify(err))
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", classify(err))
	}
	return events, nil
}
