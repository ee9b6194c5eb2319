package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const bookingColumns = `id, user_id, event_id, quantity, total_price, payment_method, payment_reference, payment_status, status, created_at`

// BookingRepository is the Postgres booking ledger.
type BookingRepository struct {
	q querier
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{q: querier{db: db}}
}

// WithEventLock runs fn in a transaction holding an exclusive row lock on the
// event.
//
// Two bookers that each read "9 of 10 seats taken" before either writes would
// both be admitted. SELECT … FOR UPDATE makes every other locker of the same
// row wait until this transaction commits or rolls back, so the
// read-remaining / append sequence executes one booker at a time per event.
// Lockers of other events are unaffected. The wait is bounded by the context
// deadline through lock_timeout.
//
// Every write fn performs through this repository (or any other repository in
// this package) joins the transaction, so either all of them commit or none.
func (r *BookingRepository) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, ev model.Event) error) error {
	if !validID(eventID) {
		return ErrNotFound
	}

	return withTx(ctx, r.q.db, func(txCtx context.Context) error {
		if err := r.q.setLockTimeout(txCtx); err != nil {
			return fmt.Errorf("set lock timeout: %w", classify(err))
		}

		ev, err := scanEvent(r.q.queryRow(txCtx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock event row: %w", classify(err))
		}
		return fn(txCtx, ev)
	})
}

// BookedQuantity sums the quantity of confirmed bookings for an event.
func (r *BookingRepository) BookedQuantity(ctx context.Context, eventID string) (int, error) {
	if !validID(eventID) {
		return 0, nil
	}
	var total int
	err := r.q.queryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM bookings WHERE event_id = $1 AND status = 'confirmed'`,
		eventID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum booked quantity: %w", classify(err))
	}
	return total, nil
}

// BookedQuantities returns confirmed quantities keyed by event id. Events
// without bookings are absent.
func (r *BookingRepository) BookedQuantities(ctx context.Context) (map[string]int, error) {
	rows, err := r.q.query(ctx,
		`SELECT event_id, SUM(quantity) FROM bookings WHERE status = 'confirmed' GROUP BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("sum booked quantities: %w", classify(err))
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var total int
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scan booked quantity: %w", err)
		}
		out[id] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booked quantities: %w", classify(err))
	}
	return out, nil
}

// AdjustBookedCount moves the live counter by delta. The update is
// conditional so the counter can never leave [0, capacity].
func (r *BookingRepository) AdjustBookedCount(ctx context.Context, eventID string, delta int) error {
	if !validID(eventID) {
		return ErrNotFound
	}
	tag, err := r.q.exec(ctx,
		`UPDATE events SET booked_count = booked_count + $2
		 WHERE id = $1 AND booked_count + $2 BETWEEN 0 AND capacity`,
		eventID, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust booked_count: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrCapacityFloor
	}
	return nil
}

// Exists reports whether the user holds a confirmed booking for the event.
func (r *BookingRepository) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	if !validID(userID) || !validID(eventID) {
		return false, nil
	}
	var exists bool
	err := r.q.queryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2 AND status = 'confirmed')`,
		userID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing booking: %w", classify(err))
	}
	return exists, nil
}

// Append records a new booking.
func (r *BookingRepository) Append(ctx context.Context, b model.Booking) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.UserID, b.EventID, b.Quantity, b.TotalPrice,
		b.PaymentMethod, b.PaymentReference, b.PaymentStatus, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", classify(err))
	}
	return nil
}

func scanBooking(row pgx.Row, extra ...any) (model.Booking, error) {
	var b model.Booking
	dest := append([]any{&b.ID, &b.UserID, &b.EventID, &b.Quantity, &b.TotalPrice,
		&b.PaymentMethod, &b.PaymentReference, &b.PaymentStatus, &b.Status, &b.CreatedAt}, extra...)
	err := row.Scan(dest...)
	return b, err
}

// GetBooking returns a single booking or ErrNotFound.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	if !validID(id) {
		return model.Booking{}, ErrNotFound
	}
	b, err := scanBooking(r.q.queryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, fmt.Errorf("get booking: %w", classify(err))
	}
	return b, nil
}

// SetBookingStatus flips a booking's status. Rows are never deleted.
func (r *BookingRepository) SetBookingStatus(ctx context.Context, id string, status model.BookingStatus) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.q.exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update booking status: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's bookings, newest first, joined with their events.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.q.query(ctx,
		`SELECT b.id, b.user_id, b.event_id, b.quantity, b.total_price, b.payment_method,
		        b.payment_reference, b.payment_status, b.status, b.created_at, e.title, e.date
		 FROM bookings b
		 JOIN events e ON e.id = b.event_id
		 WHERE b.user_id = $1
		 ORDER BY b.created_at DESC, b.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", classify(err))
	}
	defer rows.Close()

	var out []model.BookingDetail
	for rows.Next() {
		var d model.BookingDetail
		b, err := scanBooking(rows, &d.EventTitle, &d.EventDate)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		d.Booking = b
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", classify(err))
	}
	return out, nil
}

// BookedEventIDs returns the events the user holds a confirmed booking for.
func (r *BookingRepository) BookedEventIDs(ctx context.Context, userID string) (map[string]bool, error) {
	out := make(map[string]bool)
	if !validID(userID) {
		return out, nil
	}
	rows, err := r.q.query(ctx,
		`SELECT DISTINCT event_id FROM bookings WHERE user_id = $1 AND status = 'confirmed'`, userID)
	if err != nil {
		return nil, fmt.Errorf("list booked events: %w", classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booked event: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booked events: %w", classify(err))
	}
	return out, nil
}
