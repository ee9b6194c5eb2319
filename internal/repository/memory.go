package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// MemoryStore keeps the catalog, ledger and accounts in process memory. It
// satisfies the same contracts as the Postgres repositories.
//
// Admission serialisation uses one lock per event, so bookers of different
// events never wait on each other. Writes issued inside WithEventLock are
// staged and applied together when fn succeeds; reads inside fn see the
// committed state.
type MemoryStore struct {
	mu       sync.RWMutex
	events   map[string]model.Event
	bookings map[string]model.Booking
	seq      map[string]int
	nextSeq  int
	users    map[string]model.User

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]model.Event),
		bookings: make(map[string]model.Booking),
		seq:      make(map[string]int),
		users:    make(map[string]model.User),
		locks:    make(map[string]chan struct{}),
	}
}

type memTxKey struct{}

type memTx struct {
	ops []func()
}

// write applies op now, or stages it when ctx carries an open transaction.
// Callers hold no lock; op runs under s.mu.
func (s *MemoryStore) write(ctx context.Context, op func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.ops = append(tx.ops, op)
		return
	}
	s.mu.Lock()
	op()
	s.mu.Unlock()
}

func (s *MemoryStore) eventLock(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// WithEventLock serialises fn with every other WithEventLock call for the
// same event. Waiting is bounded by ctx.
func (s *MemoryStore) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, ev model.Event) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fmt.Errorf("nested event lock on %s", eventID)
	}

	s.mu.RLock()
	_, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	lock := s.eventLock(eventID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for event lock: %w", ErrUnavailable, ctx.Err())
	}
	defer func() { <-lock }()

	s.mu.RLock()
	ev := s.events[eventID]
	s.mu.RUnlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx), ev); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrUnavailable, err)
	}

	s.mu.Lock()
	for _, op := range tx.ops {
		op()
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("insert event: duplicate id %s", e.ID)
	}
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) UpdateEvent(ctx context.Context, e model.Event) error {
	s.mu.RLock()
	cur, ok := s.events[e.ID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if e.Capacity < cur.BookedCount {
		return ErrCapacityFloor
	}
	s.write(ctx, func() {
		latest := s.events[e.ID]
		e.BookedCount = latest.BookedCount
		e.CreatedAt = latest.CreatedAt
		s.events[e.ID] = e
	})
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, order model.EventOrder) ([]model.Event, error) {
	s.mu.RLock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if order == model.OrderByRecent {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return events, nil
}

func (s *MemoryStore) BookedQuantity(_ context.Context, eventID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, b := range s.bookings {
		if b.EventID == eventID && b.Status == model.BookingConfirmed {
			total += b.Quantity
		}
	}
	return total, nil
}

func (s *MemoryStore) BookedQuantities(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, b := range s.bookings {
		if b.Status == model.BookingConfirmed {
			out[b.EventID] += b.Quantity
		}
	}
	return out, nil
}

func (s *MemoryStore) AdjustBookedCount(ctx context.Context, eventID string, delta int) error {
	s.mu.RLock()
	e, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if next := e.BookedCount + delta; next < 0 || next > e.Capacity {
		return ErrCapacityFloor
	}
	s.write(ctx, func() {
		e := s.events[eventID]
		e.BookedCount += delta
		s.events[eventID] = e
	})
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, userID, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Status == model.BookingConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Append(ctx context.Context, b model.Booking) error {
	s.mu.RLock()
	_, dup := s.bookings[b.ID]
	_, eventOK := s.events[b.EventID]
	s.mu.RUnlock()
	if dup {
		return fmt.Errorf("insert booking: duplicate id %s", b.ID)
	}
	if !eventOK {
		return ErrNotFound
	}
	s.write(ctx, func() {
		s.nextSeq++
		s.seq[b.ID] = s.nextSeq
		s.bookings[b.ID] = b
	})
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) SetBookingStatus(ctx context.Context, id string, status model.BookingStatus) error {
	s.mu.RLock()
	_, ok := s.bookings[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	s.write(ctx, func() {
		b := s.bookings[id]
		b.Status = status
		s.bookings[id] = b
	})
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BookingDetail
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		e := s.events[b.EventID]
		out = append(out, model.BookingDetail{Booking: b, EventTitle: e.Title, EventDate: e.Date})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.seq[a.ID] > s.seq[b.ID]
	})
	return out, nil
}

func (s *MemoryStore) BookedEventIDs(_ context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, b := range s.bookings {
		if b.UserID == userID && b.Status == model.BookingConfirmed {
			out[b.EventID] = true
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *MemoryStore) ToggleUserActive(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.IsActive = !u.IsActive
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) SoftDeleteUser(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.DeletedAt == nil {
		u.DeletedAt = &at
	}
	s.users[id] = u
	return nil
}

func (s *MemoryStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	s.users[id] = u
	return nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *MemoryStore) CountEvents(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

func (s *MemoryStore) CountBookings(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings), nil
}

func (s *MemoryStore) ConfirmedRevenue(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, b := range s.bookings {
		if b.Status == model.BookingConfirmed {
			total += b.TotalPrice
		}
	}
	return total, nil
}
