// Package model defines the core domain types for the event booking system.
package model

import "time"

// Event represents a bookable event created by an admin.
//
// Price is expressed in minor currency units. Capacity is the ceiling for all
// confirmed bookings; BookedCount is only maintained under the counter
// capacity strategy.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"-"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsLiveAt reports whether now falls within [Date, Date+window).
func (e *Event) IsLiveAt(now time.Time, window time.Duration) bool {
	return !now.Before(e.Date) && now.Before(e.Date.Add(window))
}

// EventView is an event annotated for a particular viewer.
type EventView struct {
	Event
	Remaining int  `json:"remaining"`
	IsBooked  bool `json:"is_booked"`
	IsLive    bool `json:"is_live"`
}

// EventOrder selects the ordering of catalog listings.
type EventOrder string

const (
	OrderByDate   EventOrder = "date"
	OrderByRecent EventOrder = "recent"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "card"
	PaymentBkash PaymentMethod = "bkash"
)

// Booking is a ledger entry. TotalPrice is the event price times quantity at
// the moment of admission and never changes afterwards.
type Booking struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	EventID          string        `json:"event_id"`
	Quantity         int           `json:"quantity"`
	TotalPrice       int64         `json:"total_price"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	PaymentStatus    string        `json:"payment_status"`
	Status           BookingStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// BookingDetail is a booking joined with the event it references.
type BookingDetail struct {
	Booking
	EventTitle string    `json:"event_title"`
	EventDate  time.Time `json:"event_date"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account. DeletedAt marks a soft deletion; bookings owned by a
// deleted user stay in the ledger.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CanAct returns true when the account is neither suspended nor deleted.
func (u *User) CanAct() bool {
	return u.IsActive && u.DeletedAt == nil
}

// Stats are the aggregate figures shown on the admin dashboard.
type Stats struct {
	TotalUsers    int   `json:"total_users"`
	TotalEvents   int   `json:"total_events"`
	TotalBookings int   `json:"total_bookings"`
	TotalRevenue  int64 `json:"total_revenue"`
}

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
