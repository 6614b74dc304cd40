package registration

import (
	"errors"
	"time"
)

// Status values a registration row may carry. The engine only ever produces
// confirmed and cancelled; waitlist and pending exist in the schema for a
// future waitlist policy.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusWaitlist  Status = "waitlist"
	StatusPending   Status = "pending"
)

type Registration struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	EventID      int64     `json:"event_id"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Attendee is the slice of a registration visible on the event detail page.
type Attendee struct {
	UserID       int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

var ErrAlreadyRegistered = errors.New("already registered for this event")
var ErrEventFull = errors.New("event has reached maximum capacity")
var ErrEventPast = errors.New("event has already started")
var ErrNotRegistered = errors.New("no registration for this event")
var ErrForbidden = errors.New("you can only cancel your own registration")

// RegisterRequest is the optional body of the register route. Only an admin
// may set UserID to act on behalf of another user.
type RegisterRequest struct {
	UserID int64 `json:"user_id"`
}

type BatchRegisterRequest struct {
	UserIDs []int64 `json:"user_ids" binding:"required,min=1,max=100"`
}
