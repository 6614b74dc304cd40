package engine

import (
	"time"

	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/domain/registration"
)

type action int

const (
	actionInsert action = iota
	actionReactivate
)

// decide maps the locked event row and the caller's existing registration
// (nil when absent) to the mutation to perform, or to the outcome error that
// rejects the request. It is pure: the transaction body executes whatever
// comes back while still holding the event lock.
func decide(e event.Event, existing *registration.Registration, now time.Time) (action, error) {
	if !e.IsActive {
		return 0, event.ErrNotFound
	}

	if !e.DateTime.After(now) {
		return 0, registration.ErrEventPast
	}

	full := e.CurrentRegistrations >= e.Capacity

	if existing == nil {
		if full {
			return 0, registration.ErrEventFull
		}
		return actionInsert, nil
	}

	switch existing.Status {
	case registration.StatusCancelled:
		if full {
			return 0, registration.ErrEventFull
		}
		return actionReactivate, nil
	default:
		// confirmed, waitlist and pending all count as an active registration
		return 0, registration.ErrAlreadyRegistered
	}
}

// decideCancel validates a cancellation against the locked event row and the
// target's registration.
func decideCancel(e event.Event, existing *registration.Registration, now time.Time) error {
	if !e.IsActive {
		return event.ErrNotFound
	}

	if !e.DateTime.After(now) {
		return registration.ErrEventPast
	}

	if existing == nil || existing.Status != registration.StatusConfirmed {
		return registration.ErrNotRegistered
	}

	return nil
}
