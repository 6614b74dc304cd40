package event

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLen       = 500
	MaxDescriptionLen = 10000
	MaxLocationLen    = 500
)

var ErrNotFound = errors.New("event not found")
var ErrNotOwner = errors.New("only the event owner may do this")
var ErrScheduleConflict = errors.New("another event by this owner is within the conflict window")

// titlePattern restricts titles to alphanumerics, whitespace and a small
// set of punctuation.
var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?()]+$`)

type Event struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Description          *string    `json:"description,omitempty"`
	DateTime             time.Time  `json:"date_time"`
	Location             *string    `json:"location,omitempty"`
	Capacity             int        `json:"capacity"`
	CurrentRegistrations int        `json:"current_registrations"`
	CreatedBy            int64      `json:"created_by"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description"`
	DateTime    time.Time `json:"date_time" binding:"required"`
	Location    *string   `json:"location"`
	Capacity    int       `json:"capacity" binding:"required"`
}

// UpdateEventRequest carries only the fields the caller wants to change.
type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DateTime    *time.Time `json:"date_time"`
	Location    *string    `json:"location"`
	Capacity    *int       `json:"capacity"`
}

// Policy holds the configurable bounds every draft is validated against.
type Policy struct {
	MinLeadTime    time.Duration
	MaxLeadTime    time.Duration
	MinCapacity    int
	MaxCapacity    int
	ConflictWindow time.Duration
}

// FieldError names the offending field so the HTTP edge can echo it back.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Message
}

func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)

	if title == "" {
		return &FieldError{Field: "title", Message: "must not be empty"}
	}

	if utf8.RuneCountInString(title) > MaxTitleLen {
		return &FieldError{Field: "title", Message: "must be at most 500 characters"}
	}

	if !titlePattern.MatchString(title) {
		return &FieldError{Field: "title", Message: "contains disallowed characters"}
	}

	return nil
}

func ValidateDescription(desc *string) error {
	if desc == nil {
		return nil
	}

	if utf8.RuneCountInString(*desc) > MaxDescriptionLen {
		return &FieldError{Field: "description", Message: "must be at most 10000 characters"}
	}

	return nil
}

func ValidateLocation(loc *string) error {
	if loc == nil {
		return nil
	}

	if utf8.RuneCountInString(*loc) > MaxLocationLen {
		return &FieldError{Field: "location", Message: "must be at most 500 characters"}
	}

	return nil
}

func (p Policy) ValidateCapacity(capacity int) error {
	if capacity < p.MinCapacity || capacity > p.MaxCapacity {
		return &FieldError{
			Field:   "capacity",
			Message: "must be between " + itoa(p.MinCapacity) + " and " + itoa(p.MaxCapacity),
		}
	}

	return nil
}

// ValidateDateTime checks the scheduling window: the event must start
// strictly after now+MinLeadTime and no later than now+MaxLeadTime.
func (p Policy) ValidateDateTime(dateTime, now time.Time) error {
	if !dateTime.After(now.Add(p.MinLeadTime)) {
		return &FieldError{Field: "date_time", Message: "must be at least " + p.MinLeadTime.String() + " in the future"}
	}

	if dateTime.After(now.Add(p.MaxLeadTime)) {
		return &FieldError{Field: "date_time", Message: "must be within " + p.MaxLeadTime.String() + " from now"}
	}

	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
