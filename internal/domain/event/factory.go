package event

import (
	"strings"
	"time"
)

// NewFromCreateRequest builds the row to persist; the counter always starts
// at zero and the store assigns the id.
func NewFromCreateRequest(req CreateEventRequest, ownerID int64, now time.Time) Event {
	return Event{
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		DateTime:             req.DateTime.UTC(),
		Location:             req.Location,
		Capacity:             req.Capacity,
		CurrentRegistrations: 0,
		CreatedBy:            ownerID,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
