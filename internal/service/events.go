package service

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/jackc/pgx/v5"
)

var ErrCapacityBelowRegistrations = errors.New("capacity cannot be reduced below current registrations")
var ErrDateTimeLocked = errors.New("date and time cannot change once the event has started")

// Viewer identifies the caller of a read operation. A zero Viewer is
// anonymous.
type Viewer struct {
	UserID int64
	Role   string
}

func (v Viewer) Anonymous() bool {
	return v.UserID == 0
}

func (v Viewer) Elevated() bool {
	return v.Role == "admin"
}

type EventsStore interface {
	Create(ctx context.Context, e event.Event) (event.Event, error)
	GetByID(ctx context.Context, id int64) (event.Event, error)
	ListUpcoming(ctx context.Context, filter event.ListFilter, now time.Time) ([]event.Event, int, error)
	HasOwnerConflict(ctx context.Context, ownerID int64, dateTime time.Time, window time.Duration, excludeID int64) (bool, error)
	LockForUpdate(ctx context.Context, tx pgx.Tx, id int64) (event.Event, error)
	UpdateLocked(ctx context.Context, tx pgx.Tx, e event.Event) (event.Event, error)
	Delete(ctx context.Context, id int64) error
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type RegistrationsStore interface {
	HasConfirmed(ctx context.Context, userID, eventID int64) (bool, error)
	ListAttendees(ctx context.Context, eventID int64) ([]registration.Attendee, error)
}

// Events owns event lifecycle policy: field validation, the owner
// scheduling-conflict window, viewer-aware detail views and the upcoming
// listing.
type Events struct {
	store  EventsStore
	regs   RegistrationsStore
	clk    clock.Clock
	policy event.Policy
}

func NewEvents(store EventsStore, regs RegistrationsStore, clk clock.Clock, policy event.Policy) *Events {
	return &Events{
		store:  store,
		regs:   regs,
		clk:    clk,
		policy: policy,
	}
}

func (s *Events) validateDraft(title string, desc, loc *string, capacity int, dateTime, now time.Time) error {
	if err := event.ValidateTitle(title); err != nil {
		return err
	}

	if err := event.ValidateDescription(desc); err != nil {
		return err
	}

	if err := event.ValidateLocation(loc); err != nil {
		return err
	}

	if err := s.policy.ValidateCapacity(capacity); err != nil {
		return err
	}

	return s.policy.ValidateDateTime(dateTime, now)
}

func (s *Events) Create(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error) {
	now := s.clk.Now()

	err := s.validateDraft(req.Title, req.Description, req.Location, req.Capacity, req.DateTime, now)

	if err != nil {
		return event.Event{}, err
	}

	conflict, err := s.store.HasOwnerConflict(ctx, ownerID, req.DateTime, s.policy.ConflictWindow, 0)

	if err != nil {
		return event.Event{}, err
	}

	if conflict {
		return event.Event{}, event.ErrScheduleConflict
	}

	return s.store.Create(ctx, event.NewFromCreateRequest(req, ownerID, now))
}

// Permissions are what the viewer may do with the event.
type Permissions struct {
	CanEdit      bool `json:"can_edit"`
	IsRegistered bool `json:"is_registered"`
	CanRegister  bool `json:"can_register"`
}

type EventView struct {
	event.Event

	AvailableSpots  int         `json:"available_spots"`
	IsFull          bool        `json:"is_full"`
	TimeUntilEvent  int64       `json:"time_until_event"` // seconds, negative once started
	HasStarted      bool        `json:"has_started"`
	UserPermissions Permissions `json:"user_permissions"`

	// RegisteredUsers is only populated for the owner or a confirmed
	// attendee; everyone else gets the count alone.
	RegisteredUsers []registration.Attendee `json:"registered_users,omitempty"`
	RegisteredCount int                     `json:"registered_count"`
}

func (s *Events) Detail(ctx context.Context, id int64, viewer Viewer) (EventView, error) {
	e, err := s.store.GetByID(ctx, id)

	if err != nil {
		return EventView{}, err
	}

	now := s.clk.Now()

	view := EventView{
		Event:           e,
		AvailableSpots:  e.Capacity - e.CurrentRegistrations,
		IsFull:          e.CurrentRegistrations >= e.Capacity,
		TimeUntilEvent:  int64(e.DateTime.Sub(now).Seconds()),
		HasStarted:      !e.DateTime.After(now),
		RegisteredCount: e.CurrentRegistrations,
	}

	isOwner := !viewer.Anonymous() && viewer.UserID == e.CreatedBy

	isRegistered := false

	if !viewer.Anonymous() {
		isRegistered, err = s.regs.HasConfirmed(ctx, viewer.UserID, e.ID)

		if err != nil {
			return EventView{}, err
		}
	}

	view.UserPermissions = Permissions{
		CanEdit:      isOwner,
		IsRegistered: isRegistered,
		CanRegister: !viewer.Anonymous() && !isOwner && !isRegistered &&
			!view.HasStarted && !view.IsFull,
	}

	if isOwner || isRegistered {
		view.RegisteredUsers, err = s.regs.ListAttendees(ctx, e.ID)

		if err != nil {
			return EventView{}, err
		}
	}

	return view, nil
}

// NormalizeFilter applies defaults and rejects out-of-range listing
// parameters before a query is built.
func NormalizeFilter(f event.ListFilter) (event.ListFilter, error) {
	if f.Page == 0 {
		f.Page = 1
	}

	if f.Page < 1 {
		return f, &event.FieldError{Field: "page", Message: "must be at least 1"}
	}

	if f.Limit == 0 {
		f.Limit = 10
	}

	if f.Limit < 1 || f.Limit > 100 {
		return f, &event.FieldError{Field: "limit", Message: "must be between 1 and 100"}
	}

	if f.SortBy == "" {
		f.SortBy = "date_time"
	}

	if _, ok := event.SortColumns[f.SortBy]; !ok {
		return f, &event.FieldError{Field: "sort_by", Message: "is not a sortable column"}
	}

	switch f.SortOrder {
	case "", "ASC", "DESC", "asc", "desc":
	default:
		return f, &event.FieldError{Field: "sort_order", Message: "must be ASC or DESC"}
	}

	if f.MinCapacity != nil && *f.MinCapacity < 0 {
		return f, &event.FieldError{Field: "min_capacity", Message: "must not be negative"}
	}

	if f.MinCapacity != nil && f.MaxCapacity != nil && *f.MaxCapacity < *f.MinCapacity {
		return f, &event.FieldError{Field: "max_capacity", Message: "must be at least min_capacity"}
	}

	if f.DateFrom != nil && f.DateTo != nil && !f.DateTo.After(*f.DateFrom) {
		return f, &event.FieldError{Field: "date_to", Message: "must be after date_from"}
	}

	return f, nil
}

func (s *Events) ListUpcoming(ctx context.Context, filter event.ListFilter) ([]event.Event, event.PageInfo, error) {
	filter, err := NormalizeFilter(filter)

	if err != nil {
		return nil, event.PageInfo{}, err
	}

	items, total, err := s.store.ListUpcoming(ctx, filter, s.clk.Now())

	if err != nil {
		return nil, event.PageInfo{}, err
	}

	return items, event.NewPageInfo(filter.Page, filter.Limit, total), nil
}

// Update rewrites an event's mutable fields under the event row lock. Only
// the owner (or an elevated actor) may update; capacity may not fall below
// the confirmed count and a started event keeps its date.
func (s *Events) Update(ctx context.Context, actor Viewer, id int64, req event.UpdateEventRequest) (updated event.Event, err error) {
	tx, err := s.store.BeginTx(ctx)

	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	e, err := s.store.LockForUpdate(ctx, tx, id)

	if err != nil {
		return
	}

	if !e.IsActive {
		err = event.ErrNotFound
		return
	}

	if e.CreatedBy != actor.UserID && !actor.Elevated() {
		err = event.ErrNotOwner
		return
	}

	now := s.clk.Now()
	started := !e.DateTime.After(now)

	if req.Title != nil {
		e.Title = *req.Title
	}

	if req.Description != nil {
		e.Description = req.Description
	}

	if req.Location != nil {
		e.Location = req.Location
	}

	if req.Capacity != nil {
		if *req.Capacity < e.CurrentRegistrations {
			err = ErrCapacityBelowRegistrations
			return
		}
		e.Capacity = *req.Capacity
	}

	dateMoved := req.DateTime != nil && !req.DateTime.Equal(e.DateTime)

	if dateMoved {
		if started {
			err = ErrDateTimeLocked
			return
		}

		e.DateTime = req.DateTime.UTC()
	}

	err = s.validateDraft(e.Title, e.Description, e.Location, e.Capacity, e.DateTime, now)

	if err != nil {
		// a started event's original date no longer passes the lead-time
		// window; only re-check the window when the date moved
		var fe *event.FieldError
		if !(errors.As(err, &fe) && fe.Field == "date_time" && !dateMoved) {
			return
		}
		err = nil
	}

	if dateMoved {
		var conflict bool
		conflict, err = s.store.HasOwnerConflict(ctx, e.CreatedBy, e.DateTime, s.policy.ConflictWindow, e.ID)

		if err != nil {
			return
		}

		if conflict {
			err = event.ErrScheduleConflict
			return
		}
	}

	updated, err = s.store.UpdateLocked(ctx, tx, e)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// Delete hard-deletes an event; the schema cascades to its registrations.
func (s *Events) Delete(ctx context.Context, actor Viewer, id int64) error {
	e, err := s.store.GetByID(ctx, id)

	if err != nil {
		return err
	}

	if e.CreatedBy != actor.UserID && !actor.Elevated() {
		return event.ErrNotOwner
	}

	return s.store.Delete(ctx, id)
}
