package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, date_time, location, capacity,
		current_registrations, created_by, is_active, created_at, updated_at`

type EventsRepo struct {
	pool *pgxpool.Pool
}

func NewEventsRepo(pool *pgxpool.Pool) *EventsRepo {
	return &EventsRepo{
		pool: pool,
	}
}

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event

	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DateTime, &e.Location, &e.Capacity,
		&e.CurrentRegistrations, &e.CreatedBy, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Create(ctx context.Context, e event.Event) (event.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`INSERT INTO events (title, description, date_time, location, capacity, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+eventColumns,
		e.Title, e.Description, e.DateTime, e.Location, e.Capacity, e.CreatedBy))
}

// GetByID returns an active event; soft-deleted rows are invisible.
func (r *EventsRepo) GetByID(ctx context.Context, id int64) (event.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND is_active`, id))
}

// LockForUpdate takes the event row lock that serializes every mutation for
// one event. Callers must hold tx until their changes commit.
func (r *EventsRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id int64) (event.Event, error) {
	return scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
}

// BumpCounter moves the denormalized confirmed-registration counter. The
// WHERE clause refuses to move it outside [0, capacity]; callers treat zero
// affected rows as a broken precondition.
func (r *EventsRepo) BumpCounter(ctx context.Context, tx pgx.Tx, id int64, delta int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE events
		SET current_registrations = current_registrations + $2,
				updated_at = now()
		WHERE id = $1
			AND current_registrations + $2 >= 0
			AND current_registrations + $2 <= capacity`,
		id, delta)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("counter bump by %d rejected for event %d", delta, id)
	}

	return nil
}

// HasOwnerConflict reports whether the owner already has an active event
// whose start is within the window around dateTime. excludeID skips the
// event being updated.
func (r *EventsRepo) HasOwnerConflict(ctx context.Context, ownerID int64, dateTime time.Time, window time.Duration, excludeID int64) (bool, error) {
	var exists bool

	err := r.pool.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM events
		WHERE created_by = $1
			AND is_active
			AND id <> $4
			AND date_time > $2::timestamptz - $3::interval
			AND date_time < $2::timestamptz + $3::interval
	)`, ownerID, dateTime, window, excludeID).Scan(&exists)

	return exists, err
}

func (r *EventsRepo) ListUpcoming(ctx context.Context, filter event.ListFilter, now time.Time) ([]event.Event, int, error) {
	baseQuery := `SELECT ` + eventColumns + `,
		COUNT(*) OVER() AS total
	FROM events
	`

	conds := []string{"is_active", "date_time > $1"}
	args := []interface{}{now}

	argsPosition := 2

	if filter.Search != nil {
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)",
			argsPosition, argsPosition, argsPosition))
		args = append(args, "%"+*filter.Search+"%")
		argsPosition++
	}

	if filter.Location != nil {
		conds = append(conds, fmt.Sprintf("location ILIKE $%d", argsPosition))
		args = append(args, "%"+*filter.Location+"%")
		argsPosition++
	}

	if filter.MinCapacity != nil {
		conds = append(conds, fmt.Sprintf("capacity >= $%d", argsPosition))
		args = append(args, *filter.MinCapacity)
		argsPosition++
	}

	if filter.MaxCapacity != nil {
		conds = append(conds, fmt.Sprintf("capacity <= $%d", argsPosition))
		args = append(args, *filter.MaxCapacity)
		argsPosition++
	}

	if filter.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("date_time >= $%d", argsPosition))
		args = append(args, *filter.DateFrom)
		argsPosition++
	}

	if filter.DateTo != nil {
		conds = append(conds, fmt.Sprintf("date_time <= $%d", argsPosition))
		args = append(args, *filter.DateTo)
		argsPosition++
	}

	query := baseQuery + " WHERE " + strings.Join(conds, " AND ")

	// sort column is whitelisted by the service; never interpolate raw input
	sortCol, ok := event.SortColumns[filter.SortBy]
	if !ok {
		sortCol = "date_time"
	}

	dir := "ASC"
	if strings.EqualFold(filter.SortOrder, "DESC") {
		dir = "DESC"
	}

	if sortCol == "date_time" {
		query += fmt.Sprintf(" ORDER BY date_time %s, location ASC NULLS LAST, id ASC", dir)
	} else {
		query += fmt.Sprintf(" ORDER BY %s %s, date_time ASC, id ASC", sortCol, dir)
	}

	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]event.Event, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var e event.Event
		var t int

		err = rows.Scan(&e.ID, &e.Title, &e.Description, &e.DateTime, &e.Location, &e.Capacity,
			&e.CurrentRegistrations, &e.CreatedBy, &e.IsActive, &e.CreatedAt, &e.UpdatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, e)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

// UpdateLocked rewrites the mutable columns of an event already held under
// FOR UPDATE by the caller.
func (r *EventsRepo) UpdateLocked(ctx context.Context, tx pgx.Tx, e event.Event) (event.Event, error) {
	return scanEvent(tx.QueryRow(
		ctx,
		`UPDATE events
			SET title = $2,
					description = $3,
					date_time = $4,
					location = $5,
					capacity = $6,
					updated_at = now()
		WHERE id = $1
		RETURNING `+eventColumns,
		e.ID,
		e.Title,
		e.Description,
		e.DateTime,
		e.Location,
		e.Capacity,
	))
}

func (r *EventsRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)

	if err != nil {

		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return event.ErrNotFound
	}

	return nil
}

func (r *EventsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}
