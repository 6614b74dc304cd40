package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {

		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *RegistrationsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// FindForUpdate returns the single row for (user, event), whatever its
// status. Callers must already hold the event row lock so the result cannot
// go stale.
func (repo *RegistrationsRepo) FindForUpdate(ctx context.Context, tx pgx.Tx, userID, eventID int64) (registration.Registration, error) {
	var r registration.Registration

	err := repo.observe("registrations.find_for_update", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, user_id, event_id, status, registered_at
			FROM registrations
			WHERE user_id = $1 AND event_id = $2
			FOR UPDATE
		`, userID, eventID).Scan(&r.ID, &r.UserID, &r.EventID, &r.Status, &r.RegisteredAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotRegistered
		}
		return registration.Registration{}, err
	}

	return r, nil
}

func (repo *RegistrationsRepo) Insert(ctx context.Context, tx pgx.Tx, userID, eventID int64, status registration.Status, registeredAt time.Time) (int64, error) {
	var id int64

	err := repo.observe("registrations.insert", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO registrations (user_id, event_id, status, registered_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, userID, eventID, status, registeredAt).Scan(&id)
	})

	if err != nil {
		return 0, err
	}

	return id, nil
}

func (repo *RegistrationsRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status registration.Status, registeredAt time.Time) error {
	return repo.observe("registrations.update_status", func() error {
		tag, err := tx.Exec(ctx, `
			UPDATE registrations
			SET status = $2, registered_at = $3
			WHERE id = $1
		`, id, status, registeredAt)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return registration.ErrNotRegistered
		}

		return nil
	})
}

// HasConfirmed reports whether the user holds a confirmed registration for
// the event; used for viewer permissions outside a write path.
func (repo *RegistrationsRepo) HasConfirmed(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool

	err := repo.observe("registrations.has_confirmed", func() error {
		return repo.pool.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE user_id = $1 AND event_id = $2 AND status = 'confirmed'
		)`, userID, eventID).Scan(&exists)
	})

	return exists, err
}

func (repo *RegistrationsRepo) ListAttendees(ctx context.Context, eventID int64) (attendees []registration.Attendee, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list_attendees", func() error {
		rows, err = repo.pool.Query(ctx,
			`
	SELECT u.id, u.name, u.email, r.registered_at
	FROM registrations r
	JOIN users u ON u.id = r.user_id
	WHERE r.event_id = $1 AND r.status = 'confirmed'
	ORDER BY r.registered_at ASC, r.id ASC
	`,
			eventID,
		)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	attendees = make([]registration.Attendee, 0)

	for rows.Next() {
		var a registration.Attendee

		e := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.RegisteredAt)

		if e != nil {
			err = e
			return
		}
		attendees = append(attendees, a)
	}

	e := rows.Err()

	if e != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues("registrations.list_attendees", "rows_err").Inc()
		}
		err = e
		return
	}

	return
}
