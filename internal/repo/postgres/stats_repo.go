package postgres

import (
	"context"
	"time"

	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRows is the raw, read-consistent material for one stats snapshot.
// Derived percentages and labels are computed by the service.
type StatsRows struct {
	Event              event.Event
	StatusCounts       map[registration.Status]int
	FirstRegistration  *time.Time
	LatestRegistration *time.Time
	AvgDelaySeconds    *float64
	Hourly             []HourlyBucket
	Recent             []RecentRegistration
}

type HourlyBucket struct {
	Hour  time.Time
	Count int
}

type RecentRegistration struct {
	Name         string
	RegisteredAt time.Time
}

type StatsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStatsRepo(pool *pgxpool.Pool, prom *observability.Prom) *StatsRepo {
	return &StatsRepo{pool: pool, prom: prom}
}

func (repo *StatsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Collect gathers every aggregate inside one repeatable-read transaction so
// the counts, timeline and recent list all describe the same instant.
func (repo *StatsRepo) Collect(ctx context.Context, eventID int64) (out StatsRows, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})

	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = repo.observe("stats.event", func() error {
		var e error
		out.Event, e = scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 AND is_active`, eventID))
		return e
	})

	if err != nil {
		return
	}

	out.StatusCounts = make(map[registration.Status]int)

	err = repo.observe("stats.status_counts", func() error {
		rows, e := tx.Query(ctx, `
			SELECT status, COUNT(*)
			FROM registrations
			WHERE event_id = $1
			GROUP BY status
		`, eventID)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			var status registration.Status
			var count int

			if e := rows.Scan(&status, &count); e != nil {
				return e
			}
			out.StatusCounts[status] = count
		}

		return rows.Err()
	})

	if err != nil {
		return
	}

	err = repo.observe("stats.confirmed_aggregates", func() error {
		return tx.QueryRow(ctx, `
			SELECT MIN(r.registered_at),
				MAX(r.registered_at),
				AVG(EXTRACT(EPOCH FROM (r.registered_at - e.created_at)))
			FROM registrations r
			JOIN events e ON e.id = r.event_id
			WHERE r.event_id = $1 AND r.status = 'confirmed'
		`, eventID).Scan(&out.FirstRegistration, &out.LatestRegistration, &out.AvgDelaySeconds)
	})

	if err != nil {
		return
	}

	err = repo.observe("stats.hourly", func() error {
		rows, e := tx.Query(ctx, `
			SELECT date_trunc('hour', registered_at) AS bucket, COUNT(*)
			FROM registrations
			WHERE event_id = $1 AND status = 'confirmed'
			GROUP BY bucket
			ORDER BY bucket ASC
		`, eventID)

		if e != nil {
			return e
		}

		defer rows.Close()

		out.Hourly = make([]HourlyBucket, 0)

		for rows.Next() {
			var b HourlyBucket

			if e := rows.Scan(&b.Hour, &b.Count); e != nil {
				return e
			}
			out.Hourly = append(out.Hourly, b)
		}

		return rows.Err()
	})

	if err != nil {
		return
	}

	err = repo.observe("stats.recent", func() error {
		rows, e := tx.Query(ctx, `
			SELECT u.name, r.registered_at
			FROM registrations r
			JOIN users u ON u.id = r.user_id
			WHERE r.event_id = $1 AND r.status = 'confirmed'
			ORDER BY r.registered_at DESC, r.id DESC
			LIMIT 10
		`, eventID)

		if e != nil {
			return e
		}

		defer rows.Close()

		out.Recent = make([]RecentRegistration, 0, 10)

		for rows.Next() {
			var rr RecentRegistration

			if e := rows.Scan(&rr.Name, &rr.RegisteredAt); e != nil {
				return e
			}
			out.Recent = append(out.Recent, rr)
		}

		return rows.Err()
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}
