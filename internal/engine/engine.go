package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/domain/user"
	"github.com/gatherly/gatherly/internal/observability"
	"github.com/gatherly/gatherly/internal/repo/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTransient marks a storage fault that survived the retry budget. The
// HTTP edge turns it into a 503.
var ErrTransient = errors.New("transient storage failure")

// Result of a successful Register call.
type Result struct {
	RegistrationID int64
	Reactivated    bool
}

// BatchOutcome is the per-user result of a batch registration.
type BatchOutcome struct {
	UserID         int64  `json:"user_id"`
	RegistrationID *int64 `json:"registration_id,omitempty"`
	Outcome        string `json:"outcome"`
}

// Engine owns every mutation of (event, registration) pairs. All writes for
// one event are serialized by taking the event row lock first, so capacity
// checks never race.
type Engine struct {
	pool   *pgxpool.Pool
	events *postgres.EventsRepo
	regs   *postgres.RegistrationsRepo
	clk    clock.Clock
	prom   *observability.Prom
	log    *slog.Logger
}

func New(pool *pgxpool.Pool, events *postgres.EventsRepo, regs *postgres.RegistrationsRepo, clk clock.Clock, prom *observability.Prom, log *slog.Logger) *Engine {
	return &Engine{
		pool:   pool,
		events: events,
		regs:   regs,
		clk:    clk,
		prom:   prom,
		log:    log,
	}
}

func (en *Engine) countOutcome(op string, err error) {
	if en.prom == nil {
		return
	}

	outcome := "ok"

	switch {
	case err == nil:
	case errors.Is(err, registration.ErrEventFull):
		outcome = "event_full"
	case errors.Is(err, registration.ErrAlreadyRegistered):
		outcome = "already_registered"
	case errors.Is(err, registration.ErrEventPast):
		outcome = "event_past"
	case errors.Is(err, registration.ErrNotRegistered):
		outcome = "not_registered"
	case errors.Is(err, event.ErrNotFound):
		outcome = "event_not_found"
	case errors.Is(err, user.ErrNotFound):
		outcome = "user_not_found"
	default:
		outcome = "error"
	}

	en.prom.RegistrationOutcomes.WithLabelValues(op, outcome).Inc()
}

// withRetry runs fn in a fresh write transaction, retrying transient faults
// up to the budget. A transaction that returns an error is rolled back and
// leaves no observable effect.
func (en *Engine) withRetry(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if en.prom != nil {
				en.prom.EngineRetries.Inc()
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
			case <-time.After(retryDelay(attempt - 1)):
			}
		}

		lastErr = en.runTx(ctx, fn)

		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}

		en.log.WarnContext(ctx, "transient storage fault, retrying",
			"op", op, "attempt", attempt+1, "err", lastErr)
	}

	return fmt.Errorf("%w: %w", ErrTransient, lastErr)
}

func (en *Engine) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := en.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = fn(tx)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Register creates or reactivates a confirmed registration for the user.
func (en *Engine) Register(ctx context.Context, userID, eventID int64) (Result, error) {
	var res Result

	err := en.withRetry(ctx, "register", func(tx pgx.Tx) error {
		var err error
		res, err = en.registerLocked(ctx, tx, userID, eventID)
		return err
	})

	en.countOutcome("register", err)

	return res, err
}

// registerLocked performs one registration under the event row lock held by
// tx. Reused by RegisterBatch inside its outer transaction.
func (en *Engine) registerLocked(ctx context.Context, tx pgx.Tx, userID, eventID int64) (Result, error) {
	e, err := en.events.LockForUpdate(ctx, tx, eventID)

	if err != nil {
		return Result{}, err
	}

	existing, err := en.regs.FindForUpdate(ctx, tx, userID, eventID)

	var existingPtr *registration.Registration

	if err == nil {
		existingPtr = &existing
	} else if !errors.Is(err, registration.ErrNotRegistered) {
		return Result{}, err
	}

	now := en.clk.Now()

	act, err := decide(e, existingPtr, now)

	if err != nil {
		return Result{}, err
	}

	switch act {
	case actionReactivate:
		err = en.regs.UpdateStatus(ctx, tx, existing.ID, registration.StatusConfirmed, now)

		if err != nil {
			return Result{}, err
		}

		err = en.events.BumpCounter(ctx, tx, eventID, +1)

		if err != nil {
			return Result{}, err
		}

		return Result{RegistrationID: existing.ID, Reactivated: true}, nil

	default:
		id, err := en.regs.Insert(ctx, tx, userID, eventID, registration.StatusConfirmed, now)

		if err != nil {
			var pgErr *pgconn.PgError

			if errors.As(err, &pgErr) {
				// unique (user_id,event_id): a racer on another event lock
				// cannot exist here, but a direct insert might
				if pgErr.Code == "23505" {
					return Result{}, registration.ErrAlreadyRegistered
				}
				if pgErr.Code == "23503" {
					return Result{}, user.ErrNotFound
				}
			}
			return Result{}, err
		}

		err = en.events.BumpCounter(ctx, tx, eventID, +1)

		if err != nil {
			return Result{}, err
		}

		return Result{RegistrationID: id}, nil
	}
}

// Cancel flips the target's confirmed registration to cancelled. Only the
// registration's owner may cancel it, unless the actor is elevated.
func (en *Engine) Cancel(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error {
	if actorID != targetUserID && !elevated {
		en.countOutcome("cancel", registration.ErrForbidden)
		return registration.ErrForbidden
	}

	err := en.withRetry(ctx, "cancel", func(tx pgx.Tx) error {
		e, err := en.events.LockForUpdate(ctx, tx, eventID)

		if err != nil {
			return err
		}

		existing, err := en.regs.FindForUpdate(ctx, tx, targetUserID, eventID)

		var existingPtr *registration.Registration

		if err == nil {
			existingPtr = &existing
		} else if !errors.Is(err, registration.ErrNotRegistered) {
			return err
		}

		err = decideCancel(e, existingPtr, en.clk.Now())

		if err != nil {
			return err
		}

		err = en.regs.UpdateStatus(ctx, tx, existing.ID, registration.StatusCancelled, existing.RegisteredAt)

		if err != nil {
			return err
		}

		return en.events.BumpCounter(ctx, tx, eventID, -1)
	})

	en.countOutcome("cancel", err)

	return err
}

// RegisterBatch admits users one by one inside a single outer transaction.
// Individual rejections (full, duplicate) do not abort the batch; storage
// faults do.
func (en *Engine) RegisterBatch(ctx context.Context, eventID int64, userIDs []int64) ([]BatchOutcome, error) {
	outcomes := make([]BatchOutcome, 0, len(userIDs))

	err := en.withRetry(ctx, "register_batch", func(tx pgx.Tx) error {
		outcomes = outcomes[:0]

		for _, uid := range userIDs {
			res, err := en.registerLocked(ctx, tx, uid, eventID)

			if err != nil {
				switch {
				case errors.Is(err, registration.ErrEventFull),
					errors.Is(err, registration.ErrAlreadyRegistered),
					errors.Is(err, user.ErrNotFound):
					outcomes = append(outcomes, BatchOutcome{UserID: uid, Outcome: outcomeLabel(err)})
					continue
				default:
					return err
				}
			}

			id := res.RegistrationID
			label := "created"

			if res.Reactivated {
				label = "reactivated"
			}

			outcomes = append(outcomes, BatchOutcome{UserID: uid, RegistrationID: &id, Outcome: label})
		}

		return nil
	})

	en.countOutcome("register_batch", err)

	if err != nil {
		return nil, err
	}

	return outcomes, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, registration.ErrEventFull):
		return "event_full"
	case errors.Is(err, registration.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, user.ErrNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}
