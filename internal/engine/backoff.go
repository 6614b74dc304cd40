package engine

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const maxAttempts = 3

// retryDelay grows 25ms, 50ms, 100ms and never exceeds 100ms; transient
// storage faults are rare enough that anything longer just burns the
// request deadline.
func retryDelay(attempt int) time.Duration {
	delay := 25 * time.Millisecond << attempt

	if delay > 100*time.Millisecond {
		delay = 100 * time.Millisecond
	}

	return delay
}

// isTransient reports whether the fault is worth retrying: serialization
// failures, deadlocks, or a dropped connection.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	return pgconn.SafeToRetry(err)
}
