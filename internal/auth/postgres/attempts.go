package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/auth"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	"github.com/jmoiron/sqlx"
)

const (
	selectAttemptQuery = `SELECT email, attempts, blocked_until, last_attempt FROM login_attempts WHERE email = ?`

	// Reset, increment and lock decision happen in one statement, so two
	// concurrent failures can never read the same counter value. A record
	// whose lock has elapsed at excluded.last_attempt, or whose last attempt
	// predates the stale cutoff, restarts at one.
	recordFailureQuery = `INSERT INTO login_attempts (email, attempts, blocked_until, last_attempt)
VALUES (?, 1, ?, ?)
ON CONFLICT (email) DO UPDATE SET
	attempts = CASE
		WHEN login_attempts.blocked_until <= excluded.last_attempt OR login_attempts.last_attempt < ? THEN 1
		ELSE login_attempts.attempts + 1
	END,
	blocked_until = CASE
		WHEN login_attempts.blocked_until <= excluded.last_attempt OR login_attempts.last_attempt < ? THEN excluded.blocked_until
		WHEN login_attempts.attempts + 1 >= ? THEN ?
		ELSE login_attempts.blocked_until
	END,
	last_attempt = excluded.last_attempt`

	deleteAttemptQuery      = `DELETE FROM login_attempts WHERE email = ?`
	deleteStaleAttemptQuery = `DELETE FROM login_attempts WHERE email = ? AND last_attempt < ?`
	purgeAttemptsQuery      = `DELETE FROM login_attempts WHERE last_attempt < ?`
)

// AttemptStore keeps login attempts in the login_attempts table through sqlx.
type AttemptStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewAttemptStore(db *sqlx.DB, timeout time.Duration) *AttemptStore {
	return &AttemptStore{db: db, timeout: timeout}
}

func (s *AttemptStore) Get(ctx context.Context, email string) (*auth.LoginAttempt, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.get(ctx, s.db, email)
}

func (s *AttemptStore) get(ctx context.Context, q sqlx.QueryerContext, email string) (*auth.LoginAttempt, error) {
	var attempt auth.LoginAttempt
	err := sqlx.GetContext(ctx, q, &attempt, s.db.Rebind(selectAttemptQuery), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, database.Classify(err)
	}

	attempt.LastAttempt = attempt.LastAttempt.UTC()
	if attempt.BlockedUntil != nil {
		blocked := attempt.BlockedUntil.UTC()
		attempt.BlockedUntil = &blocked
	}
	return &attempt, nil
}

func (s *AttemptStore) RecordFailure(ctx context.Context, email string, now time.Time, threshold int, blockUntil, staleBefore time.Time) (*auth.LoginAttempt, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	now = now.UTC()
	blockUntil = blockUntil.UTC()
	staleBefore = staleBefore.UTC()

	var initialBlock *time.Time
	if threshold <= 1 {
		initialBlock = &blockUntil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(recordFailureQuery),
		email, initialBlock, now, staleBefore, staleBefore, threshold, blockUntil); err != nil {
		return nil, database.Classify(err)
	}

	attempt, err := s.get(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, internal.NewInternalError("login attempt vanished after upsert", nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, database.Classify(err)
	}
	return attempt, nil
}

func (s *AttemptStore) Delete(ctx context.Context, email string) error {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(deleteAttemptQuery), email); err != nil {
		return database.Classify(err)
	}
	return nil
}

func (s *AttemptStore) DeleteStale(ctx context.Context, email string, cutoff time.Time) error {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(deleteStaleAttemptQuery), email, cutoff.UTC()); err != nil {
		return database.Classify(err)
	}
	return nil
}

func (s *AttemptStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(purgeAttemptsQuery), cutoff.UTC())
	if err != nil {
		return 0, database.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.Classify(err)
	}
	return n, nil
}
