package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrLockHeld is returned when a named lock is held by a live lease owned by
// someone else.
var ErrLockHeld = errors.New("lock held by another owner")

// lockPollInterval is how often WithLock retries acquisition.
const lockPollInterval = 100 * time.Millisecond

// AcquireLock takes the named lock by writing a lease record with the given
// owner and TTL. A lease whose expiry has passed can be taken over; a live
// lease owned by someone else yields ErrLockHeld. Re-acquiring a lease you
// already own extends it.
func (s *Store) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).UnixNano()

	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var currentOwner string
		var currentExpiry int64
		err := tx.QueryRowContext(ctx,
			"SELECT owner, expires_at FROM locks WHERE name = ?", name).
			Scan(&currentOwner, &currentExpiry)

		switch {
		case err == sql.ErrNoRows:
			_, err := tx.ExecContext(ctx,
				"INSERT INTO locks (name, owner, expires_at) VALUES (?, ?, ?)",
				name, owner, expiresAt)
			if err != nil {
				return fmt.Errorf("insert lease %q: %w", name, err)
			}
			return nil

		case err != nil:
			return fmt.Errorf("read lease %q: %w", name, err)

		case currentOwner == owner || currentExpiry < time.Now().UnixNano():
			_, err := tx.ExecContext(ctx,
				"UPDATE locks SET owner = ?, expires_at = ? WHERE name = ?",
				owner, expiresAt, name)
			if err != nil {
				return fmt.Errorf("take over lease %q: %w", name, err)
			}
			return nil

		default:
			return ErrLockHeld
		}
	})
}

// ReleaseLock drops the lease if it is still owned by the given owner.
// Releasing a lease lost to expiry takeover is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM locks WHERE name = ? AND owner = ?", name, owner)
	return err
}

// RefreshLock extends a held lease. Returns ErrLockHeld if the lease has been
// taken over by another owner.
func (s *Store) RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE locks SET expires_at = ? WHERE name = ? AND owner = ?",
		time.Now().Add(ttl).UnixNano(), name, owner)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLockHeld
	}
	return nil
}

// isBusy reports whether err is SQLITE_BUSY. A busy lease transaction means
// another connection held the database write lock past the busy timeout,
// which is contention on the lock, not a failure of it.
func isBusy(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY
}

// WithLock runs fn while holding the named lock, polling until the lock can
// be acquired or the context is cancelled. At most one critical section runs
// per lock name across all processes sharing the store.
func (s *Store) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	owner := generateOwnerID()

	for {
		err := s.AcquireLock(ctx, name, owner, ttl)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrLockHeld) && !isBusy(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
	defer s.ReleaseLock(context.WithoutCancel(ctx), name, owner)

	return fn(ctx)
}

func generateOwnerID() string {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
