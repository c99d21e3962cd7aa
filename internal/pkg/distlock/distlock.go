package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease is a renewable lock that keeps a single process polling the sheet.
// Two pollers working the same sheet would race on identity creation and
// send duplicate emails.
type Lease interface {
	// Hold acquires the lease, or renews it if this process already owns it.
	// It returns false when another process holds it.
	Hold(ctx context.Context) (bool, error)
	// Renew extends a lease this process has held without interruption.
	// It returns false when the lease lapsed or changed hands, even if it
	// is free again; it never acquires.
	Renew(ctx context.Context) (bool, error)
	// Release gives the lease up if this process still owns it.
	Release(ctx context.Context) error
}

// NewLease creates a lease using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewLease(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Lease {
	if redisClient != nil {
		return NewRedisLease(redisClient, key, ttl)
	}
	return NewPGAdvisoryLease(db, key)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lease pins one connection
// from the pool for as long as it is held. If that connection drops the
// server releases the lock, which gives the same crash-safety as a Redis TTL.

// PGAdvisoryLease implements Lease using a PostgreSQL advisory lock.
type PGAdvisoryLease struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewPGAdvisoryLease creates a PG advisory lease with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLease(db *sql.DB, key string) *PGAdvisoryLease {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLease{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Hold tries to take the advisory lock on a dedicated connection. Once held,
// it only checks that the pinned connection is still alive.
func (l *PGAdvisoryLease) Hold(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		if err := l.conn.PingContext(ctx); err == nil {
			return true, nil
		}
		// session gone, and the lock with it
		l.conn.Close()
		l.conn = nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("pinning connection for advisory lock: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Renew reports whether the pinned session, and so the lock, is still alive.
func (l *PGAdvisoryLease) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return false, nil
	}
	if err := l.conn.PingContext(ctx); err != nil {
		l.conn.Close()
		l.conn = nil
		return false, nil
	}
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PGAdvisoryLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}
