package storage

import (
	"context"
	"fmt"
)

// SyncLock serializes sync runs per deployment with Postgres session
// advisory locks. The cooldown gate is advisory and race-prone across
// processes; the lock makes a concurrent run on the same deployment skip
// instead of interleaving writes.
type SyncLock struct {
	db *PostgresDB
}

// NewSyncLock creates a new sync lock
func NewSyncLock(db *PostgresDB) *SyncLock {
	return &SyncLock{db: db}
}

// TryAcquire attempts to take the deployment's lock without blocking.
// Returns acquired=false when another run already holds it. The lock lives
// on a dedicated connection held out of the pool until the returned release
// is called; session locks also die with the connection, so a crashed run
// cannot leave a deployment locked.
func (l *SyncLock) TryAcquire(ctx context.Context, deploymentAddress string) (release func(context.Context), acquired bool, err error) {
	conn, err := l.db.Pool().Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for sync lock: %w", err)
	}

	var locked bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, deploymentAddress).Scan(&locked)
	if err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to take sync lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release = func(ctx context.Context) {
		_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, deploymentAddress) // nolint:errcheck // lock dies with the conn regardless
		conn.Release()
	}
	return release, true, nil
}
