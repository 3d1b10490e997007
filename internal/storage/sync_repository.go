package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// SyncRepository handles sync cursors and per-deployment sync metadata.
// Cursors are the only durable record of fetch progress; metadata drives the
// cooldown gate.
type SyncRepository struct {
	db *PostgresDB
}

// NewSyncRepository creates a new sync repository
func NewSyncRepository(db *PostgresDB) *SyncRepository {
	return &SyncRepository{db: db}
}

// GetCursor retrieves the cursor for a key and stream kind. Returns
// (nil, nil) when no cursor exists yet, which callers treat as "start from
// the beginning".
func (r *SyncRepository) GetCursor(ctx context.Context, cursorKey string, kind types.StreamKind) (*models.SyncCursor, error) {
	query := `
		SELECT cursor_key, stream_kind, last_sequence, updated_at
		FROM sync_cursors
		WHERE cursor_key = $1 AND stream_kind = $2
	`

	var c models.SyncCursor
	err := r.db.Pool().QueryRow(ctx, query, cursorKey, kind).Scan(
		&c.CursorKey,
		&c.StreamKind,
		&c.LastSequence,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	return &c, nil
}

// AdvanceCursor moves a cursor forward. Sequences are numeric strings wider
// than int64, so the monotonicity guard compares them as numerics in SQL:
// a stale writer can never move a cursor backwards.
func (r *SyncRepository) AdvanceCursor(ctx context.Context, cursorKey string, kind types.StreamKind, lastSequence string) error {
	query := `
		INSERT INTO sync_cursors (cursor_key, stream_kind, last_sequence, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (cursor_key, stream_kind)
		DO UPDATE SET
			last_sequence = GREATEST(sync_cursors.last_sequence::numeric, EXCLUDED.last_sequence::numeric)::text,
			updated_at = NOW()
	`

	if _, err := r.db.Pool().Exec(ctx, query, cursorKey, kind, lastSequence); err != nil {
		return fmt.Errorf("failed to advance sync cursor: %w", err)
	}

	return nil
}

// SeedCursor writes a cursor only if none exists. Discovery uses this to
// plant a deployment's starting version without clobbering progress made by
// a concurrent sync.
func (r *SyncRepository) SeedCursor(ctx context.Context, cursorKey string, kind types.StreamKind, lastSequence string) error {
	query := `
		INSERT INTO sync_cursors (cursor_key, stream_kind, last_sequence, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (cursor_key, stream_kind) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, cursorKey, kind, lastSequence); err != nil {
		return fmt.Errorf("failed to seed sync cursor: %w", err)
	}

	return nil
}

// GetMetadata retrieves the last sync outcome for a deployment. Returns
// (nil, nil) for a never-synced deployment.
func (r *SyncRepository) GetMetadata(ctx context.Context, deploymentAddress string) (*models.SyncMetadata, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT deployment_address, last_synced_at, events_processed,
			   sync_duration_ms, has_more
		FROM sync_metadata
		WHERE deployment_address = $1
	`

	var m models.SyncMetadata
	err := r.db.Pool().QueryRow(ctx, query, deploymentAddress).Scan(
		&m.DeploymentAddress,
		&m.LastSyncedAt,
		&m.EventsProcessed,
		&m.SyncDurationMs,
		&m.HasMore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync metadata: %w", err)
	}

	return &m, nil
}

// UpsertMetadata records the outcome of a sync run
func (r *SyncRepository) UpsertMetadata(ctx context.Context, meta *models.SyncMetadata) error {
	if err := types.ValidateAddress(meta.DeploymentAddress); err != nil {
		return err
	}
	meta.DeploymentAddress = types.NormalizeAddress(meta.DeploymentAddress)
	if meta.LastSyncedAt.IsZero() {
		meta.LastSyncedAt = time.Now()
	}

	query := `
		INSERT INTO sync_metadata (
			deployment_address, last_synced_at, events_processed,
			sync_duration_ms, has_more
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (deployment_address)
		DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			events_processed = EXCLUDED.events_processed,
			sync_duration_ms = EXCLUDED.sync_duration_ms,
			has_more = EXCLUDED.has_more
	`

	_, err := r.db.Pool().Exec(ctx, query,
		meta.DeploymentAddress,
		meta.LastSyncedAt,
		meta.EventsProcessed,
		meta.SyncDurationMs,
		meta.HasMore,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync metadata: %w", err)
	}

	return nil
}

// ListMetadata retrieves sync outcomes for all deployments
func (r *SyncRepository) ListMetadata(ctx context.Context) ([]*models.SyncMetadata, error) {
	query := `
		SELECT deployment_address, last_synced_at, events_processed,
			   sync_duration_ms, has_more
		FROM sync_metadata
		ORDER BY last_synced_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync metadata: %w", err)
	}
	defer rows.Close()

	var metas []*models.SyncMetadata
	for rows.Next() {
		var m models.SyncMetadata
		err := rows.Scan(
			&m.DeploymentAddress,
			&m.LastSyncedAt,
			&m.EventsProcessed,
			&m.SyncDurationMs,
			&m.HasMore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync metadata: %w", err)
		}
		metas = append(metas, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync metadata: %w", err)
	}

	return metas, nil
}
