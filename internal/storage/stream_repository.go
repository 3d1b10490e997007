package storage

import (
	"context"
	"fmt"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// StreamRepository handles stream configuration persistence
type StreamRepository struct {
	db *PostgresDB
}

// NewStreamRepository creates a new stream repository
func NewStreamRepository(db *PostgresDB) *StreamRepository {
	return &StreamRepository{db: db}
}

// DeactivateAllForSender marks every active stream of a sender inactive.
// Applied before upserting the receiver tuples of a new configuration, so a
// configuration event with an empty receiver list stops everything.
func (r *StreamRepository) DeactivateAllForSender(ctx context.Context, deploymentAddress, senderID string) error {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		UPDATE streams
		SET active = false, updated_at = NOW()
		WHERE deployment_address = $1 AND sender_id = $2 AND active = true
	`

	if _, err := r.db.Pool().Exec(ctx, query, deploymentAddress, senderID); err != nil {
		return fmt.Errorf("failed to deactivate streams: %w", err)
	}

	return nil
}

// Upsert inserts a stream row or updates the terms of an existing one,
// reactivating it. Keyed on (deployment, sender, receiver, stream id) so
// replaying the same configuration event lands on the same rows.
func (r *StreamRepository) Upsert(ctx context.Context, stream *models.Stream) error {
	if err := types.ValidateAddress(stream.DeploymentAddress); err != nil {
		return err
	}
	stream.DeploymentAddress = types.NormalizeAddress(stream.DeploymentAddress)

	query := `
		INSERT INTO streams (
			deployment_address, sender_id, receiver_id, stream_id,
			fa_metadata, amt_per_sec, start_time, duration, active,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, NOW(), NOW())
		ON CONFLICT (deployment_address, sender_id, receiver_id, stream_id)
		DO UPDATE SET
			fa_metadata = EXCLUDED.fa_metadata,
			amt_per_sec = EXCLUDED.amt_per_sec,
			start_time = EXCLUDED.start_time,
			duration = EXCLUDED.duration,
			active = true,
			updated_at = NOW()
	`

	_, err := r.db.Pool().Exec(ctx, query,
		stream.DeploymentAddress,
		stream.SenderID,
		stream.ReceiverID,
		stream.StreamID,
		stream.FAMetadata,
		stream.AmtPerSec,
		stream.StartTime,
		stream.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stream: %w", err)
	}

	return nil
}

// ListActiveBySender retrieves the active streams of a sender
func (r *StreamRepository) ListActiveBySender(ctx context.Context, deploymentAddress, senderID string) ([]*models.Stream, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT deployment_address, sender_id, receiver_id, stream_id,
			   fa_metadata, amt_per_sec, start_time, duration, active,
			   created_at, updated_at
		FROM streams
		WHERE deployment_address = $1 AND sender_id = $2 AND active = true
		ORDER BY receiver_id, stream_id
	`

	rows, err := r.db.Pool().Query(ctx, query, deploymentAddress, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	var streams []*models.Stream
	for rows.Next() {
		var s models.Stream
		err := rows.Scan(
			&s.DeploymentAddress,
			&s.SenderID,
			&s.ReceiverID,
			&s.StreamID,
			&s.FAMetadata,
			&s.AmtPerSec,
			&s.StartTime,
			&s.Duration,
			&s.Active,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stream: %w", err)
		}
		streams = append(streams, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating streams: %w", err)
	}

	return streams, nil
}

// CountActive returns the number of active streams in a deployment
func (r *StreamRepository) CountActive(ctx context.Context, deploymentAddress string) (int64, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return 0, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	var count int64
	query := `SELECT COUNT(*) FROM streams WHERE deployment_address = $1 AND active = true`
	if err := r.db.Pool().QueryRow(ctx, query, deploymentAddress).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count streams: %w", err)
	}

	return count, nil
}
