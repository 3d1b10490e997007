package storage

import (
	"context"
	"fmt"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// EventRepository handles the append-only activity log in Postgres. The log
// is the system of record; the ClickHouse mirror only serves aggregation.
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts an event row, ignoring duplicates. The unique key
// (deployment, event type, account, sequence number) makes replaying a
// partially committed batch safe; the bool reports whether the row was new.
func (r *EventRepository) Append(ctx context.Context, event *models.Event) (bool, error) {
	if err := types.ValidateAddress(event.DeploymentAddress); err != nil {
		return false, err
	}
	event.DeploymentAddress = types.NormalizeAddress(event.DeploymentAddress)

	query := `
		INSERT INTO events (
			deployment_address, event_type, account_id, data,
			tx_hash, sequence_number, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (deployment_address, event_type, account_id, sequence_number)
		DO NOTHING
	`

	result, err := r.db.Pool().Exec(ctx, query,
		event.DeploymentAddress,
		event.EventType,
		event.AccountID,
		event.Data,
		event.TxHash,
		event.SequenceNumber,
		event.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append event: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListByAccount retrieves the most recent events for an account
func (r *EventRepository) ListByAccount(ctx context.Context, deploymentAddress, accountID string, limit int) ([]*models.Event, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT deployment_address, event_type, account_id, data,
			   tx_hash, sequence_number, timestamp
		FROM events
		WHERE deployment_address = $1 AND account_id = $2
		ORDER BY timestamp DESC, sequence_number DESC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, deploymentAddress, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		err := rows.Scan(
			&e.DeploymentAddress,
			&e.EventType,
			&e.AccountID,
			&e.Data,
			&e.TxHash,
			&e.SequenceNumber,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// VolumeByToken aggregates moved amounts per fungible asset over the event
// log. Given and Split carry the amount in "amt", Collected in "collected".
// Fallback path used when the ClickHouse mirror is not configured.
func (r *EventRepository) VolumeByToken(ctx context.Context, deploymentAddress string) ([]*models.TokenVolume, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT data->>'fa_metadata' AS token,
			   COALESCE(SUM(COALESCE(data->>'amt', data->>'collected')::numeric), 0)::text AS amount,
			   COUNT(*) AS event_count
		FROM events
		WHERE deployment_address = $1
		  AND event_type IN ($2, $3, $4)
		  AND data ? 'fa_metadata'
		GROUP BY 1
		ORDER BY 1
	`

	rows, err := r.db.Pool().Query(ctx, query, deploymentAddress,
		types.EventGiven, types.EventSplit, types.EventCollected)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate volume: %w", err)
	}
	defer rows.Close()

	var volumes []*models.TokenVolume
	for rows.Next() {
		var v models.TokenVolume
		if err := rows.Scan(&v.Token, &v.Amount, &v.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan volume row: %w", err)
		}
		volumes = append(volumes, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volume rows: %w", err)
	}

	return volumes, nil
}

// TVLByToken computes per-asset locked value as streamed-in minus collected.
// Inflows are Given and ReceivedStreams amounts; outflows are Collected.
func (r *EventRepository) TVLByToken(ctx context.Context, deploymentAddress string) ([]*models.TokenTVL, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT data->>'fa_metadata' AS token,
			   COALESCE(SUM(
				   CASE
					   WHEN event_type = $4 THEN -(data->>'collected')::numeric
					   ELSE (data->>'amt')::numeric
				   END
			   ), 0)::text AS locked
		FROM events
		WHERE deployment_address = $1
		  AND event_type IN ($2, $3, $4)
		  AND data ? 'fa_metadata'
		GROUP BY 1
		ORDER BY 1
	`

	rows, err := r.db.Pool().Query(ctx, query, deploymentAddress,
		types.EventGiven, types.EventReceivedStreams, types.EventCollected)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tvl: %w", err)
	}
	defer rows.Close()

	var tvls []*models.TokenTVL
	for rows.Next() {
		var t models.TokenTVL
		if err := rows.Scan(&t.Token, &t.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan tvl row: %w", err)
		}
		tvls = append(tvls, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tvl rows: %w", err)
	}

	return tvls, nil
}
