package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// EventAnalyticsRepository mirrors the event log into ClickHouse and serves
// the aggregate queries. Writes are best-effort: Postgres stays the system
// of record, and the ReplacingMergeTree key matches the Postgres unique
// index so re-mirroring a replayed batch collapses to one row.
type EventAnalyticsRepository struct {
	db *ClickHouseDB
}

// NewEventAnalyticsRepository creates a new event analytics repository
func NewEventAnalyticsRepository(db *ClickHouseDB) *EventAnalyticsRepository {
	return &EventAnalyticsRepository{db: db}
}

// eventAmounts pulls the asset and decimal amount out of a raw payload.
// Only the value-moving events carry them.
type eventAmounts struct {
	FAMetadata string `json:"fa_metadata"`
	Amt        string `json:"amt"`
	Collected  string `json:"collected"`
}

// MirrorEvents batch-inserts event rows into the events_log table
func (r *EventAnalyticsRepository) MirrorEvents(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.conn.PrepareBatch(ctx, `
		INSERT INTO events_log (
			deployment_address, event_type, account_id, fa_metadata,
			amount, tx_hash, sequence_number, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		var amounts eventAmounts
		// Decode errors leave zero values; the row still lands in the log
		_ = json.Unmarshal(e.Data, &amounts) // nolint:errcheck // amounts optional

		amount := amounts.Amt
		if e.EventType == types.EventCollected {
			amount = amounts.Collected
		}
		if amount == "" {
			amount = "0"
		}

		err := batch.Append(
			e.DeploymentAddress,
			string(e.EventType),
			e.AccountID,
			amounts.FAMetadata,
			amount,
			e.TxHash,
			e.SequenceNumber,
			e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	return batch.Send()
}

// VolumeByToken aggregates moved amounts per fungible asset
func (r *EventAnalyticsRepository) VolumeByToken(ctx context.Context, deploymentAddress string) ([]*models.TokenVolume, error) {
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT fa_metadata AS token,
			   toString(SUM(amount)) AS total,
			   COUNT() AS event_count
		FROM events_log FINAL
		WHERE deployment_address = ?
		  AND event_type IN (?, ?, ?)
		  AND fa_metadata != ''
		GROUP BY token
		ORDER BY token
	`

	rows, err := r.db.conn.Query(ctx, query, deploymentAddress,
		string(types.EventGiven), string(types.EventSplit), string(types.EventCollected))
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

	return volumes, rows.Err()
}

// TVLByToken computes per-asset locked value as streamed-in minus collected
func (r *EventAnalyticsRepository) TVLByToken(ctx context.Context, deploymentAddress string) ([]*models.TokenTVL, error) {
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT fa_metadata AS token,
			   toString(
				   SUM(if(event_type = ?, -toInt256(amount), toInt256(amount)))
			   ) AS locked
		FROM events_log FINAL
		WHERE deployment_address = ?
		  AND event_type IN (?, ?, ?)
		  AND fa_metadata != ''
		GROUP BY token
		ORDER BY token
	`

	rows, err := r.db.conn.Query(ctx, query,
		string(types.EventCollected),
		deploymentAddress,
		string(types.EventGiven), string(types.EventReceivedStreams), string(types.EventCollected))
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

	return tvls, rows.Err()
}
