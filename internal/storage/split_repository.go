package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// SplitRepository handles split configuration persistence
type SplitRepository struct {
	db *PostgresDB
}

// NewSplitRepository creates a new split repository
func NewSplitRepository(db *PostgresDB) *SplitRepository {
	return &SplitRepository{db: db}
}

// ReplaceForAccount swaps an account's entire split configuration for the
// given receiver set. Delete and insert run in one transaction so readers
// never observe a partial configuration, and replaying the same event is a
// no-op in effect.
func (r *SplitRepository) ReplaceForAccount(ctx context.Context, deploymentAddress, accountID string, splits []*models.Split) error {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	tx, err := r.db.Pool().BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	deleteQuery := `
		DELETE FROM splits
		WHERE deployment_address = $1 AND account_id = $2
	`
	if _, err := tx.Exec(ctx, deleteQuery, deploymentAddress, accountID); err != nil {
		return fmt.Errorf("failed to clear splits: %w", err)
	}

	insertQuery := `
		INSERT INTO splits (
			deployment_address, account_id, receiver_id, weight,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	for _, split := range splits {
		if _, err := tx.Exec(ctx, insertQuery, deploymentAddress, accountID, split.ReceiverID, split.Weight); err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit splits: %w", err)
	}

	return nil
}

// ListByAccount retrieves the current split configuration of an account
func (r *SplitRepository) ListByAccount(ctx context.Context, deploymentAddress, accountID string) ([]*models.Split, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT deployment_address, account_id, receiver_id, weight,
			   created_at, updated_at
		FROM splits
		WHERE deployment_address = $1 AND account_id = $2
		ORDER BY receiver_id
	`

	rows, err := r.db.Pool().Query(ctx, query, deploymentAddress, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []*models.Split
	for rows.Next() {
		var s models.Split
		err := rows.Scan(
			&s.DeploymentAddress,
			&s.AccountID,
			&s.ReceiverID,
			&s.Weight,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating splits: %w", err)
	}

	return splits, nil
}
