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

// DeploymentRepository handles deployment registry persistence
type DeploymentRepository struct {
	db *PostgresDB
}

// NewDeploymentRepository creates a new deployment repository
func NewDeploymentRepository(db *PostgresDB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

// Register inserts a deployment if it is not already known. Registration is
// idempotent so discovery and the known-deployment bootstrap can both run
// against the same address.
func (r *DeploymentRepository) Register(ctx context.Context, deployment *models.Deployment) error {
	if err := types.ValidateAddress(deployment.Address); err != nil {
		return err
	}
	deployment.Address = types.NormalizeAddress(deployment.Address)
	if deployment.FirstSeenAt.IsZero() {
		deployment.FirstSeenAt = time.Now()
	}

	query := `
		INSERT INTO deployments (address, network, first_seen_at, last_tx_version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		deployment.Address,
		deployment.Network,
		deployment.FirstSeenAt,
		deployment.LastTxVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to register deployment: %w", err)
	}

	return nil
}

// Get retrieves a deployment by address. Returns (nil, nil) when the
// deployment is unknown.
func (r *DeploymentRepository) Get(ctx context.Context, address string) (*models.Deployment, error) {
	if err := types.ValidateAddress(address); err != nil {
		return nil, err
	}
	address = types.NormalizeAddress(address)

	query := `
		SELECT address, network, first_seen_at, last_tx_version
		FROM deployments
		WHERE address = $1
	`

	var d models.Deployment
	err := r.db.Pool().QueryRow(ctx, query, address).Scan(
		&d.Address,
		&d.Network,
		&d.FirstSeenAt,
		&d.LastTxVersion,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return &d, nil
}

// List retrieves all known deployments ordered by discovery time
func (r *DeploymentRepository) List(ctx context.Context) ([]*models.Deployment, error) {
	query := `
		SELECT address, network, first_seen_at, last_tx_version
		FROM deployments
		ORDER BY first_seen_at
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		var d models.Deployment
		if err := rows.Scan(&d.Address, &d.Network, &d.FirstSeenAt, &d.LastTxVersion); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	return deployments, nil
}

// UpdateLastTxVersion records the highest transaction version observed for a
// deployment. Versions never go backwards.
func (r *DeploymentRepository) UpdateLastTxVersion(ctx context.Context, address string, version uint64) error {
	if err := types.ValidateAddress(address); err != nil {
		return err
	}
	address = types.NormalizeAddress(address)

	query := `
		UPDATE deployments
		SET last_tx_version = GREATEST(COALESCE(last_tx_version, 0), $2)
		WHERE address = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, address, version)
	if err != nil {
		return fmt.Errorf("failed to update last tx version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("deployment not found: %s", address)
	}

	return nil
}
