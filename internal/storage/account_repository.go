package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// AccountRepository handles protocol account persistence
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Ensure creates the account row on first sighting, or fills in identity
// fields a previous sighting could not resolve. A null wallet is upgraded
// when a later sighting resolves it; a resolved wallet is never overwritten
// with null, so lazily retried NFT owner lookups can only add information.
func (r *AccountRepository) Ensure(ctx context.Context, account *models.Account) error {
	if err := types.ValidateAddress(account.DeploymentAddress); err != nil {
		return err
	}
	account.DeploymentAddress = types.NormalizeAddress(account.DeploymentAddress)

	query := `
		INSERT INTO accounts (
			deployment_address, account_id, wallet_address,
			driver_type, driver_name, created_at
		)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (deployment_address, account_id)
		DO UPDATE SET
			wallet_address = COALESCE(accounts.wallet_address, EXCLUDED.wallet_address),
			driver_name = COALESCE(accounts.driver_name, EXCLUDED.driver_name),
			driver_type = CASE
				WHEN accounts.driver_type = $6 THEN EXCLUDED.driver_type
				ELSE accounts.driver_type
			END
	`

	_, err := r.db.Pool().Exec(ctx, query,
		account.DeploymentAddress,
		account.AccountID,
		account.WalletAddress,
		account.DriverType,
		account.DriverName,
		types.DriverUnknown,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}

	return nil
}

// Get retrieves an account by deployment and account id. Returns (nil, nil)
// when the account is unknown.
func (r *AccountRepository) Get(ctx context.Context, deploymentAddress, accountID string) (*models.Account, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, err
	}
	deploymentAddress = types.NormalizeAddress(deploymentAddress)

	query := `
		SELECT deployment_address, account_id, wallet_address,
			   driver_type, driver_name, created_at
		FROM accounts
		WHERE deployment_address = $1 AND account_id = $2
	`

	var a models.Account
	err := r.db.Pool().QueryRow(ctx, query, deploymentAddress, accountID).Scan(
		&a.DeploymentAddress,
		&a.AccountID,
		&a.WalletAddress,
		&a.DriverType,
		&a.DriverName,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &a, nil
}

// ListByWallet retrieves all accounts resolved to a wallet address across
// deployments. User-priority syncs use this to find the account ids to
// filter on.
func (r *AccountRepository) ListByWallet(ctx context.Context, walletAddress string) ([]*models.Account, error) {
	if err := types.ValidateAddress(walletAddress); err != nil {
		return nil, err
	}
	walletAddress = types.NormalizeAddress(walletAddress)

	query := `
		SELECT deployment_address, account_id, wallet_address,
			   driver_type, driver_name, created_at
		FROM accounts
		WHERE wallet_address = $1
		ORDER BY deployment_address, account_id
	`

	rows, err := r.db.Pool().Query(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts by wallet: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		err := rows.Scan(
			&a.DeploymentAddress,
			&a.AccountID,
			&a.WalletAddress,
			&a.DriverType,
			&a.DriverName,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
