package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// TokenRepository handles fungible asset metadata. Rows are written once
// after the first on-chain lookup and treated as immutable.
type TokenRepository struct {
	db *PostgresDB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *PostgresDB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get retrieves token metadata by asset address. Returns (nil, nil) when
// the token has not been seen yet.
func (r *TokenRepository) Get(ctx context.Context, address string) (*models.Token, error) {
	if err := types.ValidateAddress(address); err != nil {
		return nil, err
	}
	address = types.NormalizeAddress(address)

	query := `
		SELECT address, symbol, name, decimals
		FROM tokens
		WHERE address = $1
	`

	var t models.Token
	err := r.db.Pool().QueryRow(ctx, query, address).Scan(
		&t.Address,
		&t.Symbol,
		&t.Name,
		&t.Decimals,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &t, nil
}

// Save stores token metadata, keeping the first write on conflict
func (r *TokenRepository) Save(ctx context.Context, token *models.Token) error {
	if err := types.ValidateAddress(token.Address); err != nil {
		return err
	}
	token.Address = types.NormalizeAddress(token.Address)

	query := `
		INSERT INTO tokens (address, symbol, name, decimals)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, token.Address, token.Symbol, token.Name, token.Decimals); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}
