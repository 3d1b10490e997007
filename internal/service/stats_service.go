package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/stream-indexer/internal/errors"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// AggregateSource serves the volume and TVL aggregations. Both the Postgres
// event repository and the ClickHouse analytics repository satisfy it; the
// stats service prefers ClickHouse and falls back to Postgres.
type AggregateSource interface {
	VolumeByToken(ctx context.Context, deploymentAddress string) ([]*models.TokenVolume, error)
	TVLByToken(ctx context.Context, deploymentAddress string) ([]*models.TokenTVL, error)
}

// TokenStore persists fetched token metadata
type TokenStore interface {
	Get(ctx context.Context, address string) (*models.Token, error)
	Save(ctx context.Context, token *models.Token) error
}

// TokenCache is the Redis-backed metadata cache
type TokenCache interface {
	GetToken(ctx context.Context, address string) (*models.Token, bool)
	SetToken(ctx context.Context, token *models.Token)
}

// ViewCaller executes read-only chain functions
type ViewCaller interface {
	View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error)
}

// PriceProvider converts raw token amounts to USD. Implementations are
// injected; ok=false means no price is known and the USD field stays unset.
type PriceProvider interface {
	ToUSD(ctx context.Context, amount string, token string, decimals int) (usd float64, ok bool)
}

// StatsService serves volume and TVL aggregates over the event log
type StatsService struct {
	primary  AggregateSource // ClickHouse mirror; nil when not configured
	fallback AggregateSource // Postgres event log
	tokens   TokenStore
	cache    TokenCache
	view     ViewCaller
	prices   PriceProvider
}

// NewStatsService creates a new stats service. primary, cache and prices
// may be nil.
func NewStatsService(primary, fallback AggregateSource, tokens TokenStore, cache TokenCache, view ViewCaller, prices PriceProvider) *StatsService {
	return &StatsService{
		primary:  primary,
		fallback: fallback,
		tokens:   tokens,
		cache:    cache,
		view:     view,
		prices:   prices,
	}
}

// Volume returns per-token moved amounts for a deployment
func (s *StatsService) Volume(ctx context.Context, deploymentAddress string) ([]*models.TokenVolume, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, errors.NewInvalidAddressError(deploymentAddress)
	}

	volumes, err := s.source().VolumeByToken(ctx, deploymentAddress)
	if err != nil {
		return nil, errors.NewDatabaseError("volume aggregation", err)
	}

	for _, v := range volumes {
		if usd, ok := s.toUSD(ctx, v.Amount, v.Token); ok {
			v.AmountUSD = &usd
		}
	}
	return volumes, nil
}

// TVL returns per-token locked value for a deployment
func (s *StatsService) TVL(ctx context.Context, deploymentAddress string) ([]*models.TokenTVL, error) {
	if err := types.ValidateAddress(deploymentAddress); err != nil {
		return nil, errors.NewInvalidAddressError(deploymentAddress)
	}

	tvls, err := s.source().TVLByToken(ctx, deploymentAddress)
	if err != nil {
		return nil, errors.NewDatabaseError("tvl aggregation", err)
	}

	for _, t := range tvls {
		if usd, ok := s.toUSD(ctx, t.Locked, t.Token); ok {
			t.LockedUSD = &usd
		}
	}
	return tvls, nil
}

func (s *StatsService) source() AggregateSource {
	if s.primary != nil {
		return s.primary
	}
	return s.fallback
}

func (s *StatsService) toUSD(ctx context.Context, amount, token string) (float64, bool) {
	if s.prices == nil {
		return 0, false
	}
	meta, err := s.TokenMetadata(ctx, token)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("token", token).Debug("Token metadata unavailable")
		return 0, false
	}
	return s.prices.ToUSD(ctx, amount, token, meta.Decimals)
}

// faMetadataView is the fungible asset metadata returned by the chain
type faMetadataView struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// TokenMetadata returns fungible asset metadata, fetching it from the chain
// on first sight. Decimals are immutable on a deployed asset, so the cached
// copy never expires semantically; the Redis TTL only bounds memory.
func (s *StatsService) TokenMetadata(ctx context.Context, address string) (*models.Token, error) {
	if err := types.ValidateAddress(address); err != nil {
		return nil, errors.NewInvalidAddressError(address)
	}
	address = types.NormalizeAddress(address)

	if s.cache != nil {
		if token, ok := s.cache.GetToken(ctx, address); ok {
			return token, nil
		}
	}

	token, err := s.tokens.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if token == nil {
		token, err = s.fetchToken(ctx, address)
		if err != nil {
			return nil, err
		}
		if err := s.tokens.Save(ctx, token); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		s.cache.SetToken(ctx, token)
	}
	return token, nil
}

func (s *StatsService) fetchToken(ctx context.Context, address string) (*models.Token, error) {
	out, err := s.view.View(ctx, "0x1::fungible_asset::metadata", nil, []any{address})
	if err != nil {
		return nil, errors.NewChainError("token metadata lookup", err)
	}
	if len(out) == 0 {
		return nil, errors.NewChainError("token metadata lookup", fmt.Errorf("empty view result for %s", address))
	}

	var meta faMetadataView
	if err := json.Unmarshal(out[0], &meta); err != nil {
		return nil, errors.NewChainError("token metadata decode", err)
	}

	return &models.Token{
		Address:  address,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: meta.Decimals,
	}, nil
}

// FixedPriceProvider converts amounts with a static per-token USD price table.
// Amounts are decimal strings wider than int64, so the conversion goes
// through big.Float.
type FixedPriceProvider struct {
	Prices map[string]float64
}

// ToUSD converts a raw amount using the fixed price table
func (p *FixedPriceProvider) ToUSD(ctx context.Context, amount string, token string, decimals int) (float64, bool) {
	price, ok := p.Prices[types.NormalizeAddress(token)]
	if !ok {
		return 0, false
	}

	raw, ok := new(big.Float).SetString(amount)
	if !ok {
		return 0, false
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(raw, scale)
	value.Mul(value, big.NewFloat(price))

	usd, _ := value.Float64()
	return usd, true
}
