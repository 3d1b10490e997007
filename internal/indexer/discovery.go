package indexer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stream-indexer/internal/decoder"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// DiscoveryResult is the outcome of one discovery batch
type DiscoveryResult struct {
	// Deployments lists addresses newly registered by this batch
	Deployments []string `json:"deployments"`
	// HasMore signals more user history to scan; callers re-invoke
	HasMore bool `json:"hasMore"`
	// Processed counts user transactions examined
	Processed int `json:"processed"`
}

// Discovery finds protocol deployments by scanning a user's own transaction
// history for events whose type tag names the core module. Candidates are
// verified with an on-chain module existence probe before registration, so
// an unrelated module that happens to reuse the name cannot register a
// bogus deployment.
type Discovery struct {
	chain       ChainReader
	cursors     CursorStore
	deployments DeploymentStore
	network     string
}

// NewDiscovery creates a new discovery engine
func NewDiscovery(chain ChainReader, cursors CursorStore, deployments DeploymentStore, network string) *Discovery {
	return &Discovery{
		chain:       chain,
		cursors:     cursors,
		deployments: deployments,
		network:     network,
	}
}

// DiscoverForUser scans one batch of the user's transaction history from
// the per-user discovery cursor. Transient chain failures degrade to zero
// progress like the fetcher; the continuation protocol is the same.
func (d *Discovery) DiscoverForUser(ctx context.Context, userAddress string) (*DiscoveryResult, error) {
	if err := types.ValidateAddress(userAddress); err != nil {
		return nil, err
	}
	userAddress = types.NormalizeAddress(userAddress)
	log := logging.FromContext(ctx).WithField("user", userAddress)

	start, err := d.loadCursor(ctx, userAddress)
	if err != nil {
		return nil, err
	}

	txs, err := d.chain.GetAccountTransactions(ctx, userAddress, start, types.MaxBatchSize)
	if err != nil {
		log.WithError(err).Warn("User history fetch failed, degrading to no-op")
		return &DiscoveryResult{}, nil
	}
	if len(txs) == 0 {
		return &DiscoveryResult{}, nil
	}

	// Distinct candidate addresses from core-module event tags
	candidates := make(map[string]bool)
	lastVersion := start
	for i := range txs {
		tx := &txs[i]
		lastVersion = uint64(tx.Version)
		for _, ev := range tx.Events {
			tag, ok := decoder.ParseTypeTag(ev.Type)
			if ok && tag.Module == types.CoreModuleName {
				candidates[tag.Address] = true
			}
		}
	}

	result := &DiscoveryResult{
		Processed: len(txs),
		HasMore:   len(txs) == types.MaxBatchSize,
	}

	for address := range candidates {
		registered, err := d.verifyAndRegister(ctx, address)
		if err != nil {
			return nil, err
		}
		if registered {
			result.Deployments = append(result.Deployments, address)
		}
	}

	seq := strconv.FormatUint(lastVersion, 10)
	if err := d.cursors.AdvanceCursor(ctx, userAddress, types.StreamUserDiscovery, seq); err != nil {
		return nil, err
	}

	return result, nil
}

// verifyAndRegister probes the candidate for the core module, registers the
// deployment and seeds its sync cursor at the oldest transaction of the
// deployment account itself, so the first sync does not scan from genesis.
func (d *Discovery) verifyAndRegister(ctx context.Context, address string) (bool, error) {
	existing, err := d.deployments.Get(ctx, address)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	exists, err := d.chain.ModuleExists(ctx, address, types.CoreModuleName)
	if err != nil {
		// Probe failure leaves the candidate unregistered; it is
		// retried the next time a scanned batch references it
		logging.FromContext(ctx).WithError(err).WithField("candidate", address).Warn("Module probe failed")
		return false, nil
	}
	if !exists {
		return false, nil
	}

	deployment := &models.Deployment{
		Address: address,
		Network: d.network,
	}
	if err := d.deployments.Register(ctx, deployment); err != nil {
		return false, fmt.Errorf("register deployment %s: %w", address, err)
	}

	if history, err := d.chain.GetAccountTransactions(ctx, address, 0, 1); err == nil && len(history) > 0 {
		seq := strconv.FormatUint(uint64(history[0].Version), 10)
		if err := d.cursors.SeedCursor(ctx, address, types.StreamTransactions, seq); err != nil {
			return false, err
		}
	}

	return true, nil
}

// loadCursor returns the version the next history scan starts at
func (d *Discovery) loadCursor(ctx context.Context, userAddress string) (uint64, error) {
	row, err := d.cursors.GetCursor(ctx, userAddress, types.StreamUserDiscovery)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}

	value, err := strconv.ParseUint(row.LastSequence, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt discovery cursor %q for %s: %w", row.LastSequence, userAddress, err)
	}
	return value + 1, nil
}
