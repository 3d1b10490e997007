package indexer

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/types"
)

// DefaultCooldown is the minimum gap between sync runs for a caught-up
// deployment.
const DefaultCooldown = 30 * time.Second

// Skip reasons reported on a gated run
const (
	SkipReasonCooldown = "cooldown"
	SkipReasonLocked   = "locked"
)

// RunOptions tune a single sync invocation
type RunOptions struct {
	// Force bypasses the cooldown gate (not the advisory lock)
	Force bool
	// Limit caps the transactions scanned this run; 0 means the configured
	// batch size
	Limit int
	// AccountFilter restricts reconciliation to one account id for
	// user-priority syncs; fetch and cursor advancement are unaffected
	AccountFilter string
}

// RunResult is the outcome of one sync invocation
type RunResult struct {
	DeploymentAddress string    `json:"deploymentAddress"`
	Skipped           bool      `json:"skipped"`
	SkipReason        string    `json:"skipReason,omitempty"`
	EventsProcessed   int       `json:"eventsProcessed"`
	LastSyncedAt      time.Time `json:"lastSyncedAt"`
	HasMore           bool      `json:"hasMore"`
	Cursor            uint64    `json:"cursor"`
	Degraded          bool      `json:"degraded"`
	DegradedReason    string    `json:"degradedReason,omitempty"`
}

// Scheduler gates and drives sync runs. One invocation processes at most
// one batch; callers re-invoke while HasMore for continuation, and any
// prefix of batches leaves consistent state.
type Scheduler struct {
	chain       ChainReader
	fetcher     *Fetcher
	reconciler  *Reconciler
	cursors     CursorStore
	metadata    MetadataStore
	deployments DeploymentStore
	// lock is optional; nil means single-process deployment
	lock      Locker
	cooldown  time.Duration
	batchSize int
	now       func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(chain ChainReader, fetcher *Fetcher, reconciler *Reconciler, cursors CursorStore, metadata MetadataStore, deployments DeploymentStore, lock Locker, cooldown time.Duration, batchSize int) *Scheduler {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if batchSize <= 0 || batchSize > types.MaxBatchSize {
		batchSize = types.MaxBatchSize
	}
	return &Scheduler{
		chain:       chain,
		fetcher:     fetcher,
		reconciler:  reconciler,
		cursors:     cursors,
		metadata:    metadata,
		deployments: deployments,
		lock:        lock,
		cooldown:    cooldown,
		batchSize:   batchSize,
		now:         time.Now,
	}
}

// SyncDeployment runs one gated sync batch for a deployment
func (s *Scheduler) SyncDeployment(ctx context.Context, deploymentAddress string, opts RunOptions) (*RunResult, error) {
	deploymentAddress = types.NormalizeAddress(deploymentAddress)
	log := logging.FromContext(ctx).WithField("deployment", deploymentAddress)
	started := s.now()

	meta, err := s.metadata.GetMetadata(ctx, deploymentAddress)
	if err != nil {
		return nil, err
	}
	if !s.canSync(meta, opts.Force) {
		return &RunResult{
			DeploymentAddress: deploymentAddress,
			Skipped:           true,
			SkipReason:        SkipReasonCooldown,
			LastSyncedAt:      meta.LastSyncedAt,
			HasMore:           meta.HasMore,
		}, nil
	}

	if s.lock != nil {
		release, acquired, err := s.lock.TryAcquire(ctx, deploymentAddress)
		if err != nil {
			return nil, err
		}
		if !acquired {
			log.Debug("Sync already running, skipping")
			return &RunResult{
				DeploymentAddress: deploymentAddress,
				Skipped:           true,
				SkipReason:        SkipReasonLocked,
			}, nil
		}
		defer release(ctx)
	}

	result := &RunResult{DeploymentAddress: deploymentAddress}

	// Tip is best-effort: without it the caught-up short circuit and the
	// hasMore ceiling are disabled, never the sync itself
	tip := uint64(math.MaxUint64)
	if info, err := s.chain.GetLedgerInfo(ctx); err != nil {
		log.WithError(err).Warn("Chain tip unavailable")
		result.Degraded = true
		result.DegradedReason = "chain tip unavailable: " + err.Error()
	} else {
		tip = uint64(info.LedgerVersion)
	}

	cursor, start, err := s.loadCursor(ctx, deploymentAddress)
	if err != nil {
		return nil, err
	}

	if cursor != nil && cursor.Value >= tip {
		// Caught up; record the zero-work run so the gate's cooldown
		// window restarts
		return s.finish(ctx, result, started, 0, cursor.Value, false)
	}

	batchSize := s.batchSize
	if opts.Limit > 0 && opts.Limit < batchSize {
		batchSize = opts.Limit
	}

	fetched := s.fetcher.Fetch(ctx, deploymentAddress, start, batchSize)
	if fetched.Degraded {
		result.Degraded = true
		result.DegradedReason = fetched.DegradedReason
	}

	processed := 0
	for _, candidate := range fetched.Candidates {
		applied, err := s.reconciler.Apply(ctx, candidate, opts.AccountFilter)
		if err != nil {
			return nil, fmt.Errorf("reconcile failed at version %d: %w", candidate.TxVersion, err)
		}
		if applied {
			processed++
		}
	}

	// On a zero-progress run the durable cursor is untouched and the
	// reported cursor stays at the last scanned version
	newCursor := fetched.NewCursor
	if fetched.Scanned == 0 {
		newCursor = 0
		if cursor != nil {
			newCursor = cursor.Value
		}
	}

	if fetched.Scanned > 0 {
		seq := strconv.FormatUint(fetched.NewCursor, 10)
		if err := s.cursors.AdvanceCursor(ctx, deploymentAddress, types.StreamTransactions, seq); err != nil {
			return nil, err
		}
		if err := s.deployments.UpdateLastTxVersion(ctx, deploymentAddress, fetched.NewCursor); err != nil {
			log.WithError(err).Debug("Deployment version bookkeeping failed")
		}
	}

	hasMore := fetched.Scanned == batchSize && newCursor < tip
	return s.finish(ctx, result, started, processed, newCursor, hasMore)
}

// canSync is the cooldown gate: never-synced, mid-continuation and forced
// runs always pass; otherwise the cooldown must have elapsed.
func (s *Scheduler) canSync(meta *models.SyncMetadata, force bool) bool {
	if meta == nil || force || meta.HasMore {
		return true
	}
	return s.now().Sub(meta.LastSyncedAt) > s.cooldown
}

// loadedCursor pairs the stored cursor row with its parsed value
type loadedCursor struct {
	Value uint64
}

// loadCursor returns the parsed cursor and the version the next scan starts
// at. No cursor means the deployment starts from the beginning.
func (s *Scheduler) loadCursor(ctx context.Context, deploymentAddress string) (*loadedCursor, uint64, error) {
	row, err := s.cursors.GetCursor(ctx, deploymentAddress, types.StreamTransactions)
	if err != nil {
		return nil, 0, err
	}
	if row == nil {
		return nil, 0, nil
	}

	value, err := strconv.ParseUint(row.LastSequence, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("corrupt cursor %q for %s: %w", row.LastSequence, deploymentAddress, err)
	}
	return &loadedCursor{Value: value}, value + 1, nil
}

func (s *Scheduler) finish(ctx context.Context, result *RunResult, started time.Time, processed int, cursor uint64, hasMore bool) (*RunResult, error) {
	now := s.now()
	meta := &models.SyncMetadata{
		DeploymentAddress: result.DeploymentAddress,
		LastSyncedAt:      now,
		EventsProcessed:   processed,
		SyncDurationMs:    now.Sub(started).Milliseconds(),
		HasMore:           hasMore,
	}
	if err := s.metadata.UpsertMetadata(ctx, meta); err != nil {
		return nil, err
	}

	result.EventsProcessed = processed
	result.LastSyncedAt = now
	result.HasMore = hasMore
	result.Cursor = cursor
	return result, nil
}
