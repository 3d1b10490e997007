// Package service wires the sync engine and stores into the operations the
// API layer exposes.
package service

import (
	"context"
	"time"

	"github.com/stream-indexer/internal/errors"
	"github.com/stream-indexer/internal/indexer"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/resolver"
	"github.com/stream-indexer/internal/types"
)

// maxDiscoveryBatches bounds the user-history scan of a single Sync call;
// deeper histories continue on the next call via the discovery cursor.
const maxDiscoveryBatches = 10

// DeploymentSyncer runs gated sync batches; the scheduler satisfies it
type DeploymentSyncer interface {
	SyncDeployment(ctx context.Context, deploymentAddress string, opts indexer.RunOptions) (*indexer.RunResult, error)
}

// UserDiscoverer scans user history for deployments; the discovery engine
// satisfies it
type UserDiscoverer interface {
	DiscoverForUser(ctx context.Context, userAddress string) (*indexer.DiscoveryResult, error)
}

// AccountReader finds accounts resolved to a wallet
type AccountReader interface {
	ListByWallet(ctx context.Context, walletAddress string) ([]*models.Account, error)
}

// SyncInput selects the sync target: exactly one of DeploymentAddress or
// UserAddress.
type SyncInput struct {
	DeploymentAddress string `json:"deploymentAddress,omitempty"`
	UserAddress       string `json:"userAddress,omitempty"`
	Force             bool   `json:"force,omitempty"`
	Limit             int    `json:"limit,omitempty"`
}

// SyncResult aggregates the deployment runs of one Sync call
type SyncResult struct {
	Runs            []*indexer.RunResult `json:"runs"`
	EventsProcessed int                  `json:"eventsProcessed"`
	HasMore         bool                 `json:"hasMore"`
	Degraded        bool                 `json:"degraded"`
	// Discovered lists deployments first registered by this call
	Discovered []string `json:"discovered,omitempty"`
}

// StatusEntry is one deployment's sync freshness
type StatusEntry struct {
	DeploymentAddress string    `json:"deploymentAddress"`
	LastSyncedAt      time.Time `json:"lastSyncedAt"`
	AgeMs             int64     `json:"ageMs"`
	HasMore           bool      `json:"hasMore"`
	EventsProcessed   int       `json:"eventsProcessed"`
}

// SyncService exposes the engine's Sync and Status operations
type SyncService struct {
	scheduler   DeploymentSyncer
	discovery   UserDiscoverer
	deployments indexer.DeploymentStore
	metadata    indexer.MetadataStore
	accounts    AccountReader
	now         func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(scheduler DeploymentSyncer, discovery UserDiscoverer, deployments indexer.DeploymentStore, metadata indexer.MetadataStore, accounts AccountReader) *SyncService {
	return &SyncService{
		scheduler:   scheduler,
		discovery:   discovery,
		deployments: deployments,
		metadata:    metadata,
		accounts:    accounts,
		now:         time.Now,
	}
}

// Sync runs one gated sync pass for the requested target. The deployment
// form syncs that deployment; the user form discovers the user's
// deployments first, then syncs them filtered to the user's own account id.
func (s *SyncService) Sync(ctx context.Context, input *SyncInput) (*SyncResult, error) {
	switch {
	case input.DeploymentAddress != "" && input.UserAddress != "":
		return nil, errors.NewInvalidParameterError("target", "specify deploymentAddress or userAddress, not both")
	case input.DeploymentAddress != "":
		return s.syncDeployment(ctx, input)
	case input.UserAddress != "":
		return s.syncUser(ctx, input)
	default:
		return nil, errors.NewInvalidParameterError("target", "deploymentAddress or userAddress is required")
	}
}

func (s *SyncService) syncDeployment(ctx context.Context, input *SyncInput) (*SyncResult, error) {
	if err := types.ValidateAddress(input.DeploymentAddress); err != nil {
		return nil, errors.NewInvalidAddressError(input.DeploymentAddress)
	}

	deployment, err := s.deployments.Get(ctx, input.DeploymentAddress)
	if err != nil {
		return nil, err
	}
	if deployment == nil {
		return nil, errors.NewNoDeploymentError(input.DeploymentAddress)
	}

	run, err := s.scheduler.SyncDeployment(ctx, deployment.Address, indexer.RunOptions{
		Force: input.Force,
		Limit: input.Limit,
	})
	if err != nil {
		return nil, err
	}

	return aggregate([]*indexer.RunResult{run}, nil), nil
}

// syncUser discovers deployments from the user's history, then runs a
// user-priority sync of each filtered to the user's account id. The
// address-driver id of the wallet is the only account id derivable offline.
func (s *SyncService) syncUser(ctx context.Context, input *SyncInput) (*SyncResult, error) {
	if err := types.ValidateAddress(input.UserAddress); err != nil {
		return nil, errors.NewInvalidAddressError(input.UserAddress)
	}
	user := types.NormalizeAddress(input.UserAddress)
	log := logging.FromContext(ctx).WithField("user", user)

	var discovered []string
	for i := 0; i < maxDiscoveryBatches; i++ {
		result, err := s.discovery.DiscoverForUser(ctx, user)
		if err != nil {
			return nil, err
		}
		discovered = append(discovered, result.Deployments...)
		if !result.HasMore {
			break
		}
	}

	targets, err := s.userDeployments(ctx, user, discovered)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.NewNoDeploymentError(user)
	}

	accountID, err := resolver.AccountIDFromAddress(user)
	if err != nil {
		return nil, errors.NewInvalidAddressError(user)
	}

	var runs []*indexer.RunResult
	for _, target := range targets {
		run, err := s.scheduler.SyncDeployment(ctx, target, indexer.RunOptions{
			Force:         input.Force,
			Limit:         input.Limit,
			AccountFilter: accountID,
		})
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	log.WithFields(map[string]interface{}{
		"deployments": len(targets),
		"discovered":  len(discovered),
	}).Info("User-priority sync complete")

	return aggregate(runs, discovered), nil
}

// userDeployments is the union of deployments newly discovered and those
// already holding an account resolved to the user's wallet
func (s *SyncService) userDeployments(ctx context.Context, user string, discovered []string) ([]string, error) {
	set := make(map[string]bool, len(discovered))
	for _, d := range discovered {
		set[d] = true
	}

	accounts, err := s.accounts.ListByWallet(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		set[a.DeploymentAddress] = true
	}

	targets := make([]string, 0, len(set))
	for d := range set {
		targets = append(targets, d)
	}
	return targets, nil
}

// Status reports sync freshness for one or all deployments
func (s *SyncService) Status(ctx context.Context, deploymentAddress string) ([]*StatusEntry, error) {
	var metas []*models.SyncMetadata

	if deploymentAddress != "" {
		if err := types.ValidateAddress(deploymentAddress); err != nil {
			return nil, errors.NewInvalidAddressError(deploymentAddress)
		}
		meta, err := s.metadata.GetMetadata(ctx, deploymentAddress)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, errors.NewNotFoundError("sync metadata", deploymentAddress)
		}
		metas = []*models.SyncMetadata{meta}
	} else {
		var err error
		metas, err = s.metadata.ListMetadata(ctx)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	entries := make([]*StatusEntry, len(metas))
	for i, m := range metas {
		entries[i] = &StatusEntry{
			DeploymentAddress: m.DeploymentAddress,
			LastSyncedAt:      m.LastSyncedAt,
			AgeMs:             now.Sub(m.LastSyncedAt).Milliseconds(),
			HasMore:           m.HasMore,
			EventsProcessed:   m.EventsProcessed,
		}
	}
	return entries, nil
}

// ListDeployments returns the deployment registry
func (s *SyncService) ListDeployments(ctx context.Context) ([]*models.Deployment, error) {
	return s.deployments.List(ctx)
}

func aggregate(runs []*indexer.RunResult, discovered []string) *SyncResult {
	result := &SyncResult{Runs: runs, Discovered: discovered}
	for _, run := range runs {
		result.EventsProcessed += run.EventsProcessed
		result.HasMore = result.HasMore || run.HasMore
		result.Degraded = result.Degraded || run.Degraded
	}
	return result
}
