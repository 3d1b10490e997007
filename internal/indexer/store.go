// Package indexer implements the sync engine: incremental fetching of chain
// transactions, event-to-state reconciliation, cooldown scheduling and
// deployment discovery.
package indexer

import (
	"context"

	"github.com/stream-indexer/internal/chain"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/resolver"
	"github.com/stream-indexer/internal/types"
)

// The engine declares the store surface it consumes; the storage package
// satisfies these with its repositories. Tests substitute in-memory fakes.

// DeploymentStore is the deployment registry
type DeploymentStore interface {
	Register(ctx context.Context, deployment *models.Deployment) error
	Get(ctx context.Context, address string) (*models.Deployment, error)
	List(ctx context.Context) ([]*models.Deployment, error)
	UpdateLastTxVersion(ctx context.Context, address string, version uint64) error
}

// AccountStore persists protocol accounts
type AccountStore interface {
	Ensure(ctx context.Context, account *models.Account) error
}

// StreamStore persists streaming configurations
type StreamStore interface {
	DeactivateAllForSender(ctx context.Context, deploymentAddress, senderID string) error
	Upsert(ctx context.Context, stream *models.Stream) error
}

// SplitStore persists split configurations
type SplitStore interface {
	ReplaceForAccount(ctx context.Context, deploymentAddress, accountID string, splits []*models.Split) error
}

// EventStore is the append-only activity log
type EventStore interface {
	Append(ctx context.Context, event *models.Event) (bool, error)
}

// EventMirror receives best-effort copies of appended events for analytics
type EventMirror interface {
	MirrorEvents(ctx context.Context, events []*models.Event) error
}

// CursorStore holds durable fetch progress
type CursorStore interface {
	GetCursor(ctx context.Context, cursorKey string, kind types.StreamKind) (*models.SyncCursor, error)
	AdvanceCursor(ctx context.Context, cursorKey string, kind types.StreamKind, lastSequence string) error
	SeedCursor(ctx context.Context, cursorKey string, kind types.StreamKind, lastSequence string) error
}

// MetadataStore holds per-deployment sync outcomes for the cooldown gate
type MetadataStore interface {
	GetMetadata(ctx context.Context, deploymentAddress string) (*models.SyncMetadata, error)
	UpsertMetadata(ctx context.Context, meta *models.SyncMetadata) error
	ListMetadata(ctx context.Context) ([]*models.SyncMetadata, error)
}

// Locker serializes sync runs on the same deployment across processes
type Locker interface {
	TryAcquire(ctx context.Context, deploymentAddress string) (release func(context.Context), acquired bool, err error)
}

// ChainReader is the slice of the fullnode client the engine uses
type ChainReader interface {
	GetLedgerInfo(ctx context.Context) (*chain.LedgerInfo, error)
	GetTransactions(ctx context.Context, start uint64, limit int) ([]chain.Transaction, error)
	GetAccountTransactions(ctx context.Context, address string, start uint64, limit int) ([]chain.Transaction, error)
	ModuleExists(ctx context.Context, address, name string) (bool, error)
}

// IdentityResolver resolves account ids to wallet identities
type IdentityResolver interface {
	Resolve(ctx context.Context, accountID, deploymentAddress, txSenderHint, entryFunctionHint string) resolver.Resolution
}
