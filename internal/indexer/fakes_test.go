package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/stream-indexer/internal/chain"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/resolver"
	"github.com/stream-indexer/internal/types"
)

// memStore is an in-memory implementation of the engine's store interfaces
type memStore struct {
	mu          sync.Mutex
	deployments map[string]*models.Deployment
	accounts    map[string]*models.Account
	streams     map[string]*models.Stream
	splits      map[string][]*models.Split
	events      map[string]*models.Event
	eventOrder  []*models.Event
	cursors     map[string]string
	metadata    map[string]*models.SyncMetadata

	appendErr error
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{
		deployments: make(map[string]*models.Deployment),
		accounts:    make(map[string]*models.Account),
		streams:     make(map[string]*models.Stream),
		splits:      make(map[string][]*models.Split),
		events:      make(map[string]*models.Event),
		cursors:     make(map[string]string),
		metadata:    make(map[string]*models.SyncMetadata),
	}
}

func (s *memStore) Register(ctx context.Context, d *models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := types.NormalizeAddress(d.Address)
	if _, ok := s.deployments[addr]; !ok {
		copied := *d
		copied.Address = addr
		s.deployments[addr] = &copied
	}
	return nil
}

func (s *memStore) Get(ctx context.Context, address string) (*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deployments[types.NormalizeAddress(address)], nil
}

func (s *memStore) List(ctx context.Context) ([]*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Deployment
	for _, d := range s.deployments {
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) UpdateLastTxVersion(ctx context.Context, address string, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deployments[types.NormalizeAddress(address)]; ok {
		if d.LastTxVersion == nil || *d.LastTxVersion < version {
			v := version
			d.LastTxVersion = &v
		}
	}
	return nil
}

func (s *memStore) Ensure(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.DeploymentAddress + "|" + a.AccountID
	if existing, ok := s.accounts[key]; ok {
		if existing.WalletAddress == nil {
			existing.WalletAddress = a.WalletAddress
		}
		if existing.DriverType == types.DriverUnknown {
			existing.DriverType = a.DriverType
			existing.DriverName = a.DriverName
		}
		return nil
	}
	copied := *a
	s.accounts[key] = &copied
	return nil
}

func streamKey(st *models.Stream) string {
	return fmt.Sprintf("%s|%s|%s|%s", st.DeploymentAddress, st.SenderID, st.ReceiverID, st.StreamID)
}

func (s *memStore) DeactivateAllForSender(ctx context.Context, deployment, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.streams {
		if st.DeploymentAddress == deployment && st.SenderID == senderID {
			st.Active = false
		}
	}
	return nil
}

func (s *memStore) Upsert(ctx context.Context, st *models.Stream) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *st
	copied.Active = true
	s.streams[streamKey(st)] = &copied
	return nil
}

func (s *memStore) ReplaceForAccount(ctx context.Context, deployment, accountID string, splits []*models.Split) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]*models.Split, len(splits))
	for i, sp := range splits {
		c := *sp
		copied[i] = &c
	}
	s.splits[deployment+"|"+accountID] = copied
	return nil
}

func (s *memStore) Append(ctx context.Context, e *models.Event) (bool, error) {
	if s.appendErr != nil {
		return false, s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s|%d", e.DeploymentAddress, e.EventType, e.AccountID, e.SequenceNumber)
	if _, ok := s.events[key]; ok {
		return false, nil
	}
	copied := *e
	s.events[key] = &copied
	s.eventOrder = append(s.eventOrder, &copied)
	return true, nil
}

func (s *memStore) GetCursor(ctx context.Context, key string, kind types.StreamKind) (*models.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.cursors[key+"|"+string(kind)]
	if !ok {
		return nil, nil
	}
	return &models.SyncCursor{CursorKey: key, StreamKind: kind, LastSequence: seq}, nil
}

func (s *memStore) AdvanceCursor(ctx context.Context, key string, kind types.StreamKind, lastSequence string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := key + "|" + string(kind)
	if existing, ok := s.cursors[mapKey]; ok {
		old, _ := strconv.ParseUint(existing, 10, 64)
		next, _ := strconv.ParseUint(lastSequence, 10, 64)
		if next < old {
			return nil
		}
	}
	s.cursors[mapKey] = lastSequence
	return nil
}

func (s *memStore) SeedCursor(ctx context.Context, key string, kind types.StreamKind, lastSequence string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := key + "|" + string(kind)
	if _, ok := s.cursors[mapKey]; !ok {
		s.cursors[mapKey] = lastSequence
	}
	return nil
}

func (s *memStore) GetMetadata(ctx context.Context, deployment string) (*models.SyncMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[types.NormalizeAddress(deployment)], nil
}

func (s *memStore) UpsertMetadata(ctx context.Context, meta *models.SyncMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *meta
	s.metadata[types.NormalizeAddress(meta.DeploymentAddress)] = &copied
	return nil
}

func (s *memStore) ListMetadata(ctx context.Context) ([]*models.SyncMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SyncMetadata
	for _, m := range s.metadata {
		out = append(out, m)
	}
	return out, nil
}

func (s *memStore) activeStreams(deployment, senderID string) []*models.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Stream
	for _, st := range s.streams {
		if st.DeploymentAddress == deployment && st.SenderID == senderID && st.Active {
			out = append(out, st)
		}
	}
	return out
}

// fakeChain serves canned transactions keyed by deployment/user address
type fakeChain struct {
	tip        uint64
	tipErr     error
	txs        []chain.Transaction
	txErr      error
	accountTxs map[string][]chain.Transaction
	accountErr error
	modules    map[string]bool
	moduleErr  error

	txCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		accountTxs: make(map[string][]chain.Transaction),
		modules:    make(map[string]bool),
	}
}

func (c *fakeChain) GetLedgerInfo(ctx context.Context) (*chain.LedgerInfo, error) {
	if c.tipErr != nil {
		return nil, c.tipErr
	}
	return &chain.LedgerInfo{LedgerVersion: chain.Uint64Str(c.tip)}, nil
}

func (c *fakeChain) GetTransactions(ctx context.Context, start uint64, limit int) ([]chain.Transaction, error) {
	c.txCalls++
	if c.txErr != nil {
		return nil, c.txErr
	}
	var out []chain.Transaction
	for _, tx := range c.txs {
		if uint64(tx.Version) >= start && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (c *fakeChain) GetAccountTransactions(ctx context.Context, address string, start uint64, limit int) ([]chain.Transaction, error) {
	if c.accountErr != nil {
		return nil, c.accountErr
	}
	var out []chain.Transaction
	for _, tx := range c.accountTxs[types.NormalizeAddress(address)] {
		if uint64(tx.Version) >= start && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (c *fakeChain) ModuleExists(ctx context.Context, address, name string) (bool, error) {
	if c.moduleErr != nil {
		return false, c.moduleErr
	}
	return c.modules[types.NormalizeAddress(address)+"::"+name], nil
}

// passthroughResolver resolves every id as an address-driver wallet
type passthroughResolver struct{}

func (passthroughResolver) Resolve(ctx context.Context, accountID, deploymentAddress, txSenderHint, entryFunctionHint string) resolver.Resolution {
	name := types.DriverAddress.Name()
	wallet := "0x" + accountID
	return resolver.Resolution{
		WalletAddress: &wallet,
		DriverType:    types.DriverAddress,
		DriverName:    &name,
	}
}

var errChainDown = errors.New("connection refused")
