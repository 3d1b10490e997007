package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stream-indexer/internal/errors"
	"github.com/stream-indexer/internal/indexer"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/resolver"
	"github.com/stream-indexer/internal/types"
)

const (
	testDeployment = "0x00000000000000000000000000000000000000000000000000000000000000d1"
	testUser       = "0x00000000000000000000000000000000000000000000000000000000000000ee"
)

type fakeSyncer struct {
	calls   []string
	filters []string
	result  *indexer.RunResult
}

func (f *fakeSyncer) SyncDeployment(ctx context.Context, addr string, opts indexer.RunOptions) (*indexer.RunResult, error) {
	f.calls = append(f.calls, addr)
	f.filters = append(f.filters, opts.AccountFilter)
	if f.result != nil {
		r := *f.result
		r.DeploymentAddress = addr
		return &r, nil
	}
	return &indexer.RunResult{DeploymentAddress: addr, EventsProcessed: 1}, nil
}

type fakeDiscoverer struct {
	batches []*indexer.DiscoveryResult
	calls   int
}

func (f *fakeDiscoverer) DiscoverForUser(ctx context.Context, user string) (*indexer.DiscoveryResult, error) {
	if f.calls >= len(f.batches) {
		return &indexer.DiscoveryResult{}, nil
	}
	r := f.batches[f.calls]
	f.calls++
	return r, nil
}

type fakeRegistry struct {
	deployments map[string]*models.Deployment
}

func (f *fakeRegistry) Register(ctx context.Context, d *models.Deployment) error {
	f.deployments[d.Address] = d
	return nil
}

func (f *fakeRegistry) Get(ctx context.Context, address string) (*models.Deployment, error) {
	return f.deployments[types.NormalizeAddress(address)], nil
}

func (f *fakeRegistry) List(ctx context.Context) ([]*models.Deployment, error) {
	var out []*models.Deployment
	for _, d := range f.deployments {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRegistry) UpdateLastTxVersion(ctx context.Context, address string, version uint64) error {
	return nil
}

type fakeMetadata struct {
	metas map[string]*models.SyncMetadata
}

func (f *fakeMetadata) GetMetadata(ctx context.Context, d string) (*models.SyncMetadata, error) {
	return f.metas[types.NormalizeAddress(d)], nil
}

func (f *fakeMetadata) UpsertMetadata(ctx context.Context, m *models.SyncMetadata) error {
	f.metas[m.DeploymentAddress] = m
	return nil
}

func (f *fakeMetadata) ListMetadata(ctx context.Context) ([]*models.SyncMetadata, error) {
	var out []*models.SyncMetadata
	for _, m := range f.metas {
		out = append(out, m)
	}
	return out, nil
}

type fakeAccounts struct {
	byWallet map[string][]*models.Account
}

func (f *fakeAccounts) ListByWallet(ctx context.Context, wallet string) ([]*models.Account, error) {
	return f.byWallet[wallet], nil
}

func newTestService() (*SyncService, *fakeSyncer, *fakeDiscoverer, *fakeRegistry, *fakeMetadata, *fakeAccounts) {
	syncer := &fakeSyncer{}
	disc := &fakeDiscoverer{}
	registry := &fakeRegistry{deployments: make(map[string]*models.Deployment)}
	metadata := &fakeMetadata{metas: make(map[string]*models.SyncMetadata)}
	accounts := &fakeAccounts{byWallet: make(map[string][]*models.Account)}
	return NewSyncService(syncer, disc, registry, metadata, accounts), syncer, disc, registry, metadata, accounts
}

func TestSyncRequiresExactlyOneTarget(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Sync(ctx, &SyncInput{})
	require.Error(t, err)
	assert.True(t, apperrors.IsUserError(err))

	_, err = svc.Sync(ctx, &SyncInput{DeploymentAddress: testDeployment, UserAddress: testUser})
	require.Error(t, err)
	assert.True(t, apperrors.IsUserError(err))
}

func TestSyncUnknownDeploymentIsHardError(t *testing.T) {
	svc, syncer, _, _, _, _ := newTestService()

	_, err := svc.Sync(context.Background(), &SyncInput{DeploymentAddress: testDeployment})
	require.Error(t, err)

	var categorized *apperrors.CategorizedError
	require.ErrorAs(t, err, &categorized)
	assert.Equal(t, "NO_DEPLOYMENT", categorized.Code)
	assert.Empty(t, syncer.calls)
}

func TestSyncKnownDeployment(t *testing.T) {
	svc, syncer, _, registry, _, _ := newTestService()
	registry.deployments[testDeployment] = &models.Deployment{Address: testDeployment}

	result, err := svc.Sync(context.Background(), &SyncInput{DeploymentAddress: testDeployment, Force: true})
	require.NoError(t, err)

	assert.Equal(t, []string{testDeployment}, syncer.calls)
	assert.Equal(t, 1, result.EventsProcessed)
	assert.Equal(t, []string{""}, syncer.filters, "deployment syncs are unfiltered")
}

func TestUserSyncDiscoversThenFilters(t *testing.T) {
	svc, syncer, disc, _, _, _ := newTestService()
	disc.batches = []*indexer.DiscoveryResult{
		{Deployments: []string{testDeployment}, HasMore: true, Processed: 100},
		{Processed: 40},
	}

	result, err := svc.Sync(context.Background(), &SyncInput{UserAddress: testUser})
	require.NoError(t, err)

	assert.Equal(t, 2, disc.calls, "discovery continues while hasMore")
	assert.Equal(t, []string{testDeployment}, syncer.calls)
	assert.Equal(t, []string{testDeployment}, result.Discovered)

	accountID, err := resolver.AccountIDFromAddress(testUser)
	require.NoError(t, err)
	assert.Equal(t, []string{accountID}, syncer.filters, "user syncs filter to the user's account id")
}

func TestUserSyncIncludesKnownAccounts(t *testing.T) {
	svc, syncer, _, _, _, accounts := newTestService()
	accounts.byWallet[testUser] = []*models.Account{
		{DeploymentAddress: testDeployment, AccountID: "5"},
	}

	result, err := svc.Sync(context.Background(), &SyncInput{UserAddress: testUser})
	require.NoError(t, err)

	assert.Equal(t, []string{testDeployment}, syncer.calls)
	assert.Empty(t, result.Discovered)
}

func TestUserSyncWithNoDeploymentFails(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	_, err := svc.Sync(context.Background(), &SyncInput{UserAddress: testUser})
	require.Error(t, err)

	var categorized *apperrors.CategorizedError
	require.ErrorAs(t, err, &categorized)
	assert.Equal(t, "NO_DEPLOYMENT", categorized.Code)
}

func TestStatusComputesAge(t *testing.T) {
	svc, _, _, _, metadata, _ := newTestService()
	now := time.Unix(1700000100, 0)
	svc.now = func() time.Time { return now }

	metadata.metas[testDeployment] = &models.SyncMetadata{
		DeploymentAddress: testDeployment,
		LastSyncedAt:      now.Add(-90 * time.Second),
		EventsProcessed:   7,
		HasMore:           true,
	}

	entries, err := svc.Status(context.Background(), testDeployment)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, int64(90_000), entries[0].AgeMs)
	assert.Equal(t, 7, entries[0].EventsProcessed)
	assert.True(t, entries[0].HasMore)
}

func TestStatusUnknownDeployment(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	_, err := svc.Status(context.Background(), testDeployment)
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.GetHTTPStatusCode(err))
}
