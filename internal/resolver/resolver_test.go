package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stream-indexer/internal/types"
)

const testDeploy = "0x00000000000000000000000000000000000000000000000000000000000000aa"

// fakeView records view calls and returns canned results
type fakeView struct {
	calls  []string
	result string
	err    error
}

func (f *fakeView) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	f.calls = append(f.calls, function)
	if f.err != nil {
		return nil, f.err
	}
	return []json.RawMessage{json.RawMessage(`"` + f.result + `"`)}, nil
}

// fakeCache is an in-memory WalletCache
type fakeCache struct {
	m    map[string]string
	sets int
}

func newFakeCache() *fakeCache { return &fakeCache{m: make(map[string]string)} }

func (c *fakeCache) GetWallet(ctx context.Context, accountID string) (string, bool) {
	w, ok := c.m[accountID]
	return w, ok
}

func (c *fakeCache) SetWallet(ctx context.Context, accountID, wallet string) {
	c.m[accountID] = wallet
	c.sets++
}

// nftID builds an NFT-driver account id: [tag 1 | minter | salt]
func nftID(t *testing.T, minterHex string, salt uint64) string {
	t.Helper()
	minter, err := uint256.FromHex(minterHex)
	require.NoError(t, err)

	id := new(uint256.Int).Lsh(uint256.NewInt(nftDriverTag), tagShift)
	id.Or(id, new(uint256.Int).Lsh(minter, saltBits))
	id.Or(id, uint256.NewInt(salt))
	return id.Dec()
}

func TestAccountIDAddressRoundTrip(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000000000000000000000000000cd"

	id, err := AccountIDFromAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, "205", id)

	parsed, err := ParseAccountID(id)
	require.NoError(t, err)
	assert.Equal(t, addr, AddressFromAccountID(parsed))
}

func TestResolveAddressDriverByEntryFunction(t *testing.T) {
	r := NewResolver(nil, nil)

	addr := types.NormalizeAddress("0xbeef")
	id, err := AccountIDFromAddress(addr)
	require.NoError(t, err)

	res := r.Resolve(context.Background(), id, testDeploy, "", testDeploy+"::address_driver::set_streams")
	assert.Equal(t, types.DriverAddress, res.DriverType)
	require.NotNil(t, res.WalletAddress)
	assert.Equal(t, addr, *res.WalletAddress)
	require.NotNil(t, res.DriverName)
	assert.Equal(t, "address_driver", *res.DriverName)
}

func TestResolveTrustsSenderHintOnCollision(t *testing.T) {
	r := NewResolver(nil, nil)

	sender := types.NormalizeAddress("0xabc123")
	id, err := AccountIDFromAddress(sender)
	require.NoError(t, err)

	// No entry function at all: the hint alone identifies the driver
	res := r.Resolve(context.Background(), id, testDeploy, sender, "")
	assert.Equal(t, types.DriverAddress, res.DriverType)
	require.NotNil(t, res.WalletAddress)
	assert.Equal(t, sender, *res.WalletAddress)
}

func TestResolveNFTDriverOwnerLookup(t *testing.T) {
	owner := types.NormalizeAddress("0x777")
	view := &fakeView{result: owner}
	cache := newFakeCache()
	r := NewResolver(view, cache)

	id := nftID(t, "0xdead", 42)
	res := r.Resolve(context.Background(), id, testDeploy, "", "")

	assert.Equal(t, types.DriverNFT, res.DriverType)
	require.NotNil(t, res.WalletAddress)
	assert.Equal(t, owner, *res.WalletAddress)
	require.Len(t, view.calls, 1)
	assert.Equal(t, testDeploy+"::nft_driver::owner_of", view.calls[0])

	// Second resolve hits the cache, not the chain
	res = r.Resolve(context.Background(), id, testDeploy, "", "")
	require.NotNil(t, res.WalletAddress)
	assert.Len(t, view.calls, 1)
}

func TestResolveNFTDriverLookupFailureIsNonFatal(t *testing.T) {
	view := &fakeView{err: errors.New("node unreachable")}
	r := NewResolver(view, nil)

	id := nftID(t, "0xdead", 42)
	res := r.Resolve(context.Background(), id, testDeploy, "", "")

	assert.Equal(t, types.DriverNFT, res.DriverType)
	assert.Nil(t, res.WalletAddress, "failed lookup leaves the wallet unresolved")
}

func TestResolveNFTDriverByEntryFunctionBeatsLayout(t *testing.T) {
	view := &fakeView{result: types.NormalizeAddress("0x9")}
	r := NewResolver(view, nil)

	// Untagged id, but the entry function names the nft driver module
	res := r.Resolve(context.Background(), "12345", testDeploy, "", testDeploy+"::nft_driver::mint")
	assert.Equal(t, types.DriverNFT, res.DriverType)
}

func TestResolveAmbiguousIsUnknown(t *testing.T) {
	r := NewResolver(nil, nil)

	// No hints, no NFT tag: could be any driver, so no guess is made
	res := r.Resolve(context.Background(), "12345", testDeploy, "", "")
	assert.Equal(t, types.DriverUnknown, res.DriverType)
	assert.Nil(t, res.WalletAddress)
	assert.Nil(t, res.DriverName)
}

func TestResolveUnparseableID(t *testing.T) {
	r := NewResolver(nil, nil)
	res := r.Resolve(context.Background(), "not-a-number", testDeploy, "", "")
	assert.Equal(t, types.DriverUnknown, res.DriverType)
}

func TestNFTLayoutExtraction(t *testing.T) {
	id, err := ParseAccountID(nftID(t, "0xdeadbeef", 7))
	require.NoError(t, err)

	assert.Equal(t, uint64(nftDriverTag), driverTag(id))
	assert.Equal(t, types.NormalizeAddress("0xdeadbeef"), nftMinter(id))
	assert.Equal(t, uint64(7), nftSalt(id))
}
