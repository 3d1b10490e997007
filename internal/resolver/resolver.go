// Package resolver derives a wallet address and driver classification from
// opaque 256-bit protocol account identifiers.
package resolver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/holiman/uint256"

	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/types"
)

// ViewCaller executes read-only view functions on chain. Satisfied by
// chain.Client.
type ViewCaller interface {
	View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error)
}

// WalletCache caches resolved wallet addresses so an NFT-driver owner
// lookup is not repeated for every event that references the account.
// Implementations must treat misses as (="", false); a nil cache disables
// caching.
type WalletCache interface {
	GetWallet(ctx context.Context, accountID string) (string, bool)
	SetWallet(ctx context.Context, accountID, wallet string)
}

// Resolution is the outcome of resolving an account identifier. A nil
// WalletAddress is valid: NFT-driver lookups are best-effort and the wallet
// can be re-resolved lazily on a later sighting.
type Resolution struct {
	WalletAddress *string
	DriverType    types.DriverType
	DriverName    *string
}

// Resolver resolves account identifiers to wallet addresses and driver
// classifications
type Resolver struct {
	view  ViewCaller
	cache WalletCache
}

// NewResolver creates a new resolver. cache may be nil.
func NewResolver(view ViewCaller, cache WalletCache) *Resolver {
	return &Resolver{view: view, cache: cache}
}

// Resolve derives the wallet address and driver classification for an
// account id. txSenderHint and entryFunctionHint come from the transaction
// that carried the event and may be empty.
//
// Classification prefers the invoking entry function's module name; the
// bit-layout heuristic is the fallback when the entry function is unknown.
// Ambiguity resolves to unknown rather than a guess: mis-attributing an id
// to the wrong driver would attach events to the wrong wallet.
func (r *Resolver) Resolve(ctx context.Context, accountID, deploymentAddress, txSenderHint, entryFunctionHint string) Resolution {
	id, err := ParseAccountID(accountID)
	if err != nil {
		logging.FromContext(ctx).WithField("accountId", accountID).Warn("Unparseable account id")
		return Resolution{DriverType: types.DriverUnknown}
	}

	driver := classifyByEntryFunction(entryFunctionHint)

	// When the tx sender's own address-driver id collides with the account
	// id, the sender IS the account: trust the hint, which carries the
	// complete original address.
	if txSenderHint != "" && types.ValidateAddress(txSenderHint) == nil {
		if hintID, err := AccountIDFromAddress(txSenderHint); err == nil && hintID == id.Dec() {
			wallet := types.NormalizeAddress(txSenderHint)
			return Resolution{
				WalletAddress: &wallet,
				DriverType:    types.DriverAddress,
				DriverName:    driverName(types.DriverAddress),
			}
		}
	}

	if driver == types.DriverUnknown {
		driver = classifyByLayout(id)
	}

	switch driver {
	case types.DriverAddress:
		// Decoding is the identity function: the id is the address
		wallet := AddressFromAccountID(id)
		return Resolution{
			WalletAddress: &wallet,
			DriverType:    types.DriverAddress,
			DriverName:    driverName(types.DriverAddress),
		}

	case types.DriverNFT:
		res := Resolution{
			DriverType: types.DriverNFT,
			DriverName: driverName(types.DriverNFT),
		}
		if wallet := r.lookupOwner(ctx, accountID, id, deploymentAddress); wallet != "" {
			res.WalletAddress = &wallet
		}
		return res

	default:
		return Resolution{DriverType: types.DriverUnknown}
	}
}

// lookupOwner resolves an NFT-driver id to its current owner via an
// on-chain view call. Failures are non-fatal: the wallet stays unresolved
// and is retried the next time the account is referenced.
func (r *Resolver) lookupOwner(ctx context.Context, accountID string, id *uint256.Int, deploymentAddress string) string {
	if r.cache != nil {
		if wallet, ok := r.cache.GetWallet(ctx, accountID); ok {
			return wallet
		}
	}
	if r.view == nil {
		return ""
	}

	function := deploymentAddress + "::" + types.DriverNFT.Name() + "::owner_of"
	out, err := r.view.View(ctx, function, nil, []any{accountID})
	if err != nil || len(out) == 0 {
		// The packed minter and salt identify the token even while its
		// owner is unknown
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"accountId": accountID,
			"function":  function,
			"minter":    nftMinter(id),
			"salt":      nftSalt(id),
		}).Debug("Owner lookup failed, wallet stays unresolved")
		return ""
	}

	var owner string
	if err := json.Unmarshal(out[0], &owner); err != nil || types.ValidateAddress(owner) != nil {
		return ""
	}

	wallet := types.NormalizeAddress(owner)
	if r.cache != nil {
		r.cache.SetWallet(ctx, accountID, wallet)
	}
	return wallet
}

// classifyByEntryFunction classifies by the module name of the invoked
// entry function, e.g. "0xabc::address_driver::set_streams".
func classifyByEntryFunction(entryFunction string) types.DriverType {
	if entryFunction == "" {
		return types.DriverUnknown
	}
	parts := strings.Split(entryFunction, "::")
	if len(parts) < 3 {
		return types.DriverUnknown
	}
	switch parts[len(parts)-2] {
	case types.DriverAddress.Name():
		return types.DriverAddress
	case types.DriverNFT.Name():
		return types.DriverNFT
	default:
		return types.DriverUnknown
	}
}

// classifyByLayout is the fallback when no entry function is available.
// Only the NFT driver's tagged layout is recognizable from bits alone: an
// address-driver id is an arbitrary 256-bit address and cannot be told
// apart from anything else, so everything untagged stays unknown.
func classifyByLayout(id *uint256.Int) types.DriverType {
	if driverTag(id) == nftDriverTag {
		return types.DriverNFT
	}
	return types.DriverUnknown
}

func driverName(d types.DriverType) *string {
	name := d.Name()
	if name == "" {
		return nil
	}
	return &name
}
