package resolver

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/stream-indexer/internal/types"
)

// Account identifiers are 256-bit values whose bit layout depends on the
// driver that minted them. The layouts are non-overlapping by protocol
// design so an id cannot be attributed to two drivers at once:
//
//	address driver: the id is the controlling wallet address itself,
//	                full 256 bits, fully reversible
//	nft driver:     [ 32-bit driver tag | 160-bit minter | 64-bit salt ]
//	                not locally reversible; the controlling wallet is the
//	                current owner of the minted token
const (
	nftDriverTag = 1

	tagShift  = 224
	saltBits  = 64
	minterLen = 160
)

// ParseAccountID parses the decimal string rendering of an account id
func ParseAccountID(id string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(id)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", id, err)
	}
	return v, nil
}

// AccountIDFromAddress derives the address-driver account id controlled by
// a wallet: the id is the address value itself, rendered in decimal.
func AccountIDFromAddress(address string) (string, error) {
	if err := types.ValidateAddress(address); err != nil {
		return "", err
	}
	body := strings.TrimPrefix(types.NormalizeAddress(address), "0x")
	raw, err := hex.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}
	var b32 [32]byte
	copy(b32[:], raw)
	v := new(uint256.Int).SetBytes32(b32[:])
	return v.Dec(), nil
}

// AddressFromAccountID re-hexes a full 256-bit account id as a wallet
// address. Only meaningful for address-driver ids, where decoding is the
// identity function.
func AddressFromAccountID(id *uint256.Int) string {
	return types.NormalizeAddress("0x" + id.Hex()[2:])
}

// driverTag extracts the 32-bit driver tag from the top of an id
func driverTag(id *uint256.Int) uint64 {
	tag := new(uint256.Int).Rsh(id, tagShift)
	return tag.Uint64()
}

// nftMinter extracts the 160-bit minter address packed into an NFT-driver id
func nftMinter(id *uint256.Int) string {
	minter := new(uint256.Int).Rsh(id, saltBits)
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), minterLen)
	mask.Sub(mask, uint256.NewInt(1))
	minter.And(minter, mask)
	return types.NormalizeAddress("0x" + minter.Hex()[2:])
}

// nftSalt extracts the 64-bit mint salt from the bottom of an NFT-driver id
func nftSalt(id *uint256.Int) uint64 {
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), saltBits)
	mask.Sub(mask, uint256.NewInt(1))
	return new(uint256.Int).And(id, mask).Uint64()
}
