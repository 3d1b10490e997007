package types

import (
	"fmt"
	"regexp"
	"strings"
)

// Move account addresses are 256-bit values rendered as 0x-prefixed hex.
// Nodes and wallets freely omit leading zeros, so two renderings of the
// same address only compare equal after normalization.

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// ValidateAddress checks that s is a well-formed chain address.
func ValidateAddress(s string) error {
	if !addressRe.MatchString(s) {
		return fmt.Errorf("invalid address format: %q", s)
	}
	return nil
}

// NormalizeAddress lowercases an address and left-pads its hex body to the
// full 64 digits so renderings with dropped leading zeros compare equal.
func NormalizeAddress(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "0x"))
	if len(s) < 64 {
		s = strings.Repeat("0", 64-len(s)) + s
	}
	return "0x" + s
}
