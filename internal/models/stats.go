package models

// TokenVolume is an aggregated amount moved through the protocol for one
// fungible asset. Amounts are decimal strings; on-chain values exceed int64.
type TokenVolume struct {
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	EventCount uint64 `json:"eventCount"`
	AmountUSD  *float64 `json:"amountUsd,omitempty"`
}

// TokenTVL is the net locked amount for one fungible asset, streamed in
// minus collected out.
type TokenTVL struct {
	Token     string `json:"token"`
	Locked    string `json:"locked"`
	LockedUSD *float64 `json:"lockedUsd,omitempty"`
}
