// Package models defines the rows of the relational projection.
package models

import "time"

// Deployment represents a protocol deployment discovered on chain or seeded
// from the known-deployments list. Immutable except LastTxVersion.
type Deployment struct {
	Address       string    `json:"address" db:"address"`
	Network       string    `json:"network" db:"network"`
	FirstSeenAt   time.Time `json:"firstSeenAt" db:"first_seen_at"`
	LastTxVersion *uint64   `json:"lastTxVersion,omitempty" db:"last_tx_version"`
}
