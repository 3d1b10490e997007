package models

import (
	"time"

	"github.com/stream-indexer/internal/types"
)

// Account represents a protocol account within a deployment. Rows are
// created lazily the first time any event references the account id and are
// never deleted. WalletAddress is best-effort: an NFT-driver account whose
// owner lookup failed keeps a null wallet until a later sighting resolves it.
type Account struct {
	DeploymentAddress string           `json:"deploymentAddress" db:"deployment_address"`
	AccountID         string           `json:"accountId" db:"account_id"`
	WalletAddress     *string          `json:"walletAddress,omitempty" db:"wallet_address"`
	DriverType        types.DriverType `json:"driverType" db:"driver_type"`
	DriverName        *string          `json:"driverName,omitempty" db:"driver_name"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
}
