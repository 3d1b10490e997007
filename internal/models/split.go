package models

import "time"

// Split represents one receiver entry of an account's split configuration.
// Weight is out of types.TotalSplitsWeight. A configuration is total: on
// every SplitsSet the account's old rows are deleted before the new set is
// inserted, so the table always holds exactly the current configuration.
type Split struct {
	DeploymentAddress string    `json:"deploymentAddress" db:"deployment_address"`
	AccountID         string    `json:"accountId" db:"account_id"`
	ReceiverID        string    `json:"receiverId" db:"receiver_id"`
	Weight            uint32    `json:"weight" db:"weight"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}
