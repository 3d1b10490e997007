package models

import (
	"time"

	"github.com/stream-indexer/internal/types"
)

// Event is one row of the append-only activity log. Rows are never updated
// or deleted; volume and TVL aggregation scans this log rather than
// maintaining running counters. (deployment, type, account, sequence) is
// unique so replaying a partially committed batch cannot double-log.
type Event struct {
	DeploymentAddress string          `json:"deploymentAddress" db:"deployment_address"`
	EventType         types.EventName `json:"eventType" db:"event_type"`
	AccountID         string          `json:"accountId" db:"account_id"`
	Data              []byte          `json:"data" db:"data"`
	TxHash            string          `json:"txHash" db:"tx_hash"`
	SequenceNumber    uint64          `json:"sequenceNumber" db:"sequence_number"`
	Timestamp         time.Time       `json:"timestamp" db:"timestamp"`
}
