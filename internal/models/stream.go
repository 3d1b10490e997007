package models

import "time"

// Stream represents one receiver entry of a sender's streaming
// configuration. Uniqueness key is (deployment, sender, receiver, streamID).
// At most one row per key is active; superseded rows are kept inactive so
// history survives configuration changes.
type Stream struct {
	DeploymentAddress string    `json:"deploymentAddress" db:"deployment_address"`
	SenderID          string    `json:"senderId" db:"sender_id"`
	ReceiverID        string    `json:"receiverId" db:"receiver_id"`
	StreamID          string    `json:"streamId" db:"stream_id"`
	FAMetadata        string    `json:"faMetadata" db:"fa_metadata"`
	AmtPerSec         string    `json:"amtPerSec" db:"amt_per_sec"`
	StartTime         uint64    `json:"startTime" db:"start_time"`
	Duration          uint64    `json:"duration" db:"duration"`
	Active            bool      `json:"active" db:"active"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}
