package models

import (
	"time"

	"github.com/stream-indexer/internal/types"
)

// SyncCursor is the only durable record of fetch progress. One row per
// (key, kind); LastSequence is a transaction version kept as a string and
// never decreases within a key/kind.
type SyncCursor struct {
	CursorKey    string           `json:"cursorKey" db:"cursor_key"`
	StreamKind   types.StreamKind `json:"streamKind" db:"stream_kind"`
	LastSequence string           `json:"lastSequence" db:"last_sequence"`
	UpdatedAt    time.Time        `json:"updatedAt" db:"updated_at"`
}

// SyncMetadata records the outcome of the most recent sync run for a
// deployment and drives the cooldown gate.
type SyncMetadata struct {
	DeploymentAddress string    `json:"deploymentAddress" db:"deployment_address"`
	LastSyncedAt      time.Time `json:"lastSyncedAt" db:"last_synced_at"`
	EventsProcessed   int       `json:"eventsProcessed" db:"events_processed"`
	SyncDurationMs    int64     `json:"syncDurationMs" db:"sync_duration_ms"`
	HasMore           bool      `json:"hasMore" db:"has_more"`
}
