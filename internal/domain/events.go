package domain

import "time"

// Sync event types published over the run event bus.
const (
	SyncEventRunStarted     = "run_started"
	SyncEventBatchCompleted = "batch_completed"
	SyncEventRunFinished    = "run_finished"
)

// SyncEvent is one run lifecycle notification. Watchers subscribe by
// integration to follow a run's progress without polling the repository.
type SyncEvent struct {
	Type          string     `json:"type"`
	SyncLogID     string     `json:"sync_log_id"`
	IntegrationID string     `json:"integration_id"`
	TenantID      string     `json:"tenant_id"`
	Status        SyncStatus `json:"status,omitempty"`
	Counts        SyncCounts `json:"counts"`
	OccurredAt    time.Time  `json:"occurred_at"`
}
