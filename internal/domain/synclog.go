package domain

import "time"

// Sync run direction.
const (
	DirectionImport        = "import"
	DirectionExport        = "export"
	DirectionBidirectional = "bidirectional"
)

// Sync run scope.
const (
	ScopeCatalog   = "catalog"
	ScopeInventory = "inventory"
	ScopeFull      = "full"
)

// SyncStatus is the lifecycle state of one sync run. Transitions only move
// forward: queued -> running -> one of the terminal states.
type SyncStatus string

const (
	SyncStatusQueued         SyncStatus = "queued"
	SyncStatusRunning        SyncStatus = "running"
	SyncStatusSuccess        SyncStatus = "success"
	SyncStatusPartialFailure SyncStatus = "partial_failure"
	SyncStatusFailed         SyncStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s SyncStatus) Terminal() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartialFailure, SyncStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces the forward-only status machine.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	switch s {
	case SyncStatusQueued:
		return next == SyncStatusRunning || next == SyncStatusFailed
	case SyncStatusRunning:
		return next.Terminal()
	}
	return false
}

// Per-item sync outcome.
const (
	ItemOutcomeCreated    = "created"
	ItemOutcomeUpdated    = "updated"
	ItemOutcomeSkipped    = "skipped"
	ItemOutcomeConflicted = "conflicted"
	ItemOutcomeFailed     = "failed"
)

// ItemResult records what happened to one logical record during a run.
// Key is the external ID when known, otherwise the platform ID.
type ItemResult struct {
	Key        string           `json:"key" bson:"key"`
	ExternalID string           `json:"external_id,omitempty" bson:"external_id,omitempty"`
	PlatformID string           `json:"platform_id,omitempty" bson:"platform_id,omitempty"`
	Outcome    string           `json:"outcome" bson:"outcome"`
	Reason     string           `json:"reason,omitempty" bson:"reason,omitempty"`
	Conflicts  []ConflictRecord `json:"conflicts,omitempty" bson:"conflicts,omitempty"`
}

// SyncCounts aggregates item outcomes for one run.
type SyncCounts struct {
	Created    int `json:"created" bson:"created"`
	Updated    int `json:"updated" bson:"updated"`
	Skipped    int `json:"skipped" bson:"skipped"`
	Conflicted int `json:"conflicted" bson:"conflicted"`
	Failed     int `json:"failed" bson:"failed"`
}

// Add folds another counts value into this one.
func (c *SyncCounts) Add(other SyncCounts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Conflicted += other.Conflicted
	c.Failed += other.Failed
}

// Total returns the number of items accounted for.
func (c SyncCounts) Total() int {
	return c.Created + c.Updated + c.Skipped + c.Conflicted + c.Failed
}

// SyncLog is the audit record of one sync run and the single source of
// truth surfaced to callers. Once a terminal status is reached the log is
// immutable.
type SyncLog struct {
	ID            string       `json:"id" bson:"_id"`
	IntegrationID string       `json:"integration_id" bson:"integration_id"`
	TenantID      string       `json:"tenant_id" bson:"tenant_id"`
	Direction     string       `json:"direction" bson:"direction"`
	Scope         string       `json:"scope" bson:"scope"`
	DryRun        bool         `json:"dry_run" bson:"dry_run"`
	Status        SyncStatus   `json:"status" bson:"status"`
	StartedAt     time.Time    `json:"started_at" bson:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	Counts        SyncCounts   `json:"counts" bson:"counts"`
	ErrorSummary  string       `json:"error_summary,omitempty" bson:"error_summary,omitempty"`
	Items         []ItemResult `json:"items,omitempty" bson:"items,omitempty"`
}

// BatchResult aggregates per-item outcomes from one batched operation.
// Partial failure is a first-class result, not an error.
type BatchResult struct {
	Results   []ItemResult
	Counts    SyncCounts
	Conflicts []ConflictRecord
}

// Append records one item outcome.
func (r *BatchResult) Append(item ItemResult) {
	r.Results = append(r.Results, item)
	r.Conflicts = append(r.Conflicts, item.Conflicts...)
	switch item.Outcome {
	case ItemOutcomeCreated:
		r.Counts.Created++
	case ItemOutcomeUpdated:
		r.Counts.Updated++
	case ItemOutcomeSkipped:
		r.Counts.Skipped++
	case ItemOutcomeConflicted:
		r.Counts.Conflicted++
	case ItemOutcomeFailed:
		r.Counts.Failed++
	}
}

// Merge folds another batch result into this one.
func (r *BatchResult) Merge(other *BatchResult) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
	r.Counts.Add(other.Counts)
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
}
