package entity

import (
	"time"

	"poslink-core/internal/domain"
)

// SyncLogDoc represents one sync run audit record in MongoDB.
type SyncLogDoc struct {
	ID            string          `bson:"_id"`
	IntegrationID string          `bson:"integrationId"`
	TenantID      string          `bson:"tenantId"`
	Direction     string          `bson:"direction"`
	Scope         string          `bson:"scope"`
	DryRun        bool            `bson:"dryRun"`
	Status        string          `bson:"status"`
	StartedAt     time.Time       `bson:"startedAt"`
	FinishedAt    *time.Time      `bson:"finishedAt,omitempty"`
	Counts        SyncCountsDoc   `bson:"counts"`
	ErrorSummary  string          `bson:"errorSummary,omitempty"`
	Items         []ItemResultDoc `bson:"items,omitempty"`
}

// SyncCountsDoc holds the per-outcome counters. Field keys line up with the
// $inc paths the repository uses for atomic increments.
type SyncCountsDoc struct {
	Created    int `bson:"created"`
	Updated    int `bson:"updated"`
	Skipped    int `bson:"skipped"`
	Conflicted int `bson:"conflicted"`
	Failed     int `bson:"failed"`
}

// ItemResultDoc records one item outcome inside a sync log.
type ItemResultDoc struct {
	Key        string        `bson:"key"`
	ExternalID string        `bson:"externalId,omitempty"`
	PlatformID string        `bson:"platformId,omitempty"`
	Outcome    string        `bson:"outcome"`
	Reason     string        `bson:"reason,omitempty"`
	Conflicts  []ConflictDoc `bson:"conflicts,omitempty"`
}

// ConflictDoc records one field-level conflict inside an item result.
type ConflictDoc struct {
	MappingID     string `bson:"mappingId"`
	ExternalID    string `bson:"externalId"`
	PlatformID    string `bson:"platformId"`
	Field         string `bson:"field"`
	ExternalValue string `bson:"externalValue"`
	PlatformValue string `bson:"platformValue"`
	Resolution    string `bson:"resolution"`
	Reason        string `bson:"reason"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *SyncLogDoc) ToDomain() *domain.SyncLog {
	log := &domain.SyncLog{
		ID:            d.ID,
		IntegrationID: d.IntegrationID,
		TenantID:      d.TenantID,
		Direction:     d.Direction,
		Scope:         d.Scope,
		DryRun:        d.DryRun,
		Status:        domain.SyncStatus(d.Status),
		StartedAt:     d.StartedAt,
		FinishedAt:    d.FinishedAt,
		Counts: domain.SyncCounts{
			Created:    d.Counts.Created,
			Updated:    d.Counts.Updated,
			Skipped:    d.Counts.Skipped,
			Conflicted: d.Counts.Conflicted,
			Failed:     d.Counts.Failed,
		},
		ErrorSummary: d.ErrorSummary,
	}
	for _, item := range d.Items {
		log.Items = append(log.Items, item.ToDomain())
	}
	return log
}

// ToDomain converts one item result document.
func (d ItemResultDoc) ToDomain() domain.ItemResult {
	result := domain.ItemResult{
		Key:        d.Key,
		ExternalID: d.ExternalID,
		PlatformID: d.PlatformID,
		Outcome:    d.Outcome,
		Reason:     d.Reason,
	}
	for _, conflict := range d.Conflicts {
		result.Conflicts = append(result.Conflicts, domain.ConflictRecord(conflict))
	}
	return result
}

// SyncLogDocFromDomain converts a domain entity to a MongoDB document.
func SyncLogDocFromDomain(log *domain.SyncLog) *SyncLogDoc {
	doc := &SyncLogDoc{
		ID:            log.ID,
		IntegrationID: log.IntegrationID,
		TenantID:      log.TenantID,
		Direction:     log.Direction,
		Scope:         log.Scope,
		DryRun:        log.DryRun,
		Status:        string(log.Status),
		StartedAt:     log.StartedAt,
		FinishedAt:    log.FinishedAt,
		Counts: SyncCountsDoc{
			Created:    log.Counts.Created,
			Updated:    log.Counts.Updated,
			Skipped:    log.Counts.Skipped,
			Conflicted: log.Counts.Conflicted,
			Failed:     log.Counts.Failed,
		},
		ErrorSummary: log.ErrorSummary,
	}
	for _, item := range log.Items {
		doc.Items = append(doc.Items, ItemResultDocFromDomain(item))
	}
	return doc
}

// ItemResultDocFromDomain converts one item result.
func ItemResultDocFromDomain(item domain.ItemResult) ItemResultDoc {
	doc := ItemResultDoc{
		Key:        item.Key,
		ExternalID: item.ExternalID,
		PlatformID: item.PlatformID,
		Outcome:    item.Outcome,
		Reason:     item.Reason,
	}
	for _, conflict := range item.Conflicts {
		doc.Conflicts = append(doc.Conflicts, ConflictDoc(conflict))
	}
	return doc
}
