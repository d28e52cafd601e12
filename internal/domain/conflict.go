package domain

// Field names the conflict resolver applies per-field policy to. Any field
// not listed here falls back to last-write-wins.
const (
	FieldPrice       = "price"
	FieldSKU         = "sku"
	FieldName        = "name"
	FieldDescription = "description"
	FieldImages      = "images"
	FieldQuantity    = "quantity"
)

// ResolutionSource identifies which side of a conflict supplied the value.
type ResolutionSource string

const (
	SourceExternal ResolutionSource = "external"
	SourcePlatform ResolutionSource = "platform"
)

// Resolution is the decision the conflict resolver returns for one field of
// one record. The resolver never mutates either side; the caller applies
// the decision.
type Resolution struct {
	Field         string           `json:"field"`
	Value         string           `json:"value"`
	Source        ResolutionSource `json:"source"`
	PendingReview bool             `json:"pending_review"`
	Reason        string           `json:"reason"`
}

// ConflictRecord captures one field-level disagreement detected during a
// run. Records marked pending review are surfaced on the sync log for a
// human to settle; auto-resolved records exist only for auditability.
type ConflictRecord struct {
	MappingID     string `json:"mapping_id" bson:"mapping_id"`
	ExternalID    string `json:"external_id" bson:"external_id"`
	PlatformID    string `json:"platform_id" bson:"platform_id"`
	Field         string `json:"field" bson:"field"`
	ExternalValue string `json:"external_value" bson:"external_value"`
	PlatformValue string `json:"platform_value" bson:"platform_value"`
	Resolution    string `json:"resolution" bson:"resolution"`
	Reason        string `json:"reason" bson:"reason"`
}

// ResolutionPendingReview is the ConflictRecord.Resolution value for
// conflicts deferred to manual review.
const ResolutionPendingReview = "pending_review"
