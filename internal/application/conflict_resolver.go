package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"poslink-core/internal/domain"
)

// ResolverConfig holds the tunable parts of conflict resolution. The price
// review threshold is a deployment judgment call, not a fixed constant.
type ResolverConfig struct {
	// PriceReviewThreshold is the absolute price difference (major units)
	// above which a price conflict is deferred to manual review instead of
	// auto-resolved. Protects against a fat-fingered POS price silently
	// overwriting a correct platform price.
	PriceReviewThreshold decimal.Decimal
}

// DefaultResolverConfig uses a 10.00 review threshold.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{PriceReviewThreshold: decimal.NewFromInt(10)}
}

// ConflictResolver decides a merged value field-by-field when the same
// logical record changed on both sides. It is pure: it never mutates either
// side, only returns decisions the caller applies.
//
// Default policy is last-write-wins by timestamp. Field overrides:
//   - price: external wins unless the difference exceeds the threshold,
//     then pending review
//   - sku: external always wins (the POS owns identifiers)
//   - description, images: platform wins (platform holds richer content)
//   - quantity: most recently updated side wins
type ConflictResolver struct {
	config ResolverConfig
}

// NewConflictResolver creates a resolver with the given config.
func NewConflictResolver(config ResolverConfig) *ConflictResolver {
	if config.PriceReviewThreshold.IsZero() {
		config = DefaultResolverConfig()
	}
	return &ConflictResolver{config: config}
}

// Resolve returns the decision for one field. Values are passed in their
// canonical string form; price and quantity are parsed as decimals for
// comparison.
func (r *ConflictResolver) Resolve(field, externalValue string, externalUpdatedAt time.Time, platformValue string, platformUpdatedAt time.Time) domain.Resolution {
	if externalValue == platformValue {
		return domain.Resolution{
			Field:  field,
			Value:  externalValue,
			Source: domain.SourceExternal,
			Reason: "values equal, nothing to resolve",
		}
	}

	switch field {
	case domain.FieldSKU:
		return domain.Resolution{
			Field:  field,
			Value:  externalValue,
			Source: domain.SourceExternal,
			Reason: "POS is the source of truth for stock-keeping identifiers",
		}

	case domain.FieldDescription:
		return domain.Resolution{
			Field:  field,
			Value:  platformValue,
			Source: domain.SourcePlatform,
			Reason: "platform descriptions are assumed richer",
		}

	case domain.FieldImages:
		return domain.Resolution{
			Field:  field,
			Value:  platformValue,
			Source: domain.SourcePlatform,
			Reason: "platform may hold more images than the POS can store",
		}

	case domain.FieldPrice:
		return r.resolvePrice(externalValue, externalUpdatedAt, platformValue, platformUpdatedAt)

	case domain.FieldQuantity:
		return r.lastWriteWins(field, externalValue, externalUpdatedAt, platformValue, platformUpdatedAt)
	}

	return r.lastWriteWins(field, externalValue, externalUpdatedAt, platformValue, platformUpdatedAt)
}

func (r *ConflictResolver) resolvePrice(externalValue string, externalUpdatedAt time.Time, platformValue string, platformUpdatedAt time.Time) domain.Resolution {
	external, errExt := decimal.NewFromString(externalValue)
	platform, errPlat := decimal.NewFromString(platformValue)
	if errExt != nil || errPlat != nil {
		// Unparseable prices fall back to the default policy.
		return r.lastWriteWins(domain.FieldPrice, externalValue, externalUpdatedAt, platformValue, platformUpdatedAt)
	}

	diff := external.Sub(platform).Abs()
	if diff.GreaterThan(r.config.PriceReviewThreshold) {
		return domain.Resolution{
			Field:         domain.FieldPrice,
			Value:         platformValue,
			Source:        domain.SourcePlatform,
			PendingReview: true,
			Reason: fmt.Sprintf("price difference %s exceeds review threshold %s",
				diff.String(), r.config.PriceReviewThreshold.String()),
		}
	}

	return domain.Resolution{
		Field:  domain.FieldPrice,
		Value:  externalValue,
		Source: domain.SourceExternal,
		Reason: "POS price wins within review threshold",
	}
}

func (r *ConflictResolver) lastWriteWins(field, externalValue string, externalUpdatedAt time.Time, platformValue string, platformUpdatedAt time.Time) domain.Resolution {
	if externalUpdatedAt.After(platformUpdatedAt) {
		return domain.Resolution{
			Field:  field,
			Value:  externalValue,
			Source: domain.SourceExternal,
			Reason: "external side updated more recently",
		}
	}
	return domain.Resolution{
		Field:  field,
		Value:  platformValue,
		Source: domain.SourcePlatform,
		Reason: "platform side updated more recently",
	}
}
