package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poslink-core/internal/domain"
	"poslink-core/internal/infrastructure/repository/entity"
	"poslink-core/internal/ports"
)

// MongoSyncLogRepository implements SyncLogRepository using MongoDB. The
// forward-only status machine is enforced with status-guarded filters so a
// lost race shows up as a no-match, never as a backwards transition.
type MongoSyncLogRepository struct {
	collection *mongo.Collection
}

// NewMongoSyncLogRepository creates a new MongoDB sync log repository.
func NewMongoSyncLogRepository(db *mongo.Database) ports.SyncLogRepository {
	return &MongoSyncLogRepository{
		collection: db.Collection("sync_logs"),
	}
}

// Create inserts a new queued sync log.
func (r *MongoSyncLogRepository) Create(ctx context.Context, log *domain.SyncLog) error {
	doc := entity.SyncLogDocFromDomain(log)
	if doc.StartedAt.IsZero() {
		doc.StartedAt = time.Now()
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "startedAt", Value: -1},
		},
	}
	_, _ = r.collection.Indexes().CreateOne(ctx, indexModel)

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// MarkRunning transitions a queued log to running.
func (r *MongoSyncLogRepository) MarkRunning(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "status": string(domain.SyncStatusQueued)}
	update := bson.M{"$set": bson.M{"status": string(domain.SyncStatusRunning)}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark sync log running: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrSyncLogImmutable
	}
	return nil
}

// AppendResults atomically adds counts and item results to a running log.
func (r *MongoSyncLogRepository) AppendResults(ctx context.Context, id string, counts domain.SyncCounts, items []domain.ItemResult) error {
	docs := make([]entity.ItemResultDoc, 0, len(items))
	for _, item := range items {
		docs = append(docs, entity.ItemResultDocFromDomain(item))
	}

	filter := bson.M{"_id": id, "status": string(domain.SyncStatusRunning)}
	update := bson.M{
		"$inc": bson.M{
			"counts.created":    counts.Created,
			"counts.updated":    counts.Updated,
			"counts.skipped":    counts.Skipped,
			"counts.conflicted": counts.Conflicted,
			"counts.failed":     counts.Failed,
		},
		"$push": bson.M{"items": bson.M{"$each": docs}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append sync results: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrSyncLogImmutable
	}
	return nil
}

// Finalize moves the log to a terminal status exactly once.
func (r *MongoSyncLogRepository) Finalize(ctx context.Context, id string, status domain.SyncStatus, errorSummary string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	filter := bson.M{"_id": id, "status": bson.M{"$in": []string{
		string(domain.SyncStatusQueued),
		string(domain.SyncStatusRunning),
	}}}
	update := bson.M{"$set": bson.M{
		"status":       string(status),
		"errorSummary": errorSummary,
		"finishedAt":   time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to finalize sync log: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrSyncLogImmutable
	}
	return nil
}

// GetByID retrieves a sync log, or nil when absent.
func (r *MongoSyncLogRepository) GetByID(ctx context.Context, id string) (*domain.SyncLog, error) {
	var doc entity.SyncLogDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync log: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByTenant returns one page of sync logs, newest first, plus the total
// count. Item details are omitted from list pages to keep them small.
func (r *MongoSyncLogRepository) ListByTenant(ctx context.Context, tenantID string, page, perPage int) ([]*domain.SyncLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	filter := bson.M{"tenantId": tenantID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sync logs: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage)).
		SetProjection(bson.M{"items": 0})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []*domain.SyncLog
	for cursor.Next(ctx) {
		var doc entity.SyncLogDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode sync log: %w", err)
		}
		logs = append(logs, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("cursor error: %w", err)
	}
	return logs, total, nil
}
