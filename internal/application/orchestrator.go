package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// SyncOrchestrator is the top-level entry point for sync runs. It owns the
// SyncLog lifecycle: created queued, marked running, updated as batches
// complete, finalized exactly once.
type SyncOrchestrator struct {
	oauth        *OAuthService
	adapters     ports.AdapterRegistry
	integrations ports.IntegrationRepository
	logs         ports.SyncLogRepository
	catalog      *CatalogSyncService
	inventory    *InventorySyncService
	limiters     ports.RateLimiterProvider
	events       ports.SyncEventPublisher
	metrics      ports.MetricsRecorder
	logger       zerolog.Logger
}

// NewSyncOrchestrator creates the orchestrator.
func NewSyncOrchestrator(
	oauth *OAuthService,
	adapters ports.AdapterRegistry,
	integrations ports.IntegrationRepository,
	logs ports.SyncLogRepository,
	catalog *CatalogSyncService,
	inventory *InventorySyncService,
	limiters ports.RateLimiterProvider,
	events ports.SyncEventPublisher,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		oauth:        oauth,
		adapters:     adapters,
		integrations: integrations,
		logs:         logs,
		catalog:      catalog,
		inventory:    inventory,
		limiters:     limiters,
		events:       events,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run executes one sync run for a tenant and blocks until it reaches a
// terminal status. Item-level failures surface as partial_failure counts
// on the sync log; only run-level failures (no usable token, repository
// unavailable) mark the run failed. Cancellation of ctx stops new work and
// finalizes the log as partial_failure with whatever completed.
func (o *SyncOrchestrator) Run(ctx context.Context, tenantID, provider, direction, scope string, dryRun bool) (*domain.SyncLog, error) {
	integration, log, err := o.prepare(ctx, tenantID, provider, direction, scope, dryRun)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, integration, log)
}

// Start queues one sync run and returns its log immediately; the run
// continues in the background detached from the caller's cancellation.
// Progress is observable through the sync log and the event bus.
func (o *SyncOrchestrator) Start(ctx context.Context, tenantID, provider, direction, scope string, dryRun bool) (*domain.SyncLog, error) {
	integration, log, err := o.prepare(ctx, tenantID, provider, direction, scope, dryRun)
	if err != nil {
		return nil, err
	}

	go func() {
		if _, err := o.execute(context.WithoutCancel(ctx), integration, log); err != nil {
			o.logger.Error().Err(err).
				Str("syncLogID", log.ID).
				Msg("Background sync run failed")
		}
	}()
	return log, nil
}

// prepare validates the request, resolves the active integration, and
// creates the queued sync log.
func (o *SyncOrchestrator) prepare(ctx context.Context, tenantID, provider, direction, scope string, dryRun bool) (*domain.Integration, *domain.SyncLog, error) {
	if err := validateRunParams(direction, scope); err != nil {
		return nil, nil, err
	}

	integration, err := o.integrations.GetActiveByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return nil, nil, &domain.RepositoryError{Op: "get integration", Err: err}
	}
	if integration == nil {
		return nil, nil, domain.ErrIntegrationNotFound
	}

	log := &domain.SyncLog{
		ID:            uuid.NewString(),
		IntegrationID: integration.ID,
		TenantID:      tenantID,
		Direction:     direction,
		Scope:         scope,
		DryRun:        dryRun,
		Status:        domain.SyncStatusQueued,
		StartedAt:     time.Now(),
	}
	if err := o.logs.Create(ctx, log); err != nil {
		return nil, nil, &domain.RepositoryError{Op: "create sync log", Err: err}
	}
	return integration, log, nil
}

// execute drives a prepared run to a terminal status.
func (o *SyncOrchestrator) execute(ctx context.Context, integration *domain.Integration, log *domain.SyncLog) (*domain.SyncLog, error) {
	started := time.Now()
	o.metrics.RunStarted()

	tokens, err := o.oauth.EnsureFreshToken(ctx, integration)
	if err != nil {
		return o.finalize(ctx, log, domain.SyncStatusFailed, fmt.Sprintf("could not obtain access token: %v", err), started), err
	}

	adapter, err := o.adapters.Adapter(integration.Provider)
	if err != nil {
		return o.finalize(ctx, log, domain.SyncStatusFailed, err.Error(), started), err
	}

	if err := o.logs.MarkRunning(ctx, log.ID); err != nil {
		return o.finalize(ctx, log, domain.SyncStatusFailed, fmt.Sprintf("could not mark run running: %v", err), started), &domain.RepositoryError{Op: "mark running", Err: err}
	}
	log.Status = domain.SyncStatusRunning
	o.publish(domain.SyncEventRunStarted, log)

	run := &syncRun{
		Integration: integration,
		Adapter:     adapter,
		Limiter:     o.limiters.LimiterFor(integration.ID),
		AccessToken: tokens.AccessToken,
		DryRun:      log.DryRun,
	}

	total := &domain.BatchResult{}
	var runErr error

	if log.Scope == domain.ScopeCatalog || log.Scope == domain.ScopeFull {
		result, err := o.runDirection(ctx, o.catalogFor(log.Direction), run)
		if err != nil {
			runErr = err
		} else {
			o.accumulate(ctx, log, total, result)
		}
	}
	if runErr == nil && (log.Scope == domain.ScopeInventory || log.Scope == domain.ScopeFull) {
		result, err := o.runDirection(ctx, o.inventoryFor(log.Direction), run)
		if err != nil {
			runErr = err
		} else {
			o.accumulate(ctx, log, total, result)
		}
	}

	status, summary := o.classify(ctx, total, runErr)
	finished := o.finalize(ctx, log, status, summary, started)
	return finished, runErr
}

// directionFunc is one direction-bound sync operation.
type directionFunc func(ctx context.Context, run *syncRun) (*domain.BatchResult, error)

func (o *SyncOrchestrator) catalogFor(direction string) directionFunc {
	switch direction {
	case domain.DirectionImport:
		return o.catalog.SyncFromExternal
	case domain.DirectionExport:
		return o.catalog.SyncToExternal
	default:
		return o.catalog.SyncBidirectional
	}
}

func (o *SyncOrchestrator) inventoryFor(direction string) directionFunc {
	switch direction {
	case domain.DirectionImport:
		return o.inventory.SyncFromExternal
	case domain.DirectionExport:
		return o.inventory.SyncToExternal
	default:
		return o.inventory.SyncBidirectional
	}
}

func (o *SyncOrchestrator) runDirection(ctx context.Context, fn directionFunc, run *syncRun) (*domain.BatchResult, error) {
	return fn(ctx, run)
}

// accumulate appends a batch's outcomes to the sync log as the run
// progresses, so pollers see counts move.
func (o *SyncOrchestrator) accumulate(ctx context.Context, log *domain.SyncLog, total *domain.BatchResult, result *domain.BatchResult) {
	total.Merge(result)
	if err := o.logs.AppendResults(ctx, log.ID, result.Counts, result.Results); err != nil {
		o.logger.Error().Err(err).
			Str("syncLogID", log.ID).
			Msg("Failed to append batch results to sync log")
		return
	}
	log.Counts.Add(result.Counts)
	log.Items = append(log.Items, result.Results...)
	o.publish(domain.SyncEventBatchCompleted, log)
}

// classify decides the terminal status per the propagation policy.
func (o *SyncOrchestrator) classify(ctx context.Context, total *domain.BatchResult, runErr error) (domain.SyncStatus, string) {
	counts := total.Counts
	switch {
	case ctx.Err() != nil:
		return domain.SyncStatusPartialFailure, "run cancelled before completion"
	case runErr != nil && counts.Total() == 0:
		return domain.SyncStatusFailed, runErr.Error()
	case runErr != nil:
		return domain.SyncStatusPartialFailure, runErr.Error()
	case counts.Failed == 0:
		return domain.SyncStatusSuccess, ""
	case counts.Failed == counts.Total():
		return domain.SyncStatusFailed, "every item failed"
	default:
		return domain.SyncStatusPartialFailure, fmt.Sprintf("%d of %d items failed", counts.Failed, counts.Total())
	}
}

// finalize moves the log to its terminal status. Uses a detached context
// so a cancelled run can still record its outcome.
func (o *SyncOrchestrator) finalize(ctx context.Context, log *domain.SyncLog, status domain.SyncStatus, summary string, started time.Time) *domain.SyncLog {
	finalCtx := context.WithoutCancel(ctx)
	if err := o.logs.Finalize(finalCtx, log.ID, status, summary); err != nil {
		o.logger.Error().Err(err).
			Str("syncLogID", log.ID).
			Str("status", string(status)).
			Msg("Failed to finalize sync log")
	}
	log.Status = status
	log.ErrorSummary = summary
	now := time.Now()
	log.FinishedAt = &now

	o.metrics.RunFinished(string(status), time.Since(started).Seconds())
	o.metrics.ItemsObserved(log.Counts)
	o.publish(domain.SyncEventRunFinished, log)

	o.logger.Info().
		Str("syncLogID", log.ID).
		Str("tenantID", log.TenantID).
		Str("direction", log.Direction).
		Str("scope", log.Scope).
		Str("status", string(status)).
		Int("created", log.Counts.Created).
		Int("updated", log.Counts.Updated).
		Int("skipped", log.Counts.Skipped).
		Int("conflicted", log.Counts.Conflicted).
		Int("failed", log.Counts.Failed).
		Msg("Sync run finished")
	return log
}

func (o *SyncOrchestrator) publish(eventType string, log *domain.SyncLog) {
	if o.events == nil {
		return
	}
	o.events.Publish(&domain.SyncEvent{
		Type:          eventType,
		SyncLogID:     log.ID,
		IntegrationID: log.IntegrationID,
		TenantID:      log.TenantID,
		Status:        log.Status,
		Counts:        log.Counts,
		OccurredAt:    time.Now(),
	})
}

func validateRunParams(direction, scope string) error {
	switch direction {
	case domain.DirectionImport, domain.DirectionExport, domain.DirectionBidirectional:
	default:
		return fmt.Errorf("invalid sync direction %q", direction)
	}
	switch scope {
	case domain.ScopeCatalog, domain.ScopeInventory, domain.ScopeFull:
	default:
		return fmt.Errorf("invalid sync scope %q", scope)
	}
	return nil
}
