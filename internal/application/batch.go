package application

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// Task is one unit of batched work. Do performs the external call(s) for a
// single item and returns its outcome; a non-nil error marks the item for
// retry when the error is retryable.
type Task struct {
	Key string
	Do  func(ctx context.Context) (domain.ItemResult, error)
}

// RetryPolicy controls per-chunk retries: attempts, base delay (doubled on
// each attempt), and a jitter function applied to the computed delay. The
// policy is independent of any particular concurrency primitive.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      func(time.Duration) time.Duration
}

// DefaultRetryPolicy retries three times with a 500ms base delay and full
// jitter on the upper half of the delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Jitter:      halfJitter,
	}
}

// Delay returns the backoff before the given attempt number (1-based)
// retries.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.Jitter != nil {
		d = p.Jitter(d)
	}
	return d
}

func halfJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// BatchConfig bounds chunking and fan-out.
type BatchConfig struct {
	BatchSize      int
	MaxConcurrency int
}

// DefaultBatchConfig uses chunks of 100 items and five concurrent chunk
// workers.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: 100, MaxConcurrency: 5}
}

// BatchProcessor splits work into bounded chunks, runs them with bounded
// concurrency through the rate limiter of the integration being synced, and
// retries failed chunks with exponential backoff. A failing chunk never
// aborts its siblings; partial failure is an ordinary result.
type BatchProcessor struct {
	policy RetryPolicy
	config BatchConfig
	logger zerolog.Logger
}

// NewBatchProcessor creates a batch processor. The limiter is passed per
// run, since every integration owns its own.
func NewBatchProcessor(policy RetryPolicy, config BatchConfig, logger zerolog.Logger) *BatchProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchConfig().BatchSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultBatchConfig().MaxConcurrency
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &BatchProcessor{
		policy: policy,
		config: config,
		logger: logger,
	}
}

// Run executes all tasks through the given limiter and aggregates their
// outcomes. Every task is accounted for exactly once in the result,
// including when the context is cancelled mid-run: cancellation stops new
// chunks from being issued, lets in-flight chunks finish their current
// attempt, and records the remainder as failed.
func (p *BatchProcessor) Run(ctx context.Context, limiter ports.RateLimiter, tasks []Task) *domain.BatchResult {
	result := &domain.BatchResult{}
	if len(tasks) == 0 {
		return result
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.config.MaxConcurrency)
	)

	for start := 0; start < len(tasks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		chunk := tasks[start:end]

		if ctx.Err() != nil {
			// Stop issuing new chunk work; account for what never ran.
			mu.Lock()
			for _, t := range chunk {
				result.Append(domain.ItemResult{
					Key:     t.Key,
					Outcome: domain.ItemOutcomeFailed,
					Reason:  "run cancelled before item was attempted",
				})
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(chunk []Task) {
			defer wg.Done()
			defer func() { <-sem }()
			res := p.runChunk(ctx, limiter, chunk)
			mu.Lock()
			result.Merge(res)
			mu.Unlock()
		}(chunk)
	}

	wg.Wait()
	return result
}

// runChunk attempts every task in the chunk, retrying the retryable
// failures together up to the policy's attempt limit.
func (p *BatchProcessor) runChunk(ctx context.Context, limiter ports.RateLimiter, chunk []Task) *domain.BatchResult {
	res := &domain.BatchResult{}
	pending := chunk

	for attempt := 1; ; attempt++ {
		var retry []Task
		for _, t := range pending {
			if err := limiter.Acquire(ctx); err != nil {
				res.Append(domain.ItemResult{
					Key:     t.Key,
					Outcome: domain.ItemOutcomeFailed,
					Reason:  err.Error(),
				})
				continue
			}

			item, err := t.Do(ctx)
			if err == nil {
				res.Append(item)
				continue
			}
			if domain.IsRetryable(err) && attempt < p.policy.MaxAttempts {
				retry = append(retry, t)
				continue
			}
			res.Append(domain.ItemResult{
				Key:     t.Key,
				Outcome: domain.ItemOutcomeFailed,
				Reason:  err.Error(),
			})
		}

		if len(retry) == 0 {
			return res
		}

		delay := p.policy.Delay(attempt)
		p.logger.Debug().
			Int("attempt", attempt).
			Int("retrying", len(retry)).
			Dur("delay", delay).
			Msg("Retrying failed chunk items after backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			for _, t := range retry {
				res.Append(domain.ItemResult{
					Key:     t.Key,
					Outcome: domain.ItemOutcomeFailed,
					Reason:  "run cancelled during retry backoff",
				})
			}
			return res
		}
		pending = retry
	}
}
