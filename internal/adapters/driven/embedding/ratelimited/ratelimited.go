// Package ratelimited wraps an embedding service with a shared
// requests-per-minute budget and retry policy. All ingestion workers
// and query embedding draw from the same budget.
package ratelimited

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Retry policy for transient provider failures.
const (
	maxRetries     = 3
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// batchLimit mirrors the largest batch the provider accepts in one
// request, so each budget token maps to exactly one upstream request.
const batchLimit = 100

// Service is a rate-limited, retrying embedding service.
type Service struct {
	inner   driven.EmbeddingService
	limiter *rate.Limiter
	backoff func(time.Duration) // sleep hook, replaced in tests
}

// New wraps inner with a token bucket refilled at rpm/60 per second
// and a burst of rpm.
func New(inner driven.EmbeddingService, rpm int) *Service {
	if rpm <= 0 {
		rpm = 60
	}
	return &Service{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		backoff: func(d time.Duration) { time.Sleep(d) },
	}
}

// Embed waits for budget, then delegates with retries.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	var result []float32
	err := s.withRetries(ctx, func() error {
		var err error
		result, err = s.inner.Embed(ctx, text)
		return err
	})
	return result, err
}

// EmbedBatch splits texts into provider-sized batches and waits for
// budget once per batch, so the token spend matches the number of
// upstream requests.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchLimit {
		end := min(start+batchLimit, len(texts))
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		var vectors [][]float32
		err := s.withRetries(ctx, func() error {
			var err error
			vectors, err = s.inner.EmbedBatch(ctx, texts[start:end])
			return err
		})
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// wait blocks for rate-limit capacity, translating a deadline expiry
// into domain.ErrRateLimitTimeout.
func (s *Service) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("embedding: %w", domain.ErrRateLimitTimeout)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		// rate.Limiter also errors when the wait would exceed the
		// context deadline before sleeping.
		return fmt.Errorf("embedding: %v: %w", err, domain.ErrRateLimitTimeout)
	}
	return nil
}

// withRetries runs fn, retrying transient failures with capped
// exponential backoff. Permanent failures return immediately.
func (s *Service) withRetries(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !domain.IsTransientEmbeddingError(err) || attempt >= maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("transient embedding failure (attempt %d/%d), retrying in %s: %v",
			attempt+1, maxRetries, backoff, err)
		s.backoff(backoff)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Dimensions returns the embedding vector size.
func (s *Service) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (s *Service) ModelName() string {
	return s.inner.ModelName()
}

// Close releases resources.
func (s *Service) Close() error {
	return s.inner.Close()
}
