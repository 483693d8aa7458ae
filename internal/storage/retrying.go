package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/retry"
)

// RetryingStore retries idempotent reads of the wrapped Storage when the store
// is unavailable. Writes pass through untouched.
type RetryingStore struct {
	Storage
	policy retry.Policy
}

// NewRetryingStore wraps s with a bounded exponential backoff for reads.
func NewRetryingStore(s Storage, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingStore{
		Storage: s,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			BaseDelay:   baseDelay,
			Retryable:   func(err error) bool { return errors.Is(err, models.ErrStoreUnavailable) },
			Logger:      logger.With(zap.String("component", "storage")),
		},
	}
}

func retryRead[T any](ctx context.Context, p retry.Policy, read func(context.Context) (T, error)) (T, error) {
	var out T
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		v, err := read(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// SearchByText retries the wrapped search.
func (r *RetryingStore) SearchByText(ctx context.Context, fragment string) ([]*models.DiseaseRecord, error) {
	return retryRead(ctx, r.policy, func(ctx context.Context) ([]*models.DiseaseRecord, error) {
		return r.Storage.SearchByText(ctx, fragment)
	})
}

// GetByTitle retries the wrapped lookup.
func (r *RetryingStore) GetByTitle(ctx context.Context, title string) (*models.DiseaseRecord, error) {
	return retryRead(ctx, r.policy, func(ctx context.Context) (*models.DiseaseRecord, error) {
		return r.Storage.GetByTitle(ctx, title)
	})
}

// GetDisease retries the wrapped lookup.
func (r *RetryingStore) GetDisease(ctx context.Context, id string) (*models.DiseaseRecord, error) {
	return retryRead(ctx, r.policy, func(ctx context.Context) (*models.DiseaseRecord, error) {
		return r.Storage.GetDisease(ctx, id)
	})
}

// ListDiseases retries the wrapped listing.
func (r *RetryingStore) ListDiseases(ctx context.Context) ([]*models.DiseaseRecord, error) {
	return retryRead(ctx, r.policy, r.Storage.ListDiseases)
}

// GetScenario retries the wrapped lookup.
func (r *RetryingStore) GetScenario(ctx context.Context, id string) (*models.ScenarioRecord, error) {
	return retryRead(ctx, r.policy, func(ctx context.Context) (*models.ScenarioRecord, error) {
		return r.Storage.GetScenario(ctx, id)
	})
}

// ListScenarios retries the wrapped listing.
func (r *RetryingStore) ListScenarios(ctx context.Context, filter string) ([]*models.ScenarioRecord, error) {
	return retryRead(ctx, r.policy, func(ctx context.Context) ([]*models.ScenarioRecord, error) {
		return r.Storage.ListScenarios(ctx, filter)
	})
}
