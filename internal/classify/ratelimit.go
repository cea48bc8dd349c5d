package classify

import (
	"context"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/worker"
)

// RateLimited throttles calls to a wrapped classifier
type RateLimited struct {
	next    Classifier
	limiter *worker.Limiter
	key     string
}

// NewRateLimited wraps next so that calls wait on limiter under key
func NewRateLimited(next Classifier, limiter *worker.Limiter, key string) *RateLimited {
	return &RateLimited{next: next, limiter: limiter, key: key}
}

// Name returns the wrapped provider name
func (r *RateLimited) Name() string {
	return r.next.Name()
}

// IsAvailable delegates to the wrapped classifier when it supports health checks
func (r *RateLimited) IsAvailable(ctx context.Context) bool {
	if c, ok := r.next.(Checker); ok {
		return c.IsAvailable(ctx)
	}
	return true
}

// Classify waits for rate limit clearance, then delegates
func (r *RateLimited) Classify(ctx context.Context, rec model.SequenceRecord) (model.Classification, error) {
	if err := r.limiter.Wait(ctx, r.key); err != nil {
		return model.Classification{}, err
	}
	return r.next.Classify(ctx, rec)
}
