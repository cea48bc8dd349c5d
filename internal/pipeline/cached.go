package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/taxaformer/internal/cache"
	"github.com/ppiankov/taxaformer/internal/model"
)

// Analyzer turns one sequence stream into a result
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, sampleName string) (*model.AnalysisResult, error)
}

// Cached serves repeated inputs from the result cache. Inputs are keyed by
// the fingerprint of their raw bytes, so a compressed and an uncompressed
// copy of the same file are cached separately. Callers scope results to the
// configuration that produced them (see model.Config.CacheScope).
type Cached struct {
	next    Analyzer
	results *cache.Results
	logger  *zap.Logger
}

// NewCached wraps next with the result cache
func NewCached(next Analyzer, results *cache.Results, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	if results == nil {
		results = cache.NewResults(nil, 0)
	}
	return &Cached{next: next, results: results, logger: logger}
}

// Analyze returns the cached result for r's content or runs the analysis
// and stores it. A cached result carries the caller's sample name.
func (c *Cached) Analyze(ctx context.Context, r io.Reader, sampleName string) (*model.AnalysisResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sampleName, err)
	}

	fingerprint, _, err := cache.Fingerprint(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if result, ok := c.results.Get(fingerprint); ok {
		c.logger.Debug("cache hit", zap.String("sample", sampleName), zap.String("fingerprint", fingerprint))
		result.Metadata.SampleName = sampleName
		return result, nil
	}

	start := time.Now()
	result, err := c.next.Analyze(ctx, bytes.NewReader(data), sampleName)
	if err != nil {
		return nil, err
	}
	result.Metadata.SetProcessingTime(time.Since(start))

	if err := c.results.Put(fingerprint, result); err != nil {
		c.logger.Warn("cache write failed", zap.String("sample", sampleName), zap.Error(err))
	}
	return result, nil
}
