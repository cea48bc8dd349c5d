// Package pipeline composes the analysis core: read, classify, group,
// cluster and aggregate one sequence file into an AnalysisResult.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/taxaformer/internal/aggregate"
	"github.com/ppiankov/taxaformer/internal/classify"
	"github.com/ppiankov/taxaformer/internal/cluster"
	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/sequence"
	"github.com/ppiankov/taxaformer/internal/taxonomy"
)

// Pipeline orchestrates one analysis run. A Pipeline holds only immutable
// configuration and is safe for concurrent use; all per-run state is
// allocated inside Analyze.
type Pipeline struct {
	classifier classify.Classifier
	aggregator *aggregate.Aggregator
	analysis   model.AnalysisConfig
	newRand    func() *rand.Rand
	logger     *zap.Logger
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithRandSource sets the factory for the per-run layout random source
func WithRandSource(newRand func() *rand.Rand) Option {
	return func(p *Pipeline) { p.newRand = newRand }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg model.AnalysisConfig, classifier classify.Classifier, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.NormalizePalette()
	if cfg.FASTQMode == "" {
		cfg.FASTQMode = model.FASTQLenient
	}

	p := &Pipeline{
		classifier: classifier,
		aggregator: aggregate.NewAggregator(cfg.ColorFor),
		analysis:   cfg,
		newRand:    func() *rand.Rand { return classify.NewRand(0) },
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze runs the full pipeline over r. The run either fully succeeds or
// returns an error with no partial result. Metadata.ProcessingTimeSeconds
// is left for the caller who times the invocation.
func (p *Pipeline) Analyze(ctx context.Context, r io.Reader, sampleName string) (*model.AnalysisResult, error) {
	start := time.Now()

	// 1. Parse records
	plain, err := sequence.Decompress(r)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	records, dropped, err := sequence.ReadAll(plain, sequence.Options{FASTQMode: p.analysis.FASTQMode})
	if err != nil {
		return nil, fmt.Errorf("read sequences: %w", err)
	}
	if dropped > 0 && p.analysis.LogDropped {
		p.logger.Warn("dropped records with no valid nucleotide lines",
			zap.String("sample", sampleName),
			zap.Int("dropped", dropped))
	}

	// 2. The only validation gate: nothing reaches the classifier on empty input
	if len(records) == 0 {
		return nil, &model.EmptyInputError{SampleName: sampleName, Dropped: dropped}
	}

	// 3. Classify, group and cluster each record in input order
	assigner := cluster.NewAssigner(p.analysis.ColorFor, p.newRand())
	rows := make([]model.SequenceView, 0, len(records))
	groups := make([]model.TaxonomyGroup, 0, len(records))

	for i, rec := range records {
		c, err := p.classifier.Classify(ctx, rec)
		if err == nil {
			err = c.Validate()
		}
		if err != nil {
			return nil, &model.ClassifierError{RecordID: rec.ID, Index: i, Err: err}
		}

		status := taxonomy.Status(c.NoveltyScore, p.analysis.NoveltyThreshold)
		group := taxonomy.Group(c.Lineage, status)
		clusterID := assigner.Assign(i, group, status)

		p.logger.Debug("classified record",
			zap.String("id", rec.ID),
			zap.Int("length", rec.Length()),
			zap.String("group", string(group)),
			zap.String("cluster", clusterID))

		groups = append(groups, group)
		rows = append(rows, model.SequenceView{
			Accession:    rec.ID,
			Taxonomy:     c.Lineage,
			Length:       rec.Length(),
			Confidence:   c.Confidence,
			Overlap:      c.OverlapPercent,
			Cluster:      clusterID,
			NoveltyScore: c.NoveltyScore,
			Status:       status,
		})
	}

	// 4. Aggregate
	meta, err := p.aggregator.Metadata(sampleName, rows)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	result := &model.AnalysisResult{
		Metadata:        meta,
		TaxonomySummary: p.aggregator.Summarize(groups),
		Sequences:       rows,
		ClusterData:     assigner.Entries(),
	}

	p.logger.Info("analysis complete",
		zap.String("sample", sampleName),
		zap.String("classifier", p.classifier.Name()),
		zap.Int("records", meta.TotalSequences),
		zap.Int("novel", meta.NovelSequenceCount),
		zap.Int("clusters", assigner.Len()),
		zap.Int("dropped", dropped),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}
