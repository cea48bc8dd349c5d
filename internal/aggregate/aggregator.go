// Package aggregate builds the run summary: taxonomy counts for charting
// and run-level metadata.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ppiankov/taxaformer/internal/model"
)

// Aggregator computes summaries over a finished run
type Aggregator struct {
	colorFor func(model.TaxonomyGroup) string
}

// NewAggregator creates an aggregator resolving colors with colorFor
func NewAggregator(colorFor func(model.TaxonomyGroup) string) *Aggregator {
	return &Aggregator{colorFor: colorFor}
}

// Summarize counts records per group and sorts descending by count.
// Ties keep the order in which groups first appeared.
func (a *Aggregator) Summarize(groups []model.TaxonomyGroup) []model.TaxonomyCount {
	counts := make(map[model.TaxonomyGroup]int)
	var order []model.TaxonomyGroup
	for _, g := range groups {
		if _, seen := counts[g]; !seen {
			order = append(order, g)
		}
		counts[g]++
	}

	summary := make([]model.TaxonomyCount, 0, len(order))
	for _, g := range order {
		summary = append(summary, model.TaxonomyCount{
			Name:  g,
			Value: counts[g],
			Color: a.colorFor(g),
		})
	}

	sort.SliceStable(summary, func(i, j int) bool {
		return summary[i].Value > summary[j].Value
	})
	return summary
}

// Metadata computes run statistics. ProcessingTimeSeconds is left at zero
// for the caller to fill in.
func (a *Aggregator) Metadata(sampleName string, rows []model.SequenceView) (model.Metadata, error) {
	meta := model.Metadata{
		SampleName:     sampleName,
		TotalSequences: len(rows),
	}
	if len(rows) == 0 {
		return meta, nil
	}

	confidences := make(stats.Float64Data, len(rows))
	lengths := make(stats.Float64Data, len(rows))
	for i, row := range rows {
		confidences[i] = row.Confidence
		lengths[i] = float64(row.Length)
		if row.Status.IsNovel() {
			meta.NovelSequenceCount++
		}
	}

	mean, err := confidences.Mean()
	if err != nil {
		return meta, fmt.Errorf("mean confidence: %w", err)
	}
	meta.AvgConfidencePercent = int(math.Round(mean * 100))

	ls, err := lengthStats(lengths)
	if err != nil {
		return meta, err
	}
	meta.LengthStats = ls

	return meta, nil
}

func lengthStats(lengths stats.Float64Data) (*model.LengthStats, error) {
	minLen, err := lengths.Min()
	if err != nil {
		return nil, fmt.Errorf("min length: %w", err)
	}
	maxLen, err := lengths.Max()
	if err != nil {
		return nil, fmt.Errorf("max length: %w", err)
	}
	mean, err := lengths.Mean()
	if err != nil {
		return nil, fmt.Errorf("mean length: %w", err)
	}
	median, err := lengths.Median()
	if err != nil {
		return nil, fmt.Errorf("median length: %w", err)
	}

	return &model.LengthStats{
		Min:    int(minLen),
		Max:    int(maxLen),
		Mean:   math.Round(mean*100) / 100,
		Median: median,
	}, nil
}
