package aggregate

import (
	"testing"

	"github.com/ppiankov/taxaformer/internal/model"
)

func newTestAggregator() *Aggregator {
	cfg := model.AnalysisConfig{Palette: model.DefaultPalette()}
	return NewAggregator(cfg.ColorFor)
}

func TestAggregator_Summarize_SortedDescending(t *testing.T) {
	agg := newTestAggregator()

	groups := []model.TaxonomyGroup{
		model.GroupFungi,
		model.GroupBacteria,
		model.GroupBacteria,
		model.GroupNovel,
		model.GroupBacteria,
		model.GroupNovel,
	}
	summary := agg.Summarize(groups)

	if len(summary) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(summary))
	}
	want := []struct {
		name  model.TaxonomyGroup
		value int
	}{
		{model.GroupBacteria, 3},
		{model.GroupNovel, 2},
		{model.GroupFungi, 1},
	}
	for i, w := range want {
		if summary[i].Name != w.name || summary[i].Value != w.value {
			t.Errorf("position %d: expected %s=%d, got %s=%d", i, w.name, w.value, summary[i].Name, summary[i].Value)
		}
	}
	if summary[0].Color != "#EF4444" {
		t.Errorf("expected bacteria color, got %s", summary[0].Color)
	}

	total := 0
	for _, s := range summary {
		total += s.Value
	}
	if total != len(groups) {
		t.Errorf("expected counts to sum to %d, got %d", len(groups), total)
	}
}

func TestAggregator_Summarize_TiesKeepFirstAppearance(t *testing.T) {
	agg := newTestAggregator()

	summary := agg.Summarize([]model.TaxonomyGroup{
		model.GroupRhodophyta,
		model.GroupMetazoa,
		model.GroupUnknown,
	})

	order := []model.TaxonomyGroup{model.GroupRhodophyta, model.GroupMetazoa, model.GroupUnknown}
	for i, g := range order {
		if summary[i].Name != g {
			t.Errorf("position %d: expected %s, got %s", i, g, summary[i].Name)
		}
	}
}

func TestAggregator_Summarize_Empty(t *testing.T) {
	agg := newTestAggregator()
	if got := agg.Summarize(nil); len(got) != 0 {
		t.Errorf("expected empty summary, got %v", got)
	}
}

func TestAggregator_Metadata(t *testing.T) {
	agg := newTestAggregator()

	rows := []model.SequenceView{
		{Accession: "a", Length: 4, Confidence: 0.80, Status: model.StatusKnown},
		{Accession: "b", Length: 10, Confidence: 0.91, Status: model.StatusPotentiallyNovel},
		{Accession: "c", Length: 7, Confidence: 0.86, Status: model.StatusKnown},
	}

	meta, err := agg.Metadata("sample.fasta", rows)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}

	if meta.SampleName != "sample.fasta" {
		t.Errorf("unexpected sample name %q", meta.SampleName)
	}
	if meta.TotalSequences != 3 {
		t.Errorf("expected 3 sequences, got %d", meta.TotalSequences)
	}
	// mean = 0.8566..., *100 = 85.67 -> 86
	if meta.AvgConfidencePercent != 86 {
		t.Errorf("expected avg confidence 86, got %d", meta.AvgConfidencePercent)
	}
	if meta.NovelSequenceCount != 1 {
		t.Errorf("expected 1 novel sequence, got %d", meta.NovelSequenceCount)
	}
	if meta.ProcessingTimeSeconds != 0 {
		t.Errorf("processing time must be left to the caller, got %v", meta.ProcessingTimeSeconds)
	}

	ls := meta.LengthStats
	if ls == nil {
		t.Fatal("expected length stats")
	}
	if ls.Min != 4 || ls.Max != 10 || ls.Median != 7 || ls.Mean != 7 {
		t.Errorf("unexpected length stats: %+v", *ls)
	}
}

func TestAggregator_Metadata_RoundsHalfUp(t *testing.T) {
	agg := newTestAggregator()

	rows := []model.SequenceView{
		{Confidence: 0.875, Length: 1},
		{Confidence: 0.875, Length: 1},
	}
	meta, err := agg.Metadata("x", rows)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if meta.AvgConfidencePercent != 88 {
		t.Errorf("expected 88 (round, not truncate), got %d", meta.AvgConfidencePercent)
	}
}

func TestAggregator_Metadata_Empty(t *testing.T) {
	agg := newTestAggregator()
	meta, err := agg.Metadata("x", nil)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if meta.TotalSequences != 0 || meta.LengthStats != nil {
		t.Errorf("unexpected metadata for empty input: %+v", meta)
	}
}
