package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/taxaformer/internal/model"
)

func sampleResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Metadata: model.Metadata{
			SampleName:            "lake.fasta",
			TotalSequences:        2,
			AvgConfidencePercent:  90,
			NovelSequenceCount:    1,
			ProcessingTimeSeconds: 1.25,
			LengthStats:           &model.LengthStats{Min: 4, Max: 8, Mean: 6, Median: 6},
		},
		TaxonomySummary: []model.TaxonomyCount{
			{Name: model.GroupNovel, Value: 1, Color: "#DC2626"},
			{Name: model.GroupMetazoa, Value: 1, Color: "#F59E0B"},
		},
		Sequences: []model.SequenceView{
			{Accession: "seq1", Taxonomy: "Eukaryota;Metazoa", Length: 8, Confidence: 0.9, Overlap: 80, Cluster: "C4", NoveltyScore: 0.05, Status: model.StatusKnown},
			{Accession: "seq|2", Taxonomy: "Eukaryota;Fungi", Length: 4, Confidence: 0.9, Overlap: 75, Cluster: "N1", NoveltyScore: 0.2, Status: model.StatusPotentiallyNovel},
		},
	}
}

func TestRenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")
	r := NewRenderer(true, false)

	require.NoError(t, r.RenderJSON(sampleResult(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := model.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, sampleResult(), got)
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false, true).WriteMarkdown(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "# Taxonomic analysis: lake.fasta")
	assert.Contains(t, out, "| Sequences | 2 |")
	assert.Contains(t, out, "| Novel | 1 | 50.0% |")
	assert.Contains(t, out, `seq\|2`)
	assert.Contains(t, out, "POTENTIALLY NOVEL")
	assert.Contains(t, out, "| Length (min / median / max) | 4 / 6.0 / 8 |")
	assert.Contains(t, out, "model predictions")
}

func TestWriteMarkdownTruncates(t *testing.T) {
	result := sampleResult()
	for i := 0; i < maxMarkdownRows+5; i++ {
		result.Sequences = append(result.Sequences, result.Sequences[0])
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false, false).WriteMarkdown(&buf, result))

	assert.Contains(t, buf.String(), "7 more sequences omitted")
	assert.NotContains(t, buf.String(), "model predictions")
}

func TestRenderWritesBoth(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "r.json")
	mdPath := filepath.Join(dir, "r.md")

	var out bytes.Buffer
	require.NoError(t, NewRenderer(false, false).Render(sampleResult(), jsonPath, mdPath, true, &out))

	assert.FileExists(t, jsonPath)
	assert.FileExists(t, mdPath)
	assert.Contains(t, out.String(), "✓ Wrote JSON: "+jsonPath)
	assert.Contains(t, out.String(), "✓ Wrote Markdown: "+mdPath)
	assert.Contains(t, out.String(), "lake.fasta")
}

func TestWriteSummary(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(false, false).WriteSummary(&out, sampleResult())

	lines := strings.Split(out.String(), "\n")
	assert.Contains(t, out.String(), "Sequences:     2")
	assert.Contains(t, out.String(), "Confidence:    90%")

	var groups []string
	for _, l := range lines {
		if strings.HasPrefix(l, "  ✓") || strings.HasPrefix(l, "  ⚠") {
			groups = append(groups, strings.Fields(l)[1])
		}
	}
	assert.Equal(t, []string{"Novel", "Metazoa"}, groups)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "0.0%", percent(3, 0))
	assert.Equal(t, "33.3%", percent(1, 3))
}
