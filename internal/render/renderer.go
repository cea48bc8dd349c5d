// Package render writes analysis results as JSON, Markdown and terminal summaries.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/taxaformer/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

// maxMarkdownRows caps the per-sequence table in Markdown reports
const maxMarkdownRows = 200

// Renderer writes results to files and terminals
type Renderer struct {
	pretty bool
	footer bool
}

// NewRenderer creates a renderer
func NewRenderer(pretty, footer bool) *Renderer {
	return &Renderer{pretty: pretty, footer: footer}
}

// Render writes the JSON and Markdown outputs that have a path, then prints
// the summary to out
func (r *Renderer) Render(result *model.AnalysisResult, jsonPath, mdPath string, verbose bool, out io.Writer) error {
	if jsonPath != "" {
		if err := r.RenderJSON(result, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(out, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(result, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(out, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.WriteSummary(out, result)
	return nil
}

// RenderJSON writes the result in wire format to path ("-" for stdout)
func (r *Renderer) RenderJSON(result *model.AnalysisResult, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return model.Encode(w, result, r.pretty)
	})
}

// RenderMarkdown writes a Markdown report to path ("-" for stdout)
func (r *Renderer) RenderMarkdown(result *model.AnalysisResult, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return r.WriteMarkdown(w, result)
	})
}

// WriteMarkdown writes a Markdown report
func (r *Renderer) WriteMarkdown(w io.Writer, result *model.AnalysisResult) error {
	var b strings.Builder
	md := result.Metadata

	fmt.Fprintf(&b, "# Taxonomic analysis: %s\n\n", md.SampleName)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Sequences | %d |\n", md.TotalSequences)
	fmt.Fprintf(&b, "| Average confidence | %d%% |\n", md.AvgConfidencePercent)
	fmt.Fprintf(&b, "| Potentially novel | %d |\n", md.NovelSequenceCount)
	fmt.Fprintf(&b, "| Processing time | %.2fs |\n", md.ProcessingTimeSeconds)
	if ls := md.LengthStats; ls != nil {
		fmt.Fprintf(&b, "| Length (min / median / max) | %d / %.1f / %d |\n", ls.Min, ls.Median, ls.Max)
	}
	b.WriteString("\n")

	b.WriteString("## Taxonomy groups\n\n")
	b.WriteString("| Group | Sequences | Share |\n|---|---|---|\n")
	for _, tc := range result.TaxonomySummary {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", tc.Name, tc.Value, percent(tc.Value, md.TotalSequences))
	}
	b.WriteString("\n")

	b.WriteString("## Sequences\n\n")
	b.WriteString("| Accession | Taxonomy | Length | Confidence | Overlap | Cluster | Novelty | Status |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for i, s := range result.Sequences {
		if i == maxMarkdownRows {
			fmt.Fprintf(&b, "\n_%d more sequences omitted; see the JSON output._\n", len(result.Sequences)-maxMarkdownRows)
			break
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %.3f | %d%% | %s | %.4f | %s |\n",
			escapeCell(s.Accession), escapeCell(s.Taxonomy), s.Length, s.Confidence, s.Overlap, s.Cluster, s.NoveltyScore, s.Status)
	}

	if r.footer {
		b.WriteString("\n---\n\n_Classifications are model predictions, not reference identifications._\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSummary prints a short human-readable summary
func (r *Renderer) WriteSummary(w io.Writer, result *model.AnalysisResult) {
	md := result.Metadata

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "  %s\n", md.SampleName)
	fmt.Fprintf(w, "%s\n\n", rule)
	fmt.Fprintf(w, "  Sequences:     %d\n", md.TotalSequences)
	fmt.Fprintf(w, "  Confidence:    %d%%\n", md.AvgConfidencePercent)
	fmt.Fprintf(w, "  Novel:         %d\n", md.NovelSequenceCount)
	fmt.Fprintf(w, "  Time:          %.2fs\n\n", md.ProcessingTimeSeconds)

	for _, tc := range result.TaxonomySummary {
		mark := "✓"
		if tc.Name == model.GroupNovel {
			mark = "⚠"
		}
		fmt.Fprintf(w, "  %s %-14s %5d  %s\n", mark, tc.Name, tc.Value, percent(tc.Value, md.TotalSequences))
	}
	fmt.Fprintln(w)
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// writeFile runs write against path, or stdout when path is "-"
func writeFile(path string, write func(io.Writer) error) (err error) {
	if path == "-" {
		return write(os.Stdout)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return write(f)
}
