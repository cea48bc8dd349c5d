package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/taxaformer/internal/logging"
	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/render"
	"github.com/ppiankov/taxaformer/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	writeMD      bool
	fetchTimeout time.Duration
	fetchRPS     float64
	// Classifier, proxy and cache flags are shared with analyze
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>...",
	Short: "Analyze many sequence files listed in manifests",
	Long: `Batch analyzes every file listed in one or more manifests:
- One path or URL per line; blank lines and # comments are skipped
- Relative paths resolve against the manifest's directory
- Files are analyzed in parallel with a configurable worker count
- One JSON result (and optional Markdown report) is written per file

Example:
  taxaformer batch samples.txt
  taxaformer batch run1.txt run2.txt --concurrency 4 --output-dir ./results`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./taxaformer-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&writeMD, "md", false, "also write a Markdown report per file")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	batchCmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout", 2*time.Minute, "timeout for fetching one remote file")
	batchCmd.Flags().StringVar(&userAgent, "ua", "Taxaformer/0.1 (+https://github.com/ppiankov/taxaformer)", "HTTP User-Agent for remote files")
	batchCmd.Flags().Float64Var(&fetchRPS, "fetch-rps", 2, "remote fetches per second per host (0 = unlimited)")
	batchCmd.Flags().Int64Var(&maxBytes, "max-bytes", 100<<20, "max bytes to read from a remote file")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	batchCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	batchCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	batchCmd.Flags().StringVar(&provider, "provider", "", "classifier provider (stub, http, openai)")
	batchCmd.Flags().StringVar(&modelName, "model", "", "classifier model name")
	batchCmd.Flags().Float64Var(&threshold, "threshold", model.DefaultNoveltyThreshold, "novelty score at which a sequence is flagged potentially novel")
	batchCmd.Flags().Int64Var(&seed, "seed", 0, "stub classifier seed (0 = random)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Output.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "\n%s\n", "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "  Taxaformer Batch Processing\n")
	fmt.Fprintf(out, "%s\n\n", "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "  Manifests:    %s\n", strings.Join(args, ", "))
	fmt.Fprintf(out, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(out, "  Classifier:   %s\n", cfg.Classifier.Provider)
	fmt.Fprintf(out, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(out, "  Timeout:      %v\n\n", batchTimeout)

	analyzer, err := buildAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(analyzer, newOpener(cfg, fetchTimeout, cmd.InOrStdin()), concurrency)
	if fetchRPS > 0 {
		processor.LimitRemote(worker.NewLimiter(fetchRPS, 1))
	}
	results, err := processor.ProcessManifests(ctx, args...)
	if err != nil {
		return fmt.Errorf("read manifests: %w", err)
	}

	analyzed, analysisFailures := worker.Summary(results)
	logger.Info("batch analyzed", zap.Int("succeeded", analyzed), zap.Int("failed", analysisFailures))

	renderer := render.NewRenderer(cfg.Output.Pretty, !noFooter)
	used := make(map[string]int)
	failed := 0

	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", result.Location, result.Error)
			continue
		}

		slug := uniqueSlug(used, sanitizeFilename(result.SampleName))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := ""
		if writeMD {
			mdPath = filepath.Join(outputDir, slug+".md")
		}

		if err := renderer.RenderJSON(result.Result, jsonPath); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: failed to write JSON: %v\n", result.Location, err)
			continue
		}
		if mdPath != "" {
			if err := renderer.RenderMarkdown(result.Result, mdPath); err != nil {
				failed++
				fmt.Fprintf(out, "✗ %s: failed to write Markdown: %v\n", result.Location, err)
				continue
			}
		}

		md := result.Result.Metadata
		fmt.Fprintf(out, "✓ %s (%d sequences, %d novel)\n", md.SampleName, md.TotalSequences, md.NovelSequenceCount)
		logger.Debug("result written", zap.String("location", result.Location), zap.String("path", jsonPath))
	}

	fmt.Fprintf(out, "\n%s\n", "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "  Batch Complete\n")
	fmt.Fprintf(out, "%s\n\n", "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "  Total:     %d files\n", len(results))
	fmt.Fprintf(out, "  Success:   %d\n", len(results)-failed)
	fmt.Fprintf(out, "  Failures:  %d\n", failed)
	fmt.Fprintf(out, "  Output:    %s\n\n", outputDir)

	if failed > 0 && failed == len(results) {
		return fmt.Errorf("all %d files failed", failed)
	}
	return nil
}

// sanitizeFilename turns a sample name into a safe file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.ToSlash(s))
	for _, ext := range []string{".gz", ".fasta", ".fa", ".fastq", ".fq", ".txt"} {
		s = strings.TrimSuffix(s, ext)
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		case ' ':
			return '-'
		}
		return r
	}, s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" || s == "." {
		s = "sample"
	}
	return s
}

// uniqueSlug suffixes repeated stems so results never overwrite each other
func uniqueSlug(used map[string]int, slug string) string {
	n := used[slug]
	used[slug] = n + 1
	if n == 0 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, n+1)
}
