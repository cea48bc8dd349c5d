package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/taxaformer/internal/cache"
	"github.com/ppiankov/taxaformer/internal/classify"
	"github.com/ppiankov/taxaformer/internal/logging"
	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/pipeline"
	"github.com/ppiankov/taxaformer/internal/render"
	"github.com/ppiankov/taxaformer/internal/source"
)

var (
	outJSON    string
	outMD      string
	sampleName string
	timeout    time.Duration
	userAgent  string
	maxBytes   int64
	noCache    bool
	noFooter   bool
	httpProxy  string
	httpsProxy string
	provider   string
	modelName  string
	threshold  float64
	seed       int64
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url|->",
	Short: "Classify the sequences of one FASTA/FASTQ file",
	Long: `Analyze reads one sequence file and:
- Parses FASTA/FASTQ records (gzip is detected automatically)
- Classifies every sequence with the configured classifier
- Flags potentially novel sequences by novelty score
- Groups lineages into chart buckets and assigns cluster ids
- Writes the result as JSON and optionally Markdown

Example:
  taxaformer analyze sample.fasta
  taxaformer analyze reads.fastq.gz --json result.json --md report.md
  taxaformer analyze https://example.org/sample.fasta --provider openai
  cat sample.fasta | taxaformer analyze - --json -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "result.json", `output JSON path ("-" for stdout)`)
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().StringVar(&sampleName, "name", "", "sample name (default: file name)")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// Input flags
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().StringVar(&userAgent, "ua", "Taxaformer/0.1 (+https://github.com/ppiankov/taxaformer)", "HTTP User-Agent for remote files")
	analyzeCmd.Flags().Int64Var(&maxBytes, "max-bytes", 100<<20, "max bytes to read from a remote file")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	analyzeCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	analyzeCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Classifier flags
	analyzeCmd.Flags().StringVar(&provider, "provider", "", "classifier provider (stub, http, openai)")
	analyzeCmd.Flags().StringVar(&modelName, "model", "", "classifier model name")
	analyzeCmd.Flags().Float64Var(&threshold, "threshold", model.DefaultNoveltyThreshold, "novelty score at which a sequence is flagged potentially novel")
	analyzeCmd.Flags().Int64Var(&seed, "seed", 0, "stub classifier seed (0 = random)")
}

// applyFlags overrides config values with explicitly set command flags
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Classifier.Provider = provider
	}
	if flags.Changed("model") {
		cfg.Classifier.Model = modelName
	}
	if flags.Changed("threshold") {
		cfg.Analysis.NoveltyThreshold = threshold
	}
	if flags.Changed("seed") {
		cfg.Classifier.Seed = seed
	}
	if flags.Changed("http-proxy") {
		cfg.Classifier.HTTPProxy = httpProxy
	}
	if flags.Changed("https-proxy") {
		cfg.Classifier.HTTPSProxy = httpsProxy
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
}

// buildAnalyzer wires the classifier, pipeline and result cache
func buildAnalyzer(cfg *model.Config, logger *zap.Logger) (pipeline.Analyzer, error) {
	classifier, err := classify.NewClassifier(classify.ConfigFromModel(cfg.Classifier))
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	logger.Debug("classifier ready", zap.String("provider", classifier.Name()))

	p := pipeline.NewPipeline(cfg.Analysis, classifier, logger)
	results := cache.NewResults(cache.New(cfg.Cache), cfg.Cache.DiskTTL).Scoped(cfg.CacheScope())
	return pipeline.NewCached(p, results, logger), nil
}

func newOpener(cfg *model.Config, fetchTimeout time.Duration, in io.Reader) *source.Opener {
	return &source.Opener{
		Fetcher: source.NewFetcher(fetchTimeout, userAgent, maxBytes, cfg.Classifier.HTTPProxy, cfg.Classifier.HTTPSProxy, cfg.Classifier.NoProxy),
		Stdin:   in,
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	location := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
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

	analyzer, err := buildAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	rc, name, err := newOpener(cfg, timeout, cmd.InOrStdin()).Open(ctx, location)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	if sampleName != "" {
		name = sampleName
	}

	logger.Info("analyzing", zap.String("location", location), zap.String("sample", name))
	result, err := analyzer.Analyze(ctx, rc, name)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	// Keep stdout clean for the JSON when it is written there
	summary := cmd.OutOrStdout()
	if outJSON == source.Stdin || outMD == source.Stdin {
		summary = cmd.ErrOrStderr()
	}

	renderer := render.NewRenderer(cfg.Output.Pretty, !noFooter)
	if err := renderer.Render(result, outJSON, outMD, cfg.Output.Verbose, summary); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}
