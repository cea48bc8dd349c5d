package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/taxaformer/internal/cache"
	"github.com/ppiankov/taxaformer/internal/classify"
	"github.com/ppiankov/taxaformer/internal/logging"
	"github.com/ppiankov/taxaformer/internal/pipeline"
	"github.com/ppiankov/taxaformer/internal/server"
	"github.com/ppiankov/taxaformer/internal/worker"
)

var (
	listenAddr string
	workers    int
	maxQueue   int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload API",
	Long: `Serve starts the HTTP API. Uploaded files are queued and analyzed by a
fixed number of workers; clients poll for their job or wait synchronously.

Endpoints:
  POST /analyze               multipart "file" (+ optional "session_id"), ?wait=true blocks
  GET  /queue/status          ?session_id= reports that session's job
  GET  /queue/stats           queue statistics
  GET  /jobs/{id}             job status
  GET  /jobs/{id}/result      job result once finished
  GET  /health, GET /

Example:
  taxaformer serve --addr :8000 --workers 1`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default from config, :8000)")
	serveCmd.Flags().IntVar(&workers, "workers", 0, "concurrent analyses (default from config, 1)")
	serveCmd.Flags().IntVar(&maxQueue, "max-queue", 0, "max queued jobs (default from config, 10)")
	serveCmd.Flags().StringVar(&provider, "provider", "", "classifier provider (stub, http, openai)")
	serveCmd.Flags().StringVar(&modelName, "model", "", "classifier model name")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = listenAddr
	}
	if cmd.Flags().Changed("workers") {
		cfg.Scheduler.Workers = workers
	}
	if cmd.Flags().Changed("max-queue") {
		cfg.Scheduler.MaxQueue = maxQueue
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Output.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	classifier, err := classify.NewClassifier(classify.ConfigFromModel(cfg.Classifier))
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}
	if checker, ok := classifier.(classify.Checker); ok && !checker.IsAvailable(cmd.Context()) {
		logger.Warn("classifier not reachable at startup", zap.String("provider", classifier.Name()))
	}

	runner := pipeline.NewPipeline(cfg.Analysis, classifier, logger)
	results := cache.NewResults(cache.New(cfg.Cache), cfg.Cache.DiskTTL).Scoped(cfg.CacheScope())

	scheduler := worker.NewScheduler(cfg.Scheduler, runner, results, logger)
	scheduler.Start()
	defer scheduler.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("classifier", classifier.Name()),
		zap.Int("workers", cfg.Scheduler.Workers),
		zap.Int("max_queue", cfg.Scheduler.MaxQueue),
		zap.String("version", Version))

	srv := server.New(cfg.Server, scheduler, logger, Version)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
