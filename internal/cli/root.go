package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/taxaformer/internal/model"
)

// Version is overridden at build time with -ldflags "-X .../cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "taxaformer",
	Short: "Taxaformer - taxonomic classification of eDNA sequence files",
	Long: `Taxaformer reads FASTA/FASTQ files of environmental DNA, classifies every
sequence, flags potentially novel sequences and produces a chart-ready
summary: taxonomy group counts, per-sequence rows and a cluster layout.

Classifications are model predictions, not reference identifications.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taxaformer v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.taxaformer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// envKeys are the settings that can be overridden with TAXAFORMER_* variables,
// e.g. TAXAFORMER_CLASSIFIER_PROVIDER
var envKeys = []string{
	"analysis.novelty_threshold",
	"analysis.fastq_mode",
	"analysis.log_dropped",
	"classifier.provider",
	"classifier.model",
	"classifier.base_url",
	"classifier.api_key",
	"classifier.timeout",
	"classifier.requests_per_second",
	"classifier.burst",
	"classifier.seed",
	"classifier.http_proxy",
	"classifier.https_proxy",
	"classifier.no_proxy",
	"scheduler.workers",
	"scheduler.max_queue",
	"scheduler.job_timeout",
	"scheduler.retention",
	"cache.enabled",
	"cache.dir",
	"server.addr",
	"server.max_upload_bytes",
	"server.temp_dir",
	"output.pretty",
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".taxaformer"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TAXAFORMER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()

	// Decoding into populated maps and slices merges with the defaults, so
	// start them empty and restore defaults only for what was not set.
	cfg.Analysis.Palette = nil
	cfg.Server.AllowedExtensions = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Server.AllowedExtensions) == 0 {
		cfg.Server.AllowedExtensions = model.DefaultConfig().Server.AllowedExtensions
	}
	cfg.Analysis.NormalizePalette()
	for g, c := range model.DefaultPalette() {
		if _, ok := cfg.Analysis.Palette[g]; !ok {
			cfg.Analysis.Palette[g] = c
		}
	}

	if cfg.Classifier.APIKey == "" && strings.EqualFold(cfg.Classifier.Provider, "openai") {
		cfg.Classifier.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
