package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FASTQ handling modes for the sequence reader
const (
	FASTQLenient  = "lenient"   // '+' lines skipped, quality lines filtered only by alphabet
	FASTQFourLine = "four-line" // the line after a '+' separator is skipped as well
)

// DefaultNoveltyThreshold is the novelty score at which a record is flagged potentially novel
const DefaultNoveltyThreshold = 0.15

// DefaultColor is used for any group missing from the palette
const DefaultColor = "#64748B"

// Config holds all taxaformer settings
type Config struct {
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// AnalysisConfig holds the constants the pipeline is constructed with
type AnalysisConfig struct {
	NoveltyThreshold float64                  `yaml:"novelty_threshold" mapstructure:"novelty_threshold"`
	Palette          map[TaxonomyGroup]string `yaml:"palette" mapstructure:"palette"`
	DefaultColor     string                   `yaml:"default_color" mapstructure:"default_color"`
	FASTQMode        string                   `yaml:"fastq_mode" mapstructure:"fastq_mode"`
	LogDropped       bool                     `yaml:"log_dropped" mapstructure:"log_dropped"` // Warn about records whose lines were all filtered out
}

// ClassifierConfig selects and configures the classifier backend
type ClassifierConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // stub, http, openai
	Model             string  `yaml:"model,omitempty" mapstructure:"model"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey            string  `yaml:"-" mapstructure:"api_key"`                               // Never written to disk
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"`                         // seconds
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables limiting
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	Seed              int64   `yaml:"seed,omitempty" mapstructure:"seed"` // Stub only; 0 means time-seeded
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"` // Comma-separated hosts that bypass the proxy
}

// SchedulerConfig controls the processing queue
type SchedulerConfig struct {
	Workers        int           `yaml:"workers" mapstructure:"workers"`
	MaxQueue       int           `yaml:"max_queue" mapstructure:"max_queue"`
	JobTimeout     time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
	Retention      time.Duration `yaml:"retention" mapstructure:"retention"`
	BaseEstimate   time.Duration `yaml:"base_estimate" mapstructure:"base_estimate"`
	BytesPerSecond int64         `yaml:"bytes_per_second" mapstructure:"bytes_per_second"` // Throughput used for wait estimates
}

// CacheConfig controls result caching by content fingerprint
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ServerConfig controls the upload API
type ServerConfig struct {
	Addr              string   `yaml:"addr" mapstructure:"addr"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
	TempDir           string   `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// DefaultPalette returns the group colors used by the charts
func DefaultPalette() map[TaxonomyGroup]string {
	return map[TaxonomyGroup]string{
		GroupAlveolata:     "#22D3EE",
		GroupChlorophyta:   "#10B981",
		GroupFungi:         "#A78BFA",
		GroupMetazoa:       "#F59E0B",
		GroupRhodophyta:    "#EC4899",
		GroupStramenopiles: "#8B5CF6",
		GroupBacteria:      "#EF4444",
		GroupArchaea:       "#F97316",
		GroupUnknown:       "#64748B",
		GroupNovel:         "#DC2626",
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "taxaformer-cache")
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".taxaformer", "cache")
	}

	return &Config{
		Analysis: AnalysisConfig{
			NoveltyThreshold: DefaultNoveltyThreshold,
			Palette:          DefaultPalette(),
			DefaultColor:     DefaultColor,
			FASTQMode:        FASTQLenient,
		},
		Classifier: ClassifierConfig{
			Provider: "stub",
			Timeout:  30,
			Burst:    5,
		},
		Scheduler: SchedulerConfig{
			Workers:        1, // One file at a time protects the shared model
			MaxQueue:       10,
			JobTimeout:     5 * time.Minute,
			Retention:      time.Hour,
			BaseEstimate:   30 * time.Second,
			BytesPerSecond: 100 * 1024,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:              ":8000",
			MaxUploadBytes:    50 * 1024 * 1024,
			AllowedExtensions: []string{".fasta", ".fa", ".fastq", ".fq", ".txt"},
			TempDir:           filepath.Join(os.TempDir(), "taxaformer-uploads"),
		},
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Analysis.NoveltyThreshold < 0 || c.Analysis.NoveltyThreshold > 1 {
		return fmt.Errorf("novelty threshold %v outside [0,1]", c.Analysis.NoveltyThreshold)
	}
	switch c.Analysis.FASTQMode {
	case "", FASTQLenient, FASTQFourLine:
	default:
		return fmt.Errorf("unknown fastq mode %q (supported: %s, %s)", c.Analysis.FASTQMode, FASTQLenient, FASTQFourLine)
	}
	switch strings.ToLower(c.Classifier.Provider) {
	case "", "stub", "http", "openai":
	default:
		return fmt.Errorf("unknown classifier provider: %s (supported: stub, http, openai)", c.Classifier.Provider)
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler workers must be positive, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.MaxQueue <= 0 {
		return fmt.Errorf("scheduler max queue must be positive, got %d", c.Scheduler.MaxQueue)
	}
	return nil
}

// CacheScope digests every setting that changes what an analysis produces:
// the analysis constants and the classifier's identity. Results cached under
// one scope are never served to a run with another.
func (c *Config) CacheScope() string {
	analysis := c.Analysis
	analysis.NormalizePalette()
	if analysis.FASTQMode == "" {
		analysis.FASTQMode = FASTQLenient
	}
	if analysis.DefaultColor == "" {
		analysis.DefaultColor = DefaultColor
	}

	// encoding/json sorts map keys, so equal palettes digest equally
	data, err := json.Marshal(struct {
		NoveltyThreshold float64                  `json:"novelty_threshold"`
		Palette          map[TaxonomyGroup]string `json:"palette"`
		DefaultColor     string                   `json:"default_color"`
		FASTQMode        string                   `json:"fastq_mode"`
		Provider         string                   `json:"provider"`
		Model            string                   `json:"model"`
		BaseURL          string                   `json:"base_url"`
		Seed             int64                    `json:"seed"`
	}{
		NoveltyThreshold: analysis.NoveltyThreshold,
		Palette:          analysis.Palette,
		DefaultColor:     analysis.DefaultColor,
		FASTQMode:        analysis.FASTQMode,
		Provider:         strings.ToLower(c.Classifier.Provider),
		Model:            c.Classifier.Model,
		BaseURL:          c.Classifier.BaseURL,
		Seed:             c.Classifier.Seed,
	})
	if err != nil {
		// Every field is a plain value; this cannot fail
		panic(fmt.Sprintf("cache scope: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ColorFor resolves a group color from the palette, falling back to the default color
func (a AnalysisConfig) ColorFor(group TaxonomyGroup) string {
	if c, ok := a.Palette[group]; ok {
		return c
	}
	if a.DefaultColor != "" {
		return a.DefaultColor
	}
	return DefaultColor
}

// NormalizePalette maps palette keys back to canonical group names.
// Config loaders lowercase map keys, so "metazoa" must resolve to Metazoa.
func (a *AnalysisConfig) NormalizePalette() {
	if len(a.Palette) == 0 {
		a.Palette = DefaultPalette()
		return
	}
	canonical := make(map[string]TaxonomyGroup, len(AllGroups()))
	for _, g := range AllGroups() {
		canonical[strings.ToLower(string(g))] = g
	}
	normalized := make(map[TaxonomyGroup]string, len(a.Palette))
	for k, v := range a.Palette {
		if g, ok := canonical[strings.ToLower(string(k))]; ok {
			normalized[g] = v
			continue
		}
		normalized[k] = v
	}
	a.Palette = normalized
}
