package model

import (
	"math"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Analysis.NoveltyThreshold != 0.15 {
		t.Errorf("expected threshold 0.15, got %v", cfg.Analysis.NoveltyThreshold)
	}
	if len(cfg.Analysis.Palette) != len(AllGroups()) {
		t.Errorf("expected a color for every group, got %d", len(cfg.Analysis.Palette))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Analysis.NoveltyThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.Analysis.NoveltyThreshold = -0.1 }},
		{"unknown fastq mode", func(c *Config) { c.Analysis.FASTQMode = "strict" }},
		{"unknown provider", func(c *Config) { c.Classifier.Provider = "blast" }},
		{"zero workers", func(c *Config) { c.Scheduler.Workers = 0 }},
		{"zero queue", func(c *Config) { c.Scheduler.MaxQueue = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestAnalysisConfig_ColorFor(t *testing.T) {
	a := AnalysisConfig{Palette: map[TaxonomyGroup]string{GroupFungi: "#A78BFA"}}
	if got := a.ColorFor(GroupFungi); got != "#A78BFA" {
		t.Errorf("expected fungi color, got %s", got)
	}
	if got := a.ColorFor(GroupBacteria); got != DefaultColor {
		t.Errorf("expected default color for unmapped group, got %s", got)
	}

	a.DefaultColor = "#000000"
	if got := a.ColorFor("Cryptophyta"); got != "#000000" {
		t.Errorf("expected configured default color, got %s", got)
	}
}

func TestAnalysisConfig_NormalizePalette(t *testing.T) {
	a := AnalysisConfig{Palette: map[TaxonomyGroup]string{"metazoa": "#111111", "custom": "#222222"}}
	a.NormalizePalette()

	if got := a.Palette[GroupMetazoa]; got != "#111111" {
		t.Errorf("expected lowercase key to map to Metazoa, got %q", got)
	}
	if got := a.Palette["custom"]; got != "#222222" {
		t.Errorf("expected unknown key kept as-is, got %q", got)
	}

	empty := AnalysisConfig{}
	empty.NormalizePalette()
	if len(empty.Palette) != len(AllGroups()) {
		t.Errorf("expected default palette for empty config, got %d entries", len(empty.Palette))
	}
}

func TestClassification_Validate(t *testing.T) {
	ok := Classification{Lineage: "Bacteria", Confidence: 0.9, OverlapPercent: 80, NoveltyScore: 0.1}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid classification, got %v", err)
	}

	bad := []Classification{
		{Confidence: 1.2},
		{Confidence: 0.5, OverlapPercent: 101},
		{Confidence: 0.5, NoveltyScore: -0.01},
		{Confidence: math.NaN()},
		{Confidence: 0.5, NoveltyScore: math.NaN()},
		{Confidence: math.Inf(1)},
		{Confidence: 0.5, NoveltyScore: math.Inf(-1)},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestConfig_CacheScope(t *testing.T) {
	base := DefaultConfig().CacheScope()
	if again := DefaultConfig().CacheScope(); again != base {
		t.Fatalf("scope not stable: %s vs %s", base, again)
	}

	// Lowercased palette keys and an unset fastq mode describe the same analysis
	same := DefaultConfig()
	same.Analysis.FASTQMode = ""
	same.Analysis.Palette = map[TaxonomyGroup]string{}
	for g, c := range DefaultPalette() {
		same.Analysis.Palette[TaxonomyGroup(strings.ToLower(string(g)))] = c
	}
	same.Classifier.Timeout = 90
	same.Analysis.LogDropped = true
	if got := same.CacheScope(); got != base {
		t.Errorf("equivalent config changed scope: %s vs %s", got, base)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold", func(c *Config) { c.Analysis.NoveltyThreshold = 0.05 }},
		{"palette", func(c *Config) { c.Analysis.Palette[GroupFungi] = "#000000" }},
		{"fastq mode", func(c *Config) { c.Analysis.FASTQMode = FASTQFourLine }},
		{"provider", func(c *Config) { c.Classifier.Provider = "openai" }},
		{"model", func(c *Config) { c.Classifier.Model = "gpt-4o-mini" }},
		{"seed", func(c *Config) { c.Classifier.Seed = 42 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if cfg.CacheScope() == base {
				t.Error("expected a different scope")
			}
		})
	}
}
