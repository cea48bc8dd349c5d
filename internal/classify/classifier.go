// Package classify defines the classifier adapter and its backends.
//
// The pipeline only depends on the Classifier interface; backends are
// swappable without touching parsing, grouping or aggregation.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppiankov/taxaformer/internal/model"
)

// Classifier maps one sequence record to a classification
type Classifier interface {
	// Name returns the backend name
	Name() string

	// Classify assigns lineage, confidence, overlap and novelty to a record
	Classify(ctx context.Context, rec model.SequenceRecord) (model.Classification, error)
}

// Checker is implemented by backends that can report their own health
type Checker interface {
	IsAvailable(ctx context.Context) bool
}

// Config holds classifier backend configuration
type Config struct {
	// Provider name: "stub", "http", "openai"
	Provider string

	// Model name (backend-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL of the model service
	BaseURL string

	// Timeout for one classification request
	Timeout int // seconds

	// Rate limiting for remote backends (0 disables)
	RequestsPerSecond float64
	Burst             int

	// Seed for the stub's random source (0 = time-seeded)
	Seed int64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider: "stub",
		Timeout:  30,
		Burst:    5,
	}
}

// decodeClassification parses a backend reply; a reply without a lineage is rejected
func decodeClassification(data []byte) (model.Classification, error) {
	var result model.Classification
	if err := json.Unmarshal(data, &result); err != nil {
		return model.Classification{}, err
	}
	if result.Lineage == "" {
		return model.Classification{}, errors.New("reply has no lineage")
	}
	return result, nil
}

// maxPromptBases caps how much of a sequence is sent to chat-style models
const maxPromptBases = 2000

// BuildPrompt constructs the classification prompt for chat-style models
func BuildPrompt(rec model.SequenceRecord) string {
	seq := rec.Sequence
	truncated := ""
	if len(seq) > maxPromptBases {
		seq = seq[:maxPromptBases]
		truncated = fmt.Sprintf(" (first %d of %d bases)", maxPromptBases, rec.Length())
	}

	return fmt.Sprintf(`Classify the following environmental DNA sequence taxonomically.

Respond with a single JSON object with exactly these fields:
- "lineage": semicolon-delimited taxonomy from broad to specific, e.g. "Eukaryota;SAR;Alveolata;Dinoflagellata"
- "confidence": number in [0,1]
- "overlap": integer percent in [0,100] estimating overlap with known reference sequences
- "novelty_score": number in [0,1], higher when the sequence is unlike known references

Sequence id: %s
Sequence%s:
%s`, rec.ID, truncated, seq)
}
