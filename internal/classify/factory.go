package classify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/worker"
)

// NewClassifier creates a classifier based on configuration. Remote
// backends are wrapped in a rate limiter when RequestsPerSecond is set.
func NewClassifier(config Config) (Classifier, error) {
	provider := strings.ToLower(config.Provider)

	var (
		c   Classifier
		err error
	)
	switch provider {
	case "stub", "":
		return NewStub(NewRand(config.Seed)), nil

	case "http":
		c, err = NewHTTPClassifier(config)

	case "openai":
		c, err = NewOpenAIClassifier(config)

	default:
		return nil, fmt.Errorf("unknown classifier provider: %s (supported: stub, http, openai)", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	if config.RequestsPerSecond > 0 {
		limiter := worker.NewLimiter(config.RequestsPerSecond, config.Burst)
		return NewRateLimited(c, limiter, limiterKey(config)), nil
	}
	return c, nil
}

// ConfigFromModel converts model.ClassifierConfig to classify.Config
func ConfigFromModel(modelConfig model.ClassifierConfig) Config {
	return Config{
		Provider:          modelConfig.Provider,
		Model:             modelConfig.Model,
		APIKey:            modelConfig.APIKey,
		BaseURL:           modelConfig.BaseURL,
		Timeout:           modelConfig.Timeout,
		RequestsPerSecond: modelConfig.RequestsPerSecond,
		Burst:             modelConfig.Burst,
		Seed:              modelConfig.Seed,
		HTTPProxy:         modelConfig.HTTPProxy,
		HTTPSProxy:        modelConfig.HTTPSProxy,
		NoProxy:           modelConfig.NoProxy,
	}
}

// limiterKey buckets rate limits per service host
func limiterKey(config Config) string {
	if config.BaseURL != "" {
		if u, err := url.Parse(config.BaseURL); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return config.Provider
}
