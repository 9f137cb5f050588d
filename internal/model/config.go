package model

import (
	"fmt"
	"math"
	"time"
)

// Config holds all session parameters. Every session gets its own copy; there
// is no process-wide mutable state, so sessions can run concurrently.
type Config struct {
	// Threshold is the minimum overall score for acceptance, in (0,1].
	Threshold float64 `yaml:"threshold"`

	// MaxIterations caps the number of rewrite rounds.
	MaxIterations int `yaml:"max_iterations"`

	// TopK is how many weakest criteria are targeted per iteration.
	TopK int `yaml:"top_k"`

	// Weights are the per-criterion aggregation weights. Must sum to 1.0.
	Weights map[Criterion]float64 `yaml:"weights"`

	// Concurrency bounds parallel rewrite requests within one iteration.
	Concurrency int `yaml:"concurrency"`

	// RewriteTimeout applies per external rewrite call.
	RewriteTimeout time.Duration `yaml:"rewrite_timeout"`

	// RewriteRetries is how many attempts a failing section rewrite gets.
	RewriteRetries int `yaml:"rewrite_retries"`

	// RateLimit throttles rewrite requests (requests/second, with burst).
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	Cache  CacheConfig  `yaml:"cache"`
	LLM    LLMConfig    `yaml:"llm"`
	Output OutputConfig `yaml:"output"`
}

// CacheConfig controls validation/scoring memoization
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// LLMConfig configures the external generation collaborator
type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, anthropic, ollama, "" = disabled
	Model     string `yaml:"model"`
	APIKey    string `yaml:"-"` // From environment only, never serialized
	BaseURL   string `yaml:"base_url"`
	Timeout   int    `yaml:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose  bool   `yaml:"verbose"`
	JSONPath string `yaml:"json"`
	MDPath   string `yaml:"md"`
}

// DefaultWeights returns the fixed rubric weights (sum = 1.00).
func DefaultWeights() map[Criterion]float64 {
	return map[Criterion]float64{
		CriterionContributions: 0.25,
		CriterionMethodology:   0.20,
		CriterionExperiments:   0.30,
		CriterionRelatedWork:   0.10,
		CriterionWriting:       0.10,
		CriterionEthics:        0.05,
	}
}

// DefaultConfig returns the standard session configuration.
func DefaultConfig() *Config {
	return &Config{
		Threshold:      0.75,
		MaxIterations:  3,
		TopK:           2,
		Weights:        DefaultWeights(),
		Concurrency:    3,
		RewriteTimeout: 90 * time.Second,
		RewriteRetries: 3,
		RateLimit:      1.0,
		RateBurst:      3,
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   60,
			MaxTokens: 2000,
		},
		Output: OutputConfig{},
	}
}

const weightSumTolerance = 1e-9

// Validate checks the configuration before any work begins. Configuration
// errors are the only fatal error class in a run.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("config: threshold %v out of range (0,1]", c.Threshold)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("config: max_iterations %d must be >= 0", c.MaxIterations)
	}
	if c.TopK < 1 {
		return fmt.Errorf("config: top_k %d must be >= 1", c.TopK)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency %d must be >= 1", c.Concurrency)
	}
	if c.RewriteRetries < 1 {
		return fmt.Errorf("config: rewrite_retries %d must be >= 1", c.RewriteRetries)
	}
	if len(c.Weights) == 0 {
		return fmt.Errorf("config: weights missing")
	}
	sum := 0.0
	for _, criterion := range Criteria {
		w, ok := c.Weights[criterion]
		if !ok {
			return fmt.Errorf("config: weight missing for criterion %s", criterion)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("config: weight %v for %s out of range [0,1]", w, criterion)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("config: weights sum to %v, want 1.0", sum)
	}
	return nil
}
