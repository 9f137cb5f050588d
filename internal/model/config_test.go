package model

import (
	"math"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	sum := 0.0
	for _, c := range Criteria {
		w, ok := DefaultWeights()[c]
		if !ok {
			t.Fatalf("Expected weight for criterion %s", c)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("Expected weights to sum to 1.0, got %v", sum)
	}
}

func TestConfig_Validate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Threshold = 0 }},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }},
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }},
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"weights not summing", func(c *Config) { c.Weights[CriterionWriting] = 0.5 }},
		{"missing weight", func(c *Config) { delete(c.Weights, CriterionExperiments) }},
		{"negative weight", func(c *Config) {
			c.Weights[CriterionEthics] = -0.05
			c.Weights[CriterionWriting] = 0.20
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCriterion_SectionMapping(t *testing.T) {
	if got := CriterionEthics.Section(); got != "ethics" {
		t.Errorf("Expected ethics criterion to map to 'ethics' section, got %q", got)
	}
	if got := CriterionExperiments.Section(); got != "experiments" {
		t.Errorf("Expected 'experiments', got %q", got)
	}
	for _, name := range SectionNames {
		if _, ok := CriterionForSection(name); !ok {
			t.Errorf("Expected a criterion for section %q", name)
		}
	}
}

func TestWarningKind_SeverityPolicy(t *testing.T) {
	blocking := []WarningKind{WarningUnsupportedNumber, WarningUnknownCitation, WarningUnprovenClaim}
	for _, k := range blocking {
		if k.Severity() != SeverityBlocking {
			t.Errorf("Expected %s to be blocking", k)
		}
	}
	advisory := []WarningKind{WarningUngroundedSuperlative, WarningPlaceholderMarker}
	for _, k := range advisory {
		if k.Severity() != SeverityAdvisory {
			t.Errorf("Expected %s to be advisory", k)
		}
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := NewDocument()
	doc.Set("experiments", "original")

	clone := doc.Clone()
	clone.Set("experiments", "rewritten")

	if text, _ := doc.Get("experiments"); text != "original" {
		t.Errorf("Expected clone mutation to leave original untouched, got %q", text)
	}
}
