package llm

import (
	"strings"
	"testing"

	"github.com/akorchak/refiner/internal/model"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error for disabled provider, got %v", err)
	}
	if provider != nil {
		t.Error("Expected nil provider when disabled")
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "grok-on-a-toaster"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNewProvider_RequiresAPIKeys(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "openai"}); err == nil {
		t.Error("Expected error for OpenAI without API key")
	}
	if _, err := NewProvider(Config{Provider: "anthropic"}); err == nil {
		t.Error("Expected error for Anthropic without API key")
	}
	// Ollama is local and key-less.
	if _, err := NewProvider(Config{Provider: "ollama"}); err != nil {
		t.Errorf("Expected Ollama to construct without a key, got %v", err)
	}
}

func TestBuildPrompt_CarriesConstraints(t *testing.T) {
	req := RewriteRequest{
		Section: "experiments",
		Text:    "We ran things.",
		Findings: []model.Finding{
			{Severity: model.FindingMissing, Message: "no ablation study"},
			{Severity: model.FindingOK, Message: "dataset coverage present"},
		},
		Warnings: []model.ValidationWarning{
			{Severity: model.SeverityBlocking, Message: "number 99.9 not found in sanctioned numeric results", Excerpt: "99.9% accuracy"},
		},
		Evidence: model.EvidenceSlice{
			NumericResults: []float64{94.7},
			Citations:      []string{"vaswani2017attention"},
		},
	}

	prompt := BuildPrompt(req)

	for _, want := range []string{
		"no ablation study",
		"99.9% accuracy",
		"94.7",
		"vaswani2017attention",
		"NEVER fabricate",
		"We ran things.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}

	// Satisfied findings are noise in a rewrite prompt.
	if strings.Contains(prompt, "dataset coverage present") {
		t.Error("Expected ok findings omitted from prompt")
	}
}

func TestBuildPrompt_EmptyEvidence(t *testing.T) {
	prompt := BuildPrompt(RewriteRequest{Section: "writing", Text: "Prose."})
	if !strings.Contains(prompt, "make no quantitative claims") {
		t.Error("Expected empty evidence slice to forbid quantitative claims")
	}
}

func TestCheckGrounding_DetectsLeaks(t *testing.T) {
	ev := model.EvidenceSlice{NumericResults: []float64{94.7}}

	clean := "We achieve 94.7% accuracy with p < 0.05."
	if leaks := CheckGrounding(clean, ev); len(leaks) != 0 {
		t.Errorf("Expected no leaks, got %v", leaks)
	}

	dirty := "We achieve 97.3% accuracy."
	leaks := CheckGrounding(dirty, ev)
	if len(leaks) != 1 || leaks[0] != "97.3" {
		t.Errorf("Expected leak [97.3], got %v", leaks)
	}
}

func TestCheckGrounding_IgnoresProseIntegers(t *testing.T) {
	ev := model.EvidenceSlice{}
	text := "We run 3 seeds over 12 epochs."
	if leaks := CheckGrounding(text, ev); len(leaks) != 0 {
		t.Errorf("Expected plain integers ignored, got %v", leaks)
	}
}
