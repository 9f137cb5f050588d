// Package llm wraps the external generation collaborator behind a Provider
// interface. The engine treats rewrites as opaque, potentially slow,
// potentially failing remote calls; every prompt carries the evidence slice
// the response must stay inside.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/akorchak/refiner/internal/extract"
	"github.com/akorchak/refiner/internal/model"
)

// Provider defines the interface for rewrite providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Rewrite asks the external generator for an improved section, constrained
	// to the sanctioned evidence in the request.
	Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// RewriteRequest contains everything one targeted section rewrite needs.
type RewriteRequest struct {
	// Section is the canonical section name being rewritten
	Section string

	// Text is the current section text
	Text string

	// Findings are the rubric deficiencies the rewrite must address
	Findings []model.Finding

	// Warnings are the validation warnings located in this section
	Warnings []model.ValidationWarning

	// Evidence is the sanctioned-fact slice the rewrite may draw numbers,
	// citations, and theorems from
	Evidence model.EvidenceSlice

	// Prompt overrides the default prompt when non-empty
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// RewriteResponse contains the generator's output.
type RewriteResponse struct {
	// Text is the rewritten section
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// StrictEvidence rejects responses containing numbers outside the
	// evidence slice (should always be true)
	StrictEvidence bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Timeout:        60,
		MaxTokens:      2000,
		StrictEvidence: true,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:       mc.Provider,
		Model:          mc.Model,
		APIKey:         mc.APIKey,
		BaseURL:        mc.BaseURL,
		Timeout:        mc.Timeout,
		MaxTokens:      mc.MaxTokens,
		StrictEvidence: true,
	}
}

// antiFabricationPreamble opens every rewrite prompt. The generator may only
// use facts from the sanctioned data below it; anything else must be marked,
// not invented.
const antiFabricationPreamble = `You are revising one section of a technical document.

STRICT RULES:
1. NEVER fabricate experimental results or numbers. Only use numbers from the
   SANCTIONED DATA section. If a number is unavailable, write [NEEDS EXPERIMENTAL DATA].
2. NEVER invent citations. Only cite entries from SANCTIONED DATA. If more
   references are needed, write [Citation Needed: topic].
3. NEVER claim unproven theoretical results. Only restate theorems listed in
   SANCTIONED DATA; otherwise write "we conjecture" or "empirically, we observe".
4. Be conservative: qualify claims you cannot back with the sanctioned data.
5. Return ONLY the revised section text, no commentary.`

// BuildPrompt constructs the default rewrite prompt: the deficiencies to fix,
// the warnings to resolve, the sanctioned evidence, and the current text.
func BuildPrompt(req RewriteRequest) string {
	var b strings.Builder

	b.WriteString(antiFabricationPreamble)
	b.WriteString("\n\nSECTION: ")
	b.WriteString(req.Section)
	b.WriteString("\n\nDEFICIENCIES TO ADDRESS:\n")
	if len(req.Findings) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, f := range req.Findings {
		if f.Severity == model.FindingOK {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Message)
	}

	if len(req.Warnings) > 0 {
		b.WriteString("\nGROUNDING PROBLEMS TO RESOLVE:\n")
		for _, w := range req.Warnings {
			fmt.Fprintf(&b, "- [%s] %s: %q\n", w.Severity, w.Message, w.Excerpt)
		}
	}

	b.WriteString("\nSANCTIONED DATA (the only usable facts):\n")
	writeEvidenceSlice(&b, req.Evidence)

	b.WriteString("\nCURRENT SECTION TEXT:\n")
	if strings.TrimSpace(req.Text) == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(req.Text)
		b.WriteString("\n")
	}

	b.WriteString("\nWrite the revised section text:")
	return b.String()
}

func writeEvidenceSlice(b *strings.Builder, ev model.EvidenceSlice) {
	if len(ev.NumericResults) == 0 && len(ev.BaselineResults) == 0 &&
		len(ev.Citations) == 0 && len(ev.Theorems) == 0 {
		b.WriteString("- (none: make no quantitative claims)\n")
		return
	}
	for _, n := range ev.NumericResults {
		fmt.Fprintf(b, "- numeric result: %v\n", n)
	}
	for _, n := range ev.BaselineResults {
		fmt.Fprintf(b, "- baseline result: %v\n", n)
	}
	for _, c := range ev.Citations {
		fmt.Fprintf(b, "- citation: %s\n", c)
	}
	for _, t := range ev.Theorems {
		fmt.Fprintf(b, "- theorem: %s\n", t)
	}
}

// CheckGrounding scans a rewrite response for metric numbers outside the
// evidence slice. A non-empty result means the generator leaked fabricated
// values and the response must be rejected. The same triviality rules as
// validation apply, so common constants do not trip the check.
func CheckGrounding(response string, ev model.EvidenceSlice) []string {
	store := model.EvidenceStore{
		NumericResults:  ev.NumericResults,
		BaselineResults: ev.BaselineResults,
	}

	var leaks []string
	for _, tok := range extract.NumberTokens(response) {
		if !tok.Percent && !tok.Decimal {
			continue // Integers in prose are handled by the validator pass
		}
		if isCommonConstant(tok.Value) {
			continue
		}
		if !store.HasNumber(tok.Value) {
			leaks = append(leaks, tok.Raw)
		}
	}
	return leaks
}

func isCommonConstant(v float64) bool {
	for _, c := range []float64{95, 99, 0.05, 0.01, 0.001, 42} {
		if v == c {
			return true
		}
	}
	return false
}
