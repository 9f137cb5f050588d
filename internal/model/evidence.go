package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClaimKind categorizes the nature of a grounded claim
type ClaimKind string

const (
	ClaimKindNumericResult  ClaimKind = "numeric_result"  // Measured quantities (accuracy, latency, ...)
	ClaimKindCitation       ClaimKind = "citation"        // Known reference keys
	ClaimKindTheorem        ClaimKind = "theorem"         // Accepted theorem statements
	ClaimKindBaselineResult ClaimKind = "baseline_result" // Baseline/comparison numbers
)

// EvidenceStore is the immutable snapshot of sanctioned facts a document may
// assert. Supplied once at session start; validation and scoring only read it.
type EvidenceStore struct {
	NumericResults  []float64 `json:"numeric_results" yaml:"numeric_results"`
	BaselineResults []float64 `json:"baseline_results" yaml:"baseline_results"`
	Citations       []string  `json:"citations" yaml:"citations"`
	Theorems        []string  `json:"theorems" yaml:"theorems"`
}

// EvidenceSlice is the subset of the store handed to a single rewrite request,
// constraining the external generator to sanctioned facts.
type EvidenceSlice struct {
	NumericResults  []float64 `json:"numeric_results,omitempty"`
	BaselineResults []float64 `json:"baseline_results,omitempty"`
	Citations       []string  `json:"citations,omitempty"`
	Theorems        []string  `json:"theorems,omitempty"`
}

// LoadEvidence reads an evidence store from a YAML or JSON file, selected by
// extension.
func LoadEvidence(path string) (*EvidenceStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}

	store := &EvidenceStore{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, store); err != nil {
			return nil, fmt.Errorf("parse evidence JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, store); err != nil {
			return nil, fmt.Errorf("parse evidence YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("evidence file %s: unsupported extension (want .json, .yaml, .yml)", path)
	}
	return store, nil
}

// decimalMatchEpsilon is the relative tolerance for matching a decimal claim
// against a decimal evidence value: 0.05% of the evidence magnitude (floored
// at 1), absorbing float formatting differences. Integer-valued evidence
// requires an exact match.
const decimalMatchEpsilon = 0.0005

// NumbersMatch reports whether a claimed value matches a sanctioned value.
func NumbersMatch(claimed, sanctioned float64) bool {
	if sanctioned == math.Trunc(sanctioned) {
		return math.Abs(claimed-sanctioned) <= 1e-9
	}
	scale := math.Max(math.Abs(sanctioned), 1)
	return math.Abs(claimed-sanctioned) <= decimalMatchEpsilon*scale
}

// HasNumber reports whether a claimed value matches any sanctioned number.
func (e *EvidenceStore) HasNumber(claimed float64) bool {
	for _, v := range e.NumericResults {
		if NumbersMatch(claimed, v) {
			return true
		}
	}
	for _, v := range e.BaselineResults {
		if NumbersMatch(claimed, v) {
			return true
		}
	}
	return false
}

// AllNumbers returns numeric and baseline results as one list.
func (e *EvidenceStore) AllNumbers() []float64 {
	out := make([]float64, 0, len(e.NumericResults)+len(e.BaselineResults))
	out = append(out, e.NumericResults...)
	out = append(out, e.BaselineResults...)
	return out
}

// HasCitation reports whether the normalized citation key is sanctioned.
// Evidence keys are typically bibliography keys like "vaswani2017attention";
// a token normalized to "vaswani2017" matches by prefix.
func (e *EvidenceStore) HasCitation(normalized string) bool {
	if normalized == "" {
		return false
	}
	for _, c := range e.Citations {
		key := NormalizeCitationKey(c)
		// Evidence entries may be written as full tokens ("Vaswani et al., 2017");
		// drop the "etal" filler so they compare against author+year keys.
		bare := strings.ReplaceAll(key, "etal", "")
		if key == normalized || bare == normalized ||
			strings.HasPrefix(key, normalized) || strings.HasPrefix(bare, normalized) {
			return true
		}
	}
	return false
}

// HasTheorem reports whether the sentence is covered by a sanctioned theorem:
// either a theorem entry appears (case-insensitively) inside the sentence, or
// the sentence names an entry ("Theorem 2") listed in the store.
func (e *EvidenceStore) HasTheorem(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, t := range e.Theorems {
		entry := strings.ToLower(strings.TrimSpace(t))
		if entry == "" {
			continue
		}
		if strings.Contains(lower, entry) || strings.Contains(entry, strings.TrimSpace(lower)) {
			return true
		}
	}
	return false
}

// SliceFor returns the evidence subset relevant to one section's rewrite.
func (e *EvidenceStore) SliceFor(section string) EvidenceSlice {
	switch section {
	case "experiments":
		return EvidenceSlice{
			NumericResults:  e.NumericResults,
			BaselineResults: e.BaselineResults,
			Citations:       e.Citations,
		}
	case "related_work":
		return EvidenceSlice{Citations: e.Citations}
	case "methodology":
		return EvidenceSlice{Theorems: e.Theorems, Citations: e.Citations}
	default:
		return EvidenceSlice{
			NumericResults:  e.NumericResults,
			BaselineResults: e.BaselineResults,
			Citations:       e.Citations,
			Theorems:        e.Theorems,
		}
	}
}

// Fingerprint returns a stable hash of the store contents, used as part of
// memoization keys.
func (e *EvidenceStore) Fingerprint() string {
	nums := e.AllNumbers()
	sort.Float64s(nums)
	cits := append([]string(nil), e.Citations...)
	sort.Strings(cits)
	thms := append([]string(nil), e.Theorems...)
	sort.Strings(thms)

	h := sha256.New()
	for _, n := range nums {
		fmt.Fprintf(h, "n:%v;", n)
	}
	for _, c := range cits {
		fmt.Fprintf(h, "c:%s;", c)
	}
	for _, t := range thms {
		fmt.Fprintf(h, "t:%s;", t)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeCitationKey lowercases a citation string and strips everything but
// letters and digits, so "[Vaswani et al., 2017]" and "vaswani2017attention"
// become comparable.
func NormalizeCitationKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
