package validate

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/akorchak/refiner/internal/cache"
	"github.com/akorchak/refiner/internal/model"
)

func docWith(section, text string) *model.Document {
	doc := model.NewDocument()
	doc.Set(section, text)
	return doc
}

func TestValidate_UnsupportedNumber(t *testing.T) {
	evidence := &model.EvidenceStore{NumericResults: []float64{88.2}}
	v := NewValidator(evidence, nil, 0)

	doc := docWith("experiments", "Our method achieves 94.7% accuracy")
	warnings := v.Validate(doc)

	if len(warnings) != 1 {
		t.Fatalf("Expected exactly 1 warning, got %d: %+v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Kind != model.WarningUnsupportedNumber {
		t.Errorf("Expected unsupported_number, got %s", w.Kind)
	}
	if w.Severity != model.SeverityBlocking {
		t.Errorf("Expected blocking severity, got %s", w.Severity)
	}
	if !strings.Contains(w.Excerpt, "94.7") {
		t.Errorf("Expected warning to reference the sentence, got %q", w.Excerpt)
	}
}

func TestValidate_SanctionedNumberNeverWarns(t *testing.T) {
	evidence := &model.EvidenceStore{NumericResults: []float64{94.7}}
	v := NewValidator(evidence, nil, 0)

	doc := docWith("experiments", "Our method achieves 94.7% accuracy")
	if warnings := v.Validate(doc); len(warnings) != 0 {
		t.Errorf("Expected no warnings for sanctioned number, got %+v", warnings)
	}
}

func TestValidate_EmptyEvidenceNoClaims(t *testing.T) {
	v := NewValidator(&model.EvidenceStore{}, nil, 0)

	doc := docWith("writing", "The prose flows well. However, nothing here makes a claim.")
	if warnings := v.Validate(doc); len(warnings) != 0 {
		t.Errorf("Expected no false positives, got %+v", warnings)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	evidence := &model.EvidenceStore{NumericResults: []float64{88.2}}
	v := NewValidator(evidence, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	doc := docWith("experiments", "We reach 91.3% accuracy against [Smith et al., 2020].")

	first := v.Validate(doc)
	second := v.Validate(doc)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical warning sets, got %+v vs %+v", first, second)
	}
	if len(first) == 0 {
		t.Fatal("Expected warnings from unsupported claims")
	}
}

func TestValidate_UnknownCitation(t *testing.T) {
	evidence := &model.EvidenceStore{Citations: []string{"vaswani2017attention"}}
	v := NewValidator(evidence, nil, 0)

	doc := docWith("related_work", "We build on [Vaswani et al., 2017] and [Fakename et al., 2031].")
	warnings := v.Validate(doc)

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d: %+v", len(warnings), warnings)
	}
	if warnings[0].Kind != model.WarningUnknownCitation {
		t.Errorf("Expected unknown_citation, got %s", warnings[0].Kind)
	}
	if !strings.Contains(warnings[0].Excerpt, "Fakename") {
		t.Errorf("Expected the unknown token flagged, got %q", warnings[0].Excerpt)
	}
}

func TestValidate_LatexCiteKeys(t *testing.T) {
	evidence := &model.EvidenceStore{Citations: []string{"devlin2019bert"}}
	v := NewValidator(evidence, nil, 0)

	doc := docWith("related_work", `BERT \cite{devlin2019bert} is known; \cite{made2028up} is not.`)
	warnings := v.Validate(doc)

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d: %+v", len(warnings), warnings)
	}
	if warnings[0].Kind != model.WarningUnknownCitation {
		t.Errorf("Expected unknown_citation, got %s", warnings[0].Kind)
	}
}

func TestValidate_UnprovenClaim(t *testing.T) {
	evidence := &model.EvidenceStore{Theorems: []string{"the estimator is unbiased"}}
	v := NewValidator(evidence, nil, 0)

	backed := docWith("methodology", "We prove that the estimator is unbiased.")
	if warnings := v.Validate(backed); len(warnings) != 0 {
		t.Errorf("Expected sanctioned theorem to pass, got %+v", warnings)
	}

	unbacked := docWith("methodology", "We prove that the method always converges globally.")
	warnings := v.Validate(unbacked)
	if len(warnings) != 1 || warnings[0].Kind != model.WarningUnprovenClaim {
		t.Fatalf("Expected one unproven_claim, got %+v", warnings)
	}
	if warnings[0].Severity != model.SeverityBlocking {
		t.Errorf("Expected blocking, got %s", warnings[0].Severity)
	}
}

func TestValidate_UngroundedSuperlative(t *testing.T) {
	v := NewValidator(&model.EvidenceStore{}, nil, 0)

	grounded := docWith("contributions", "We achieve state-of-the-art results, see Table 2.")
	if warnings := v.Validate(grounded); len(warnings) != 0 {
		t.Errorf("Expected table reference to qualify the claim, got %+v", warnings)
	}

	ungrounded := docWith("contributions", "We achieve state-of-the-art results across the board.")
	warnings := v.Validate(ungrounded)
	if len(warnings) != 1 || warnings[0].Kind != model.WarningUngroundedSuperlative {
		t.Fatalf("Expected one ungrounded_superlative, got %+v", warnings)
	}
	if warnings[0].Severity != model.SeverityAdvisory {
		t.Errorf("Expected advisory, got %s", warnings[0].Severity)
	}
}

func TestValidate_PlaceholderMarker(t *testing.T) {
	v := NewValidator(&model.EvidenceStore{}, nil, 0)

	doc := docWith("experiments", "Ablation results are pending [NEEDS EXPERIMENTAL DATA].")
	warnings := v.Validate(doc)

	if len(warnings) != 1 || warnings[0].Kind != model.WarningPlaceholderMarker {
		t.Fatalf("Expected one placeholder_marker, got %+v", warnings)
	}
	if warnings[0].Severity != model.SeverityAdvisory {
		t.Errorf("Expected advisory, got %s", warnings[0].Severity)
	}
}

func TestValidate_TrivialNumbersSkipped(t *testing.T) {
	v := NewValidator(&model.EvidenceStore{}, nil, 0)

	// Section numbers, alpha thresholds, confidence levels, and citation
	// years are below the triviality threshold.
	doc := docWith("experiments",
		"Section 3 reports accuracy with p < 0.05 at the 95 confidence level, following [Doe et al., 2021].")
	warnings := v.Validate(doc)

	for _, w := range warnings {
		if w.Kind == model.WarningUnsupportedNumber {
			t.Errorf("Expected no unsupported_number for trivial values, got %+v", w)
		}
	}
}

func TestValidate_DecimalTolerance(t *testing.T) {
	evidence := &model.EvidenceStore{NumericResults: []float64{94.71}}
	v := NewValidator(evidence, nil, 0)

	// Within 0.05% of the sanctioned magnitude.
	close := docWith("experiments", "We observe 94.72% accuracy.")
	if warnings := v.Validate(close); len(warnings) != 0 {
		t.Errorf("Expected near-match within tolerance to pass, got %+v", warnings)
	}

	far := docWith("experiments", "We observe 95.5% accuracy.")
	if warnings := v.Validate(far); len(warnings) != 1 {
		t.Errorf("Expected out-of-tolerance value to warn, got %+v", warnings)
	}
}

func TestValidate_IntegerEvidenceExact(t *testing.T) {
	evidence := &model.EvidenceStore{BaselineResults: []float64{128}}
	v := NewValidator(evidence, nil, 0)

	exact := docWith("experiments", "Throughput reaches 128 samples per second, a real improvement.")
	if warnings := v.Validate(exact); len(warnings) != 0 {
		t.Errorf("Expected exact integer match to pass, got %+v", warnings)
	}

	off := docWith("experiments", "Throughput reaches 129 samples per second, a real improvement.")
	if warnings := v.Validate(off); len(warnings) != 1 {
		t.Errorf("Expected off-by-one integer to warn, got %+v", warnings)
	}
}
