// Package validate implements the hallucination validator: it scans document
// text for claims not traceable to the evidence store and emits typed
// warnings. It never rewrites text, and it is idempotent: the same document
// and evidence always produce the identical warning set.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/akorchak/refiner/internal/cache"
	"github.com/akorchak/refiner/internal/extract"
	"github.com/akorchak/refiner/internal/model"
)

// Validator cross-references document claims against an evidence store.
type Validator struct {
	evidence    *model.EvidenceStore
	fingerprint string
	cache       cache.Cache
	cacheTTL    time.Duration
}

// NewValidator creates a validator for one evidence snapshot. The cache is
// optional; pass nil to disable memoization.
func NewValidator(evidence *model.EvidenceStore, memo cache.Cache, ttl time.Duration) *Validator {
	return &Validator{
		evidence:    evidence,
		fingerprint: evidence.Fingerprint(),
		cache:       memo,
		cacheTTL:    ttl,
	}
}

// Validate scans every document section and returns all warnings, ordered by
// document position. Read-only on the document.
func (v *Validator) Validate(doc *model.Document) []model.ValidationWarning {
	warnings := []model.ValidationWarning{}
	for _, section := range doc.Sections {
		warnings = append(warnings, v.ValidateSection(section.Name, section.Text)...)
	}
	return warnings
}

// ValidateSection scans one section. Results are memoized per section text
// hash; the validator is a pure function of text and evidence, so a cache hit
// is exact.
func (v *Validator) ValidateSection(name, text string) []model.ValidationWarning {
	if text == "" {
		return nil
	}

	key := cache.SectionKey(name+"\x00"+text, v.fingerprint)
	if v.cache != nil {
		if data, ok := v.cache.Get(key); ok {
			var cached []model.ValidationWarning
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
		}
	}

	warnings := v.scanSection(name, text)

	if v.cache != nil {
		if data, err := json.Marshal(warnings); err == nil {
			_ = v.cache.Set(key, data, v.cacheTTL)
		}
	}
	return warnings
}

func (v *Validator) scanSection(name, text string) []model.ValidationWarning {
	var warnings []model.ValidationWarning

	citations := citationSpans(text)

	for _, sentence := range extract.SplitSentences(text) {
		warnings = append(warnings, v.checkNumbers(name, text, sentence, citations)...)
		warnings = append(warnings, v.checkProofAssertions(name, sentence)...)
		warnings = append(warnings, v.checkSuperlatives(name, sentence)...)
	}

	warnings = append(warnings, v.checkCitations(name, text)...)
	warnings = append(warnings, v.checkPlaceholders(name, text)...)

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Start != warnings[j].Start {
			return warnings[i].Start < warnings[j].Start
		}
		return warnings[i].Kind < warnings[j].Kind
	})
	return warnings
}

// checkNumbers flags numeric claims absent from the evidence store. A number
// is a claim when its sentence has metric context or the number is a
// percentage; trivial values never warn.
func (v *Validator) checkNumbers(section, fullText string, sentence extract.Span, citations [][2]int) []model.ValidationWarning {
	if !hasMetricContext(sentence.Text) {
		return nil
	}

	var warnings []model.ValidationWarning
	for _, tok := range extract.NumberTokens(sentence.Text) {
		start := sentence.Start + tok.Start
		end := sentence.Start + tok.End
		if isTrivialNumber(tok, insideAny(citations, start, end)) {
			continue
		}
		if v.evidence.HasNumber(tok.Value) {
			continue
		}
		warnings = append(warnings, model.ValidationWarning{
			Kind:     model.WarningUnsupportedNumber,
			Severity: model.WarningUnsupportedNumber.Severity(),
			Section:  section,
			Start:    sentence.Start,
			End:      sentence.End,
			Excerpt:  sentence.Text,
			Message:  fmt.Sprintf("number %s not found in sanctioned numeric results", tok.Raw),
		})
	}
	return warnings
}

// checkCitations flags citation tokens whose keys are not sanctioned.
func (v *Validator) checkCitations(section, text string) []model.ValidationWarning {
	var warnings []model.ValidationWarning
	seen := make(map[string]bool)
	for _, tok := range extract.CitationTokens(text) {
		if seen[tok.Key] {
			continue
		}
		seen[tok.Key] = true
		if v.evidence.HasCitation(model.NormalizeCitationKey(tok.Key)) {
			continue
		}
		warnings = append(warnings, model.ValidationWarning{
			Kind:     model.WarningUnknownCitation,
			Severity: model.WarningUnknownCitation.Severity(),
			Section:  section,
			Start:    tok.Start,
			End:      tok.End,
			Excerpt:  tok.Raw,
			Message:  fmt.Sprintf("citation %s not found in sanctioned citations", tok.Raw),
		})
	}
	return warnings
}

// checkProofAssertions flags sentences asserting proof without a sanctioned
// theorem backing them.
func (v *Validator) checkProofAssertions(section string, sentence extract.Span) []model.ValidationWarning {
	if !assertsProof(sentence.Text) {
		return nil
	}
	if v.evidence.HasTheorem(sentence.Text) {
		return nil
	}
	return []model.ValidationWarning{{
		Kind:     model.WarningUnprovenClaim,
		Severity: model.WarningUnprovenClaim.Severity(),
		Section:  section,
		Start:    sentence.Start,
		End:      sentence.End,
		Excerpt:  sentence.Text,
		Message:  "proof assertion without a sanctioned theorem",
	}}
}

// checkSuperlatives flags unqualified superlative claims lacking a citation
// or table reference in the same sentence. Advisory only.
func (v *Validator) checkSuperlatives(section string, sentence extract.Span) []model.ValidationWarning {
	phrase, found := findSuperlative(sentence.Text)
	if !found || hasGroundingReference(sentence.Text) {
		return nil
	}
	return []model.ValidationWarning{{
		Kind:     model.WarningUngroundedSuperlative,
		Severity: model.WarningUngroundedSuperlative.Severity(),
		Section:  section,
		Start:    sentence.Start,
		End:      sentence.End,
		Excerpt:  sentence.Text,
		Message:  fmt.Sprintf("superlative %q without citation or table reference", phrase),
	}}
}

// checkPlaceholders surfaces author-inserted "needs data" markers.
// Informational, never blocking.
func (v *Validator) checkPlaceholders(section, text string) []model.ValidationWarning {
	var warnings []model.ValidationWarning
	for _, span := range extract.PlaceholderMarkers(text) {
		warnings = append(warnings, model.ValidationWarning{
			Kind:     model.WarningPlaceholderMarker,
			Severity: model.WarningPlaceholderMarker.Severity(),
			Section:  section,
			Start:    span.Start,
			End:      span.End,
			Excerpt:  span.Text,
			Message:  "unresolved placeholder marker",
		})
	}
	return warnings
}
