package validate

import (
	"regexp"
	"strings"

	"github.com/akorchak/refiner/internal/extract"
)

// Claim-extraction patterns. These are the documented implementation choices
// left open by the validation contract:
//
//   - Citation tokens: bracketed/parenthesized author-year forms and LaTeX
//     \cite{...} keys (see extract.CitationTokens). Tokens normalize to
//     lowercase author+year; evidence keys match exactly or by prefix.
//   - Proof assertions: sentences containing one of the verbs below.
//   - Numeric claims: numbers in sentences that carry a metric word or a
//     percent sign; small integers (0-10), the common statistical constants,
//     and year-like values inside citation spans are below the triviality
//     threshold and never flagged.

var metricWords = []string{
	"accuracy", "precision", "recall", "f1", "auc", "bleu", "rouge",
	"perplexity", "error", "loss", "improvement", "gain", "speedup",
	"latency", "throughput", "score", "map", "iou", "p-value", "p <",
	"confidence", "std", "mean",
}

var proofPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwe prove\b`),
	regexp.MustCompile(`(?i)\bwe show that\b`),
	regexp.MustCompile(`(?i)\btheorem\s+\d+\s+(states|shows|implies)\b`),
	regexp.MustCompile(`(?i)\bis (formally |mathematically )?proven\b`),
	regexp.MustCompile(`(?i)\bguaranteed to converge\b`),
	regexp.MustCompile(`(?i)\bit follows that\b`),
	regexp.MustCompile(`(?i)\bby induction\b`),
}

var superlativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bstate[- ]of[- ]the[- ]art\b`),
	regexp.MustCompile(`(?i)\bthe best\b`),
	regexp.MustCompile(`(?i)\boutperforms? all\b`),
	regexp.MustCompile(`(?i)\bsurpass(es)? (all|every)\b`),
	regexp.MustCompile(`(?i)\bunprecedented\b`),
}

var tableRefPattern = regexp.MustCompile(`(?i)\b(table|figure|section)\s+\d`)

// Common statistical constants the original rubric treats as non-claims:
// confidence levels, alpha thresholds, and the canonical seed.
var commonValues = []float64{95, 99, 0.05, 0.01, 0.001, 42}

// hasMetricContext reports whether a sentence associates its numbers with a
// measured quantity.
func hasMetricContext(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, w := range metricWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// isTrivialNumber filters numbers too common to be claims: small integers
// (section and list numbers), statistical constants, and years inside
// citation tokens.
func isTrivialNumber(tok extract.NumberToken, inCitation bool) bool {
	if tok.Percent {
		return false // A percentage is always a claim
	}
	if inCitation && !tok.Decimal && tok.Value >= 1900 && tok.Value <= 2099 {
		return true
	}
	if !tok.Decimal && tok.Value >= 0 && tok.Value <= 10 {
		return true
	}
	for _, v := range commonValues {
		if tok.Value == v {
			return true
		}
	}
	return false
}

// assertsProof reports whether a sentence contains a proof-assertion verb.
func assertsProof(sentence string) bool {
	for _, p := range proofPatterns {
		if p.MatchString(sentence) {
			return true
		}
	}
	return false
}

// findSuperlative returns the first unqualified superlative phrase in a
// sentence, if any.
func findSuperlative(sentence string) (string, bool) {
	for _, p := range superlativePatterns {
		if m := p.FindString(sentence); m != "" {
			return m, true
		}
	}
	return "", false
}

// hasGroundingReference reports whether a sentence carries a citation or a
// table/figure reference that qualifies a superlative.
func hasGroundingReference(sentence string) bool {
	if len(extract.CitationTokens(sentence)) > 0 {
		return true
	}
	return tableRefPattern.MatchString(sentence)
}

// citationSpans returns the byte ranges of citation tokens in text, used to
// decide whether a number sits inside one.
func citationSpans(text string) [][2]int {
	toks := extract.CitationTokens(text)
	spans := make([][2]int, 0, len(toks))
	for _, t := range toks {
		spans = append(spans, [2]int{t.Start, t.End})
	}
	return spans
}

func insideAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start >= s[0] && end <= s[1] {
			return true
		}
	}
	return false
}
