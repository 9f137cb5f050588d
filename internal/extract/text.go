// Package extract provides the deterministic text scanners shared by the
// rubric scorer and the hallucination validator: sentence splitting, numeric
// and citation token recognition, and placeholder-marker detection.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Span is a sentence or token with its byte offsets in the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// SplitSentences splits text into sentence spans. Terminators are . ! ?
// followed by whitespace; offsets refer to the original text so callers can
// report exact warning locations.
func SplitSentences(text string) []Span {
	var spans []Span
	start := 0

	flush := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if len(trimmed) > 0 {
			lead := strings.Index(raw, trimmed)
			spans = append(spans, Span{
				Text:  trimmed,
				Start: start + lead,
				End:   start + lead + len(trimmed),
			})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '.' || c == '!' || c == '?' {
			// Avoid splitting on decimals like "94.7" and abbreviations glued
			// to the next word.
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n' {
				flush(i + 1)
			}
		}
	}
	if start < len(text) {
		flush(len(text))
	}
	return spans
}

// NumberToken is a numeric literal found in text.
type NumberToken struct {
	Raw     string
	Value   float64
	Start   int
	End     int
	Percent bool // Followed by a percent sign
	Decimal bool // Has a fractional part
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// NumberTokens finds all numeric literals in text.
func NumberTokens(text string) []NumberToken {
	var tokens []NumberToken
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		tok := NumberToken{
			Raw:     raw,
			Value:   value,
			Start:   loc[0],
			End:     loc[1],
			Decimal: strings.Contains(raw, "."),
		}
		if loc[1] < len(text) && (text[loc[1]] == '%' || strings.HasPrefix(text[loc[1]:], `\%`)) {
			tok.Percent = true
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// CitationToken is a citation-like reference found in text.
type CitationToken struct {
	Raw   string
	Key   string // Normalized author+year ("vaswani2017") or raw \cite key
	Start int
	End   int
}

// Citation patterns: bracketed and parenthesized author-year forms, plus
// LaTeX \cite{...} and its variants. The author+year forms normalize to
// lowercase author+year; \cite keys are used as written.
var (
	bracketCitePattern = regexp.MustCompile(`[\[(]([A-Z][A-Za-z-]+)(?:\s+(?:et\s+al\.?|and\s+[A-Z][A-Za-z-]+))?,?\s+(\d{4})[\])]`)
	latexCitePattern   = regexp.MustCompile(`\\cite[tp]?\{([^}]+)\}`)
)

// CitationTokens finds all citation-like tokens in text.
func CitationTokens(text string) []CitationToken {
	var tokens []CitationToken

	for _, m := range bracketCitePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		author := text[m[2]:m[3]]
		year := text[m[4]:m[5]]
		tokens = append(tokens, CitationToken{
			Raw:   raw,
			Key:   strings.ToLower(author) + year,
			Start: m[0],
			End:   m[1],
		})
	}

	for _, m := range latexCitePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		for _, key := range strings.Split(text[m[2]:m[3]], ",") {
			key = strings.ToLower(strings.TrimSpace(key))
			if key == "" {
				continue
			}
			tokens = append(tokens, CitationToken{
				Raw:   raw,
				Key:   key,
				Start: m[0],
				End:   m[1],
			})
		}
	}

	return tokens
}

// Placeholder markers an author leaves for data that does not exist yet.
// Matching is case-insensitive on the opening fragment.
var placeholderMarkers = []string{
	"[needs",
	"[to be",
	"[citation needed",
	"[citationneeded",
	"[verify:",
	"[requires",
	"[baseline results needed",
	"[statistical analysis pending",
}

// PlaceholderMarkers finds author-inserted "needs data" style markers.
func PlaceholderMarkers(text string) []Span {
	lower := strings.ToLower(text)
	var spans []Span
	for _, marker := range placeholderMarkers {
		from := 0
		for {
			idx := strings.Index(lower[from:], marker)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(marker)
			// Extend to the closing bracket when present nearby.
			if close := strings.IndexByte(text[end:], ']'); close >= 0 && close < 80 {
				end += close + 1
			}
			spans = append(spans, Span{Text: text[start:end], Start: start, End: end})
			from = end
		}
	}
	return spans
}

// WordCount returns the number of whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// DistinctCitationKeys returns the deduplicated citation keys in text.
func DistinctCitationKeys(text string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, tok := range CitationTokens(text) {
		if !seen[tok.Key] {
			seen[tok.Key] = true
			keys = append(keys, tok.Key)
		}
	}
	return keys
}
