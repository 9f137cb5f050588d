package model

// Criterion is one weighted quality dimension of a document
type Criterion string

const (
	CriterionContributions Criterion = "contributions"
	CriterionMethodology   Criterion = "methodology"
	CriterionExperiments   Criterion = "experiments"
	CriterionRelatedWork   Criterion = "related_work"
	CriterionWriting       Criterion = "writing"
	CriterionEthics        Criterion = "ethics_reproducibility"
)

// Criteria lists all criteria in canonical (document) order.
var Criteria = []Criterion{
	CriterionContributions,
	CriterionMethodology,
	CriterionExperiments,
	CriterionRelatedWork,
	CriterionWriting,
	CriterionEthics,
}

// Section returns the document section a criterion evaluates.
func (c Criterion) Section() string {
	if c == CriterionEthics {
		return "ethics"
	}
	return string(c)
}

// CriterionForSection returns the criterion evaluating the named section.
func CriterionForSection(section string) (Criterion, bool) {
	for _, c := range Criteria {
		if c.Section() == section {
			return c, true
		}
	}
	return "", false
}

// FindingSeverity classifies a single rubric checklist outcome
type FindingSeverity string

const (
	FindingOK      FindingSeverity = "ok"      // Requirement present and well-formed
	FindingWarn    FindingSeverity = "warn"    // Present but weak (shortfall noted in message)
	FindingMissing FindingSeverity = "missing" // Requirement absent
)

// Finding is one checklist outcome noted by the criterion scorer
type Finding struct {
	Severity FindingSeverity `json:"severity"`
	Message  string          `json:"message"`
	FixTag   string          `json:"fix_tag,omitempty"` // Suggested remediation tag for rewrite prompts
}

// CriterionScore is the result of evaluating one criterion
type CriterionScore struct {
	Criterion Criterion `json:"criterion"`
	Score     float64   `json:"score"` // Normalized to [0,1]
	Findings  []Finding `json:"findings"`
}

// Tier is the discrete quality label derived from the overall score
type Tier string

const (
	TierSpotlight     Tier = "spotlight"      // >= 0.85
	TierAccept        Tier = "accept"         // >= 0.75
	TierWorkshop      Tier = "workshop"       // >= 0.65
	TierMajorRevision Tier = "major_revision" // below 0.65
)

// Label returns the human-readable tier name.
func (t Tier) Label() string {
	switch t {
	case TierSpotlight:
		return "Spotlight tier"
	case TierAccept:
		return "Accept tier"
	case TierWorkshop:
		return "Workshop tier"
	default:
		return "Major-revision tier"
	}
}

// QualityReport aggregates per-criterion scores into an overall verdict.
// Created fresh each scoring pass and never mutated afterward.
type QualityReport struct {
	Criteria []CriterionScore `json:"criteria"`
	Overall  float64          `json:"overall"` // Weighted sum in [0,1]
	Tier     Tier             `json:"tier"`
}

// Score returns the score recorded for one criterion (0.0 if absent).
func (r *QualityReport) Score(c Criterion) float64 {
	for _, cs := range r.Criteria {
		if cs.Criterion == c {
			return cs.Score
		}
	}
	return 0.0
}

// FindingsFor returns the findings recorded for one criterion.
func (r *QualityReport) FindingsFor(c Criterion) []Finding {
	for _, cs := range r.Criteria {
		if cs.Criterion == c {
			return cs.Findings
		}
	}
	return nil
}

// WarningKind classifies a hallucination-validation warning
type WarningKind string

const (
	WarningUnsupportedNumber     WarningKind = "unsupported_number"
	WarningUnknownCitation       WarningKind = "unknown_citation"
	WarningUnprovenClaim         WarningKind = "unproven_claim"
	WarningUngroundedSuperlative WarningKind = "ungrounded_superlative"
	WarningPlaceholderMarker     WarningKind = "placeholder_marker"
)

// WarningSeverity indicates whether a warning gates final acceptance
type WarningSeverity string

const (
	SeverityBlocking WarningSeverity = "blocking" // Document must not be accepted
	SeverityAdvisory WarningSeverity = "advisory"
)

// Severity returns the fixed acceptance policy for a warning kind.
func (k WarningKind) Severity() WarningSeverity {
	switch k {
	case WarningUnsupportedNumber, WarningUnknownCitation, WarningUnprovenClaim:
		return SeverityBlocking
	default:
		return SeverityAdvisory
	}
}

// ValidationWarning flags a claim not traceable to the evidence store
type ValidationWarning struct {
	Kind     WarningKind     `json:"kind"`
	Severity WarningSeverity `json:"severity"`
	Section  string          `json:"section"`
	Start    int             `json:"start"` // Byte offset of the offending span within the section
	End      int             `json:"end"`
	Excerpt  string          `json:"excerpt"` // The offending sentence or token
	Message  string          `json:"message"`
}

// CountBlocking returns the number of blocking warnings in a set.
func CountBlocking(warnings []ValidationWarning) int {
	n := 0
	for _, w := range warnings {
		if w.Severity == SeverityBlocking {
			n++
		}
	}
	return n
}

// Outcome is the terminal state of an enhancement run
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	OutcomeCancelled       Outcome = "cancelled"
)

// IterationSnapshot records one loop iteration for the audit trace
type IterationSnapshot struct {
	Iteration         int           `json:"iteration"` // 0 = initial scoring pass
	Report            QualityReport `json:"report"`
	BlockingWarnings  int           `json:"blocking_warnings"`
	AdvisoryWarnings  int           `json:"advisory_warnings"`
	RewrittenSections []string      `json:"rewritten_sections,omitempty"`
	FailedSections    []string      `json:"failed_sections,omitempty"` // Rewrites that exhausted retries
}

// RunResult is everything a finished enhancement run returns to the caller.
type RunResult struct {
	Outcome    Outcome             `json:"outcome"`
	Document   *Document           `json:"document"`
	Report     QualityReport       `json:"report"`
	Warnings   []ValidationWarning `json:"warnings"` // Last validation pass
	Iterations int                 `json:"iterations"`
	Trace      []IterationSnapshot `json:"trace"`
}
