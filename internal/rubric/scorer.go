package rubric

import (
	"github.com/akorchak/refiner/internal/extract"
	"github.com/akorchak/refiner/internal/model"
)

// Scorer evaluates one criterion at a time against its section text.
type Scorer struct{}

// NewScorer creates a new criterion scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates a criterion against section text. The score is the fraction
// of checklist items satisfied: ok counts 1, warn (present but weak) counts
// 0.5, missing counts 0, clamped to [0,1]. An empty section scores 0.0 with
// one missing finding per required item. Never errors: malformed input is
// recovered as findings, not propagated.
func (s *Scorer) Score(criterion model.Criterion, sectionText string, evidence *model.EvidenceStore) model.CriterionScore {
	checks := Checklist(criterion)
	result := model.CriterionScore{
		Criterion: criterion,
		Findings:  make([]model.Finding, 0, len(checks)),
	}
	if len(checks) == 0 {
		return result
	}

	if sectionText == "" {
		for _, check := range checks {
			result.Findings = append(result.Findings, model.Finding{
				Severity: model.FindingMissing,
				Message:  "section empty: " + check.Name + " absent",
				FixTag:   check.FixTag,
			})
		}
		return result
	}

	in := Input{
		Text:      sectionText,
		Sentences: extract.SplitSentences(sectionText),
		Evidence:  evidence,
	}

	earned := 0.0
	for _, check := range checks {
		finding := s.runCheck(check, in)
		result.Findings = append(result.Findings, finding)
		switch finding.Severity {
		case model.FindingOK:
			earned += 1.0
		case model.FindingWarn:
			earned += 0.5
		}
	}

	result.Score = earned / float64(len(checks))
	if result.Score > 1.0 {
		result.Score = 1.0
	}
	if result.Score < 0.0 {
		result.Score = 0.0
	}
	return result
}

// runCheck shields the scorer from a panicking check: a failure on malformed
// text is recovered as a diagnostic missing finding.
func (s *Scorer) runCheck(check Check, in Input) (finding model.Finding) {
	defer func() {
		if r := recover(); r != nil {
			finding = model.Finding{
				Severity: model.FindingMissing,
				Message:  check.Name + ": could not evaluate malformed section",
				FixTag:   check.FixTag,
			}
		}
	}()
	return check.Run(in)
}

// ScoreAll evaluates every criterion against its document section and returns
// the scores in canonical criterion order.
func (s *Scorer) ScoreAll(doc *model.Document, evidence *model.EvidenceStore) []model.CriterionScore {
	scores := make([]model.CriterionScore, 0, len(model.Criteria))
	for _, criterion := range model.Criteria {
		text, _ := doc.Get(criterion.Section())
		scores = append(scores, s.Score(criterion, text, evidence))
	}
	return scores
}
