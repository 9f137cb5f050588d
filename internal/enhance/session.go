// Package enhance runs the bounded improvement loop: score, validate, decide,
// rewrite, repeat. The loop terminates on acceptance or when the iteration
// budget runs out, and always returns the best document version seen.
package enhance

import (
	"github.com/akorchak/refiner/internal/model"
)

// snapshot is one retained document version with its evaluation results.
type snapshot struct {
	doc      *model.Document
	report   model.QualityReport
	warnings []model.ValidationWarning
	blocking int
	valid    bool
}

// betterThan reports whether s should replace prev as the best version seen.
// A version with no blocking warnings always beats one with blocking warnings;
// within the same class, higher overall score wins.
func (s *snapshot) betterThan(prev *snapshot) bool {
	if !prev.valid {
		return true
	}
	if (s.blocking == 0) != (prev.blocking == 0) {
		return s.blocking == 0
	}
	return s.report.Overall > prev.report.Overall
}

// session carries the mutable state of one enhancement run. Sessions are
// single-use and not safe for concurrent access; the controller owns one per
// Run call.
type session struct {
	doc       *model.Document // Working copy, mutated by rewrites
	iteration int             // Completed rewrite rounds
	trace     []model.IterationSnapshot
	best      snapshot
	last      snapshot
}

func newSession(doc *model.Document) *session {
	return &session{doc: doc}
}

// record notes the evaluation results of the current scoring pass and updates
// the best-version snapshot. rewritten and failed name the sections touched by
// the rewrite round that preceded this pass (nil on the initial pass).
func (s *session) record(report model.QualityReport, warnings []model.ValidationWarning, rewritten, failed []string) {
	blocking := model.CountBlocking(warnings)

	s.trace = append(s.trace, model.IterationSnapshot{
		Iteration:         s.iteration,
		Report:            report,
		BlockingWarnings:  blocking,
		AdvisoryWarnings:  len(warnings) - blocking,
		RewrittenSections: rewritten,
		FailedSections:    failed,
	})

	s.last = snapshot{
		doc:      s.doc.Clone(),
		report:   report,
		warnings: warnings,
		blocking: blocking,
		valid:    true,
	}
	if s.last.betterThan(&s.best) {
		s.best = s.last
	}
}

// result assembles the terminal RunResult. Acceptance returns the current
// document; every other outcome returns the best version seen so the caller
// never loses ground to a rewrite that made things worse.
func (s *session) result(outcome model.Outcome) *model.RunResult {
	res := &model.RunResult{
		Outcome:    outcome,
		Iterations: s.iteration,
		Trace:      s.trace,
	}

	chosen := &s.best
	if outcome == model.OutcomeAccepted || !s.best.valid {
		chosen = &s.last
	}
	if !chosen.valid {
		// Terminal before the first scoring pass completed (early cancellation).
		res.Document = s.doc.Clone()
		return res
	}

	res.Document = chosen.doc
	res.Report = chosen.report
	res.Warnings = chosen.warnings
	return res
}
