// Package report renders finished run results as JSON, Markdown, and a
// terminal summary. Pure formatting: every number and warning comes from the
// run result unchanged.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/akorchak/refiner/internal/model"
	"github.com/akorchak/refiner/internal/score"
)

// Renderer formats run results. The weights are only used to rank
// deficiencies for the recommended-actions list.
type Renderer struct {
	agg     *score.Aggregator
	weights map[model.Criterion]float64
}

// NewRenderer creates a renderer using the given aggregation weights.
func NewRenderer(weights map[model.Criterion]float64) *Renderer {
	if weights == nil {
		weights = model.DefaultWeights()
	}
	return &Renderer{
		agg:     score.NewAggregator(weights),
		weights: weights,
	}
}

// RenderJSON writes the full run result as indented JSON.
func (r *Renderer) RenderJSON(res *model.RunResult, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

// RenderMarkdown writes the Markdown report to path.
func (r *Renderer) RenderMarkdown(res *model.RunResult, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(res)), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

// Markdown builds the full Markdown report.
func (r *Renderer) Markdown(res *model.RunResult) string {
	var b strings.Builder

	b.WriteString("# Quality Report\n\n")
	fmt.Fprintf(&b, "**Outcome:** %s after %d rewrite round(s)\n\n", res.Outcome, res.Iterations)
	fmt.Fprintf(&b, "**Overall:** %.3f — %s\n\n", res.Report.Overall, res.Report.Tier.Label())

	b.WriteString("## Criteria\n\n")
	b.WriteString("| Criterion | Weight | Score |\n|---|---|---|\n")
	for _, cs := range res.Report.Criteria {
		fmt.Fprintf(&b, "| %s | %.2f | %.3f |\n", cs.Criterion, r.weights[cs.Criterion], cs.Score)
	}
	b.WriteString("\n")

	for _, cs := range res.Report.Criteria {
		open := nonOKFindings(cs.Findings)
		if len(open) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", cs.Criterion)
		for _, f := range open {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Message)
		}
		b.WriteString("\n")
	}

	if len(res.Warnings) > 0 {
		b.WriteString("## Outstanding warnings\n\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- [%s] %s in %s: %s\n", w.Severity, w.Kind, w.Section, w.Message)
		}
		b.WriteString("\n")
	}

	if actions := r.NextActions(res, 5); len(actions) > 0 {
		b.WriteString("## Recommended next actions\n\n")
		for i, a := range actions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, a)
		}
		b.WriteString("\n")
	}

	if len(res.Trace) > 0 {
		b.WriteString("## Iteration trace\n\n")
		b.WriteString("| Iteration | Overall | Tier | Blocking | Rewritten |\n|---|---|---|---|---|\n")
		for _, snap := range res.Trace {
			fmt.Fprintf(&b, "| %d | %.3f | %s | %d | %s |\n",
				snap.Iteration, snap.Report.Overall, snap.Report.Tier,
				snap.BlockingWarnings, strings.Join(snap.RewrittenSections, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderSummary prints the terminal summary.
func (r *Renderer) RenderSummary(w io.Writer, res *model.RunResult) {
	glyph := "✗"
	if res.Outcome == model.OutcomeAccepted {
		glyph = "✓"
	}
	fmt.Fprintf(w, "%s %s — overall %.3f (%s), %d rewrite round(s)\n",
		glyph, res.Outcome, res.Report.Overall, res.Report.Tier.Label(), res.Iterations)

	for _, cs := range res.Report.Criteria {
		fmt.Fprintf(w, "  %-24s %.3f\n", cs.Criterion, cs.Score)
	}

	blocking := model.CountBlocking(res.Warnings)
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "  warnings: %d blocking, %d advisory\n",
			blocking, len(res.Warnings)-blocking)
	}

	if actions := r.NextActions(res, 3); len(actions) > 0 {
		fmt.Fprintln(w, "  next actions:")
		for _, a := range actions {
			fmt.Fprintf(w, "    - %s\n", a)
		}
	}
}

// NextActions phrases the top-ranked deficiencies and blocking warnings as
// concrete actions, most impactful first.
func (r *Renderer) NextActions(res *model.RunResult, limit int) []string {
	var actions []string

	if n := model.CountBlocking(res.Warnings); n > 0 {
		actions = append(actions,
			fmt.Sprintf("resolve %d blocking grounding warning(s) before anything else", n))
	}

	for _, criterion := range r.agg.RankDeficiencies(res.Report) {
		if len(actions) >= limit {
			break
		}
		if res.Report.Score(criterion) >= 1.0 {
			continue
		}
		if f, ok := firstOpenFinding(res.Report.FindingsFor(criterion)); ok {
			actions = append(actions, fmt.Sprintf("%s: %s", criterion.Section(), f.Message))
		}
	}

	if len(actions) > limit {
		actions = actions[:limit]
	}
	return actions
}

func nonOKFindings(findings []model.Finding) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Severity != model.FindingOK {
			out = append(out, f)
		}
	}
	return out
}

func firstOpenFinding(findings []model.Finding) (model.Finding, bool) {
	// Missing items first, then weak ones
	for _, f := range findings {
		if f.Severity == model.FindingMissing {
			return f, true
		}
	}
	for _, f := range findings {
		if f.Severity == model.FindingWarn {
			return f, true
		}
	}
	return model.Finding{}, false
}
