package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akorchak/refiner/internal/model"
)

func sampleResult() *model.RunResult {
	return &model.RunResult{
		Outcome:    model.OutcomeBudgetExhausted,
		Iterations: 2,
		Report: model.QualityReport{
			Criteria: []model.CriterionScore{
				{Criterion: model.CriterionContributions, Score: 0.75, Findings: []model.Finding{
					{Severity: model.FindingOK, Message: "contribution statement present"},
					{Severity: model.FindingMissing, Message: "no explicit novelty claim"},
				}},
				{Criterion: model.CriterionMethodology, Score: 0.8},
				{Criterion: model.CriterionExperiments, Score: 0.25, Findings: []model.Finding{
					{Severity: model.FindingMissing, Message: "no baseline comparisons"},
					{Severity: model.FindingWarn, Message: "dataset mentioned but count unclear, want 3 or more"},
				}},
				{Criterion: model.CriterionRelatedWork, Score: 1.0},
				{Criterion: model.CriterionWriting, Score: 0.9},
				{Criterion: model.CriterionEthics, Score: 0.6},
			},
			Overall: 0.564,
			Tier:    model.TierMajorRevision,
		},
		Warnings: []model.ValidationWarning{
			{Kind: model.WarningUnsupportedNumber, Severity: model.SeverityBlocking,
				Section: "experiments", Excerpt: "99.9%", Message: "number 99.9 not found in sanctioned numeric results"},
			{Kind: model.WarningPlaceholderMarker, Severity: model.SeverityAdvisory,
				Section: "writing", Excerpt: "[Citation Needed]", Message: "unresolved placeholder marker"},
		},
		Trace: []model.IterationSnapshot{
			{Iteration: 0, Report: model.QualityReport{Overall: 0.51, Tier: model.TierMajorRevision}, BlockingWarnings: 2},
			{Iteration: 1, Report: model.QualityReport{Overall: 0.564, Tier: model.TierMajorRevision}, BlockingWarnings: 1,
				RewrittenSections: []string{"experiments"}},
		},
	}
}

func TestRenderJSON_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := NewRenderer(nil)

	if err := r.RenderJSON(sampleResult(), path); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}

	var res model.RunResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if res.Outcome != model.OutcomeBudgetExhausted {
		t.Errorf("expected outcome preserved, got %s", res.Outcome)
	}
	if len(res.Trace) != 2 {
		t.Errorf("expected 2 trace entries, got %d", len(res.Trace))
	}
}

func TestMarkdown_Contents(t *testing.T) {
	r := NewRenderer(nil)
	md := r.Markdown(sampleResult())

	for _, want := range []string{
		"# Quality Report",
		"budget_exhausted after 2 rewrite round(s)",
		"0.564 — Major-revision tier",
		"| experiments | 0.30 | 0.250 |",
		"no baseline comparisons",
		"unsupported_number",
		"## Recommended next actions",
		"## Iteration trace",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q", want)
		}
	}

	// Satisfied findings are omitted from the per-criterion sections
	if strings.Contains(md, "contribution statement present") {
		t.Error("expected ok findings omitted")
	}
}

func TestNextActions_RankingAndBlockingFirst(t *testing.T) {
	r := NewRenderer(nil)
	actions := r.NextActions(sampleResult(), 5)

	if len(actions) == 0 {
		t.Fatal("expected actions")
	}
	if !strings.Contains(actions[0], "blocking") {
		t.Errorf("expected blocking-warning action first, got %q", actions[0])
	}
	// Experiments has the highest weighted loss, so it leads the rubric actions
	if !strings.Contains(actions[1], "experiments: no baseline comparisons") {
		t.Errorf("expected experiments action next, got %q", actions[1])
	}
}

func TestNextActions_Limit(t *testing.T) {
	r := NewRenderer(nil)
	actions := r.NextActions(sampleResult(), 2)
	if len(actions) > 2 {
		t.Errorf("expected at most 2 actions, got %d", len(actions))
	}
}

func TestNextActions_CleanResultEmpty(t *testing.T) {
	r := NewRenderer(nil)
	res := &model.RunResult{
		Outcome: model.OutcomeAccepted,
		Report: model.QualityReport{
			Criteria: []model.CriterionScore{
				{Criterion: model.CriterionExperiments, Score: 1.0},
			},
			Overall: 1.0,
			Tier:    model.TierSpotlight,
		},
	}
	if actions := r.NextActions(res, 5); len(actions) != 0 {
		t.Errorf("expected no actions for a clean result, got %v", actions)
	}
}

func TestRenderSummary_Writes(t *testing.T) {
	r := NewRenderer(nil)
	var b strings.Builder
	r.RenderSummary(&b, sampleResult())

	out := b.String()
	if !strings.Contains(out, "✗ budget_exhausted") {
		t.Errorf("expected outcome glyph line, got %q", out)
	}
	if !strings.Contains(out, "warnings: 1 blocking, 1 advisory") {
		t.Errorf("expected warning counts, got %q", out)
	}
}
