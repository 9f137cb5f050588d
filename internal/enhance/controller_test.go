package enhance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akorchak/refiner/internal/llm"
	"github.com/akorchak/refiner/internal/model"
)

// mockProvider implements llm.Provider with a scripted rewrite function.
type mockProvider struct {
	mu      sync.Mutex
	calls   int
	rewrite func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error)
}

func (m *mockProvider) Name() string                         { return "mock" }
func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *mockProvider) Rewrite(ctx context.Context, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()
	return m.rewrite(n, req)
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// goodProse scores well on the writing criterion without triggering any
// validation warning: short sentences, transitions, no numbers.
const goodProse = "However, brevity matters. Moreover, clarity helps. The prose reads well."

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.RateLimit = 1000
	cfg.RateBurst = 100
	cfg.RewriteTimeout = 5 * time.Second
	return cfg
}

func newTestController(t *testing.T, cfg *model.Config, ev *model.EvidenceStore, provider llm.Provider) *Controller {
	t.Helper()
	c, err := NewController(cfg, ev, provider)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	// No real backoff sleeps in tests
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestNewController_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 1.5
	if _, err := NewController(cfg, nil, nil); err == nil {
		t.Error("expected error for out-of-range threshold")
	}

	cfg = testConfig()
	cfg.Weights[model.CriterionWriting] = 0.5 // sum != 1.0
	if _, err := NewController(cfg, nil, nil); err == nil {
		t.Error("expected error for weights not summing to 1")
	}
}

func TestRun_AcceptsImmediatelyWhenPassing(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 0.01

	doc := model.NewDocument()
	doc.Set("writing", goodProse)

	c := newTestController(t, cfg, &model.EvidenceStore{}, nil)
	res, err := c.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Outcome != model.OutcomeAccepted {
		t.Errorf("expected accepted, got %s", res.Outcome)
	}
	if res.Iterations != 0 {
		t.Errorf("expected 0 iterations, got %d", res.Iterations)
	}
	if len(res.Trace) != 1 {
		t.Errorf("expected 1 trace entry, got %d", len(res.Trace))
	}
}

func TestRun_NeverExceedsMaxIterations(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 1.0 // unreachable
	cfg.MaxIterations = 3

	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			return &llm.RewriteResponse{Text: "Fine."}, nil
		},
	}

	doc := model.NewDocument()
	doc.Set("writing", goodProse)

	c := newTestController(t, cfg, &model.EvidenceStore{}, provider)
	res, err := c.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Outcome != model.OutcomeBudgetExhausted {
		t.Errorf("expected budget_exhausted, got %s", res.Outcome)
	}
	if res.Iterations != 3 {
		t.Errorf("expected exactly 3 iterations, got %d", res.Iterations)
	}
	if len(res.Trace) != 4 {
		t.Errorf("expected 4 trace entries (initial + 3 rounds), got %d", len(res.Trace))
	}
}

func TestRun_RewriteResolvingBlockingWarningAccepts(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 0.01

	doc := model.NewDocument()
	doc.Set("experiments", "We achieve 99.9% accuracy on the benchmark.")
	doc.Set("writing", goodProse)

	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			return &llm.RewriteResponse{Text: "The method is straightforward."}, nil
		},
	}

	// Empty evidence store: the 99.9% claim is a blocking warning despite
	// the overall score clearing the threshold.
	c := newTestController(t, cfg, &model.EvidenceStore{}, provider)
	res, err := c.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Outcome != model.OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", res.Outcome)
	}
	if res.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", res.Iterations)
	}
	if res.Trace[0].BlockingWarnings != 1 {
		t.Errorf("expected 1 blocking warning initially, got %d", res.Trace[0].BlockingWarnings)
	}
	if res.Trace[1].BlockingWarnings != 0 {
		t.Errorf("expected 0 blocking warnings after rewrite, got %d", res.Trace[1].BlockingWarnings)
	}

	// Targets were the two weakest criteria; experiments carries the
	// blocking warning and is also among them.
	got := res.Trace[1].RewrittenSections
	if len(got) != 2 || got[0] != "contributions" || got[1] != "experiments" {
		t.Errorf("expected rewritten [contributions experiments], got %v", got)
	}
	if provider.callCount() != 2 {
		t.Errorf("expected 2 rewrite calls, got %d", provider.callCount())
	}
}

func TestRun_BlockingWarningGatesAcceptance(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 0.01
	cfg.MaxIterations = 0 // no rewrites possible

	doc := model.NewDocument()
	doc.Set("experiments", "We achieve 99.9% accuracy on the benchmark.")
	doc.Set("writing", goodProse)

	c := newTestController(t, cfg, &model.EvidenceStore{}, nil)
	res, err := c.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Outcome != model.OutcomeBudgetExhausted {
		t.Errorf("expected budget_exhausted (blocking warning gates), got %s", res.Outcome)
	}
	if model.CountBlocking(res.Warnings) == 0 {
		t.Error("expected blocking warnings in result")
	}
}

func TestRun_ReturnsBestVersionNotLast(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 0.9 // unreachable
	cfg.MaxIterations = 1
	cfg.TopK = 6 // target everything with room to improve

	doc := model.NewDocument()
	doc.Set("writing", goodProse)

	// Every rewrite makes things strictly worse.
	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			return &llm.RewriteResponse{Text: "Fine."}, nil
		},
	}

	c := newTestController(t, cfg, &model.EvidenceStore{}, provider)
	res, err := c.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Outcome != model.OutcomeBudgetExhausted {
		t.Fatalf("expected budget_exhausted, got %s", res.Outcome)
	}
	if len(res.Trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(res.Trace))
	}
	if res.Trace[1].Report.Overall >= res.Trace[0].Report.Overall {
		t.Fatalf("test setup broken: rewrite did not regress the score (%.4f vs %.4f)",
			res.Trace[1].Report.Overall, res.Trace[0].Report.Overall)
	}

	if res.Report.Overall != res.Trace[0].Report.Overall {
		t.Errorf("expected best (initial) report returned, got overall %.4f", res.Report.Overall)
	}
	text, _ := res.Document.Get("writing")
	if text != goodProse {
		t.Errorf("expected best document version returned, got writing = %q", text)
	}
}

func TestRun_CancelledContextReturnsBestSoFar(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 1.0

	ctx, cancel := context.WithCancel(context.Background())
	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			cancel()
			return nil, errors.New("connection reset")
		},
	}

	doc := model.NewDocument()
	doc.Set("writing", goodProse)

	c := newTestController(t, cfg, &model.EvidenceStore{}, provider)
	res, err := c.Run(ctx, doc)

	if err == nil {
		t.Error("expected context error from cancelled run")
	}
	if res == nil {
		t.Fatal("expected best-so-far result despite cancellation")
	}
	if res.Outcome != model.OutcomeCancelled {
		t.Errorf("expected cancelled, got %s", res.Outcome)
	}
	if res.Document == nil {
		t.Error("expected document in cancelled result")
	}
	if len(res.Trace) == 0 {
		t.Error("expected initial scoring pass in trace")
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestController(t, testConfig(), &model.EvidenceStore{}, nil)
	res, err := c.Run(ctx, model.NewDocument())

	if err == nil {
		t.Error("expected context error")
	}
	if res == nil || res.Outcome != model.OutcomeCancelled {
		t.Fatalf("expected cancelled result, got %+v", res)
	}
}

func TestRewriteJob_RetriesThenSucceeds(t *testing.T) {
	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			if call < 3 {
				return nil, errors.New("transient failure")
			}
			return &llm.RewriteResponse{Text: "All good."}, nil
		},
	}

	c := newTestController(t, testConfig(), &model.EvidenceStore{}, provider)
	job := &rewriteJob{c: c, ctx: context.Background(), req: llm.RewriteRequest{Section: "writing", Text: "old"}}

	res := job.Execute(context.Background()).(*rewriteResult)
	if res.err != nil {
		t.Fatalf("expected success on third attempt, got %v", res.err)
	}
	if res.text != "All good." {
		t.Errorf("expected rewritten text, got %q", res.text)
	}
	if provider.callCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", provider.callCount())
	}
}

func TestRewriteJob_GroundingLeakExhaustsRetries(t *testing.T) {
	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			return &llm.RewriteResponse{Text: "We hit 88.8% accuracy."}, nil
		},
	}

	cfg := testConfig()
	c := newTestController(t, cfg, &model.EvidenceStore{}, provider)
	job := &rewriteJob{c: c, ctx: context.Background(), req: llm.RewriteRequest{
		Section:  "experiments",
		Text:     "old",
		Evidence: model.EvidenceSlice{}, // nothing sanctioned
	}}

	res := job.Execute(context.Background()).(*rewriteResult)
	if res.err == nil {
		t.Fatal("expected failure for fabricated number")
	}
	if !strings.Contains(res.err.Error(), "unsanctioned") {
		t.Errorf("expected unsanctioned-values error, got %v", res.err)
	}
	if provider.callCount() != cfg.RewriteRetries {
		t.Errorf("expected %d attempts, got %d", cfg.RewriteRetries, provider.callCount())
	}
}

func TestRewriteRound_FailedSectionKeepsText(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 1.0
	cfg.MaxIterations = 1

	provider := &mockProvider{
		rewrite: func(call int, req llm.RewriteRequest) (*llm.RewriteResponse, error) {
			return nil, errors.New("provider down")
		},
	}

	doc := model.NewDocument()
	doc.Set("writing", goodProse)

	c := newTestController(t, cfg, &model.EvidenceStore{}, provider)
	res, err := c.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Outcome != model.OutcomeBudgetExhausted {
		t.Fatalf("expected budget_exhausted, got %s", res.Outcome)
	}
	if len(res.Trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(res.Trace))
	}
	if len(res.Trace[1].FailedSections) == 0 {
		t.Error("expected failed sections recorded")
	}
	if len(res.Trace[1].RewrittenSections) != 0 {
		t.Errorf("expected no rewritten sections, got %v", res.Trace[1].RewrittenSections)
	}
	text, _ := res.Document.Get("writing")
	if text != goodProse {
		t.Errorf("expected original text kept after failed rewrites, got %q", text)
	}
}

func TestTargets_WeakestPlusBlockingSections(t *testing.T) {
	cfg := testConfig()
	cfg.TopK = 1

	c := newTestController(t, cfg, &model.EvidenceStore{}, nil)

	report := model.QualityReport{
		Criteria: []model.CriterionScore{
			{Criterion: model.CriterionContributions, Score: 0.9},
			{Criterion: model.CriterionMethodology, Score: 0.9},
			{Criterion: model.CriterionExperiments, Score: 0.4},
			{Criterion: model.CriterionRelatedWork, Score: 0.9},
			{Criterion: model.CriterionWriting, Score: 0.9},
			{Criterion: model.CriterionEthics, Score: 0.9},
		},
	}
	warnings := []model.ValidationWarning{
		{Kind: model.WarningUnknownCitation, Severity: model.SeverityBlocking, Section: "ethics"},
		{Kind: model.WarningPlaceholderMarker, Severity: model.SeverityAdvisory, Section: "writing"},
	}

	targets := c.targets(report, warnings)
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %v", targets)
	}
	if targets[0] != model.CriterionExperiments || targets[1] != model.CriterionEthics {
		t.Errorf("expected [experiments ethics_reproducibility], got %v", targets)
	}
}

func TestScoreDocument_SinglePass(t *testing.T) {
	doc := model.NewDocument()
	doc.Set("writing", goodProse)

	c := newTestController(t, testConfig(), &model.EvidenceStore{}, nil)
	report := c.ScoreDocument(doc)

	if len(report.Criteria) != len(model.Criteria) {
		t.Fatalf("expected %d criterion scores, got %d", len(model.Criteria), len(report.Criteria))
	}
	if report.Score(model.CriterionWriting) <= 0 {
		t.Error("expected nonzero writing score")
	}
	if report.Overall <= 0 || report.Overall > 1 {
		t.Errorf("overall %v out of range", report.Overall)
	}
}

func TestValidateDocument_SinglePass(t *testing.T) {
	doc := model.NewDocument()
	doc.Set("experiments", "We achieve 99.9% accuracy on the benchmark.")

	c := newTestController(t, testConfig(), &model.EvidenceStore{}, nil)
	warnings := c.ValidateDocument(doc)

	if model.CountBlocking(warnings) != 1 {
		t.Errorf("expected 1 blocking warning, got %v", warnings)
	}
}
