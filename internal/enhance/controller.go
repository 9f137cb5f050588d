package enhance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/akorchak/refiner/internal/cache"
	"github.com/akorchak/refiner/internal/extract"
	"github.com/akorchak/refiner/internal/llm"
	"github.com/akorchak/refiner/internal/model"
	"github.com/akorchak/refiner/internal/rubric"
	"github.com/akorchak/refiner/internal/score"
	"github.com/akorchak/refiner/internal/validate"
	"github.com/akorchak/refiner/internal/worker"
)

// State names one phase of the enhancement loop.
type State string

const (
	StateScoring    State = "scoring"
	StateValidating State = "validating"
	StateDeciding   State = "deciding"
	StateRewriting  State = "rewriting"
)

// retryBaseDelay is the first backoff step between failed rewrite attempts.
// Each subsequent attempt doubles it.
const retryBaseDelay = 500 * time.Millisecond

// Controller orchestrates the complete enhancement loop
type Controller struct {
	cfg       *model.Config
	evidence  *model.EvidenceStore
	scorer    *rubric.Scorer
	agg       *score.Aggregator
	validator *validate.Validator
	provider  llm.Provider // nil when generation is disabled
	limiter   *worker.Limiter

	// sleep is the backoff wait between retry attempts. Tests inject a no-op.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a controller with the given configuration. An invalid
// configuration is the one fatal error class: nothing runs until it is fixed.
// provider may be nil, in which case the loop can only score and validate.
func NewController(cfg *model.Config, evidence *model.EvidenceStore, provider llm.Provider) (*Controller, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if evidence == nil {
		evidence = &model.EvidenceStore{}
	}

	var memo cache.Cache
	if cfg.Cache.Enabled {
		memo = cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL)
	}

	return &Controller{
		cfg:       cfg,
		evidence:  evidence,
		scorer:    rubric.NewScorer(),
		agg:       score.NewAggregator(cfg.Weights),
		validator: validate.NewValidator(evidence, memo, cfg.Cache.TTL),
		provider:  provider,
		limiter:   worker.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		sleep:     sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Run executes the enhancement loop on a copy of doc until the document is
// accepted, the iteration budget is exhausted, or ctx is cancelled. The input
// document is never mutated. Cancellation returns the best version seen so
// far together with ctx.Err().
func (c *Controller) Run(ctx context.Context, doc *model.Document) (*model.RunResult, error) {
	sess := newSession(c.normalize(doc))
	state := StateScoring

	var report model.QualityReport
	var warnings []model.ValidationWarning
	var rewritten, failed []string

	for {
		if err := ctx.Err(); err != nil {
			return sess.result(model.OutcomeCancelled), err
		}

		switch state {
		case StateScoring:
			c.logf("⚙️  Scoring pass %d...\n", sess.iteration)
			scores := c.scoreAll(sess.doc)
			report = c.agg.Aggregate(scores)
			state = StateValidating

		case StateValidating:
			warnings = c.validator.Validate(sess.doc)
			sess.record(report, warnings, rewritten, failed)
			rewritten, failed = nil, nil
			c.logf("   overall %.3f (%s), %d blocking / %d advisory warnings\n",
				report.Overall, report.Tier, model.CountBlocking(warnings),
				len(warnings)-model.CountBlocking(warnings))
			state = StateDeciding

		case StateDeciding:
			blocking := model.CountBlocking(warnings)
			if report.Overall >= c.cfg.Threshold && blocking == 0 {
				c.logf("✓ Accepted after %d rewrite round(s)\n", sess.iteration)
				return sess.result(model.OutcomeAccepted), nil
			}
			if sess.iteration >= c.cfg.MaxIterations || c.provider == nil {
				c.logf("✗ Budget exhausted after %d rewrite round(s)\n", sess.iteration)
				return sess.result(model.OutcomeBudgetExhausted), nil
			}
			state = StateRewriting

		case StateRewriting:
			// Re-check before committing to external calls; cancellation here
			// must not trigger a rewrite round.
			if err := ctx.Err(); err != nil {
				return sess.result(model.OutcomeCancelled), err
			}
			targets := c.targets(report, warnings)
			c.logf("⚙️  Rewriting %d section(s): %s\n", len(targets), joinSections(targets))
			rewritten, failed = c.rewriteRound(ctx, sess.doc, report, warnings, targets)
			sess.iteration++
			state = StateScoring
		}
	}
}

// ScoreDocument runs a single scoring pass without the loop.
func (c *Controller) ScoreDocument(doc *model.Document) model.QualityReport {
	norm := c.normalize(doc)
	return c.agg.Aggregate(c.scoreAll(norm))
}

// ValidateDocument runs a single validation pass without the loop.
func (c *Controller) ValidateDocument(doc *model.Document) []model.ValidationWarning {
	return c.validator.Validate(c.normalize(doc))
}

// normalize clones the document and strips HTML markup from any section that
// carries it. Scoring and validation always see plain text.
func (c *Controller) normalize(doc *model.Document) *model.Document {
	work := doc.Clone()
	for _, name := range work.Names() {
		text, _ := work.Get(name)
		if extract.LooksLikeHTML(text) {
			if plain, err := extract.StripHTML(text); err == nil {
				work.Set(name, plain)
			}
		}
	}
	return work
}

// scoreJob evaluates one criterion against its section text.
type scoreJob struct {
	criterion model.Criterion
	text      string
	scorer    *rubric.Scorer
	evidence  *model.EvidenceStore
}

type scoreResult struct {
	score model.CriterionScore
}

func (r *scoreResult) GetError() error { return nil }

func (j *scoreJob) Execute(ctx context.Context) worker.Result {
	return &scoreResult{score: j.scorer.Score(j.criterion, j.text, j.evidence)}
}

// scoreAll evaluates all criteria concurrently and returns scores in
// canonical order regardless of completion order.
func (c *Controller) scoreAll(doc *model.Document) []model.CriterionScore {
	pool := worker.NewPool(c.cfg.Concurrency)
	pool.Start()

	for _, criterion := range model.Criteria {
		text, _ := doc.Get(criterion.Section())
		pool.Submit(&scoreJob{
			criterion: criterion,
			text:      text,
			scorer:    c.scorer,
			evidence:  c.evidence,
		})
	}

	byCriterion := make(map[model.Criterion]model.CriterionScore, len(model.Criteria))
	for _, res := range pool.Wait() {
		if sr, ok := res.(*scoreResult); ok {
			byCriterion[sr.score.Criterion] = sr.score
		}
	}

	scores := make([]model.CriterionScore, 0, len(model.Criteria))
	for _, criterion := range model.Criteria {
		scores = append(scores, byCriterion[criterion])
	}
	return scores
}

// targets selects the criteria to rewrite this round: the weakest TopK by
// weighted loss, plus every section holding a blocking warning. Returned in
// canonical order, deduplicated.
func (c *Controller) targets(report model.QualityReport, warnings []model.ValidationWarning) []model.Criterion {
	selected := make(map[model.Criterion]bool)

	for _, criterion := range c.agg.WeakestK(report, c.cfg.TopK) {
		selected[criterion] = true
	}
	for _, w := range warnings {
		if w.Severity != model.SeverityBlocking {
			continue
		}
		if criterion, ok := model.CriterionForSection(w.Section); ok {
			selected[criterion] = true
		}
	}

	var targets []model.Criterion
	for _, criterion := range model.Criteria {
		if selected[criterion] {
			targets = append(targets, criterion)
		}
	}
	return targets
}

// rewriteJob runs one section rewrite with retries, rate limiting, and a
// per-call timeout. It carries the run context because the pool hands jobs
// its own internal context.
type rewriteJob struct {
	c   *Controller
	ctx context.Context
	req llm.RewriteRequest
}

type rewriteResult struct {
	section string
	text    string
	err     error
}

func (r *rewriteResult) GetError() error { return r.err }

func (j *rewriteJob) Execute(context.Context) worker.Result {
	ctx := j.ctx
	var lastErr error

	for attempt := 0; attempt < j.c.cfg.RewriteRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			if err := j.c.sleep(ctx, delay); err != nil {
				return &rewriteResult{section: j.req.Section, err: err}
			}
		}
		if err := j.c.limiter.Wait(ctx, j.c.provider.Name()); err != nil {
			return &rewriteResult{section: j.req.Section, err: err}
		}

		callCtx, cancel := context.WithTimeout(ctx, j.c.cfg.RewriteTimeout)
		resp, err := j.c.provider.Rewrite(callCtx, j.req)
		cancel()

		if err != nil {
			lastErr = err
			continue
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			lastErr = errors.New("empty response")
			continue
		}
		if leaks := llm.CheckGrounding(text, j.req.Evidence); len(leaks) > 0 {
			lastErr = fmt.Errorf("response contains unsanctioned values %v", leaks)
			continue
		}
		return &rewriteResult{section: j.req.Section, text: text}
	}

	return &rewriteResult{
		section: j.req.Section,
		err: fmt.Errorf("rewrite %s: %d attempt(s) failed: %w",
			j.req.Section, j.c.cfg.RewriteRetries, lastErr),
	}
}

// rewriteRound rewrites the target sections concurrently and applies the
// successful results to doc. A failed section keeps its current text; the
// round never aborts the run.
func (c *Controller) rewriteRound(ctx context.Context, doc *model.Document, report model.QualityReport, warnings []model.ValidationWarning, targets []model.Criterion) (rewritten, failed []string) {
	if len(targets) == 0 {
		return nil, nil
	}

	workers := c.cfg.Concurrency
	if len(targets) < workers {
		workers = len(targets)
	}
	pool := worker.NewPool(workers)
	pool.Start()

	for _, criterion := range targets {
		section := criterion.Section()
		text, _ := doc.Get(section)
		pool.Submit(&rewriteJob{
			c:   c,
			ctx: ctx,
			req: llm.RewriteRequest{
				Section:   section,
				Text:      text,
				Findings:  report.FindingsFor(criterion),
				Warnings:  warningsIn(warnings, section),
				Evidence:  c.evidence.SliceFor(section),
				Model:     c.cfg.LLM.Model,
				MaxTokens: c.cfg.LLM.MaxTokens,
			},
		})
	}

	results := pool.Wait()
	sort.Slice(results, func(i, j int) bool {
		return results[i].(*rewriteResult).section < results[j].(*rewriteResult).section
	})

	for _, res := range results {
		rr := res.(*rewriteResult)
		if rr.err != nil {
			c.logf("✗ %v\n", rr.err)
			failed = append(failed, rr.section)
			continue
		}
		doc.Set(rr.section, rr.text)
		rewritten = append(rewritten, rr.section)
	}
	return rewritten, failed
}

// warningsIn returns the warnings located in one section.
func warningsIn(warnings []model.ValidationWarning, section string) []model.ValidationWarning {
	var out []model.ValidationWarning
	for _, w := range warnings {
		if w.Section == section {
			out = append(out, w)
		}
	}
	return out
}

func joinSections(targets []model.Criterion) string {
	names := make([]string, len(targets))
	for i, criterion := range targets {
		names[i] = criterion.Section()
	}
	return strings.Join(names, ", ")
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
