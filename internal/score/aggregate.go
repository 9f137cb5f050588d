// Package score combines per-criterion scores into an overall quality report
// and ranks criteria for remediation.
package score

import (
	"sort"

	"github.com/akorchak/refiner/internal/model"
)

// Aggregator combines criterion scores using fixed weights.
type Aggregator struct {
	weights map[model.Criterion]float64
}

// NewAggregator creates an aggregator. Weights are assumed validated by
// model.Config.Validate (sum to 1.0).
func NewAggregator(weights map[model.Criterion]float64) *Aggregator {
	if weights == nil {
		weights = model.DefaultWeights()
	}
	return &Aggregator{weights: weights}
}

// Aggregate produces a fresh QualityReport from per-criterion scores.
func (a *Aggregator) Aggregate(scores []model.CriterionScore) model.QualityReport {
	overall := 0.0
	for _, cs := range scores {
		overall += a.weights[cs.Criterion] * cs.Score
	}
	if overall > 1.0 {
		overall = 1.0
	}
	if overall < 0.0 {
		overall = 0.0
	}

	return model.QualityReport{
		Criteria: scores,
		Overall:  overall,
		Tier:     TierFor(overall),
	}
}

// TierFor maps an overall score to its quality tier. Bounds are inclusive at
// the lower edge: exactly 0.75 is Accept, exactly 0.85 is Spotlight.
func TierFor(overall float64) model.Tier {
	switch {
	case overall >= 0.85:
		return model.TierSpotlight
	case overall >= 0.75:
		return model.TierAccept
	case overall >= 0.65:
		return model.TierWorkshop
	default:
		return model.TierMajorRevision
	}
}

// tiebreakPriority is the fixed order for criteria with equal weighted
// deficiency, highest priority first.
var tiebreakPriority = []model.Criterion{
	model.CriterionExperiments,
	model.CriterionContributions,
	model.CriterionMethodology,
	model.CriterionRelatedWork,
	model.CriterionWriting,
	model.CriterionEthics,
}

func priorityIndex(c model.Criterion) int {
	for i, p := range tiebreakPriority {
		if p == c {
			return i
		}
	}
	return len(tiebreakPriority)
}

// RankDeficiencies sorts criteria by weight × (1 − score) descending: the
// loss-reduction priority, since improving a high-weight low-score criterion
// yields the largest overall gain per unit of rewrite effort.
func (a *Aggregator) RankDeficiencies(report model.QualityReport) []model.Criterion {
	type deficiency struct {
		criterion model.Criterion
		loss      float64
	}

	ranked := make([]deficiency, 0, len(report.Criteria))
	for _, cs := range report.Criteria {
		ranked = append(ranked, deficiency{
			criterion: cs.Criterion,
			loss:      a.weights[cs.Criterion] * (1.0 - cs.Score),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].loss != ranked[j].loss {
			return ranked[i].loss > ranked[j].loss
		}
		return priorityIndex(ranked[i].criterion) < priorityIndex(ranked[j].criterion)
	})

	out := make([]model.Criterion, len(ranked))
	for i, d := range ranked {
		out[i] = d.criterion
	}
	return out
}

// WeakestK returns the top-k deficiency-ranked criteria that still have
// room to improve (score below 1.0).
func (a *Aggregator) WeakestK(report model.QualityReport, k int) []model.Criterion {
	var out []model.Criterion
	for _, c := range a.RankDeficiencies(report) {
		if report.Score(c) >= 1.0 {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}
