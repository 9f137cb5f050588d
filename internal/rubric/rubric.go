// Package rubric implements the criterion scorer: each quality criterion is an
// explicit checklist of structural requirements, each independently checkable
// by pattern inspection. The same section text always yields the same score.
package rubric

import (
	"fmt"
	"regexp"

	"github.com/akorchak/refiner/internal/extract"
	"github.com/akorchak/refiner/internal/model"
)

// Input is what a single check inspects.
type Input struct {
	Text      string
	Sentences []extract.Span
	Evidence  *model.EvidenceStore
}

// Check is one required structural element of a criterion.
type Check struct {
	Name   string
	FixTag string // Remediation tag carried into rewrite prompts
	Run    func(in Input) model.Finding
}

// Checklist returns the ordered checks for a criterion.
func Checklist(criterion model.Criterion) []Check {
	switch criterion {
	case model.CriterionContributions:
		return contributionsChecks
	case model.CriterionMethodology:
		return methodologyChecks
	case model.CriterionExperiments:
		return experimentsChecks
	case model.CriterionRelatedWork:
		return relatedWorkChecks
	case model.CriterionWriting:
		return writingChecks
	case model.CriterionEthics:
		return ethicsChecks
	default:
		return nil
	}
}

// presence builds a check that passes when the pattern matches anywhere in the
// section.
func presence(name, fixTag string, pattern *regexp.Regexp, missing string) Check {
	return Check{
		Name:   name,
		FixTag: fixTag,
		Run: func(in Input) model.Finding {
			if pattern.MatchString(in.Text) {
				return model.Finding{Severity: model.FindingOK, Message: name + " present"}
			}
			return model.Finding{Severity: model.FindingMissing, Message: missing, FixTag: fixTag}
		},
	}
}

var (
	contributionListPattern = regexp.MustCompile(`(?i)\b(our (key |main )?contributions?\b|we (make|present|summarize) the following|contributions are)`)
	noveltyPattern          = regexp.MustCompile(`(?i)\b(novel|new approach|first to|unlike prior|in contrast to (prior|existing))`)
	priorWorkPattern        = regexp.MustCompile(`(?i)\b(prior work|previous (work|methods|approaches)|existing (methods|approaches|work)|compared? (to|with))`)
	significancePattern     = regexp.MustCompile(`(?i)\b(significan\w*|impact\w*|important|enables|practical)`)

	theoreticalPattern  = regexp.MustCompile(`(?i)\b(theorem|lemma|proposition|we (show|prove)|justif\w*)`)
	mathPattern         = regexp.MustCompile(`\$[^$]+\$|\\begin\{(equation|align)\}|\\\[|[=≤≥±∑∏]`)
	pseudoCodePattern   = regexp.MustCompile(`(?i)(algorithm\s+\d|\\begin\{algorithm\}|pseudo-?code)`)
	complexityPattern   = regexp.MustCompile(`O\(|(?i:time complexity|space complexity|computational cost)`)
	implDetailPattern   = regexp.MustCompile(`(?i)\b(implement\w*|pytorch|tensorflow|jax|gpu|learning rate|batch size|optimizer|hyperparameters?)`)
	datasetCountPattern = regexp.MustCompile(`(?i)\b(\d+|three|four|five|six|several|multiple)\s+(benchmark\s+)?datasets`)
	datasetWordPattern  = regexp.MustCompile(`(?i)\bdatasets?\b`)
	multiRunPattern     = regexp.MustCompile(`±|\\pm|(?i:\b\d+\s+(random\s+)?(runs|seeds)\b|averaged over|standard deviation|\bstd\b)`)
	significantPattern  = regexp.MustCompile(`(?i)(p\s*[<=≤]\s*0?\.\d+|p-values?|confidence intervals?|\bCI\b|statistically significant)`)
	ablationPattern     = regexp.MustCompile(`(?i)\bablations?\b`)
	tablePattern        = regexp.MustCompile(`(?i)(\\begin\{table\}|\btable\s+\d|\n\s*\|.*\|)`)
	hyperSensPattern    = regexp.MustCompile(`(?i)\b(hyperparameter|sensitivity)\b`)
	runtimePattern      = regexp.MustCompile(`(?i)\b(runtime|wall-?clock|training time|inference time|throughput|memory (footprint|usage)|gpu-?hours?)\b`)

	criticalPattern    = regexp.MustCompile(`(?i)\b(however|limitation\w*|fails? to|does not (address|handle|scale)|in contrast|whereas|unlike)\b`)
	positioningPattern = regexp.MustCompile(`(?i)(our (work|approach|method) (differs|builds|extends)|unlike (these|prior|existing)|in contrast to)`)

	transitionPattern = regexp.MustCompile(`(?i)\b(however|therefore|moreover|furthermore|consequently|in addition|finally)\b`)

	limitationsPattern  = regexp.MustCompile(`(?i)\blimitations?\b`)
	broaderPattern      = regexp.MustCompile(`(?i)(broader impact|societal|ethic\w*)`)
	reproduciblePattern = regexp.MustCompile(`(?i)reproducib\w*`)
	availabilityPattern = regexp.MustCompile(`(?i)((code|data|implementation)[^.]{0,60}(available|released?|open-?sourced?)|github\.com)`)

	reproDetailPattern = regexp.MustCompile(`(?i)\b(seeds?|random seed|requirements\.txt|environment|exact (versions|settings)|reproducib\w*)\b`)
)

var contributionsChecks = []Check{
	presence("contribution statement", "add_contribution_list", contributionListPattern,
		"no explicit statement of contributions"),
	presence("novelty claim", "state_novelty", noveltyPattern,
		"no explicit novelty claim"),
	presence("prior-work comparison", "compare_prior_work", priorWorkPattern,
		"no comparison with prior work"),
	presence("significance discussion", "discuss_significance", significancePattern,
		"no significance or impact discussion"),
}

var methodologyChecks = []Check{
	presence("theoretical justification", "add_theory", theoreticalPattern,
		"no theoretical justification"),
	presence("mathematical formulation", "add_math", mathPattern,
		"no equations or formal notation"),
	presence("algorithm pseudo-code", "add_pseudocode", pseudoCodePattern,
		"no algorithm pseudo-code"),
	presence("complexity analysis", "add_complexity", complexityPattern,
		"no complexity analysis"),
	presence("implementation details", "add_impl_details", implDetailPattern,
		"no implementation details"),
}

const (
	requiredBaselines = 5
	requiredCitations = 20
)

var experimentsChecks = []Check{
	{
		Name:   "baseline comparisons",
		FixTag: "add_baselines",
		Run: func(in Input) model.Finding {
			n := len(extract.DistinctCitationKeys(in.Text))
			switch {
			case n >= requiredBaselines:
				return model.Finding{Severity: model.FindingOK,
					Message: fmt.Sprintf("%d cited baselines", n)}
			case n > 0:
				return model.Finding{Severity: model.FindingWarn, FixTag: "add_baselines",
					Message: fmt.Sprintf("only %d cited baselines, want %d or more (shortfall %d)", n, requiredBaselines, requiredBaselines-n)}
			default:
				return model.Finding{Severity: model.FindingMissing, FixTag: "add_baselines",
					Message: "no baseline comparisons"}
			}
		},
	},
	{
		Name:   "dataset coverage",
		FixTag: "add_datasets",
		Run: func(in Input) model.Finding {
			if datasetCountPattern.MatchString(in.Text) {
				return model.Finding{Severity: model.FindingOK, Message: "multiple datasets reported"}
			}
			if datasetWordPattern.MatchString(in.Text) {
				return model.Finding{Severity: model.FindingWarn, FixTag: "add_datasets",
					Message: "dataset mentioned but count unclear, want 3 or more"}
			}
			return model.Finding{Severity: model.FindingMissing, FixTag: "add_datasets",
				Message: "no dataset coverage"}
		},
	},
	presence("multiple-run statistics", "add_run_statistics", multiRunPattern,
		"no mean/spread statistics over multiple runs"),
	presence("significance indicator", "add_significance", significantPattern,
		"no statistical significance indicator"),
	{
		Name:   "ablation study",
		FixTag: "add_ablations",
		Run: func(in Input) model.Finding {
			hasAblation := ablationPattern.MatchString(in.Text)
			hasTable := tablePattern.MatchString(in.Text)
			switch {
			case hasAblation && hasTable:
				return model.Finding{Severity: model.FindingOK, Message: "ablation table present"}
			case hasAblation:
				return model.Finding{Severity: model.FindingWarn, FixTag: "add_ablations",
					Message: "ablations discussed but no ablation table"}
			default:
				return model.Finding{Severity: model.FindingMissing, FixTag: "add_ablations",
					Message: "no ablation study"}
			}
		},
	},
	presence("hyperparameter sensitivity", "add_sensitivity", hyperSensPattern,
		"no hyperparameter sensitivity analysis"),
	presence("runtime analysis", "add_runtime", runtimePattern,
		"no runtime or memory analysis"),
	{
		Name:   "evidence-backed results",
		FixTag: "ground_results",
		Run:    checkEvidenceBacking,
	},
}

var relatedWorkChecks = []Check{
	{
		Name:   "citation coverage",
		FixTag: "expand_coverage",
		Run: func(in Input) model.Finding {
			n := len(extract.DistinctCitationKeys(in.Text))
			switch {
			case n >= requiredCitations:
				return model.Finding{Severity: model.FindingOK,
					Message: fmt.Sprintf("%d distinct citations", n)}
			case n > 0:
				return model.Finding{Severity: model.FindingWarn, FixTag: "expand_coverage",
					Message: fmt.Sprintf("only %d distinct citations, want %d or more (shortfall %d)", n, requiredCitations, requiredCitations-n)}
			default:
				return model.Finding{Severity: model.FindingMissing, FixTag: "expand_coverage",
					Message: "no citations"}
			}
		},
	},
	presence("critical analysis", "add_critical_analysis", criticalPattern,
		"no critical analysis of cited work"),
	presence("positioning", "position_work", positioningPattern,
		"no explicit positioning against prior work"),
	presence("comparison table", "add_comparison_table", tablePattern,
		"no comparison table"),
}

var writingChecks = []Check{
	{
		Name:   "sentence discipline",
		FixTag: "shorten_sentences",
		Run: func(in Input) model.Finding {
			if len(in.Sentences) == 0 {
				return model.Finding{Severity: model.FindingMissing, FixTag: "shorten_sentences",
					Message: "no prose to evaluate"}
			}
			words := 0
			for _, s := range in.Sentences {
				words += extract.WordCount(s.Text)
			}
			avg := float64(words) / float64(len(in.Sentences))
			switch {
			case avg <= 30:
				return model.Finding{Severity: model.FindingOK,
					Message: fmt.Sprintf("average sentence length %.1f words", avg)}
			case avg <= 40:
				return model.Finding{Severity: model.FindingWarn, FixTag: "shorten_sentences",
					Message: fmt.Sprintf("average sentence length %.1f words, aim for 30 or fewer", avg)}
			default:
				return model.Finding{Severity: model.FindingMissing, FixTag: "shorten_sentences",
					Message: fmt.Sprintf("average sentence length %.1f words is unreadable", avg)}
			}
		},
	},
	presence("logical flow", "add_transitions", transitionPattern,
		"no transition cues between ideas"),
	{
		Name:   "no placeholder markers",
		FixTag: "resolve_placeholders",
		Run: func(in Input) model.Finding {
			if markers := extract.PlaceholderMarkers(in.Text); len(markers) > 0 {
				return model.Finding{Severity: model.FindingWarn, FixTag: "resolve_placeholders",
					Message: fmt.Sprintf("%d unresolved placeholder markers", len(markers))}
			}
			if in.Text == "" {
				return model.Finding{Severity: model.FindingMissing, FixTag: "resolve_placeholders",
					Message: "no prose to evaluate"}
			}
			return model.Finding{Severity: model.FindingOK, Message: "no placeholder markers"}
		},
	},
	{
		Name:   "paragraph structure",
		FixTag: "structure_paragraphs",
		Run: func(in Input) model.Finding {
			paragraphs := paragraphCount(in.Text)
			if paragraphs >= 2 {
				return model.Finding{Severity: model.FindingOK,
					Message: fmt.Sprintf("%d paragraphs", paragraphs)}
			}
			if paragraphs == 1 {
				return model.Finding{Severity: model.FindingWarn, FixTag: "structure_paragraphs",
					Message: "single paragraph, consider structuring the prose"}
			}
			return model.Finding{Severity: model.FindingMissing, FixTag: "structure_paragraphs",
				Message: "no paragraphs"}
		},
	},
}

var ethicsChecks = []Check{
	presence("limitations", "add_limitations", limitationsPattern,
		"no limitations discussion"),
	presence("broader impact", "add_broader_impact", broaderPattern,
		"no broader impact discussion"),
	presence("reproducibility statement", "add_reproducibility", reproduciblePattern,
		"no reproducibility statement"),
	presence("data/code availability", "state_availability", availabilityPattern,
		"no data or code availability statement"),
	presence("reproducibility details", "add_repro_details", reproDetailPattern,
		"no seeds, versions, or environment details"),
}

// checkEvidenceBacking verifies quantitative results in the experiments
// section against sanctioned evidence numbers.
func checkEvidenceBacking(in Input) model.Finding {
	tokens := extract.NumberTokens(in.Text)
	var metric []extract.NumberToken
	for _, tok := range tokens {
		if tok.Percent || tok.Decimal {
			metric = append(metric, tok)
		}
	}
	if len(metric) == 0 {
		return model.Finding{Severity: model.FindingMissing, FixTag: "ground_results",
			Message: "no quantitative results reported"}
	}
	if in.Evidence == nil {
		return model.Finding{Severity: model.FindingWarn, FixTag: "ground_results",
			Message: "quantitative results present but no evidence store to confirm them"}
	}

	backed := 0
	for _, tok := range metric {
		if in.Evidence.HasNumber(tok.Value) {
			backed++
		}
	}
	switch {
	case backed == len(metric):
		return model.Finding{Severity: model.FindingOK,
			Message: fmt.Sprintf("all %d quantitative results backed by evidence", backed)}
	case backed > 0:
		return model.Finding{Severity: model.FindingWarn, FixTag: "ground_results",
			Message: fmt.Sprintf("%d of %d quantitative results backed by evidence", backed, len(metric))}
	default:
		return model.Finding{Severity: model.FindingMissing, FixTag: "ground_results",
			Message: "no quantitative result matches the evidence store"}
	}
}

func paragraphCount(text string) int {
	count := 0
	for _, p := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if extract.WordCount(p) > 0 {
			count++
		}
	}
	return count
}
