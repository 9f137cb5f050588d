package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/akorchak/refiner/internal/enhance"
	"github.com/akorchak/refiner/internal/model"
	"github.com/akorchak/refiner/internal/report"
	"github.com/spf13/cobra"
)

var (
	scoreEvidence string
	scoreJSON     string
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <document-dir>",
	Short: "Score a document against the quality rubric (no rewrites)",
	Long: `Score runs a single rubric pass over the document and prints the
per-criterion breakdown, the weighted overall score, and its tier.
No LLM is contacted and the document is never modified.

Example:
  refiner score ./paper
  refiner score ./paper --evidence evidence.yaml --json scores.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreEvidence, "evidence", "", "evidence store file (optional, improves result backing checks)")
	scoreCmd.Flags().StringVar(&scoreJSON, "json", "", "output JSON path (optional)")
}

func runScore(cmd *cobra.Command, args []string) error {
	doc, err := model.LoadDocument(args[0])
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	evidence := &model.EvidenceStore{}
	if scoreEvidence != "" {
		evidence, err = model.LoadEvidence(scoreEvidence)
		if err != nil {
			return fmt.Errorf("load evidence: %w", err)
		}
	}

	cfg := model.DefaultConfig()
	cfg.Output.Verbose = verbose

	controller, err := enhance.NewController(cfg, evidence, nil)
	if err != nil {
		return err
	}
	rep := controller.ScoreDocument(doc)

	if scoreJSON != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(scoreJSON, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", scoreJSON)
		}
	}

	fmt.Printf("Overall: %.3f — %s\n", rep.Overall, rep.Tier.Label())
	for _, cs := range rep.Criteria {
		fmt.Printf("  %-24s %.3f\n", cs.Criterion, cs.Score)
	}

	renderer := report.NewRenderer(cfg.Weights)
	if actions := renderer.NextActions(&model.RunResult{Report: rep}, 5); len(actions) > 0 {
		fmt.Println("Next actions:")
		for _, a := range actions {
			fmt.Printf("  - %s\n", a)
		}
	}
	return nil
}
