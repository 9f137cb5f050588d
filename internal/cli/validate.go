package cli

import (
	"fmt"

	"github.com/akorchak/refiner/internal/enhance"
	"github.com/akorchak/refiner/internal/model"
	"github.com/spf13/cobra"
)

var validateEvidence string

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <document-dir>",
	Short: "Check every claim in a document against the evidence store",
	Long: `Validate scans the document for numbers, citations, theorem claims,
superlatives, and placeholder markers, and flags everything not
traceable to the evidence store. Blocking warnings make the command
exit non-zero, which makes it usable as a CI gate.

Example:
  refiner validate ./paper --evidence evidence.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateEvidence, "evidence", "", "evidence store file (YAML or JSON, required)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateEvidence == "" {
		return fmt.Errorf("--evidence is required")
	}

	doc, err := model.LoadDocument(args[0])
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	evidence, err := model.LoadEvidence(validateEvidence)
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}

	cfg := model.DefaultConfig()
	cfg.Output.Verbose = verbose

	controller, err := enhance.NewController(cfg, evidence, nil)
	if err != nil {
		return err
	}
	warnings := controller.ValidateDocument(doc)

	if len(warnings) == 0 {
		fmt.Println("✓ No warnings: every claim is traceable to the evidence store")
		return nil
	}

	for _, w := range warnings {
		fmt.Printf("[%s] %s in %s @ %d: %s\n", w.Severity, w.Kind, w.Section, w.Start, w.Message)
	}

	blocking := model.CountBlocking(warnings)
	fmt.Printf("%d warning(s): %d blocking, %d advisory\n", len(warnings), blocking, len(warnings)-blocking)
	if blocking > 0 {
		return fmt.Errorf("%d blocking warning(s)", blocking)
	}
	return nil
}
