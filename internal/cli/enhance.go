package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/akorchak/refiner/internal/enhance"
	"github.com/akorchak/refiner/internal/llm"
	"github.com/akorchak/refiner/internal/model"
	"github.com/akorchak/refiner/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	evidencePath  string
	outJSON       string
	outMD         string
	runTimeout    time.Duration
	threshold     float64
	maxIterations int
	topK          int
	concurrency   int
	noCache       bool
	llmProvider   string
	llmModel      string
)

// enhanceCmd represents the enhance command
var enhanceCmd = &cobra.Command{
	Use:   "enhance <document-dir>",
	Short: "Run the full enhancement loop on a document",
	Long: `Enhance scores the document, validates its claims against the evidence
store, and rewrites the weakest sections through the configured LLM until
the document is accepted or the iteration budget is exhausted.

The document directory holds one file per section (contributions.md,
methodology.md, experiments.md, related_work.md, writing.md, ethics.md).
The evidence store is a YAML or JSON file of sanctioned numbers,
citations, and theorems: rewrites may not use anything else.

Example:
  refiner enhance ./paper --evidence evidence.yaml --llm-provider openai
  refiner enhance ./paper --evidence evidence.yaml --threshold 0.85 --json out.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnhance,
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	// Inputs
	enhanceCmd.Flags().StringVar(&evidencePath, "evidence", "", "evidence store file (YAML or JSON, required)")

	// Output flags
	enhanceCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	enhanceCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")

	// Loop flags
	enhanceCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall run timeout")
	enhanceCmd.Flags().Float64Var(&threshold, "threshold", 0.75, "acceptance threshold in (0,1]")
	enhanceCmd.Flags().IntVar(&maxIterations, "max-iterations", 3, "maximum rewrite rounds")
	enhanceCmd.Flags().IntVar(&topK, "top-k", 2, "weakest criteria targeted per round")
	enhanceCmd.Flags().IntVar(&concurrency, "concurrency", 3, "parallel rewrite requests")
	enhanceCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable validation memoization")

	// LLM flags
	enhanceCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	enhanceCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

func runEnhance(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if evidencePath == "" {
		return fmt.Errorf("--evidence is required: rewrites must be grounded in a sanctioned evidence store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	doc, err := model.LoadDocument(dir)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	evidence, err := model.LoadEvidence(evidencePath)
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("enhance requires an LLM provider; use 'refiner score' for a scoring-only pass")
	}

	controller, err := enhance.NewController(cfg, evidence, provider)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Document:  %s\n", dir)
		fmt.Fprintf(os.Stderr, "Evidence:  %s\n", evidencePath)
		fmt.Fprintf(os.Stderr, "Provider:  %s\n", cfg.LLM.Provider)
		fmt.Fprintf(os.Stderr, "Threshold: %.2f, max %d round(s)\n", cfg.Threshold, cfg.MaxIterations)
		fmt.Fprintln(os.Stderr)
	}

	result, runErr := controller.Run(ctx, doc)
	if result == nil {
		return fmt.Errorf("enhance failed: %w", runErr)
	}

	renderer := report.NewRenderer(cfg.Weights)
	if err := renderOutputs(renderer, result); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	return nil
}

// buildConfig assembles the session configuration from flags, environment,
// and config file.
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	cfg.Threshold = threshold
	cfg.MaxIterations = maxIterations
	cfg.TopK = topK
	cfg.Concurrency = concurrency
	cfg.Cache.Enabled = !noCache
	cfg.Output.Verbose = verbose
	cfg.Output.JSONPath = outJSON
	cfg.Output.MDPath = outMD

	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	if v := viper.GetString("llm_base_url"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newProvider builds the configured LLM provider, sourcing API keys from the
// environment only. A blank provider string yields nil.
func newProvider(cfg *model.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "":
		return nil, nil
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
}

// renderOutputs writes the requested artifacts and prints the summary.
func renderOutputs(renderer *report.Renderer, result *model.RunResult) error {
	if outJSON != "" {
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}
	renderer.RenderSummary(os.Stdout, result)
	return nil
}
