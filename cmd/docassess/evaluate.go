package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgallion1/docassess/internal/evaluate"
	"github.com/dgallion1/docassess/internal/genext"
	"github.com/spf13/cobra"
)

var (
	evalDocument string
	evalRubric   string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a local document against a local rubric",
	Long: `Evaluate a local .docx or .pdf file against a YAML rubric and print the
findings as JSON. Nothing is reported to the job service.

Example:
  docassess evaluate --document plan.docx --rubric checklist.yaml`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalDocument, "document", "", "path to the .docx or .pdf document")
	evaluateCmd.Flags().StringVar(&evalRubric, "rubric", "", "path to the YAML rubric")
	_ = evaluateCmd.MarkFlagRequired("document")
	_ = evaluateCmd.MarkFlagRequired("rubric")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateGenext(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	llm := genext.NewClient(cfg.Genext(), log)
	defer llm.Close()

	ev := evaluate.NewEvaluator(llm, cfg.Evaluation(), log)
	ev.OnRule = func(done, total int) {
		log.Debug("rule evaluated", "done", done, "total", total)
	}
	findings, err := ev.PerformEvaluation(cmd.Context(), evalDocument, evalRubric, cfg.Loader())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}
