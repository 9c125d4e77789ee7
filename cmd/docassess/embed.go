package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/docassess/internal/genext"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed TEXT",
	Short: "Request an embedding vector from the LLM gateway",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateGenext(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	llm := genext.NewClient(cfg.Genext(), log)
	defer llm.Close()

	resp, err := llm.Embed(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(resp)
}
