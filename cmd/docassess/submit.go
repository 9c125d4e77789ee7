package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	submitOrg    string
	submitJobID  string
	submitURL    string
	submitAPIKey string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue an evaluation job on a running service",
	Long: `Submit (org, job id) to a running docassess service and print the
accepted run.

Example:
  docassess submit --org ITSCM_DEV --job-id 495897fb --url http://localhost:8090`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitOrg, "org", "", "organization that owns the job")
	submitCmd.Flags().StringVar(&submitJobID, "job-id", "", "job identifier")
	submitCmd.Flags().StringVar(&submitURL, "url", "http://localhost:8090", "base URL of the service")
	submitCmd.Flags().StringVar(&submitAPIKey, "api-key", "", "service API key (defaults to DOCASSESS_API_KEY)")
	_ = submitCmd.MarkFlagRequired("org")
	_ = submitCmd.MarkFlagRequired("job-id")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	key := submitAPIKey
	if key == "" {
		key = os.Getenv("DOCASSESS_API_KEY")
	}

	body, err := json.Marshal(map[string]string{"org": submitOrg, "job_id": submitJobID})
	if err != nil {
		return err
	}
	u := strings.TrimSuffix(submitURL, "/") + "/api/evaluations"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("submit: status %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}
	_, err = os.Stdout.Write(out)
	return err
}
