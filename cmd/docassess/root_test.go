package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		log := newLogger(tt.in)
		assert.True(t, log.Handler().Enabled(t.Context(), tt.want), tt.in)
		if tt.want > slog.LevelDebug {
			assert.False(t, log.Handler().Enabled(t.Context(), tt.want-1), tt.in)
		}
	}
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "evaluate", "submit", "embed"} {
		assert.True(t, names[want], want)
	}

	f := evaluateCmd.Flags().Lookup("rubric")
	require.NotNil(t, f)
	assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestRunSubmit(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/evaluations", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got["org"] == "bad" {
			http.Error(w, `{"error":"nope"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"run_id":"r1"}` + "\n"))
	}))
	defer srv.Close()

	submitURL, submitAPIKey = srv.URL+"/", "k"
	submitCmd.SetContext(t.Context())

	submitOrg, submitJobID = "ITSCM_DEV", "job-1"
	require.NoError(t, runSubmit(submitCmd, nil))
	assert.Equal(t, map[string]string{"org": "ITSCM_DEV", "job_id": "job-1"}, got)

	submitOrg = "bad"
	err := runSubmit(submitCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
