package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docassess/internal/api"
	"github.com/dgallion1/docassess/internal/genext"
	"github.com/dgallion1/docassess/internal/jobsvc"
	"github.com/dgallion1/docassess/internal/pipeline"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the evaluation HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize clients.
	llm := genext.NewClient(cfg.Genext(), log)
	jobs := jobsvc.NewClient(cfg.EvalAPIBasePath, cfg.JobServiceTimeout)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, jobs, llm, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, llm.Stats, log, cfg)

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		orch.Stop()
		return fmt.Errorf("listen: %w", err)
	}

	log.Info("starting docassess", "port", cfg.Port, "workers", cfg.WorkerCount)
	return serveHTTP(ctx, httpServer, ln, log, func() {
		orch.Stop()
		llm.Close()
		jobs.Close()
	})
}

// serveHTTP serves on ln until ctx is done, then shuts the server down and
// runs cleanup. It returns only after cleanup has finished.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, log *slog.Logger, cleanup func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		cleanup()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	cleanup()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
