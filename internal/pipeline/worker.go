package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docassess/internal/evaluate"
	"github.com/dgallion1/docassess/internal/jobsvc"
	"github.com/dgallion1/docassess/internal/loader"
	"github.com/dgallion1/docassess/internal/rubric"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dgallion1/docassess/internal/pipeline")

// JobService is the part of the job service client the worker needs.
type JobService interface {
	GetJob(ctx context.Context, org, jobID string) (*jobsvc.Job, error)
	UpdateStatus(ctx context.Context, org, jobID, jobName, status string) error
	PostFindings(ctx context.Context, org, jobID string, findings any) error
	DownloadChecklist(ctx context.Context, job *jobsvc.Job, dir string) (string, error)
	DownloadDocument(ctx context.Context, job *jobsvc.Job, dir string) (string, error)
}

// WorkerOptions configures how a worker evaluates a run.
type WorkerOptions struct {
	Evaluation  evaluate.Options
	Loader      loader.Options
	WorkDir     string // parent of per-run temp dirs; empty means os.TempDir
	KeepWorkDir bool
}

// Worker processes a single evaluation run.
type Worker struct {
	jobs JobService
	llm  evaluate.ChatClient
	opts WorkerOptions
	log  *slog.Logger
}

func NewWorker(jobs JobService, llm evaluate.ChatClient, opts WorkerOptions, log *slog.Logger) *Worker {
	return &Worker{
		jobs: jobs,
		llm:  llm,
		opts: opts,
		log:  log,
	}
}

// Process runs the evaluation pipeline for a run. Any error stops it; the
// remote job is left where it was and never marked completed.
func (w *Worker) Process(ctx context.Context, run *Run) {
	ctx, span := tracer.Start(ctx, "run_evaluation", trace.WithAttributes(
		attribute.String("org", run.Org),
		attribute.String("job_id", run.JobID),
		attribute.String("run_id", run.ID),
	))
	defer span.End()

	log := w.log.With("run_id", run.ID, "org", run.Org, "job_id", run.JobID)
	log.Info("evaluation started")

	if err := w.process(ctx, run, log, span); err != nil {
		log.Error("evaluation failed", "phase", run.Snapshot().Phase, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		run.Fail(err)
		return
	}
	log.Info("evaluation completed")
}

func (w *Worker) process(ctx context.Context, run *Run, log *slog.Logger, span trace.Span) error {
	// Phase 1: Job info and remote status
	if err := run.Transition(EventStart, "fetch_job"); err != nil {
		return err
	}
	job, err := w.jobs.GetJob(ctx, run.Org, run.JobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	run.SetJobName(job.JobName)
	log.Info("fetched job", "job_name", job.JobName, "document", job.DocumentURL, "checklist", job.ChecklistFilePath)

	if err := w.jobs.UpdateStatus(ctx, run.Org, run.JobID, job.JobName, jobsvc.StatusProcessing); err != nil {
		return fmt.Errorf("update status %s: %w", jobsvc.StatusProcessing, err)
	}

	// Phase 2: Download inputs
	if err := run.Transition(EventDownload, "download"); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(w.opts.WorkDir, "docassess-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	if w.opts.KeepWorkDir {
		log.Info("keeping work dir", "dir", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	checklistPath, err := w.jobs.DownloadChecklist(ctx, job, dir)
	if err != nil {
		return fmt.Errorf("download checklist: %w", err)
	}
	documentPath, err := w.jobs.DownloadDocument(ctx, job, dir)
	if err != nil {
		return fmt.Errorf("download document: %w", err)
	}
	span.SetAttributes(attribute.String("document_path", documentPath))

	// Phase 3: Parse and evaluate
	if err := run.Transition(EventEvaluate, "evaluate"); err != nil {
		return err
	}
	tree, err := loader.Load(documentPath, w.opts.Loader)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	rb, err := rubric.LoadFile(checklistPath)
	if err != nil {
		return err
	}
	rules := rb.Rules()
	run.SetTotalRules(len(rules))
	log.Info("parsed inputs", "nodes", tree.Len(), "rules", len(rules))

	ev := evaluate.NewEvaluator(w.llm, w.opts.Evaluation, log)
	ev.OnRule = func(done, _ int) { run.SetRulesEvaluated(done) }
	findings, err := ev.Evaluate(ctx, tree, rules)
	if err != nil {
		return err
	}
	run.SetFindings(findings)

	// Phase 4: Report
	if err := run.Transition(EventReport, "report"); err != nil {
		return err
	}
	if err := w.jobs.PostFindings(ctx, run.Org, run.JobID, findings); err != nil {
		return fmt.Errorf("post findings: %w", err)
	}
	if err := w.jobs.UpdateStatus(ctx, run.Org, run.JobID, job.JobName, jobsvc.StatusCompleted); err != nil {
		return fmt.Errorf("update status %s: %w", jobsvc.StatusCompleted, err)
	}
	return run.Transition(EventComplete, "done")
}
