package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docassess/internal/config"
	"github.com/dgallion1/docassess/internal/evaluate"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("run queue is full")

// Orchestrator manages the evaluation pipeline.
type Orchestrator struct {
	runs  *RunStore
	queue chan *Run
	jobs  JobService
	llm   evaluate.ChatClient
	log   *slog.Logger
	cfg   config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, jobs JobService, llm evaluate.ChatClient, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runs:  NewRunStore(cfg.RunTTL),
		queue: make(chan *Run, cfg.MaxQueueSize),
		jobs:  jobs,
		llm:   llm,
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	opts := WorkerOptions{
		Evaluation:  o.cfg.Evaluation(),
		Loader:      o.cfg.Loader(),
		WorkDir:     o.cfg.WorkDir,
		KeepWorkDir: o.cfg.KeepWorkDir,
	}
	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.jobs, o.llm, opts, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case run, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, run)
				}
			}
		}()
	}

	// Start run store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.runs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues an evaluation of (org, jobID). Submitting the same job twice
// runs it twice.
func (o *Orchestrator) Submit(org, jobID string) (*Run, error) {
	run, err := NewRun(org, jobID)
	if err != nil {
		return nil, err
	}
	o.runs.Put(run)
	select {
	case o.queue <- run:
		o.log.Info("run queued", "run_id", run.ID, "org", org, "job_id", jobID)
		return run, nil
	default:
		err := fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
		run.Fail(err)
		return run, err
	}
}

// GetRun returns a run by ID.
func (o *Orchestrator) GetRun(id string) *Run {
	return o.runs.Get(id)
}

// ListRuns returns known runs for org, newest first.
func (o *Orchestrator) ListRuns(org string) []*Run {
	return o.runs.List(org)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
