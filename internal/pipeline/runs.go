package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docassess/internal/evaluate"
	"github.com/google/uuid"
)

// RunStatus is the local state of one evaluation run.
type RunStatus string

const (
	StatusQueued      RunStatus = stateQueued
	StatusFetching    RunStatus = stateFetching
	StatusDownloading RunStatus = stateDownloading
	StatusEvaluating  RunStatus = stateEvaluating
	StatusReporting   RunStatus = stateReporting
	StatusCompleted   RunStatus = stateCompleted
	StatusFailed      RunStatus = stateFailed
)

// Run tracks one queued (org, job_id) evaluation. The remote job service
// stays the system of record; a Run only backs the status endpoint.
type Run struct {
	mu sync.Mutex

	ID      string
	Org     string
	JobID   string
	JobName string

	Phase    string
	Progress Progress

	CreatedAt time.Time
	UpdatedAt time.Time

	fsm      *runMachine
	findings []evaluate.Finding
}

// Progress tracks rule evaluation progress.
type Progress struct {
	TotalRules     int      `json:"total_rules"`
	RulesEvaluated int      `json:"rules_evaluated"`
	Errors         []string `json:"errors"`
}

// NewRun creates a queued run with a fresh id.
func NewRun(org, jobID string) (*Run, error) {
	id := uuid.NewString()
	fsm, err := newRunMachine(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Run{
		ID:        id,
		Org:       org,
		JobID:     jobID,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		fsm:       fsm,
	}, nil
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// List returns the runs for org (all orgs when empty), newest first.
func (s *RunStore) List(org string) []*Run {
	s.mu.Lock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		if org == "" || run.Org == org {
			out = append(out, run)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cleanup removes finished runs not updated within the TTL.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		if run.Done() && now.Sub(run.updatedAt()) > s.ttl {
			delete(s.runs, id)
		}
	}
}

// Transition moves the run through its lifecycle and records the phase.
func (r *Run) Transition(event, phase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fsm.Transition(event); err != nil {
		return fmt.Errorf("run %s: %w", r.ID, err)
	}
	r.Phase = phase
	r.UpdatedAt = time.Now()
	return nil
}

// Fail marks the run failed, keeping the phase it failed in.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.Errors = append(r.Progress.Errors, err.Error())
	_ = r.fsm.Transition(EventFail)
	r.UpdatedAt = time.Now()
}

func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fsm.Current()
}

// Done reports whether the run reached a final state.
func (r *Run) Done() bool {
	s := r.Status()
	return s == StatusCompleted || s == StatusFailed
}

func (r *Run) updatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.UpdatedAt
}

func (r *Run) SetJobName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.JobName = name
	r.UpdatedAt = time.Now()
}

func (r *Run) SetTotalRules(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.TotalRules = n
	r.UpdatedAt = time.Now()
}

func (r *Run) SetRulesEvaluated(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.RulesEvaluated = n
	r.UpdatedAt = time.Now()
}

func (r *Run) SetFindings(findings []evaluate.Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = findings
	r.UpdatedAt = time.Now()
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID        string             `json:"run_id"`
	Org       string             `json:"org"`
	JobID     string             `json:"job_id"`
	JobName   string             `json:"job_name,omitempty"`
	Status    RunStatus          `json:"status"`
	Phase     string             `json:"phase"`
	Progress  Progress           `json:"progress"`
	Findings  []evaluate.Finding `json:"findings,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := append([]string{}, r.Progress.Errors...)
	return RunSnapshot{
		ID:      r.ID,
		Org:     r.Org,
		JobID:   r.JobID,
		JobName: r.JobName,
		Status:  r.fsm.Current(),
		Phase:   r.Phase,
		Progress: Progress{
			TotalRules:     r.Progress.TotalRules,
			RulesEvaluated: r.Progress.RulesEvaluated,
			Errors:         errs,
		},
		Findings:  append([]evaluate.Finding(nil), r.findings...),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
