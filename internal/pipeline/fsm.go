package pipeline

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Lifecycle events.
const (
	EventStart    = "start"
	EventDownload = "download"
	EventEvaluate = "evaluate"
	EventReport   = "report"
	EventComplete = "complete"
	EventFail     = "fail"
)

// State ids.
const (
	stateQueued      = "queued"
	stateFetching    = "fetching"
	stateDownloading = "downloading"
	stateEvaluating  = "evaluating"
	stateReporting   = "reporting"
	stateCompleted   = "completed"
	stateFailed      = "failed"
)

type runContext struct {
	RunID string
}

// runMachine guards the local lifecycle of a run:
// queued → fetching → downloading → evaluating → reporting → completed,
// with fail allowed from every non-final state.
type runMachine struct {
	interpreter *statekit.Interpreter[runContext]
}

func newRunMachine(runID string) (*runMachine, error) {
	builder := statekit.NewMachine[runContext]("run-machine").
		WithInitial(stateQueued).
		WithContext(runContext{RunID: runID})

	builder.State(stateQueued).
		On(EventStart).Target(stateFetching).
		On(EventFail).Target(stateFailed).
		Done()

	builder.State(stateFetching).
		On(EventDownload).Target(stateDownloading).
		On(EventFail).Target(stateFailed).
		Done()

	builder.State(stateDownloading).
		On(EventEvaluate).Target(stateEvaluating).
		On(EventFail).Target(stateFailed).
		Done()

	builder.State(stateEvaluating).
		On(EventReport).Target(stateReporting).
		On(EventFail).Target(stateFailed).
		Done()

	builder.State(stateReporting).
		On(EventComplete).Target(stateCompleted).
		On(EventFail).Target(stateFailed).
		Done()

	builder.State(stateCompleted).Done()
	builder.State(stateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build run state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &runMachine{interpreter: interpreter}, nil
}

// Transition fires event and reports an error if the state did not move.
func (m *runMachine) Transition(event string) error {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() != before {
		return nil
	}
	return fmt.Errorf("event %q not allowed in state %q", event, before)
}

func (m *runMachine) Current() RunStatus {
	return RunStatus(m.interpreter.State().Value)
}
