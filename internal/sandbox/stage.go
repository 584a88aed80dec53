package sandbox

import (
	"fmt"
	"sync"
)

// Stage is the lifecycle position of one script.
type Stage int

const (
	StagePending Stage = iota
	StageExtracted
	StageValidated
	StageExecuted
	StageSerialized
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageExtracted:
		return "extracted"
	case StageValidated:
		return "validated"
	case StageExecuted:
		return "executed"
	case StageSerialized:
		return "serialized"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Transition is reported to the observer on every stage change.
type Transition struct {
	From, To Stage
	Reason   string
}

// Machine tracks a script through Pending, Extracted, Validated, Executed
// and Serialized. Failed is terminal and reachable from any stage.
type Machine struct {
	mu      sync.Mutex
	stage   Stage
	reason  string
	observe func(Transition)
}

// NewMachine starts in Pending. observe may be nil.
func NewMachine(observe func(Transition)) *Machine {
	return &Machine{observe: observe}
}

// Advance moves to the next stage. Skipping a stage or leaving Failed is an
// error.
func (m *Machine) Advance(to Stage) error {
	m.mu.Lock()
	from := m.stage
	if from == StageFailed || to != from+1 || to > StageSerialized {
		m.mu.Unlock()
		return fmt.Errorf("sandbox: invalid stage transition %s -> %s", from, to)
	}
	m.stage = to
	m.mu.Unlock()
	m.notify(Transition{From: from, To: to})
	return nil
}

// Fail moves to Failed. Failing twice keeps the first reason.
func (m *Machine) Fail(reason string) {
	m.mu.Lock()
	from := m.stage
	if from == StageFailed {
		m.mu.Unlock()
		return
	}
	m.stage, m.reason = StageFailed, reason
	m.mu.Unlock()
	m.notify(Transition{From: from, To: StageFailed, Reason: reason})
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Reason is the failure reason, empty unless Failed.
func (m *Machine) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

func (m *Machine) notify(t Transition) {
	if m.observe != nil {
		m.observe(t)
	}
}
