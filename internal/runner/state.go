package runner

import (
	"fmt"
	"log/slog"
)

type state int

const (
	stateIdle state = iota
	stateSessionOpen
	stateStepExecuting
	stateSessionClosing
	stateDone
)

var stateNames = map[state]string{
	stateIdle:           "idle",
	stateSessionOpen:    "session_open",
	stateStepExecuting:  "step_executing",
	stateSessionClosing: "session_closing",
	stateDone:           "done",
}

func (s state) String() string {
	return stateNames[s]
}

// allowed lists the transitions of a run. StepExecuting loops onto itself
// once per step.
var allowed = map[state][]state{
	stateIdle:           {stateSessionOpen, stateDone},
	stateSessionOpen:    {stateStepExecuting, stateSessionClosing},
	stateStepExecuting:  {stateStepExecuting, stateSessionClosing},
	stateSessionClosing: {stateDone},
}

// machine tracks the state of a single run and logs its transitions.
type machine struct {
	current state
	history []state
	logger  *slog.Logger
}

func (m *machine) to(next state) {
	ok := false
	for _, s := range allowed[m.current] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		panic(fmt.Sprintf("invalid run state transition %s -> %s", m.current, next))
	}
	if next != m.current && m.logger != nil {
		m.logger.Debug(fmt.Sprintf("run state %s -> %s", m.current, next))
	}
	m.current = next
	m.history = append(m.history, next)
}
