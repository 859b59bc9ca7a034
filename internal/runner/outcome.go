package runner

import (
	"time"

	"github.com/jakopako/uiverify/internal/types"
)

// Status is the result of a run or of a single step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ArtifactKind tells what produced an artifact.
type ArtifactKind string

const (
	ArtifactScreenshot ArtifactKind = "screenshot" // written by a screenshot step
	ArtifactDiagnostic ArtifactKind = "diagnostic" // screenshot taken after a failure
	ArtifactHTML       ArtifactKind = "html"       // html dump taken after a failure in debug mode
)

// Artifact is a file written during a run.
type Artifact struct {
	Path string       `json:"path"`
	Kind ArtifactKind `json:"kind"`
	Step int          `json:"step"`
}

// StepResult records the execution of one step.
type StepResult struct {
	Index      int            `json:"index"`
	Kind       types.StepKind `json:"kind"`
	Target     string         `json:"target"`
	Status     Status         `json:"status"`
	DurationMS int64          `json:"durationMs"`
	Detail     string         `json:"detail,omitempty"`
}

// Outcome is the terminal result of a run: success, or the first failure
// together with everything that was captured up to that point.
type Outcome struct {
	RunID        string       `json:"runId"`
	Scenario     string       `json:"scenario,omitempty"`
	TargetURL    string       `json:"targetUrl"`
	Status       Status       `json:"status"`
	Error        *StepError   `json:"-"`
	ErrorKind    ErrorKind    `json:"errorKind,omitempty"`
	ErrorMessage string       `json:"error,omitempty"`
	Steps        []StepResult `json:"steps"`
	Artifacts    []Artifact   `json:"artifacts"`
	Suggestions  []string     `json:"suggestions,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
}

func (o *Outcome) Success() bool {
	return o.Status == StatusPassed
}

// Err returns the failure of the run or nil.
func (o *Outcome) Err() error {
	if o.Error == nil {
		return nil
	}
	return o.Error
}

func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// StepsPassed returns the number of steps that succeeded.
func (o *Outcome) StepsPassed() int {
	n := 0
	for _, s := range o.Steps {
		if s.Status == StatusPassed {
			n++
		}
	}
	return n
}

// ArtifactsOfKind returns the artifacts of the given kind.
func (o *Outcome) ArtifactsOfKind(kind ArtifactKind) []Artifact {
	var result []Artifact
	for _, a := range o.Artifacts {
		if a.Kind == kind {
			result = append(result, a)
		}
	}
	return result
}

func (o *Outcome) fail(err *StepError) {
	o.Status = StatusFailed
	o.Error = err
	o.ErrorKind = err.Kind
	o.ErrorMessage = err.Error()
}
