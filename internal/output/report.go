package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jakopako/uiverify/internal/runner"
)

// Report is the document the file and api writers produce.
type Report struct {
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	StartedAt time.Time         `json:"startedAt"`
	Outcomes  []*runner.Outcome `json:"outcomes"`
}

func NewReport(outcomes []*runner.Outcome) *Report {
	r := &Report{Outcomes: outcomes}
	if r.Outcomes == nil {
		r.Outcomes = []*runner.Outcome{}
	}
	for _, o := range outcomes {
		if o.Success() {
			r.Passed++
		} else {
			r.Failed++
		}
		if r.StartedAt.IsZero() || o.StartedAt.Before(r.StartedAt) {
			r.StartedAt = o.StartedAt
		}
	}
	return r
}

// encode marshals v as indented json. Html characters in eg. text
// locators are kept as they are instead of being replaced by unicode
// escapes.
func encode(v any) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	var indentBuffer bytes.Buffer
	if err := json.Indent(&indentBuffer, buffer.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return indentBuffer.Bytes(), nil
}
