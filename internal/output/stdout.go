package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jakopako/uiverify/internal/runner"
	"github.com/jakopako/uiverify/internal/utils"
	"github.com/olekukonko/tablewriter"
)

const maxErrorWidth = 80

// StdoutWriter represents a writer that prints a summary table to stdout
type StdoutWriter struct {
	out    io.Writer
	logger *slog.Logger
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter(wc *WriterConfig) *StdoutWriter {
	return &StdoutWriter{
		out:    os.Stdout,
		logger: slog.With(slog.String("writer", string(STDOUT_WRITER_TYPE))),
	}
}

func (w *StdoutWriter) Write(outcomes []*runner.Outcome) error {
	w.logger.Debug(fmt.Sprintf("printing summary of %d runs", len(outcomes)))
	table := tablewriter.NewWriter(w.out)
	table.Header("Scenario", "Status", "Steps", "Artifacts", "Duration", "Error")

	passed := 0
	for _, o := range outcomes {
		if o.Success() {
			passed++
		}
		name := o.Scenario
		if name == "" {
			name = o.TargetURL
		}
		row := []string{
			name,
			string(o.Status),
			fmt.Sprintf("%d/%d", o.StepsPassed(), len(o.Steps)),
			strconv.Itoa(len(o.Artifacts)),
			o.Duration().Round(time.Millisecond).String(),
			utils.ShortenString(o.ErrorMessage, maxErrorWidth),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("error while building summary table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("error while rendering summary table: %w", err)
	}

	for _, o := range outcomes {
		for _, a := range o.Artifacts {
			fmt.Fprintf(w.out, "%s: %s (%s)\n", o.Scenario, a.Path, a.Kind)
		}
		if len(o.Suggestions) > 0 {
			fmt.Fprintf(w.out, "%s: did you mean %q?\n", o.Scenario, o.Suggestions)
		}
	}

	if passed == len(outcomes) {
		color.New(color.FgGreen, color.Bold).Fprintf(w.out, "PASS %d/%d\n", passed, len(outcomes))
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(w.out, "FAIL %d/%d\n", passed, len(outcomes))
	}
	return nil
}
