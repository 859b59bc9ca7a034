// Package runner executes verification scenarios against a running web
// application, one browser session per run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jakopako/uiverify/internal/browser"
	"github.com/jakopako/uiverify/internal/diagnose"
	"github.com/jakopako/uiverify/internal/log"
	"github.com/jakopako/uiverify/internal/types"
	"github.com/jakopako/uiverify/internal/utils"
)

const (
	diagnosticTimeout = 5 * time.Second
	maxSuggestions    = 3
)

// Config holds the settings of a run. Timeouts are in milliseconds and
// apply to steps that do not set their own.
type Config struct {
	ArtifactDir         string `yaml:"artifact_dir" env:"UIVERIFY_ARTIFACT_DIR" env-default:"verification"`
	NavigationTimeoutMS int    `yaml:"navigation_timeout_ms" env-default:"30000"`
	WaitTimeoutMS       int    `yaml:"wait_timeout_ms" env-default:"5000"`
	ElementTimeoutMS    int    `yaml:"element_timeout_ms" env-default:"5000"`
	ScreenshotTimeoutMS int    `yaml:"screenshot_timeout_ms" env-default:"10000"`
	SkipDiagnostics     bool   `yaml:"skip_diagnostics" env:"UIVERIFY_SKIP_DIAGNOSTICS"` // no screenshot after a failure
}

// Runner runs step sequences. A Runner can be reused, each run opens and
// releases its own browser session.
type Runner struct {
	*Config
	browser browser.Browser
}

func New(b browser.Browser, c *Config) *Runner {
	if c.ArtifactDir == "" {
		c.ArtifactDir = "verification"
	}
	if c.NavigationTimeoutMS == 0 {
		c.NavigationTimeoutMS = 30000
	}
	if c.WaitTimeoutMS == 0 {
		c.WaitTimeoutMS = 5000
	}
	if c.ElementTimeoutMS == 0 {
		c.ElementTimeoutMS = 5000
	}
	if c.ScreenshotTimeoutMS == 0 {
		c.ScreenshotTimeoutMS = 10000
	}
	return &Runner{
		Config:  c,
		browser: b,
	}
}

// Run opens a browser session, navigates to targetURL and executes steps
// in order. It stops at the first failing step. The session is released
// before Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context, targetURL string, steps []types.Step) *Outcome {
	return r.run(ctx, "", targetURL, steps)
}

// RunScenario runs the steps of s, starting on the scenario path resolved
// against baseURL.
func (r *Runner) RunScenario(ctx context.Context, s types.Scenario, baseURL string) *Outcome {
	targetURL, err := utils.ResolveURL(baseURL, s.Path)
	if err != nil {
		o := newOutcome(s.Name, baseURL)
		o.fail(&StepError{Kind: KindNavigation, Index: 0, Step: types.Step{Kind: types.StepNavigate, URL: s.Path}, Err: err})
		o.FinishedAt = time.Now()
		log.LoggerFromContext(ctx).Error(o.ErrorMessage, slog.String("scenario", s.Name))
		return o
	}
	return r.run(ctx, s.Name, targetURL, s.Steps)
}

func newOutcome(scenario, targetURL string) *Outcome {
	return &Outcome{
		RunID:     uuid.NewString(),
		Scenario:  scenario,
		TargetURL: targetURL,
		Status:    StatusPassed,
		Steps:     []StepResult{},
		Artifacts: []Artifact{},
		StartedAt: time.Now(),
	}
}

func (r *Runner) run(ctx context.Context, scenario, targetURL string, steps []types.Step) *Outcome {
	o := newOutcome(scenario, targetURL)
	logger := log.LoggerFromContext(ctx).With(slog.String("run", o.RunID[:8]))
	if scenario != "" {
		logger = logger.With(slog.String("scenario", scenario))
	}
	ctx = log.ContextWithLogger(ctx, logger)

	sequence := make([]types.Step, 0, len(steps)+1)
	sequence = append(sequence, types.Step{Kind: types.StepNavigate, URL: targetURL})
	sequence = append(sequence, steps...)

	m := &machine{logger: logger}
	logger.Info("starting run", slog.String("url", targetURL), slog.Int("steps", len(sequence)))

	page, err := r.browser.Open(ctx)
	if err != nil {
		o.fail(&StepError{Kind: KindSession, Index: -1, Err: err})
		o.Steps = skipped(sequence, 0)
		logger.Error(fmt.Sprintf("could not open browser session: %v", err))
		m.to(stateDone)
		return r.finish(ctx, o)
	}
	m.to(stateSessionOpen)

	func() {
		defer func() {
			m.to(stateSessionClosing)
			if err := page.Close(); err != nil {
				logger.Warn(fmt.Sprintf("error while closing browser session: %v", err))
			}
		}()
		r.execute(ctx, m, page, o, sequence)
	}()

	m.to(stateDone)
	return r.finish(ctx, o)
}

func (r *Runner) finish(ctx context.Context, o *Outcome) *Outcome {
	o.FinishedAt = time.Now()
	logger := log.LoggerFromContext(ctx)
	attrs := []any{
		slog.String("status", string(o.Status)),
		slog.Int("steps_passed", o.StepsPassed()),
		slog.Int("artifacts", len(o.Artifacts)),
		slog.Duration("duration", o.Duration()),
	}
	if o.Success() {
		logger.Info("run finished", attrs...)
	} else {
		logger.Error(fmt.Sprintf("run failed: %s", o.ErrorMessage), attrs...)
	}
	return o
}

func skipped(sequence []types.Step, from int) []StepResult {
	result := make([]StepResult, 0, len(sequence)-from)
	for i := from; i < len(sequence); i++ {
		result = append(result, StepResult{
			Index:  i,
			Kind:   sequence[i].Kind,
			Target: sequence[i].Describe(),
			Status: StatusSkipped,
		})
	}
	return result
}

// execute runs the sequence until the first failure.
func (r *Runner) execute(ctx context.Context, m *machine, page browser.Page, o *Outcome, sequence []types.Step) {
	logger := log.LoggerFromContext(ctx)
	for i, step := range sequence {
		m.to(stateStepExecuting)
		logger.Debug(fmt.Sprintf("executing step %d: %s", i, step.Describe()))
		start := time.Now()
		detail, serr := r.executeStep(ctx, page, o, i, step)
		res := StepResult{
			Index:      i,
			Kind:       step.Kind,
			Target:     step.Describe(),
			Status:     StatusPassed,
			DurationMS: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
		if serr != nil {
			res.Status = StatusFailed
			res.Detail = serr.Err.Error()
			o.Steps = append(o.Steps, res)
			o.fail(serr)
			logger.Error(serr.Error())
			r.collectDiagnostics(ctx, page, o, serr)
			o.Steps = append(o.Steps, skipped(sequence, i+1)...)
			return
		}
		o.Steps = append(o.Steps, res)
		if step.Message != "" {
			logger.Info(step.Message)
		}
	}
}

// stepContext bounds a step by its own timeout or the given default.
func stepContext(ctx context.Context, step types.Step, defaultMS int) (context.Context, context.CancelFunc) {
	ms := defaultMS
	if step.Timeout > 0 {
		ms = step.Timeout
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}

// classify maps an error of a page operation to the kind of the failure.
// timeoutKind is used when the step deadline passed.
func classify(ctx context.Context, err error, timeoutKind ErrorKind) ErrorKind {
	switch {
	case ctx.Err() != nil:
		return KindCancelled
	case errors.Is(err, browser.ErrWaitTimeout):
		return KindWaitTimeout
	case errors.Is(err, browser.ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return timeoutKind
	}
	return KindBrowser
}

func (r *Runner) executeStep(ctx context.Context, page browser.Page, o *Outcome, i int, step types.Step) (string, *StepError) {
	logger := log.LoggerFromContext(ctx)
	fail := func(kind ErrorKind, err error) *StepError {
		return &StepError{Kind: kind, Index: i, Step: step, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", fail(KindCancelled, err)
	}

	switch step.Kind {
	case types.StepNavigate:
		target, err := utils.ResolveURL(o.TargetURL, step.URL)
		if err != nil {
			return "", fail(KindNavigation, err)
		}
		sctx, cancel := stepContext(ctx, step, r.NavigationTimeoutMS)
		defer cancel()
		if err := page.Navigate(sctx, target); err != nil {
			if ctx.Err() != nil {
				return "", fail(KindCancelled, err)
			}
			return "", fail(KindNavigation, err)
		}
		return target, nil

	case types.StepClick:
		sctx, cancel := stepContext(ctx, step, r.ElementTimeoutMS)
		defer cancel()
		if err := page.Click(sctx, step.Locator()); err != nil {
			return "", fail(classify(ctx, err, KindElementNotFound), err)
		}
		return "", nil

	case types.StepFill:
		sctx, cancel := stepContext(ctx, step, r.ElementTimeoutMS)
		defer cancel()
		got, err := page.Fill(sctx, step.Locator(), step.Value)
		if err != nil {
			return "", fail(classify(ctx, err, KindElementNotFound), err)
		}
		if got != step.Value {
			logger.Warn(fmt.Sprintf("field %s holds %q after filling in %q", step.Locator(), got, step.Value))
		}
		return fmt.Sprintf("value %q", got), nil

	case types.StepWaitForText, types.StepWaitForSelector:
		loc := step.Locator()
		if step.Kind == types.StepWaitForText {
			loc = types.Locator{Kind: types.LocateByText, Value: step.Text}
		}
		sctx, cancel := stepContext(ctx, step, r.WaitTimeoutMS)
		defer cancel()
		if err := page.WaitFor(sctx, loc); err != nil {
			return "", fail(classify(ctx, err, KindWaitTimeout), err)
		}
		return "", nil

	case types.StepWaitForTimeout:
		t := time.NewTimer(time.Duration(step.Timeout) * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", fail(KindCancelled, ctx.Err())
		case <-t.C:
		}
		return "", nil

	case types.StepScreenshot:
		sctx, cancel := stepContext(ctx, step, r.ScreenshotTimeoutMS)
		defer cancel()
		buf, err := page.Screenshot(sctx, step.FullPage)
		if err != nil {
			return "", fail(classify(ctx, err, KindBrowser), err)
		}
		path := utils.ArtifactPath(r.ArtifactDir, step.Path)
		if err := writeArtifact(path, buf); err != nil {
			return "", fail(KindArtifact, err)
		}
		o.Artifacts = append(o.Artifacts, Artifact{Path: path, Kind: ArtifactScreenshot, Step: i})
		logger.Info("screenshot captured", slog.String("path", path))
		return path, nil
	}
	return "", fail(KindBrowser, fmt.Errorf("unknown step kind %q", step.Kind))
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// collectDiagnostics collects what can be collected about the page after a failed
// step. Nothing here changes the outcome's status or error.
func (r *Runner) collectDiagnostics(ctx context.Context, page browser.Page, o *Outcome, serr *StepError) {
	switch serr.Kind {
	case KindNavigation, KindSession, KindCancelled:
		return
	}
	logger := log.LoggerFromContext(ctx)
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticTimeout)
	defer cancel()

	name := utils.Slugify(o.Scenario)
	if name == "" {
		name = o.RunID[:8]
	}

	html, err := page.HTML(dctx)
	if err != nil {
		logger.Warn(fmt.Sprintf("could not read page html: %v", err))
	} else {
		if wanted := serr.Step.Locator().Value; wanted != "" {
			suggestions, err := diagnose.Suggest(html, wanted, maxSuggestions)
			if err != nil {
				logger.Warn(fmt.Sprintf("could not parse page html: %v", err))
			} else if len(suggestions) > 0 {
				o.Suggestions = suggestions
				logger.Info(fmt.Sprintf("%q not found, the page shows %q", wanted, suggestions))
			}
		}
		if log.Debug {
			path := filepath.Join(r.ArtifactDir, fmt.Sprintf("error-%s.html", name))
			if err := writeArtifact(path, []byte(html)); err != nil {
				logger.Warn(err.Error())
			} else {
				o.Artifacts = append(o.Artifacts, Artifact{Path: path, Kind: ArtifactHTML, Step: serr.Index})
				logger.Debug(fmt.Sprintf("wrote page html to %s", path))
			}
		}
	}

	if r.SkipDiagnostics {
		return
	}
	buf, err := page.Screenshot(dctx, false)
	if err != nil {
		logger.Warn(fmt.Sprintf("could not capture diagnostic screenshot: %v", err))
		return
	}
	path := filepath.Join(r.ArtifactDir, fmt.Sprintf("error-%s.png", name))
	if err := writeArtifact(path, buf); err != nil {
		logger.Warn(err.Error())
		return
	}
	o.Artifacts = append(o.Artifacts, Artifact{Path: path, Kind: ArtifactDiagnostic, Step: serr.Index})
	logger.Info("diagnostic screenshot captured", slog.String("path", path))
}
