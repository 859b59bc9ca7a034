/*
uiverify drives a browser through scripted scenarios against a running
web application and reports whether the expected screens showed up.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jakopako/uiverify/internal/browser"
	"github.com/jakopako/uiverify/internal/config"
	"github.com/jakopako/uiverify/internal/log"
	"github.com/jakopako/uiverify/internal/output"
	"github.com/jakopako/uiverify/internal/runner"
	"github.com/joho/godotenv"
)

var version = "dev"

const (
	exitFailed = 1
	exitUsage  = 2
)

// exitError carries the exit code of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version   VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug     bool        `short:"d" long:"debug" help:"Set log level to 'debug' and store the page html on failures."`
	LogFormat string      `long:"log-format" default:"text" enum:"text,json" help:"Format of the log output (${enum})."`

	Run      RunCmd      `cmd:"" help:"Run verification scenarios against the application."`
	List     ListCmd     `cmd:"" help:"List the scenarios in the given configuration file."`
	Validate ValidateCmd `cmd:"" help:"Validate the given configuration file and its scenarios."`
}

// loadConfig reads and validates the configuration. Every problem is a
// usage error.
func loadConfig(path string) (*config.Config, error) {
	c, err := config.NewConfig(path)
	if err != nil {
		return nil, usageError(err)
	}
	if err := c.Validate(); err != nil {
		return nil, usageError(fmt.Errorf("invalid configuration:\n%w", err))
	}
	return c, nil
}

type RunCmd struct {
	Config      string   `short:"c" default:"./uiverify.yaml" help:"The location of the configuration file." completion:"<file>"`
	Names       []string `short:"n" name:"name" help:"The name of a scenario to run. Can be repeated. All scenarios run if not set."`
	URL         string   `short:"u" name:"url" help:"The base url of the application under test. Overrides target_url."`
	ArtifactDir string   `short:"a" name:"artifact-dir" help:"The directory screenshots are written to." completion:"<directory>"`
	Headful     bool     `help:"Show the browser window."`
	RemoteURL   string   `name:"remote-url" help:"DevTools websocket url of an already running browser to use instead of starting one."`
	Stdout      bool     `short:"o" help:"If set to true the report will be written to stdout despite any other existing writer configuration."`
	DryRun      bool     `short:"D" help:"If set to true the report will not be posted (only has an effect on the APIWriter)."`
}

func (rc *RunCmd) Run(ctx context.Context) error {
	c, err := loadConfig(rc.Config)
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	if rc.URL != "" {
		c.TargetURL = rc.URL
	}
	if rc.ArtifactDir != "" {
		c.Run.ArtifactDir = rc.ArtifactDir
	}
	if rc.Headful {
		c.Browser.Headful = true
	}
	if rc.RemoteURL != "" {
		c.Browser.RemoteURL = rc.RemoteURL
	}
	if rc.Stdout {
		c.Writer.Type = output.STDOUT_WRITER_TYPE
	}
	if rc.DryRun {
		c.Writer.DryRun = true
	}
	// the report goes next to the screenshots unless configured otherwise
	if c.Writer.FileDir == "" {
		c.Writer.FileDir = c.Run.ArtifactDir
	}
	for _, w := range c.Warnings() {
		slog.Warn(w)
	}

	scenarios, err := c.Select(rc.Names)
	if err != nil {
		slog.Error(err.Error())
		return usageError(err)
	}
	if len(scenarios) == 0 {
		err := errors.New("no scenarios configured")
		slog.Error(err.Error())
		return usageError(err)
	}

	writer, err := output.NewWriter(&c.Writer)
	if err != nil {
		slog.Error(err.Error())
		return usageError(err)
	}

	r := runner.New(browser.NewChrome(&c.Browser), &c.Run)
	slog.Info(fmt.Sprintf("running %d scenarios against %s", len(scenarios), c.TargetURL))
	outcomes := make([]*runner.Outcome, 0, len(scenarios))
	for _, s := range scenarios {
		outcomes = append(outcomes, r.RunScenario(ctx, s, c.TargetURL))
		if ctx.Err() != nil {
			slog.Warn("interrupted, not running the remaining scenarios")
			break
		}
	}

	return report(writer, outcomes, len(scenarios))
}

// report writes the outcomes and maps them to the exit status. A report
// that could not be written fails the run even if every scenario passed.
// Scenarios that did not run because of an interrupt count as failed.
func report(w output.Writer, outcomes []*runner.Outcome, planned int) error {
	if err := w.Write(outcomes); err != nil {
		slog.Error(err.Error())
		return &exitError{code: exitFailed, err: fmt.Errorf("failed to write report: %w", err)}
	}

	failed := planned - len(outcomes)
	for _, o := range outcomes {
		if !o.Success() {
			failed++
		}
	}
	if failed > 0 {
		return &exitError{code: exitFailed, err: fmt.Errorf("%d of %d scenarios failed", failed, planned)}
	}
	return nil
}

type ListCmd struct {
	Config     string `short:"c" default:"./uiverify.yaml" help:"The location of the configuration file." completion:"<file>"`
	Completion bool   `short:"C" help:"If set to true, the output will be formatted for autocompletion scripts and errors will not be printed."`
}

func (lc *ListCmd) Run() error {
	c, err := config.NewConfig(lc.Config)
	if err != nil {
		if lc.Completion {
			// in completion mode, we just return an empty output on error
			return nil
		}
		slog.Error(fmt.Sprintf("%v", err))
		return usageError(err)
	}

	names := make([]string, 0, len(c.Scenarios))
	for _, s := range c.Scenarios {
		names = append(names, s.Name)
	}

	slices.Sort(names)
	for _, name := range names {
		fmt.Println(name)
	}

	return nil
}

type ValidateCmd struct {
	Config string `short:"c" default:"./uiverify.yaml" help:"The location of the configuration file." completion:"<file>"`
}

func (vc *ValidateCmd) Run() error {
	c, err := loadConfig(vc.Config)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	for _, w := range c.Warnings() {
		slog.Warn(w)
	}
	steps := 0
	for _, s := range c.Scenarios {
		steps += len(s.Steps)
	}
	slog.Info(fmt.Sprintf("configuration is valid: %d scenarios with %d steps", len(c.Scenarios), steps))
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	// a missing .env file is fine, the environment may be set otherwise
	envErr := godotenv.Load()

	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	parser, err := kong.New(&cli,
		kong.Name("uiverify"),
		kong.Description("Verify the screens of a running web application with a scripted browser."),
		kong.UsageOnError(),
		kong.Vars{
			"version": string(cli.Version),
		})
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		parser.Errorf("%s", err)
		os.Exit(exitUsage)
	}

	log.Debug = cli.Debug
	log.Format = cli.LogFormat
	log.InitializeDefaultLogger()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		slog.Warn(fmt.Sprintf("could not load .env file: %v", envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err = kctx.Run()
	stop()
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		slog.Error(err.Error())
		os.Exit(exitFailed)
	}
}
