// Package browser provides the browser session a verification run drives.
package browser

import (
	"context"
	"errors"

	"github.com/jakopako/uiverify/internal/types"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrWaitTimeout     = errors.New("timed out waiting for condition")
	ErrSessionClosed   = errors.New("browser session closed")
)

// A Browser opens pages. Every call to Open starts a new session that
// is owned by the caller until Close is called on the returned Page.
type Browser interface {
	Open(ctx context.Context) (Page, error)
}

// Page is a single browser tab. The deadline of the context passed to
// each method bounds that operation.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching loc. It returns
	// ErrElementNotFound if no element matches before ctx is done.
	Click(ctx context.Context, loc types.Locator) error
	// Fill replaces the value of the first field matching loc with value
	// and returns the value the field holds afterwards.
	Fill(ctx context.Context, loc types.Locator, value string) (string, error)
	// WaitFor blocks until an element matching loc is visible. It returns
	// ErrWaitTimeout if the deadline of ctx passes first.
	WaitFor(ctx context.Context, loc types.Locator) error
	// Screenshot captures the viewport, or the whole page if fullPage is set,
	// as png.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// HTML returns the outer html of the current document.
	HTML(ctx context.Context) (string, error)
	// Close releases the page and its browser. It is safe to call Close
	// more than once.
	Close() error
}

// Config holds the browser settings.
type Config struct {
	Headful          bool   `yaml:"headful" env:"UIVERIFY_HEADFUL"`
	NoSandbox        bool   `yaml:"no_sandbox" env:"UIVERIFY_NO_SANDBOX"`
	RemoteURL        string `yaml:"remote_url" env:"UIVERIFY_REMOTE_URL"` // DevTools websocket url of an already running browser
	ExecPath         string `yaml:"exec_path" env:"UIVERIFY_CHROME_PATH"`
	UserAgent        string `yaml:"user_agent" env:"UIVERIFY_USER_AGENT"`
	WindowWidth      int    `yaml:"window_width" env-default:"1280"`
	WindowHeight     int    `yaml:"window_height" env-default:"800"`
	StartupTimeoutMS int    `yaml:"startup_timeout_ms" env-default:"30000"`
}
