package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/uiverify/internal/log"
	"github.com/jakopako/uiverify/internal/types"
)

const pollInterval = 100 * time.Millisecond

// Chrome opens chromedp controlled Chrome tabs, either in a browser
// process started for the session or in a remote browser.
type Chrome struct {
	*Config
}

func NewChrome(c *Config) *Chrome {
	if c.WindowWidth == 0 {
		c.WindowWidth = 1280
	}
	if c.WindowHeight == 0 {
		c.WindowHeight = 800
	}
	if c.StartupTimeoutMS == 0 {
		c.StartupTimeoutMS = 30000
	}
	return &Chrome{Config: c}
}

func (c *Chrome) allocator() (context.Context, context.CancelFunc) {
	if c.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), c.RemoteURL)
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(c.WindowWidth, c.WindowHeight),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if c.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

// Open starts a browser session with a single tab showing about:blank.
func (c *Chrome) Open(ctx context.Context) (Page, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("browser", "chrome"))
	allocCtx, cancelAlloc := c.allocator()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf("chromedp error: "+format, args...))
		}),
	)
	p := &chromePage{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      logger,
	}

	startCtx, cancel := context.WithTimeout(ctx, time.Duration(c.StartupTimeoutMS)*time.Millisecond)
	defer cancel()

	// the first Run allocates the browser. It must not carry a deadline,
	// the browser would be killed when it passes, so it is raced against
	// startCtx instead.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx)
	}()
	select {
	case err := <-started:
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-startCtx.Done():
		p.abort()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("browser start interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("browser did not start within %dms: %w", c.StartupTimeoutMS, startCtx.Err())
	}

	if err := p.run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser could not load about:blank: %w", err)
	}

	if log.Debug {
		_ = p.run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			protocolVersion, product, revision, userAgent, jsVersion, err := cdpbrowser.GetVersion().Do(ctx)
			if err != nil {
				logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
				return nil
			}
			logger.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s, revision=%s, userAgent=%s, jsVersion=%s",
				protocolVersion, product, revision, userAgent, jsVersion))
			return nil
		}))
	}
	logger.Debug("browser session opened")
	return p, nil
}

type chromePage struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *slog.Logger

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
	closeErr  error
}

// run executes actions in the tab, bounded by the deadline and
// cancellation of ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("navigating", slog.String("url", url))
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// find evaluates the finder script once.
func (p *chromePage) find(ctx context.Context, loc types.Locator, mark bool) (bool, error) {
	script, err := findScript(loc, mark)
	if err != nil {
		return false, err
	}
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// poll checks for loc right away and then every pollInterval until it is
// found or ctx is done. In the latter case the context error is returned.
func (p *chromePage) poll(ctx context.Context, loc types.Locator, mark bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		found, err := p.find(ctx, loc, mark)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSessionClosed) {
				return err
			}
			if syntaxError(err) {
				return fmt.Errorf("invalid locator %s: %w", loc, err)
			}
			// evaluation fails while the document is being replaced
			p.logger.Debug(fmt.Sprintf("lookup of %s failed, retrying: %v", loc, err))
		}
		if found {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// syntaxError reports whether the page rejected the finder script, eg.
// because querySelectorAll was given an invalid selector. Retrying
// cannot help then.
func syntaxError(err error) bool {
	var exc *runtime.ExceptionDetails
	if !errors.As(err, &exc) || exc.Exception == nil {
		return false
	}
	return strings.HasPrefix(exc.Exception.Description, "SyntaxError")
}

func (p *chromePage) WaitFor(ctx context.Context, loc types.Locator) error {
	err := p.poll(ctx, loc, false)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, loc)
	}
	return err
}

// resolve marks the first element matching loc.
func (p *chromePage) resolve(ctx context.Context, loc types.Locator) error {
	err := p.poll(ctx, loc, true)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return err
}

func (p *chromePage) Click(ctx context.Context, loc types.Locator) error {
	if err := p.resolve(ctx, loc); err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(markerSelector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return err
		}
		if len(nodes) == 0 {
			// the element went away between lookup and click
			return fmt.Errorf("%w: %s", ErrElementNotFound, loc)
		}
		p.logger.Debug(fmt.Sprintf("clicking on node matching %s", loc))
		return chromedp.MouseClickNode(nodes[0]).Do(ctx)
	}))
}

func (p *chromePage) Fill(ctx context.Context, loc types.Locator, value string) (string, error) {
	if err := p.resolve(ctx, loc); err != nil {
		return "", err
	}
	actions := []chromedp.Action{
		chromedp.Focus(markerSelector, chromedp.ByQuery),
	}
	if value == "" {
		actions = append(actions, chromedp.Evaluate(clearMarkedJS, nil))
	} else {
		// inserting over the selection replaces the previous value
		actions = append(actions,
			chromedp.Evaluate(selectMarkedJS, nil),
			input.InsertText(value),
		)
	}
	var got string
	actions = append(actions, chromedp.Value(markerSelector, &got, chromedp.ByQuery))
	if err := p.run(ctx, actions...); err != nil {
		return "", err
	}
	return got, nil
}

func (p *chromePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// abort releases a page whose browser is still starting. The contexts
// are cancelled right away, the blocking part of Close runs in the
// background.
func (p *chromePage) abort() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancelTab()
	p.cancelAlloc()
	go p.Close()
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.closeErr = chromedp.Cancel(p.ctx)
		p.cancelTab()
		p.cancelAlloc()
		p.logger.Debug("browser session closed")
	})
	return p.closeErr
}
