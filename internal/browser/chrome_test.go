package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jakopako/uiverify/internal/types"
)

const menuPage = `<!DOCTYPE html>
<html><head><title>Trade Tycoon</title></head>
<body>
<div id="menu">
  <h1>Trade Tycoon</h1>
  <div role="button" onclick="show('join')"><span>Online Multiplayer</span></div>
  <div role="button" onclick="setTimeout(() => document.getElementById('toast').style.display = 'block', 300)">New Lobby</div>
</div>
<div id="join" style="display:none">
  <input placeholder="Your Name" value="old">
  <input placeholder="Room Code (e.g. ABCD123)">
</div>
<div id="toast" style="display:none">Coming soon</div>
<script>
function show(id) {
  document.getElementById('menu').style.display = 'none';
  document.getElementById(id).style.display = 'block';
}
</script>
</body></html>`

// chromePath finds a Chrome binary, the test is skipped if there is none.
func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("UIVERIFY_CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no chrome binary found, skipping browser test")
	return ""
}

func openTestPage(t *testing.T) (Page, string) {
	t.Helper()
	exe := chromePath(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(menuPage))
	}))
	t.Cleanup(srv.Close)

	c := NewChrome(&Config{ExecPath: exe, NoSandbox: true})
	p, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("failed to open browser: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, srv.URL
}

func withTimeout(t *testing.T, d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestChromeJoinFlow(t *testing.T) {
	p, url := openTestPage(t)

	if err := p.Navigate(withTimeout(t, 10*time.Second), url); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := p.WaitFor(withTimeout(t, 5*time.Second), types.Locator{Kind: types.LocateByText, Value: "trade  tycoon"}); err != nil {
		t.Fatalf("wait for title: %v", err)
	}
	if err := p.Click(withTimeout(t, 5*time.Second), types.Locator{Kind: types.LocateByText, Value: "Online Multiplayer"}); err != nil {
		t.Fatalf("click: %v", err)
	}

	tests := []struct {
		placeholder string
		value       string
	}{
		{"Your Name", "  Player2  "},
		{"Room Code (e.g. ABCD123)", "  abcd123  "},
		{"Your Name", ""},
	}
	for _, tt := range tests {
		got, err := p.Fill(withTimeout(t, 5*time.Second), types.Locator{Kind: types.LocateByPlaceholder, Value: tt.placeholder}, tt.value)
		if err != nil {
			t.Fatalf("fill %s: %v", tt.placeholder, err)
		}
		if got != tt.value {
			t.Errorf("field %q holds %q after fill; want %q", tt.placeholder, got, tt.value)
		}
	}

	buf, err := p.Screenshot(withTimeout(t, 5*time.Second), false)
	if err != nil {
		t.Fatalf("screenshot: %v", err)
	}
	if len(buf) < 8 || string(buf[1:4]) != "PNG" {
		t.Errorf("expected png data")
	}
}

func TestChromeWaitForTimeout(t *testing.T) {
	p, url := openTestPage(t)
	if err := p.Navigate(withTimeout(t, 10*time.Second), url); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	// hidden text does not count
	start := time.Now()
	err := p.WaitFor(withTimeout(t, 500*time.Millisecond), types.Locator{Kind: types.LocateByText, Value: "Coming soon"})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if time.Since(start) < 500*time.Millisecond {
		t.Errorf("wait returned before its deadline")
	}

	if err := p.Click(withTimeout(t, 5*time.Second), types.Locator{Kind: types.LocateByText, Value: "New Lobby"}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if err := p.WaitFor(withTimeout(t, 2*time.Second), types.Locator{Kind: types.LocateByText, Value: "Coming soon"}); err != nil {
		t.Fatalf("wait for toast: %v", err)
	}
}

func TestChromeElementNotFound(t *testing.T) {
	p, url := openTestPage(t)
	if err := p.Navigate(withTimeout(t, 10*time.Second), url); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	err := p.Click(withTimeout(t, 300*time.Millisecond), types.Locator{Kind: types.LocateByText, Value: "Join Existing Room"})
	if !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
}

func TestChromeNavigateUnreachable(t *testing.T) {
	p, _ := openTestPage(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := p.Navigate(withTimeout(t, 10*time.Second), url); err == nil {
		t.Fatalf("expected navigation to a closed server to fail")
	}
}

func TestChromeCloseTwice(t *testing.T) {
	p, _ := openTestPage(t)
	p.Close()
	p.Close()
	if err := p.Navigate(context.Background(), "about:blank"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after close, got %v", err)
	}
}

func TestChromeInvalidSelector(t *testing.T) {
	p, url := openTestPage(t)
	if err := p.Navigate(withTimeout(t, 10*time.Second), url); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	start := time.Now()
	err := p.WaitFor(withTimeout(t, 5*time.Second), types.Locator{Kind: types.LocateBySelector, Value: "button[[["})
	if err == nil || errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected a selector error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("invalid selector was retried until the deadline")
	}
}

// hangingDevTools accepts connections but never answers the DevTools
// version request.
func hangingDevTools(t *testing.T) string {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return "ws://" + srv.Listener.Addr().String()
}

func TestChromeStartupTimeout(t *testing.T) {
	c := NewChrome(&Config{RemoteURL: hangingDevTools(t), StartupTimeoutMS: 300})

	start := time.Now()
	p, err := c.Open(context.Background())
	if err == nil {
		p.Close()
		t.Fatal("expected open to fail")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, got %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("open returned after %s, expected the startup timeout to apply", d)
	}
}

func TestChromeStartupCancelled(t *testing.T) {
	c := NewChrome(&Config{RemoteURL: hangingDevTools(t)})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)
	start := time.Now()
	p, err := c.Open(ctx)
	if err == nil {
		p.Close()
		t.Fatal("expected open to fail")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected a cancellation error, got %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("open returned after %s, expected cancellation to stop it", d)
	}
}
