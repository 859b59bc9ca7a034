package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jakopako/uiverify/internal/output"
	"github.com/jakopako/uiverify/internal/types"
)

const configYAML = `target_url: http://localhost:9000
browser:
  no_sandbox: true
run:
  wait_timeout_ms: 2000
include:
  - scenarios/*.yaml
scenarios:
  - name: menu
    steps:
      - kind: wait_for_text
        text: Trade Tycoon
`

const scenariosYAML = `scenarios:
  - name: join-room
    steps:
      - kind: click
        text: Online Multiplayer
      - kind: fill
        placeholder: Your Name
        value: "  Player2  "
      - kind: screenshot
        path: join.png
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "uiverify.yaml"), configYAML)
	writeFile(t, filepath.Join(dir, "scenarios", "join.yaml"), scenariosYAML)

	c, err := NewConfig(filepath.Join(dir, "uiverify.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TargetURL != "http://localhost:9000" {
		t.Errorf("expected target url http://localhost:9000, got %s", c.TargetURL)
	}
	if !c.Browser.NoSandbox {
		t.Error("expected no_sandbox to be set")
	}
	if c.Browser.WindowWidth != 1280 {
		t.Errorf("expected default window width 1280, got %d", c.Browser.WindowWidth)
	}
	if c.Run.WaitTimeoutMS != 2000 {
		t.Errorf("expected wait timeout 2000, got %d", c.Run.WaitTimeoutMS)
	}
	if c.Run.NavigationTimeoutMS != 30000 {
		t.Errorf("expected default navigation timeout 30000, got %d", c.Run.NavigationTimeoutMS)
	}
	if c.Writer.Type != output.STDOUT_WRITER_TYPE {
		t.Errorf("expected default writer stdout, got %s", c.Writer.Type)
	}
	if c.Writer.FileDir != "" {
		t.Errorf("expected report dir to be left unset, got %s", c.Writer.FileDir)
	}
	if len(c.Scenarios) != 2 || c.Scenarios[0].Name != "menu" || c.Scenarios[1].Name != "join-room" {
		t.Fatalf("unexpected scenarios %+v", c.Scenarios)
	}
	if v := c.Scenarios[1].Steps[1].Value; v != "  Player2  " {
		t.Errorf("expected fill value %q, got %q", "  Player2  ", v)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestNewConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "uiverify.yaml"), "target_url: http://localhost:9000\n")
	t.Setenv("UIVERIFY_TARGET_URL", "http://staging.example.com")
	t.Setenv("UIVERIFY_ARTIFACT_DIR", "/tmp/shots")

	c, err := NewConfig(filepath.Join(dir, "uiverify.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TargetURL != "http://staging.example.com" {
		t.Errorf("expected target url from env, got %s", c.TargetURL)
	}
	if c.Run.ArtifactDir != "/tmp/shots" {
		t.Errorf("expected artifact dir from env, got %s", c.Run.ArtifactDir)
	}
}

func TestNewConfigEnvOnly(t *testing.T) {
	c, err := NewConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TargetURL == "" || c.Run.ArtifactDir == "" {
		t.Errorf("expected defaults to be applied, got %+v", c)
	}
	if len(c.Scenarios) != 0 {
		t.Errorf("expected no scenarios, got %d", len(c.Scenarios))
	}
}

func TestNewConfigIncludeErrors(t *testing.T) {
	tests := []struct {
		name     string
		include  string
		expected string
	}{
		{"no match", "include:\n  - missing/*.yaml\n", "matches no files"},
		{"unknown field", "include:\n  - bad.yaml\n", "field stepz not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "uiverify.yaml"), tt.include)
			writeFile(t, filepath.Join(dir, "bad.yaml"), "scenarios:\n  - name: x\n    stepz: []\n")
			_, err := NewConfig(filepath.Join(dir, "uiverify.yaml"))
			if err == nil || !strings.Contains(err.Error(), tt.expected) {
				t.Errorf("expected error containing %q, got %v", tt.expected, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	click := types.Step{Kind: types.StepClick, Text: "Online Multiplayer"}
	tests := []struct {
		name     string
		config   Config
		expected []string
	}{
		{
			name:   "valid",
			config: Config{TargetURL: "http://localhost:8081", Scenarios: []types.Scenario{{Name: "a", Steps: []types.Step{click}}}},
		},
		{
			name:     "relative target",
			config:   Config{TargetURL: "localhost:8081"},
			expected: []string{"absolute http(s) url"},
		},
		{
			name: "scenario problems",
			config: Config{TargetURL: "http://localhost:8081", Scenarios: []types.Scenario{
				{Name: "a", Steps: []types.Step{click}},
				{Name: "a", Steps: []types.Step{{Kind: types.StepFill, Text: "Your Name"}}},
				{Steps: []types.Step{click}},
				{Name: "empty"},
			}},
			expected: []string{
				`scenario name "a" is used more than once`,
				`scenario "a" step 1: fill needs a selector or a placeholder`,
				"scenario 2 has no name",
				`scenario "empty" has no steps`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if len(tt.expected) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, e := range tt.expected {
				if !strings.Contains(err.Error(), e) {
					t.Errorf("expected error to contain %q, got %v", e, err)
				}
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	c := Config{Scenarios: []types.Scenario{
		{Name: "lobby", Steps: []types.Step{
			{Kind: types.StepClick, Text: "New Lobby"},
			{Kind: types.StepWaitForTimeout, Timeout: 500},
		}},
	}}
	w := c.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], `scenario "lobby" step 2 waits a fixed 500ms`) {
		t.Errorf("unexpected warnings %v", w)
	}
}

func TestSelect(t *testing.T) {
	c := Config{Scenarios: []types.Scenario{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	tests := []struct {
		names     []string
		expected  []string
		expectErr bool
	}{
		{nil, []string{"a", "b", "c"}, false},
		{[]string{"c", "a"}, []string{"a", "c"}, false},
		{[]string{"b", "d"}, nil, true},
	}
	for _, tt := range tests {
		got, err := c.Select(tt.names)
		if (err != nil) != tt.expectErr {
			t.Errorf("Select(%v) error = %v, expected error: %t", tt.names, err, tt.expectErr)
			continue
		}
		var names []string
		for _, s := range got {
			names = append(names, s.Name)
		}
		if strings.Join(names, ",") != strings.Join(tt.expected, ",") {
			t.Errorf("Select(%v) = %v; want %v", tt.names, names, tt.expected)
		}
	}
}

func TestBundledConfig(t *testing.T) {
	c, err := NewConfig(filepath.Join("..", "..", "uiverify.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if w := c.Warnings(); len(w) != 0 {
		t.Errorf("expected the bundled scenarios to wait for conditions only, got %v", w)
	}
	names := []string{}
	for _, s := range c.Scenarios {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "new-game-screens,join-room" {
		t.Errorf("unexpected bundled scenarios %v", names)
	}
}
