// Package config reads the verification configuration: where the
// application under test lives, how to drive the browser, where to put
// artifacts and which scenarios exist.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jakopako/uiverify/internal/browser"
	"github.com/jakopako/uiverify/internal/output"
	"github.com/jakopako/uiverify/internal/runner"
	"github.com/jakopako/uiverify/internal/types"
	"gopkg.in/yaml.v3"
)

// Config defines the overall structure of the verification configuration.
// Values will be taken from a config yml file or environment variables
// or both.
type Config struct {
	TargetURL string              `yaml:"target_url" env:"UIVERIFY_TARGET_URL" env-default:"http://localhost:8081"`
	Browser   browser.Config      `yaml:"browser"`
	Run       runner.Config       `yaml:"run"`
	Writer    output.WriterConfig `yaml:"writer"`
	Include   []string            `yaml:"include"` // globs of scenario files, relative to the config file
	Scenarios []types.Scenario    `yaml:"scenarios"`
}

// scenarioFile is the layout of an included file.
type scenarioFile struct {
	Scenarios []types.Scenario `yaml:"scenarios"`
}

// NewConfig reads the config file at configPath and the files it
// includes. An empty configPath reads the environment only.
func NewConfig(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, err
		}
	} else {
		if err := cleanenv.ReadConfig(configPath, &config); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
		dir := filepath.Dir(configPath)
		for _, pattern := range config.Include {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(dir, pattern)
			}
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("include pattern %q matches no files", pattern)
			}
			for _, m := range matches {
				scenarios, err := readScenarios(m)
				if err != nil {
					return nil, err
				}
				config.Scenarios = append(config.Scenarios, scenarios...)
			}
		}
	}

	return &config, nil
}

func readScenarios(path string) ([]types.Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var sf scenarioFile
	d := yaml.NewDecoder(file)
	d.KnownFields(true)
	if err := d.Decode(&sf); err != nil {
		return nil, fmt.Errorf("failed to read scenarios from %s: %w", path, err)
	}
	return sf.Scenarios, nil
}

// Validate returns all problems of the configuration joined together or
// nil.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.TargetURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid target url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		errs = append(errs, fmt.Errorf("target url %q needs to be an absolute http(s) url", c.TargetURL))
	}

	seen := map[string]bool{}
	for i, s := range c.Scenarios {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("scenario %d has no name", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("scenario name %q is used more than once", s.Name))
		}
		seen[s.Name] = true
		if len(s.Steps) == 0 {
			errs = append(errs, fmt.Errorf("scenario %q has no steps", s.Name))
		}
		for j, step := range s.Steps {
			if err := step.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("scenario %q step %d: %w", s.Name, j+1, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Warnings lists steps that are valid but likely to make runs flaky.
func (c *Config) Warnings() []string {
	var warnings []string
	for _, s := range c.Scenarios {
		for j, step := range s.Steps {
			if step.Kind == types.StepWaitForTimeout {
				warnings = append(warnings, fmt.Sprintf("scenario %q step %d waits a fixed %dms, prefer waiting for text or a selector", s.Name, j+1, step.Timeout))
			}
		}
	}
	return warnings
}

// Select returns the scenarios with the given names in the order they
// are configured. No names selects all scenarios.
func (c *Config) Select(names []string) ([]types.Scenario, error) {
	if len(names) == 0 {
		return c.Scenarios, nil
	}
	var result []types.Scenario
	for _, s := range c.Scenarios {
		if slices.Contains(names, s.Name) {
			result = append(result, s)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(result, func(s types.Scenario) bool { return s.Name == n }) {
			return nil, fmt.Errorf("no scenario named %q", n)
		}
	}
	return result, nil
}
