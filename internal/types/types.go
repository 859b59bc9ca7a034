// Package types defines shared types used across the application.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// StepKind is the action a Step performs.
type StepKind string

const (
	StepNavigate        StepKind = "navigate"
	StepClick           StepKind = "click"
	StepFill            StepKind = "fill"
	StepWaitForText     StepKind = "wait_for_text"
	StepWaitForSelector StepKind = "wait_for_selector"
	StepWaitForTimeout  StepKind = "wait_for_timeout"
	StepScreenshot      StepKind = "screenshot"
)

// StepKinds lists all supported step kinds.
var StepKinds = []StepKind{
	StepNavigate,
	StepClick,
	StepFill,
	StepWaitForText,
	StepWaitForSelector,
	StepWaitForTimeout,
	StepScreenshot,
}

// Step represents a single user interaction with a webpage or a
// condition to wait for. Only the fields relevant to the kind are set.
type Step struct {
	Kind        StepKind `yaml:"kind" json:"kind"`
	Text        string   `yaml:"text,omitempty" json:"text,omitempty"`
	Selector    string   `yaml:"selector,omitempty" json:"selector,omitempty"`
	Placeholder string   `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Value       string   `yaml:"value,omitempty" json:"value,omitempty"`
	URL         string   `yaml:"url,omitempty" json:"url,omitempty"`
	Path        string   `yaml:"path,omitempty" json:"path,omitempty"`
	FullPage    bool     `yaml:"full_page,omitempty" json:"fullPage,omitempty"`
	Timeout     int      `yaml:"timeout,omitempty" json:"timeout,omitempty"` // ms
	Message     string   `yaml:"message,omitempty" json:"message,omitempty"`
}

// LocatorKind says how a Locator addresses an element.
type LocatorKind string

const (
	LocateByText        LocatorKind = "text"
	LocateBySelector    LocatorKind = "css"
	LocateByPlaceholder LocatorKind = "placeholder"
)

// Locator addresses an element on the page.
type Locator struct {
	Kind  LocatorKind
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Kind, l.Value)
}

// IsZero reports whether the locator addresses nothing.
func (l Locator) IsZero() bool {
	return l.Kind == "" && l.Value == ""
}

// Locator returns the element the step addresses. A selector wins over a
// placeholder, a placeholder wins over text.
func (s Step) Locator() Locator {
	switch {
	case s.Selector != "":
		return Locator{Kind: LocateBySelector, Value: s.Selector}
	case s.Placeholder != "":
		return Locator{Kind: LocateByPlaceholder, Value: s.Placeholder}
	case s.Text != "":
		return Locator{Kind: LocateByText, Value: s.Text}
	}
	return Locator{}
}

// Describe returns a short human readable form of the step, eg.
// `click text=Online Multiplayer`.
func (s Step) Describe() string {
	switch s.Kind {
	case StepNavigate:
		return fmt.Sprintf("%s %s", s.Kind, s.URL)
	case StepClick, StepWaitForText, StepWaitForSelector:
		return fmt.Sprintf("%s %s", s.Kind, s.Locator())
	case StepFill:
		return fmt.Sprintf("%s %s %q", s.Kind, s.Locator(), s.Value)
	case StepWaitForTimeout:
		return fmt.Sprintf("%s %dms", s.Kind, s.Timeout)
	case StepScreenshot:
		return fmt.Sprintf("%s %s", s.Kind, s.Path)
	}
	return string(s.Kind)
}

// Validate checks that the step carries the parameters its kind needs.
func (s Step) Validate() error {
	var errs []error
	switch s.Kind {
	case StepNavigate:
		if s.URL == "" {
			errs = append(errs, errors.New("navigate needs a url"))
		}
	case StepClick:
		if s.Locator().IsZero() {
			errs = append(errs, errors.New("click needs one of text, selector or placeholder"))
		}
	case StepFill:
		if s.Selector == "" && s.Placeholder == "" {
			errs = append(errs, errors.New("fill needs a selector or a placeholder"))
		}
	case StepWaitForText:
		if strings.TrimSpace(s.Text) == "" {
			errs = append(errs, errors.New("wait_for_text needs a text"))
		}
	case StepWaitForSelector:
		if s.Selector == "" && s.Placeholder == "" {
			errs = append(errs, errors.New("wait_for_selector needs a selector or a placeholder"))
		}
	case StepWaitForTimeout:
		if s.Timeout <= 0 {
			errs = append(errs, errors.New("wait_for_timeout needs a positive timeout"))
		}
	case StepScreenshot:
		if s.Path == "" {
			errs = append(errs, errors.New("screenshot needs a path"))
		}
	case "":
		errs = append(errs, errors.New("step kind missing"))
	default:
		errs = append(errs, fmt.Errorf("unknown step kind %q", s.Kind))
	}
	if s.Selector != "" {
		if _, err := cascadia.ParseGroup(s.Selector); err != nil {
			errs = append(errs, fmt.Errorf("invalid selector %q: %w", s.Selector, err))
		}
	}
	if s.Timeout < 0 {
		errs = append(errs, fmt.Errorf("negative timeout %d", s.Timeout))
	}
	return errors.Join(errs...)
}

// Scenario is a named, ordered list of steps run in one browser session.
// Path is resolved against the target URL and is the page the session
// starts on.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Path        string `yaml:"path,omitempty" json:"path,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}
