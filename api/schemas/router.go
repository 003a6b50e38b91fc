// api/schemas/router.go
package schemas

import (
	"fmt"
	"net/url"
	"strings"
)

// RouterTarget identifies the device to reboot. It is built once from
// configuration and never modified afterwards.
type RouterTarget struct {
	AdminURL string `mapstructure:"admin_url" yaml:"admin_url"`
	Password string `mapstructure:"password" yaml:"password"`
	// IP is informational and only appears in logs.
	IP string `mapstructure:"ip" yaml:"ip"`
}

// Validate enforces the invariants that must hold before a browser session is opened.
func (t RouterTarget) Validate() error {
	if strings.TrimSpace(t.AdminURL) == "" {
		return NewStepError(ErrKindConfiguration, "ROUTER_ADMIN_URL", fmt.Errorf("admin URL is not set"))
	}
	u, err := url.Parse(t.AdminURL)
	if err != nil {
		return NewStepError(ErrKindConfiguration, "ROUTER_ADMIN_URL", fmt.Errorf("admin URL is malformed: %w", err))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewStepError(ErrKindConfiguration, "ROUTER_ADMIN_URL",
			fmt.Errorf("admin URL %q must be an absolute http(s) URL", t.AdminURL))
	}
	if t.Password == "" {
		return NewStepError(ErrKindConfiguration, "ROUTER_PASSWORD", fmt.Errorf("router password is not set"))
	}
	return nil
}

// SelectorKind tells a driver how to interpret Selector.Value.
type SelectorKind string

const (
	SelectorByID    SelectorKind = "id"
	SelectorByCSS   SelectorKind = "css"
	SelectorByXPath SelectorKind = "xpath"
)

// Selector locates one UI control. Selectors are firmware specific, so they
// live in configuration rather than in code.
type Selector struct {
	By          SelectorKind `mapstructure:"by" yaml:"by"`
	Value       string       `mapstructure:"value" yaml:"value"`
	Description string       `mapstructure:"description" yaml:"description"`
}

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool { return s.Value == "" }

// Name is what logs and errors call this selector.
func (s Selector) Name() string {
	if s.Description != "" {
		return s.Description
	}
	return fmt.Sprintf("%s=%s", s.By, s.Value)
}

// Validate checks that the selector is usable.
func (s Selector) Validate() error {
	if s.Value == "" {
		return fmt.Errorf("selector value is empty")
	}
	switch s.By {
	case SelectorByID, SelectorByCSS, SelectorByXPath:
		return nil
	default:
		return fmt.Errorf("selector %q has unsupported kind %q (supported: id, css, xpath)", s.Name(), s.By)
	}
}

// LoginFlow describes the router's login form.
type LoginFlow struct {
	Password Selector `mapstructure:"password" yaml:"password"`
	Submit   Selector `mapstructure:"submit" yaml:"submit"`
	// Error is optional. When set and visible after submitting, the login is
	// rejected immediately instead of waiting for the form to disappear.
	Error Selector `mapstructure:"error" yaml:"error"`
}

// ConfirmationFlow describes how a restart is recognised after the trigger.
type ConfirmationFlow struct {
	// Indicator is optional; its presence means the router is restarting.
	Indicator Selector `mapstructure:"indicator" yaml:"indicator"`
	// Dismissed is optional; its disappearance means the restart was accepted.
	Dismissed Selector `mapstructure:"dismissed" yaml:"dismissed"`
	// DetectNavigation treats leaving the page seen at trigger time as a signal.
	DetectNavigation bool `mapstructure:"detect_navigation" yaml:"detect_navigation"`
	// DetectUnreachable treats a failed probe of the admin URL as a signal.
	DetectUnreachable bool `mapstructure:"detect_unreachable" yaml:"detect_unreachable"`
}

// Flow is the complete UI path from login to the restart signal.
type Flow struct {
	Login LoginFlow `mapstructure:"login" yaml:"login"`
	// Overlay is a blocking mask that must vanish before the UI is usable.
	Overlay Selector `mapstructure:"overlay" yaml:"overlay"`
	// Navigation is clicked in order from the landing page to the reboot page.
	Navigation []Selector `mapstructure:"navigation" yaml:"navigation"`
	// Reboot is the control that starts the reboot.
	Reboot Selector `mapstructure:"reboot" yaml:"reboot"`
	// Confirmations are dialog buttons clicked in order after Reboot.
	Confirmations []Selector       `mapstructure:"confirmations" yaml:"confirmations"`
	Confirmation  ConfirmationFlow `mapstructure:"confirmation" yaml:"confirmation"`
}

// Validate checks every selector of the flow.
func (f Flow) Validate() error {
	required := []struct {
		key string
		sel Selector
	}{
		{"flow.login.password", f.Login.Password},
		{"flow.login.submit", f.Login.Submit},
		{"flow.reboot", f.Reboot},
	}
	for _, r := range required {
		if err := r.sel.Validate(); err != nil {
			return fmt.Errorf("%s: %w", r.key, err)
		}
	}
	optional := []Selector{f.Login.Error, f.Overlay, f.Confirmation.Indicator, f.Confirmation.Dismissed}
	optional = append(optional, f.Navigation...)
	optional = append(optional, f.Confirmations...)
	for _, sel := range optional {
		if sel.IsZero() {
			continue
		}
		if err := sel.Validate(); err != nil {
			return fmt.Errorf("flow: %w", err)
		}
	}
	c := f.Confirmation
	if c.Indicator.IsZero() && c.Dismissed.IsZero() && !c.DetectNavigation && !c.DetectUnreachable {
		return fmt.Errorf("flow.confirmation: at least one restart signal must be enabled")
	}
	return nil
}
