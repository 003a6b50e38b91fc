package schemas

import (
	"context"
)

// -- Browser Session Interfaces --

// SessionDriver holds one remote browser session and exposes the UI primitives
// the reboot sequence is built from. Every method is bounded by a configured
// timeout and returns a *StepError for classified failures.
//
//go:generate mockery --name SessionDriver --output ../../internal/mocks --outpkg mocks
type SessionDriver interface {
	// Open navigates the session to url.
	Open(ctx context.Context, url string) error
	// FillLogin enters the password into the login form and submits it.
	FillLogin(ctx context.Context, password string) error
	// NavigateToReboot walks the menus from the landing page to the reboot control.
	NavigateToReboot(ctx context.Context) error
	// TriggerReboot activates the reboot control and any confirmation dialogs.
	TriggerReboot(ctx context.Context) error
	// AwaitRestart waits for a signal that the device is restarting.
	AwaitRestart(ctx context.Context) error
	// CaptureDiagnostics returns the current page state. It may return a partial
	// bundle together with an error.
	CaptureDiagnostics(ctx context.Context) (*DiagnosticBundle, error)
	// Close releases the session. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Connector acquires a SessionDriver against the automation endpoint.
//
//go:generate mockery --name Connector --output ../../internal/mocks --outpkg mocks
type Connector interface {
	Connect(ctx context.Context) (SessionDriver, error)
}

// ArtifactWriter persists a diagnostic bundle and reports where it went.
type ArtifactWriter interface {
	Write(bundle *DiagnosticBundle) (*ArtifactPaths, error)
}
