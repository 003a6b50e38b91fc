// api/schemas/run.go
package schemas

import (
	"time"
)

// RunState is a state of the reboot sequence.
type RunState string

const (
	StateInit           RunState = "INIT"
	StateAuthenticating RunState = "AUTHENTICATING"
	StateNavigating     RunState = "NAVIGATING"
	StateConfirming     RunState = "CONFIRMING"
	StateSucceeded      RunState = "SUCCEEDED"
	StateFailed         RunState = "FAILED"
)

// IsTerminal reports whether no further transition can happen.
func (s RunState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// RunStatus is the coarse outcome of a run.
type RunStatus string

const (
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailure RunStatus = "FAILURE"
)

// DiagnosticBundle is the page state captured when a run fails.
type DiagnosticBundle struct {
	Screenshot []byte
	PageSource string
	URL        string
}

// IsEmpty reports whether nothing was captured.
func (b *DiagnosticBundle) IsEmpty() bool {
	return b == nil || (len(b.Screenshot) == 0 && b.PageSource == "")
}

// ArtifactPaths points at the files written for a failed run. A path is empty
// when that part of the bundle could not be captured.
type ArtifactPaths struct {
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	PageSourcePath string `json:"page_source_path,omitempty"`
}

// RunResult is produced once per run and mapped to the process exit code.
type RunResult struct {
	RunID         string         `json:"run_id"`
	Status        RunStatus      `json:"status"`
	FinalState    RunState       `json:"final_state"`
	FailedIn      RunState       `json:"failed_in,omitempty"`
	FailureKind   ErrorKind      `json:"failure_kind,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Artifacts     *ArtifactPaths `json:"artifacts,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
	// Err is the error that ended the run, kept for errors.Is checks.
	Err error `json:"-"`
}

// Succeeded reports whether the run reached StateSucceeded.
func (r *RunResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// ExitCode maps the result to the process status: 0 on success, 1 otherwise.
func (r *RunResult) ExitCode() int {
	if r.Succeeded() {
		return 0
	}
	return 1
}
