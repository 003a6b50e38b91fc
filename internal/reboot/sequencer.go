// Package reboot drives one reboot run: a short linear state machine over a
// schemas.SessionDriver with diagnostic capture on failure.
package reboot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
)

// Options are the per-run settings the sequencer needs beyond the target.
type Options struct {
	// DebugPause keeps a failed session open for live inspection.
	DebugPause time.Duration
}

// step is one transition of the run. It executes while the run is in from
// and moves it to to on success.
type step struct {
	from schemas.RunState
	to   schemas.RunState
	do   func(ctx context.Context, d schemas.SessionDriver) error
}

// Sequencer runs the login, navigate, trigger and confirm sequence once.
// A Sequencer is not safe for concurrent use; create one per run.
type Sequencer struct {
	target    schemas.RouterTarget
	connector schemas.Connector
	artifacts schemas.ArtifactWriter
	opts      Options
	logger    *zap.Logger

	state schemas.RunState
	now   func() time.Time
}

// NewSequencer creates a Sequencer for target.
func NewSequencer(target schemas.RouterTarget, connector schemas.Connector, artifacts schemas.ArtifactWriter, opts Options, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		target:    target,
		connector: connector,
		artifacts: artifacts,
		opts:      opts,
		logger:    logger.Named("sequencer"),
		state:     schemas.StateInit,
		now:       time.Now,
	}
}

// State returns the current state of the run.
func (s *Sequencer) State() schemas.RunState {
	return s.state
}

func (s *Sequencer) steps() []step {
	return []step{
		{schemas.StateInit, schemas.StateAuthenticating, func(ctx context.Context, d schemas.SessionDriver) error {
			if err := d.Open(ctx, s.target.AdminURL); err != nil {
				return err
			}
			return d.FillLogin(ctx, s.target.Password)
		}},
		{schemas.StateAuthenticating, schemas.StateNavigating, func(ctx context.Context, d schemas.SessionDriver) error {
			return d.NavigateToReboot(ctx)
		}},
		{schemas.StateNavigating, schemas.StateConfirming, func(ctx context.Context, d schemas.SessionDriver) error {
			return d.TriggerReboot(ctx)
		}},
		{schemas.StateConfirming, schemas.StateSucceeded, func(ctx context.Context, d schemas.SessionDriver) error {
			return d.AwaitRestart(ctx)
		}},
	}
}

// Run executes the sequence and returns its result. It never panics on a
// step failure and always releases the session it acquired.
func (s *Sequencer) Run(ctx context.Context) (result *schemas.RunResult) {
	result = &schemas.RunResult{
		RunID:      uuid.NewString(),
		StartedAt:  s.now(),
		FinalState: schemas.StateInit,
	}
	logger := s.logger.With(zap.String("run_id", result.RunID))
	defer func() {
		result.Duration = s.now().Sub(result.StartedAt)
		result.FinalState = s.state
		logger.Info("Automation finished.",
			zap.String("status", string(result.Status)),
			zap.String("final_state", string(result.FinalState)),
			zap.Duration("duration", result.Duration))
	}()

	logger.Info("Starting router reboot.",
		zap.String("admin_url", s.target.AdminURL),
		zap.String("router_ip", s.target.IP))

	if err := s.target.Validate(); err != nil {
		s.fail(logger, result, err)
		return result
	}

	driver, err := s.connector.Connect(ctx)
	if err != nil {
		s.fail(logger, result, err)
		return result
	}
	defer s.release(ctx, logger, driver)

	for _, st := range s.steps() {
		if err := st.do(ctx, driver); err != nil {
			s.fail(logger, result, err)
			s.collectDiagnostics(ctx, logger, driver, result)
			s.debugPause(ctx, logger)
			return result
		}
		s.transition(logger, st.to)
	}

	result.Status = schemas.StatusSuccess
	logger.Info("Router reboot initiated successfully.")
	return result
}

func (s *Sequencer) transition(logger *zap.Logger, to schemas.RunState) {
	logger.Debug("State transition.", zap.String("from", string(s.state)), zap.String("to", string(to)))
	s.state = to
}

// fail moves the run to Failed and records the reason. It must run before
// diagnostics so a later capture error cannot replace the reason.
func (s *Sequencer) fail(logger *zap.Logger, result *schemas.RunResult, err error) {
	result.Status = schemas.StatusFailure
	result.FailedIn = s.state
	result.FailureKind = schemas.KindOf(err)
	result.FailureReason = err.Error()
	result.Err = err

	logger.Error("Router reboot failed.",
		zap.String("state", string(s.state)),
		zap.String("kind", string(result.FailureKind)),
		zap.Error(err))
	s.transition(logger, schemas.StateFailed)
}

// collectDiagnostics captures and persists page state. Every failure here is
// logged and otherwise ignored.
func (s *Sequencer) collectDiagnostics(ctx context.Context, logger *zap.Logger, driver schemas.SessionDriver, result *schemas.RunResult) {
	logger.Info("Capturing diagnostics.")

	bundle, err := driver.CaptureDiagnostics(browser.Detach(ctx))
	if err != nil {
		logger.Warn("Diagnostic capture incomplete.", zap.Error(err))
	}
	if bundle.IsEmpty() {
		logger.Warn("No diagnostics captured.")
	}
	if bundle != nil && bundle.URL != "" {
		logger.Info("Page at failure.", zap.String("url", bundle.URL))
	}

	// Written even when empty, so files from an earlier run are cleared.
	paths, err := s.artifacts.Write(bundle)
	if err != nil {
		logger.Error("Failed to write error artifacts.", zap.Error(err))
	}
	if paths != nil && (paths.ScreenshotPath != "" || paths.PageSourcePath != "") {
		result.Artifacts = paths
		logger.Info("Error artifacts saved.",
			zap.String("screenshot", paths.ScreenshotPath),
			zap.String("page_source", paths.PageSourcePath))
	}
}

func (s *Sequencer) debugPause(ctx context.Context, logger *zap.Logger) {
	if s.opts.DebugPause <= 0 {
		return
	}
	logger.Info("Pausing before closing the session for inspection.", zap.Duration("pause", s.opts.DebugPause))
	if err := browser.Sleep(ctx, s.opts.DebugPause); err != nil {
		logger.Info("Debug pause interrupted.", zap.Error(err))
	}
}

// release closes the session on a context that ignores run cancellation.
func (s *Sequencer) release(ctx context.Context, logger *zap.Logger, driver schemas.SessionDriver) {
	logger.Info("Closing browser session.")
	if err := driver.Close(browser.Detach(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
	}
}
