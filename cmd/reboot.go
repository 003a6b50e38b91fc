// File: cmd/reboot.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
	"github.com/xkilldash9x/rebootctl/internal/browser/cdp"
	"github.com/xkilldash9x/rebootctl/internal/browser/pwdriver"
	"github.com/xkilldash9x/rebootctl/internal/config"
	"github.com/xkilldash9x/rebootctl/internal/metrics"
	"github.com/xkilldash9x/rebootctl/internal/observability"
	"github.com/xkilldash9x/rebootctl/internal/reboot"
)

// errRunFailed marks a run that failed and was already logged by the sequencer.
var errRunFailed = errors.New("reboot run failed")

// newConnector picks the automation client. Tests replace it.
var newConnector = func(cfg *config.Config, logger *zap.Logger) (schemas.Connector, error) {
	opts := browser.OptionsFromConfig(cfg)
	switch cfg.Browser.Driver {
	case config.DriverChromedp:
		return cdp.NewConnector(opts, logger), nil
	case config.DriverPlaywright:
		return pwdriver.NewConnector(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}

func newRebootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reboot",
		Short: "Log into the router admin UI and trigger a reboot",
		Long: `Runs the reboot sequence once: open the admin page, log in, navigate to the
reboot control, trigger it and wait for the router to restart. On failure a
screenshot and the page source are written to the artifacts directory.
The process exits 0 on success and 1 on any failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			result, err := runReboot(cmd.Context(), cfg, observability.GetLogger())
			printResult(cmd.OutOrStdout(), result)
			return err
		},
	}

	cmd.Flags().String("admin-url", "", "router admin URL (overrides ROUTER_ADMIN_URL)")
	cmd.Flags().String("remote-url", "", "browser automation endpoint (overrides SELENIUM_REMOTE_URL)")
	cmd.Flags().String("driver", "", "automation client: chromedp or playwright")
	cmd.Flags().Bool("headless", true, "run a locally launched browser headless")
	cmd.Flags().Int("debug-pause", 0, "seconds to keep a failed session open (overrides DEBUG_PAUSE_SECONDS)")
	cmd.Flags().String("artifacts-dir", "", "directory for error artifacts (overrides ERROR_ARTIFACTS_DIR)")
	cmd.Flags().String("metrics-file", "", "node_exporter textfile to write run metrics to")
	return cmd
}

// runReboot validates cfg, runs the sequencer once and records metrics. The
// returned error is nil exactly when the run succeeded.
func runReboot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*schemas.RunResult, error) {
	recorder, err := metrics.NewRecorder(cfg.Run.MetricsFile, logger)
	if err != nil {
		return nil, err
	}

	result, err := execute(ctx, cfg, logger)
	if err != nil {
		// Configuration never reached the sequencer.
		result = configurationFailure(err)
		logger.Error("Invalid configuration; no browser session was started.", zap.Error(err))
	}

	if err := recorder.Record(result); err != nil {
		logger.Warn("Failed to write metrics.", zap.Error(err))
	}

	if !result.Succeeded() {
		return result, fmt.Errorf("%w: %w", errRunFailed, result.Err)
	}
	return result, nil
}

func execute(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*schemas.RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	connector, err := newConnector(cfg, logger)
	if err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindConfiguration, "browser.driver", err)
	}
	writer, err := reboot.NewFileWriter(cfg.Run.ArtifactsDir, logger)
	if err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindConfiguration, "ERROR_ARTIFACTS_DIR", err)
	}

	seq := reboot.NewSequencer(cfg.Router, connector, writer, reboot.Options{
		DebugPause: cfg.Run.DebugPause(),
	}, logger)
	return seq.Run(ctx), nil
}

func configurationFailure(err error) *schemas.RunResult {
	return &schemas.RunResult{
		RunID:         uuid.NewString(),
		Status:        schemas.StatusFailure,
		FinalState:    schemas.StateFailed,
		FailedIn:      schemas.StateInit,
		FailureKind:   schemas.ErrKindConfiguration,
		FailureReason: err.Error(),
		StartedAt:     time.Now(),
		Err:           err,
	}
}

func printResult(w io.Writer, result *schemas.RunResult) {
	if result == nil {
		return
	}
	if result.Succeeded() {
		fmt.Fprintf(w, "Reboot triggered (run %s, %s).\n", result.RunID, result.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "Reboot failed in %s: %s\n", result.FailedIn, result.FailureReason)
	if a := result.Artifacts; a != nil {
		if a.ScreenshotPath != "" {
			fmt.Fprintf(w, "  screenshot:  %s\n", a.ScreenshotPath)
		}
		if a.PageSourcePath != "" {
			fmt.Fprintf(w, "  page source: %s\n", a.PageSourcePath)
		}
	}
}
