// internal/browser/pwdriver/connector.go
package pwdriver

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
)

// Swapped in tests; both block on the node driver.
var (
	installPlaywright = playwright.Install
	runPlaywright     = playwright.Run
)

// Connector opens playwright sessions. A configured remote URL is treated as
// a Chrome DevTools endpoint; otherwise Chromium is launched locally.
type Connector struct {
	opts   browser.Options
	logger *zap.Logger
}

var _ schemas.Connector = (*Connector)(nil)

// NewConnector creates a Connector.
func NewConnector(opts browser.Options, logger *zap.Logger) *Connector {
	return &Connector{opts: opts, logger: logger.Named("playwright_driver")}
}

// Connect starts the playwright driver once, then waits for the browser
// endpoint to accept a session.
func (c *Connector) Connect(ctx context.Context) (schemas.SessionDriver, error) {
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
		// A remote endpoint brings its own browser.
		SkipInstallBrowsers: c.opts.Browser.RemoteURL != "",
	}
	pw, err := c.startDriver(ctx, runOpts)
	if err != nil {
		return nil, err
	}

	d, err := browser.ConnectWithRetry(ctx, c.opts.Browser.ConnectAttempts, c.opts.Browser.ConnectDelay, c.logger,
		func(context.Context) (schemas.SessionDriver, error) {
			return c.connectOnce(pw)
		})
	if err != nil {
		if stopErr := pw.Stop(); stopErr != nil {
			c.logger.Debug("Failed to stop playwright.", zap.Error(stopErr))
		}
		return nil, err
	}
	return d, nil
}

// startDriver installs (when configured) and starts the playwright driver,
// each bounded by the connect timeout. A driver that comes up after the
// bound expired is stopped.
func (c *Connector) startDriver(ctx context.Context, runOpts *playwright.RunOptions) (*playwright.Playwright, error) {
	timeout := c.opts.Timeouts.Connect
	if c.opts.Browser.InstallDriver {
		c.logger.Info("Installing playwright driver.")
		err := browser.Bounded(ctx, timeout, func() error {
			return installPlaywright(runOpts)
		}, func() {
			c.logger.Warn("Playwright install did not finish in time.", zap.Duration("timeout", timeout))
		})
		if err != nil {
			return nil, schemas.NewStepError(schemas.ErrKindNavigation, browser.ConnectStep,
				fmt.Errorf("failed to install playwright: %w", err))
		}
	}

	var (
		mu      sync.Mutex
		aborted bool
		pw      *playwright.Playwright
	)
	err := browser.Bounded(ctx, timeout, func() error {
		started, err := runPlaywright(runOpts)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if aborted {
			if stopErr := started.Stop(); stopErr != nil {
				c.logger.Debug("Failed to stop late playwright driver.", zap.Error(stopErr))
			}
			return nil
		}
		pw = started
		return nil
	}, func() {
		mu.Lock()
		aborted = true
		mu.Unlock()
	})
	if err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindNavigation, browser.ConnectStep,
			fmt.Errorf("failed to start playwright: %w", err))
	}
	return pw, nil
}

func (c *Connector) connectOnce(pw *playwright.Playwright) (*Driver, error) {
	cfg := c.opts.Browser
	timeoutMs := ms(c.opts.Timeouts.Connect)

	var b playwright.Browser
	var err error
	if cfg.RemoteURL != "" {
		c.logger.Debug("Connecting to remote browser.", zap.String("endpoint", cfg.RemoteURL))
		b, err = pw.Chromium.ConnectOverCDP(cfg.RemoteURL, playwright.BrowserTypeConnectOverCDPOptions{
			Timeout: playwright.Float(timeoutMs),
		})
	} else {
		c.logger.Debug("Launching local browser.", zap.Bool("headless", cfg.Headless))
		launch := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Headless),
			Args:     append([]string{"--no-sandbox", "--disable-dev-shm-usage"}, cfg.Args...),
			Timeout:  playwright.Float(timeoutMs),
		}
		if cfg.ExecPath != "" {
			launch.ExecutablePath = playwright.String(cfg.ExecPath)
		}
		b, err = pw.Chromium.Launch(launch)
	}
	if err != nil {
		return nil, err
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(cfg.IgnoreTLSErrors),
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: cfg.WindowWidth, Height: cfg.WindowHeight}
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(ms(c.opts.Timeouts.Element))

	return newDriver(pw, b, bctx, page, c.opts, c.logger), nil
}
