// internal/browser/cdp/connector.go
package cdp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
)

// Connector opens chromedp sessions, either against a remote DevTools
// endpoint or against a locally launched Chrome.
type Connector struct {
	opts   browser.Options
	logger *zap.Logger
}

var _ schemas.Connector = (*Connector)(nil)

// NewConnector creates a Connector.
func NewConnector(opts browser.Options, logger *zap.Logger) *Connector {
	return &Connector{opts: opts, logger: logger.Named("cdp_driver")}
}

// Connect waits for the endpoint to accept a session.
func (c *Connector) Connect(ctx context.Context) (schemas.SessionDriver, error) {
	return browser.ConnectWithRetry(ctx, c.opts.Browser.ConnectAttempts, c.opts.Browser.ConnectDelay, c.logger,
		func(ctx context.Context) (schemas.SessionDriver, error) {
			return c.connectOnce(ctx)
		})
}

func (c *Connector) connectOnce(ctx context.Context) (*Driver, error) {
	// The session outlives the caller's deadline; Close ends it.
	base := browser.Detach(ctx)

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if remote := c.opts.Browser.RemoteURL; remote != "" {
		c.logger.Debug("Connecting to remote browser.", zap.String("endpoint", remote))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, remote)
	} else {
		c.logger.Debug("Launching local browser.", zap.Bool("headless", c.opts.Browser.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, c.execAllocatorOptions()...)
	}

	sugar := c.logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	release := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run allocates the browser and must not carry a deadline, or
	// the browser would die with it. Bound it from the outside instead.
	err := browser.Bounded(ctx, c.opts.Timeouts.Connect, func() error {
		return chromedp.Run(tabCtx)
	}, release)
	if err != nil {
		release()
		return nil, err
	}

	d := newDriver(tabCtx, release, c.opts, c.logger)
	if err := d.run(ctx, c.opts.Timeouts.Connect, c.sessionSetup()...); err != nil {
		release()
		return nil, fmt.Errorf("session setup failed: %w", err)
	}
	return d, nil
}

func (c *Connector) sessionSetup() []chromedp.Action {
	var actions []chromedp.Action
	if c.opts.Browser.IgnoreTLSErrors {
		actions = append(actions, security.SetIgnoreCertificateErrors(true))
	}
	if c.opts.Browser.RemoteURL != "" && c.opts.Browser.WindowWidth > 0 && c.opts.Browser.WindowHeight > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(c.opts.Browser.WindowWidth), int64(c.opts.Browser.WindowHeight)))
	}
	return actions
}

// execAllocatorOptions builds the flags for a locally launched Chrome.
func (c *Connector) execAllocatorOptions() []chromedp.ExecAllocatorOption {
	cfg := c.opts.Browser
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", cfg.IgnoreTLSErrors),
	)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.Args {
		name, value := parseFlag(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseFlag splits "--name=value" into ("name", "value") and "--name" into
// ("name", true).
func parseFlag(arg string) (string, interface{}) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil
	}
	if name, value, ok := strings.Cut(arg, "="); ok {
		return name, value
	}
	return arg, true
}

// defaultPollInterval is used when a poll interval is not configured.
const defaultPollInterval = 500 * time.Millisecond
