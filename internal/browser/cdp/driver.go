// internal/browser/cdp/driver.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
)

var errLoginRejected = errors.New("router reported a login error")

// Driver is a schemas.SessionDriver over one chromedp tab.
type Driver struct {
	ctx     context.Context
	release func()
	opts    browser.Options
	logger  *zap.Logger

	adminURL   string
	triggerURL string

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.SessionDriver = (*Driver)(nil)

func newDriver(tabCtx context.Context, release func(), opts browser.Options, logger *zap.Logger) *Driver {
	return &Driver{ctx: tabCtx, release: release, opts: opts, logger: logger}
}

// run executes actions on the tab, bounded by both ctx and timeout.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := browser.WithOpTimeout(d.ctx, ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Open navigates to url. Transport failures, timeouts and HTTP error statuses
// are navigation errors.
func (d *Driver) Open(ctx context.Context, url string) error {
	d.logger.Info("Opening router admin page.", zap.String("url", url))
	d.adminURL = url

	navCtx, cancel := browser.WithOpTimeout(d.ctx, ctx, d.opts.Timeouts.Navigation)
	defer cancel()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("page did not load within %s: %w", d.opts.Timeouts.Navigation, err)
		}
		return schemas.NewStepError(schemas.ErrKindNavigation, "open admin page", err)
	}
	if resp != nil && resp.Status >= 400 {
		return schemas.NewStepError(schemas.ErrKindNavigation, "open admin page",
			fmt.Errorf("admin page answered HTTP %d %s", resp.Status, resp.StatusText))
	}
	return nil
}

// query translates a selector into chromedp query arguments.
func query(sel schemas.Selector) (string, chromedp.QueryOption) {
	switch sel.By {
	case schemas.SelectorByXPath:
		return sel.Value, chromedp.BySearch
	case schemas.SelectorByID:
		return browser.CSSForID(sel.Value), chromedp.ByQuery
	default:
		return sel.Value, chromedp.ByQuery
	}
}

// locate waits up to timeout for sel to be visible and returns its node.
func (d *Driver) locate(ctx context.Context, sel schemas.Selector, timeout time.Duration) (*cdp.Node, error) {
	d.logger.Info("Waiting for element.", zap.String("element", sel.Name()))

	q, by := query(sel)
	var nodes []*cdp.Node
	err := d.run(ctx, timeout, chromedp.Nodes(q, &nodes, by, chromedp.NodeVisible))
	if err == nil && len(nodes) == 0 {
		err = fmt.Errorf("no matching node")
	}
	if err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindElementNotFound, sel.Name(),
			fmt.Errorf("not visible within %s: %w", timeout, err))
	}
	return nodes[0], nil
}

// click locates sel, scrolls it into view, lets the layout settle and clicks it.
func (d *Driver) click(ctx context.Context, sel schemas.Selector) error {
	node, err := d.locate(ctx, sel, d.opts.Timeouts.Element)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{node.NodeID}
	err = d.run(ctx, d.opts.Timeouts.Element,
		chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
		chromedp.Sleep(d.opts.Timeouts.ClickSettle),
		chromedp.Click(ids, chromedp.ByNodeID),
	)
	if err != nil {
		return schemas.NewStepError(schemas.ErrKindElementNotFound, sel.Name(), fmt.Errorf("not clickable: %w", err))
	}
	d.logger.Info("Successfully clicked element.", zap.String("element", sel.Name()))
	return nil
}

// isVisible checks sel once without waiting.
func (d *Driver) isVisible(ctx context.Context, sel schemas.Selector) (bool, error) {
	var visible bool
	err := d.run(ctx, d.probeTimeout(), chromedp.Evaluate(browser.VisibilityScript(sel), &visible))
	return visible, err
}

func (d *Driver) probeTimeout() time.Duration {
	t := 2 * d.pollInterval()
	if t < time.Second {
		t = time.Second
	}
	return t
}

func (d *Driver) pollInterval() time.Duration {
	if d.opts.Timeouts.PollInterval > 0 {
		return d.opts.Timeouts.PollInterval
	}
	return defaultPollInterval
}

// waitForOverlay waits for the blocking mask to disappear. A mask that stays
// is only worth a warning; the next click will tell.
func (d *Driver) waitForOverlay(ctx context.Context) {
	overlay := d.opts.Flow.Overlay
	if overlay.IsZero() || d.opts.Timeouts.Overlay <= 0 {
		return
	}
	q, by := query(overlay)
	if err := d.run(ctx, d.opts.Timeouts.Overlay, chromedp.WaitNotPresent(q, by)); err != nil {
		d.logger.Warn("Overlay may still be visible, proceeding.",
			zap.String("overlay", overlay.Name()),
			zap.Duration("waited", d.opts.Timeouts.Overlay))
	}
}

// FillLogin types the password, submits the form and waits for the form to go away.
func (d *Driver) FillLogin(ctx context.Context, password string) error {
	login := d.opts.Flow.Login

	field, err := d.locate(ctx, login.Password, d.opts.Timeouts.Login)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{field.NodeID}
	if err := d.run(ctx, d.opts.Timeouts.Element,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, password, chromedp.ByNodeID),
	); err != nil {
		return schemas.NewStepError(schemas.ErrKindElementNotFound, login.Password.Name(), fmt.Errorf("could not type password: %w", err))
	}
	if err := d.click(ctx, login.Submit); err != nil {
		return err
	}

	err = browser.PollUntil(ctx, d.opts.Timeouts.Login, d.pollInterval(), func(pctx context.Context) (bool, error) {
		if !login.Error.IsZero() {
			if shown, _ := d.isVisible(pctx, login.Error); shown {
				return false, errLoginRejected
			}
		}
		shown, err := d.isVisible(pctx, login.Password)
		if err != nil {
			// The page is probably navigating; look again on the next tick.
			return false, nil
		}
		return !shown, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("login form still shown after %s: %w", d.opts.Timeouts.Login, err)
		}
		return schemas.NewStepError(schemas.ErrKindAuthentication, "login", err)
	}

	d.logger.Info("Login successful.")
	d.waitForOverlay(ctx)
	return nil
}

// NavigateToReboot clicks through the configured menu path.
func (d *Driver) NavigateToReboot(ctx context.Context) error {
	for i, step := range d.opts.Flow.Navigation {
		if i > 0 {
			if err := browser.Sleep(ctx, d.opts.Timeouts.StepPause); err != nil {
				return schemas.NewStepError(schemas.ErrKindElementNotFound, step.Name(), err)
			}
		}
		if err := d.click(ctx, step); err != nil {
			return err
		}
		if i == 0 {
			d.waitForOverlay(ctx)
		}
	}
	return nil
}

// TriggerReboot clicks the reboot control and then every confirmation dialog.
func (d *Driver) TriggerReboot(ctx context.Context) error {
	flow := d.opts.Flow
	steps := append([]schemas.Selector{flow.Reboot}, flow.Confirmations...)

	for i, step := range steps {
		if i > 0 || len(flow.Navigation) > 0 {
			if err := browser.Sleep(ctx, d.opts.Timeouts.StepPause); err != nil {
				return schemas.NewStepError(schemas.ErrKindElementNotFound, step.Name(), err)
			}
		}
		if i == len(steps)-1 {
			d.triggerURL = d.location(ctx)
		}
		if err := d.click(ctx, step); err != nil {
			return err
		}
	}
	d.logger.Info("Reboot command sent.")
	return nil
}

func (d *Driver) location(ctx context.Context) string {
	var loc string
	if err := d.run(ctx, d.probeTimeout(), chromedp.Location(&loc)); err != nil {
		return ""
	}
	return loc
}

// AwaitRestart polls for any enabled restart signal.
func (d *Driver) AwaitRestart(ctx context.Context) error {
	timeout := d.opts.Timeouts.Confirmation
	var signal string
	err := browser.PollUntil(ctx, timeout, d.pollInterval(), func(pctx context.Context) (bool, error) {
		signal = d.restartSignal(pctx)
		return signal != "", nil
	})
	if err != nil {
		return schemas.NewStepError(schemas.ErrKindConfirmationTimeout, "await restart",
			fmt.Errorf("no restart signal within %s: %w", timeout, err))
	}
	d.logger.Info("Router is restarting.", zap.String("signal", signal))
	return nil
}

// restartSignal returns the name of the first signal observed, or "".
func (d *Driver) restartSignal(ctx context.Context) string {
	c := d.opts.Flow.Confirmation

	if !c.Indicator.IsZero() {
		if shown, err := d.isVisible(ctx, c.Indicator); err == nil && shown {
			return "indicator"
		}
	}
	if c.DetectNavigation && d.triggerURL != "" {
		if loc := d.location(ctx); loc != "" && loc != d.triggerURL {
			return "navigation"
		}
	}
	if !c.Dismissed.IsZero() {
		if shown, err := d.isVisible(ctx, c.Dismissed); err == nil && !shown {
			return "dismissed"
		}
	}
	if c.DetectUnreachable && d.adminURL != "" {
		probe := d.probeTimeout()
		var reachable bool
		err := d.run(ctx, probe+time.Second, chromedp.Evaluate(
			browser.ReachabilityScript(d.adminURL, probe.Milliseconds()),
			&reachable,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) },
		))
		if err == nil && !reachable {
			return "unreachable"
		}
	}
	return ""
}

// CaptureDiagnostics grabs the URL, a full-page PNG and the rendered markup.
// Each part is captured independently so one failure does not lose the others.
func (d *Driver) CaptureDiagnostics(ctx context.Context) (*schemas.DiagnosticBundle, error) {
	timeout := d.opts.Timeouts.Diagnostics
	bundle := &schemas.DiagnosticBundle{}
	var errs []error

	if err := d.run(ctx, timeout, chromedp.Location(&bundle.URL)); err != nil {
		errs = append(errs, fmt.Errorf("location: %w", err))
	}
	if err := d.run(ctx, timeout, chromedp.FullScreenshot(&bundle.Screenshot, 100)); err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	}
	if err := d.run(ctx, timeout, chromedp.OuterHTML("html", &bundle.PageSource, chromedp.ByQuery)); err != nil {
		errs = append(errs, fmt.Errorf("page source: %w", err))
	}
	return bundle, errors.Join(errs...)
}

// Close closes the tab and releases the allocator. Later calls return the
// first call's result.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.logger.Debug("Closing browser session.")
		d.closeErr = browser.Bounded(ctx, d.opts.Timeouts.Close, func() error {
			return chromedp.Cancel(d.ctx)
		}, d.release)
		d.release()
	})
	return d.closeErr
}
