// internal/browser/pwdriver/driver.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
)

const defaultPollInterval = 500 * time.Millisecond

var errLoginRejected = errors.New("router reported a login error")

// Driver is a schemas.SessionDriver over one playwright page.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	opts    browser.Options
	logger  *zap.Logger

	adminURL   string
	triggerURL string

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.SessionDriver = (*Driver)(nil)

func newDriver(pw *playwright.Playwright, b playwright.Browser, bctx playwright.BrowserContext, page playwright.Page, opts browser.Options, logger *zap.Logger) *Driver {
	return &Driver{pw: pw, browser: b, bctx: bctx, page: page, opts: opts, logger: logger}
}

// ms converts d to the millisecond float playwright expects.
func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// timeoutFor caps d by the time left on ctx. Playwright calls take no
// context, so this is how a caller deadline reaches them.
func timeoutFor(ctx context.Context, d time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return ms(d)
}

// Selector translates a selector into a playwright selector string.
func Selector(sel schemas.Selector) string {
	switch sel.By {
	case schemas.SelectorByXPath:
		return "xpath=" + sel.Value
	case schemas.SelectorByID:
		return "css=" + browser.CSSForID(sel.Value)
	default:
		return "css=" + sel.Value
	}
}

func (d *Driver) locator(sel schemas.Selector) playwright.Locator {
	return d.page.Locator(Selector(sel)).First()
}

// Open navigates to url. Transport failures, timeouts and HTTP error statuses
// are navigation errors.
func (d *Driver) Open(ctx context.Context, url string) error {
	d.logger.Info("Opening router admin page.", zap.String("url", url))
	d.adminURL = url

	if err := ctx.Err(); err != nil {
		return schemas.NewStepError(schemas.ErrKindNavigation, "open admin page", err)
	}
	resp, err := d.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeoutFor(ctx, d.opts.Timeouts.Navigation)),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return schemas.NewStepError(schemas.ErrKindNavigation, "open admin page",
			fmt.Errorf("page did not load: %s", browser.FirstLine(err)))
	}
	if resp != nil && resp.Status() >= 400 {
		return schemas.NewStepError(schemas.ErrKindNavigation, "open admin page",
			fmt.Errorf("admin page answered HTTP %d %s", resp.Status(), resp.StatusText()))
	}
	return nil
}

// locate waits up to timeout for sel to be visible.
func (d *Driver) locate(ctx context.Context, sel schemas.Selector, timeout time.Duration) (playwright.Locator, error) {
	d.logger.Info("Waiting for element.", zap.String("element", sel.Name()))

	if err := ctx.Err(); err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindElementNotFound, sel.Name(), err)
	}
	loc := d.locator(sel)
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(timeoutFor(ctx, timeout)),
	})
	if err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindElementNotFound, sel.Name(),
			fmt.Errorf("not visible within %s: %s", timeout, browser.FirstLine(err)))
	}
	return loc, nil
}

// click locates sel, scrolls it into view, lets the layout settle and clicks it.
func (d *Driver) click(ctx context.Context, sel schemas.Selector) error {
	loc, err := d.locate(ctx, sel, d.opts.Timeouts.Element)
	if err != nil {
		return err
	}
	timeout := playwright.Float(timeoutFor(ctx, d.opts.Timeouts.Element))
	if err := loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: timeout}); err != nil {
		d.logger.Debug("Scroll into view failed.", zap.String("element", sel.Name()), zap.Error(err))
	}
	if err := browser.Sleep(ctx, d.opts.Timeouts.ClickSettle); err != nil {
		return schemas.NewStepError(schemas.ErrKindElementNotFound, sel.Name(), err)
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: timeout}); err != nil {
		return schemas.NewStepError(schemas.ErrKindElementNotFound, sel.Name(),
			fmt.Errorf("not clickable: %s", browser.FirstLine(err)))
	}
	d.logger.Info("Successfully clicked element.", zap.String("element", sel.Name()))
	return nil
}

func (d *Driver) isVisible(sel schemas.Selector) (bool, error) {
	return d.locator(sel).IsVisible()
}

func (d *Driver) pollInterval() time.Duration {
	if d.opts.Timeouts.PollInterval > 0 {
		return d.opts.Timeouts.PollInterval
	}
	return defaultPollInterval
}

func (d *Driver) waitForOverlay(ctx context.Context) {
	overlay := d.opts.Flow.Overlay
	if overlay.IsZero() || d.opts.Timeouts.Overlay <= 0 {
		return
	}
	err := d.locator(overlay).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(timeoutFor(ctx, d.opts.Timeouts.Overlay)),
	})
	if err != nil {
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
	if err := field.Fill(password, playwright.LocatorFillOptions{
		Timeout: playwright.Float(timeoutFor(ctx, d.opts.Timeouts.Element)),
	}); err != nil {
		return schemas.NewStepError(schemas.ErrKindElementNotFound, login.Password.Name(),
			fmt.Errorf("could not type password: %s", browser.FirstLine(err)))
	}
	if err := d.click(ctx, login.Submit); err != nil {
		return err
	}

	err = browser.PollUntil(ctx, d.opts.Timeouts.Login, d.pollInterval(), func(context.Context) (bool, error) {
		if !login.Error.IsZero() {
			if shown, _ := d.isVisible(login.Error); shown {
				return false, errLoginRejected
			}
		}
		shown, err := d.isVisible(login.Password)
		if err != nil {
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
			d.triggerURL = d.page.URL()
		}
		if err := d.click(ctx, step); err != nil {
			return err
		}
	}
	d.logger.Info("Reboot command sent.")
	return nil
}

// AwaitRestart polls for any enabled restart signal.
func (d *Driver) AwaitRestart(ctx context.Context) error {
	timeout := d.opts.Timeouts.Confirmation
	var signal string
	err := browser.PollUntil(ctx, timeout, d.pollInterval(), func(context.Context) (bool, error) {
		signal = d.restartSignal()
		return signal != "", nil
	})
	if err != nil {
		return schemas.NewStepError(schemas.ErrKindConfirmationTimeout, "await restart",
			fmt.Errorf("no restart signal within %s: %w", timeout, err))
	}
	d.logger.Info("Router is restarting.", zap.String("signal", signal))
	return nil
}

func (d *Driver) restartSignal() string {
	c := d.opts.Flow.Confirmation

	if !c.Indicator.IsZero() {
		if shown, err := d.isVisible(c.Indicator); err == nil && shown {
			return "indicator"
		}
	}
	if c.DetectNavigation && d.triggerURL != "" {
		if loc := d.page.URL(); loc != "" && loc != d.triggerURL {
			return "navigation"
		}
	}
	if !c.Dismissed.IsZero() {
		if shown, err := d.isVisible(c.Dismissed); err == nil && !shown {
			return "dismissed"
		}
	}
	if c.DetectUnreachable && d.adminURL != "" {
		probe := 2 * d.pollInterval()
		if probe < time.Second {
			probe = time.Second
		}
		res, err := d.page.Evaluate(browser.ReachabilityScript(d.adminURL, probe.Milliseconds()))
		if reachable, ok := res.(bool); err == nil && ok && !reachable {
			return "unreachable"
		}
	}
	return ""
}

// CaptureDiagnostics grabs the URL, a full-page PNG and the rendered markup.
func (d *Driver) CaptureDiagnostics(ctx context.Context) (*schemas.DiagnosticBundle, error) {
	bundle := &schemas.DiagnosticBundle{URL: d.page.URL()}
	var errs []error

	shot, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  playwright.Float(timeoutFor(ctx, d.opts.Timeouts.Diagnostics)),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %s", browser.FirstLine(err)))
	} else {
		bundle.Screenshot = shot
	}
	if html, err := d.page.Content(); err != nil {
		errs = append(errs, fmt.Errorf("page source: %s", browser.FirstLine(err)))
	} else {
		bundle.PageSource = html
	}
	return bundle, errors.Join(errs...)
}

// Close closes the page, the browser and the playwright driver. Later calls
// return the first call's result.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.logger.Debug("Closing browser session.")
		d.closeErr = browser.Bounded(ctx, d.opts.Timeouts.Close, func() error {
			var errs []error
			if err := d.bctx.Close(); err != nil {
				errs = append(errs, fmt.Errorf("context: %w", err))
			}
			if err := d.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("browser: %w", err))
			}
			if err := d.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("driver: %w", err))
			}
			return errors.Join(errs...)
		}, func() {
			d.logger.Warn("Browser did not close in time, abandoning session.",
				zap.Duration("timeout", d.opts.Timeouts.Close))
		})
	})
	return d.closeErr
}
