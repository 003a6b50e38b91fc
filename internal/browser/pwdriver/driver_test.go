// internal/browser/pwdriver/driver_test.go
package pwdriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/browser"
	"github.com/xkilldash9x/rebootctl/internal/config"
	"github.com/xkilldash9x/rebootctl/internal/testutil/fakerouter"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name string
		sel  schemas.Selector
		want string
	}{
		{"id", schemas.Selector{By: schemas.SelectorByID, Value: "btnReboot"}, `css=[id="btnReboot"]`},
		{"css", schemas.Selector{By: schemas.SelectorByCSS, Value: "div.panel-mask"}, "css=div.panel-mask"},
		{"xpath", schemas.Selector{By: schemas.SelectorByXPath, Value: "//a[@data-id='ok']"}, "xpath=//a[@data-id='ok']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Selector(tt.sel))
		})
	}
}

func TestTimeoutFor(t *testing.T) {
	assert.Equal(t, 1500.0, ms(1500*time.Millisecond))
	assert.Equal(t, 10000.0, timeoutFor(context.Background(), 10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got := timeoutFor(ctx, 10*time.Second)
	assert.LessOrEqual(t, got, 200.0)
	assert.Greater(t, got, 0.0)

	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()
	assert.Equal(t, 1.0, timeoutFor(expired, 10*time.Second))
}

// requirePlaywright skips unless playwright browser tests were enabled; the
// driver needs its node runtime installed.
func requirePlaywright(t *testing.T) string {
	t.Helper()
	if os.Getenv("REBOOTCTL_PLAYWRIGHT_TESTS") == "" {
		t.Skip("set REBOOTCTL_PLAYWRIGHT_TESTS=1 to run playwright browser tests")
	}
	return fakerouter.RequireChrome(t)
}

// testOptions returns fast timeouts and the flow served by fakerouter.
func testOptions(chrome string) browser.Options {
	opts := browser.OptionsFromConfig(config.NewDefaultConfig())
	opts.Browser.Driver = config.DriverPlaywright
	opts.Browser.ExecPath = chrome
	opts.Browser.Headless = true
	opts.Browser.ConnectAttempts = 1
	opts.Timeouts = config.TimeoutConfig{
		Connect:      30 * time.Second,
		Navigation:   15 * time.Second,
		Element:      3 * time.Second,
		Login:        3 * time.Second,
		Overlay:      2 * time.Second,
		Confirmation: 3 * time.Second,
		Diagnostics:  5 * time.Second,
		Close:        10 * time.Second,
		StepPause:    50 * time.Millisecond,
		ClickSettle:  20 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}
	opts.Flow.Confirmation.DetectUnreachable = false
	return opts
}

func connect(t *testing.T, opts browser.Options) *Driver {
	t.Helper()
	sd, err := NewConnector(opts, zaptest.NewLogger(t)).Connect(context.Background())
	require.NoError(t, err)
	d, ok := sd.(*Driver)
	require.True(t, ok)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func TestDriver_FullSequence(t *testing.T) {
	chrome := requirePlaywright(t)
	router := fakerouter.Start(t, fakerouter.Options{Password: "s3cret"})
	d := connect(t, testOptions(chrome))
	ctx := context.Background()

	require.NoError(t, d.Open(ctx, router.AdminURL()))
	require.NoError(t, d.FillLogin(ctx, "s3cret"))
	require.NoError(t, d.NavigateToReboot(ctx))
	require.NoError(t, d.TriggerReboot(ctx))
	require.NoError(t, d.AwaitRestart(ctx))

	assert.Equal(t, 1, router.Reboots())
	assert.NoError(t, d.Close(ctx))
	assert.NoError(t, d.Close(ctx), "second close returns the first result")
}

func TestDriver_WrongPassword(t *testing.T) {
	chrome := requirePlaywright(t)
	router := fakerouter.Start(t, fakerouter.Options{Password: "s3cret"})
	d := connect(t, testOptions(chrome))
	ctx := context.Background()

	require.NoError(t, d.Open(ctx, router.AdminURL()))
	err := d.FillLogin(ctx, "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrAuthentication)
	assert.Equal(t, 1, router.LoginAttempts())

	bundle, err := d.CaptureDiagnostics(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.Screenshot)
	assert.Contains(t, bundle.PageSource, "Incorrect password")
	assert.Equal(t, router.AdminURL(), bundle.URL)
	assert.Equal(t, 0, router.Reboots())
}

func TestDriver_ConfirmationTimeout(t *testing.T) {
	chrome := requirePlaywright(t)
	router := fakerouter.Start(t, fakerouter.Options{Password: "s3cret", StallConfirmation: true})
	d := connect(t, testOptions(chrome))
	ctx := context.Background()

	require.NoError(t, d.Open(ctx, router.AdminURL()))
	require.NoError(t, d.FillLogin(ctx, "s3cret"))
	require.NoError(t, d.NavigateToReboot(ctx))
	require.NoError(t, d.TriggerReboot(ctx))

	err := d.AwaitRestart(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrConfirmationTimeout)
	assert.Equal(t, 0, router.Reboots())
}

func TestDriver_MissingElement(t *testing.T) {
	chrome := requirePlaywright(t)
	router := fakerouter.Start(t, fakerouter.Options{Password: "s3cret"})
	opts := testOptions(chrome)
	opts.Flow.Reboot = schemas.Selector{By: schemas.SelectorByID, Value: "btnRebootRenamed", Description: "reboot button"}
	d := connect(t, opts)
	ctx := context.Background()

	require.NoError(t, d.Open(ctx, router.AdminURL()))
	require.NoError(t, d.FillLogin(ctx, "s3cret"))
	require.NoError(t, d.NavigateToReboot(ctx))

	err := d.TriggerReboot(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrElementNotFound)

	var stepErr *schemas.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "reboot button", stepErr.Step)
}

func TestDriver_OpenTimeout(t *testing.T) {
	chrome := requirePlaywright(t)
	router := fakerouter.Start(t, fakerouter.Options{HangAdminPage: true})
	opts := testOptions(chrome)
	opts.Timeouts.Navigation = 2 * time.Second
	d := connect(t, opts)

	err := d.Open(context.Background(), router.AdminURL())
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrNavigation)
	assert.Zero(t, router.LoginAttempts())
}

func TestDriver_CaptureAfterPageClosed(t *testing.T) {
	chrome := requirePlaywright(t)
	router := fakerouter.Start(t, fakerouter.Options{Password: "s3cret"})
	d := connect(t, testOptions(chrome))
	ctx := context.Background()

	require.NoError(t, d.Open(ctx, router.AdminURL()))
	require.NoError(t, d.page.Close())

	bundle, err := d.CaptureDiagnostics(ctx)
	require.Error(t, err)
	require.NotNil(t, bundle, "a failed capture still returns a bundle")
	assert.Empty(t, bundle.Screenshot)
	assert.Empty(t, bundle.PageSource)
	assert.ErrorContains(t, err, "screenshot")
	assert.ErrorContains(t, err, "page source")
}
