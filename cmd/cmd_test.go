// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/config"
	"github.com/xkilldash9x/rebootctl/internal/mocks"
	"github.com/xkilldash9x/rebootctl/internal/reboot"
)

// resetForTest isolates a test from the host environment and package state.
func resetForTest(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"ROUTER_ADMIN_URL", "ROUTER_PASSWORD", "ROUTER_IP", "SELENIUM_REMOTE_URL",
		"DEBUG_PAUSE_SECONDS", "ERROR_ARTIFACTS_DIR", "METRICS_TEXTFILE",
	} {
		t.Setenv(env, "")
	}
	original := newConnector
	t.Cleanup(func() { newConnector = original })
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rebootctl "+Version)
}

func TestConfigCmd(t *testing.T) {
	resetForTest(t)
	t.Setenv("ROUTER_ADMIN_URL", "http://192.168.31.1/")
	t.Setenv("ROUTER_PASSWORD", "hunter2")
	t.Setenv("DEBUG_PAUSE_SECONDS", "5")

	out, err := executeCommand(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "admin_url: http://192.168.31.1/")
	assert.Contains(t, out, "debug_pause_seconds: 5")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestConfigCmd_FromFile(t *testing.T) {
	resetForTest(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
router:
  admin_url: https://router.lan/
  password: from-file
browser:
  driver: playwright
timeouts:
  confirmation: 45s
`), 0o600))

	out, err := executeCommand(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "admin_url: https://router.lan/")
	assert.Contains(t, out, "driver: playwright")
	assert.Contains(t, out, "confirmation: 45s")
}

func TestRootCmd_ConfigFlagIsPerCommand(t *testing.T) {
	resetForTest(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("router:\n  admin_url: https://router.lan/\n  password: p\n"), 0o600))

	out, err := executeCommand(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "admin_url: https://router.lan/")

	// A fresh tree must not inherit the previous tree's --config.
	t.Setenv("ROUTER_ADMIN_URL", "http://192.168.31.1/")
	t.Setenv("ROUTER_PASSWORD", "p")
	out, err = executeCommand(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "admin_url: http://192.168.31.1/")
	assert.NotContains(t, out, "router.lan")
}

func TestConfigCmd_Invalid(t *testing.T) {
	resetForTest(t)
	t.Setenv("ROUTER_ADMIN_URL", "http://192.168.31.1/")

	out, err := executeCommand(t, "config")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrConfiguration)
	assert.Contains(t, err.Error(), "ROUTER_PASSWORD")
	assert.Contains(t, out, "admin_url: http://192.168.31.1/")
}

func TestRebootCmd_ConfigurationError(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	t.Setenv("ROUTER_ADMIN_URL", "http://192.168.31.1/")
	t.Setenv("ERROR_ARTIFACTS_DIR", filepath.Join(dir, "errors"))
	t.Setenv("METRICS_TEXTFILE", filepath.Join(dir, "rebootctl.prom"))
	newConnector = func(*config.Config, *zap.Logger) (schemas.Connector, error) {
		t.Fatal("no connector may be created for an invalid configuration")
		return nil, nil
	}

	_, err := executeCommand(t, "reboot")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRunFailed)
	assert.ErrorIs(t, err, schemas.ErrConfiguration)

	_, statErr := os.Stat(filepath.Join(dir, "errors"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no artifacts dir for configuration errors")

	prom, err := os.ReadFile(filepath.Join(dir, "rebootctl.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `rebootctl_last_run_failure{kind="CONFIGURATION_ERROR"} 1`)
	assert.Contains(t, string(prom), "rebootctl_last_run_success 0")
}

func mockConnector(driver *mocks.MockSessionDriver) func(*config.Config, *zap.Logger) (schemas.Connector, error) {
	return func(*config.Config, *zap.Logger) (schemas.Connector, error) {
		c := new(mocks.MockConnector)
		c.On("Connect", mock.Anything).Return(driver, nil)
		return c, nil
	}
}

func TestRebootCmd_Success(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	t.Setenv("ROUTER_ADMIN_URL", "http://192.168.31.1/")
	t.Setenv("ROUTER_PASSWORD", "hunter2")

	driver := new(mocks.MockSessionDriver)
	driver.On("Open", mock.Anything, "http://192.168.31.1/").Return(nil)
	driver.On("FillLogin", mock.Anything, "hunter2").Return(nil)
	driver.On("NavigateToReboot", mock.Anything).Return(nil)
	driver.On("TriggerReboot", mock.Anything).Return(nil)
	driver.On("AwaitRestart", mock.Anything).Return(nil)
	driver.On("Close", mock.Anything).Return(nil)
	newConnector = mockConnector(driver)

	out, err := executeCommand(t, "reboot", "--artifacts-dir", filepath.Join(dir, "errors"), "--metrics-file", filepath.Join(dir, "m.prom"))
	require.NoError(t, err)
	assert.Contains(t, out, "Reboot triggered")
	assert.Equal(t, 1, driver.CloseCalls())
	driver.AssertExpectations(t)

	prom, err := os.ReadFile(filepath.Join(dir, "m.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "rebootctl_last_run_success 1")
}

func TestRebootCmd_Failure(t *testing.T) {
	resetForTest(t)
	dir := filepath.Join(t.TempDir(), "errors")
	t.Setenv("ROUTER_ADMIN_URL", "http://192.168.31.1/")
	t.Setenv("ROUTER_PASSWORD", "wrong")
	t.Setenv("ERROR_ARTIFACTS_DIR", dir)

	driver := new(mocks.MockSessionDriver)
	driver.On("Open", mock.Anything, mock.Anything).Return(nil)
	driver.On("FillLogin", mock.Anything, "wrong").
		Return(schemas.NewStepError(schemas.ErrKindAuthentication, "login", errors.New("login form still shown")))
	driver.On("CaptureDiagnostics", mock.Anything).Return(&schemas.DiagnosticBundle{
		Screenshot: []byte("png"),
		PageSource: "<html></html>",
	}, nil)
	driver.On("Close", mock.Anything).Return(nil)
	newConnector = mockConnector(driver)

	out, err := executeCommand(t, "reboot", "--debug-pause", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRunFailed)
	assert.ErrorIs(t, err, schemas.ErrAuthentication)
	assert.Contains(t, out, "Reboot failed in INIT")
	assert.Contains(t, out, filepath.Join(dir, reboot.ScreenshotFile))

	for _, name := range []string{reboot.ScreenshotFile, reboot.PageSourceFile} {
		info, statErr := os.Stat(filepath.Join(dir, name))
		require.NoError(t, statErr)
		assert.NotZero(t, info.Size())
	}
	driver.AssertNotCalled(t, "NavigateToReboot", mock.Anything)
	assert.Equal(t, 1, driver.CloseCalls())
}

func TestNewConnector(t *testing.T) {
	cfg := config.NewDefaultConfig()
	logger := zap.NewNop()

	c, err := newConnector(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.Browser.Driver = config.DriverPlaywright
	c, err = newConnector(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.Browser.Driver = "selenium"
	_, err = newConnector(cfg, logger)
	assert.Error(t, err)
}
