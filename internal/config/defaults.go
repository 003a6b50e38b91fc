// File: internal/config/defaults.go
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

// DefaultArtifactsDir is where failure artifacts land inside the container.
const DefaultArtifactsDir = "/app/errors"

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rebootctl")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Router --
	v.SetDefault("router.admin_url", "")
	v.SetDefault("router.password", "")
	v.SetDefault("router.ip", "")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.connect_attempts", 10)
	v.SetDefault("browser.connect_delay", 2*time.Second)
	v.SetDefault("browser.install_driver", false)

	// -- Timeouts --
	v.SetDefault("timeouts.connect", 30*time.Second)
	v.SetDefault("timeouts.navigation", 30*time.Second)
	v.SetDefault("timeouts.element", 10*time.Second)
	v.SetDefault("timeouts.login", 15*time.Second)
	v.SetDefault("timeouts.overlay", 8*time.Second)
	v.SetDefault("timeouts.confirmation", 20*time.Second)
	v.SetDefault("timeouts.diagnostics", 10*time.Second)
	v.SetDefault("timeouts.close", 10*time.Second)
	v.SetDefault("timeouts.step_pause", time.Second)
	v.SetDefault("timeouts.click_settle", 500*time.Millisecond)
	v.SetDefault("timeouts.poll_interval", 500*time.Millisecond)

	// -- Run --
	v.SetDefault("run.debug_pause_seconds", 30)
	v.SetDefault("run.artifacts_dir", DefaultArtifactsDir)
	v.SetDefault("run.metrics_file", "")

	// -- Flow --
	setFlowDefaults(v, DefaultFlow())
}

// DefaultFlow is the UI path of the supported router firmware.
func DefaultFlow() schemas.Flow {
	okButton := schemas.Selector{
		By:          schemas.SelectorByXPath,
		Value:       "//a[@data-id='ok' and contains(@class, 'btn-primary')]",
		Description: "Reboot confirmation 2 (OK)",
	}
	return schemas.Flow{
		Login: schemas.LoginFlow{
			Password: schemas.Selector{By: schemas.SelectorByID, Value: "loginDialogPassword", Description: "Login password field"},
			Submit:   schemas.Selector{By: schemas.SelectorByID, Value: "loginDialogBtn", Description: "Login button"},
		},
		Overlay: schemas.Selector{By: schemas.SelectorByCSS, Value: "div.panel-mask", Description: "Panel mask overlay"},
		Navigation: []schemas.Selector{
			{By: schemas.SelectorByXPath, Value: "//div[@id='nav']//a[contains(text(), 'Advanced')]", Description: "Advanced navbar item"},
			{By: schemas.SelectorByXPath, Value: "//div[contains(@class, 'cpe-set-nav')]//li[.//span[text()='System settings']]", Description: "System settings menu"},
		},
		Reboot: schemas.Selector{By: schemas.SelectorByID, Value: "btnReboot", Description: "Reboot button"},
		Confirmations: []schemas.Selector{
			{By: schemas.SelectorByXPath, Value: "//button[contains(@class, 'btn-primary') and contains(., 'Reboot')]", Description: "Reboot confirmation 1"},
			okButton,
		},
		Confirmation: schemas.ConfirmationFlow{
			Dismissed:         okButton,
			DetectNavigation:  true,
			DetectUnreachable: true,
		},
	}
}

func setSelectorDefault(v *viper.Viper, key string, sel schemas.Selector) {
	v.SetDefault(key+".by", string(sel.By))
	v.SetDefault(key+".value", sel.Value)
	v.SetDefault(key+".description", sel.Description)
}

func selectorList(sels []schemas.Selector) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(sels))
	for _, s := range sels {
		out = append(out, map[string]interface{}{
			"by":          string(s.By),
			"value":       s.Value,
			"description": s.Description,
		})
	}
	return out
}

// setFlowDefaults registers f under the flow.* keys so that a config file can
// override single selectors without restating the whole flow.
func setFlowDefaults(v *viper.Viper, f schemas.Flow) {
	setSelectorDefault(v, "flow.login.password", f.Login.Password)
	setSelectorDefault(v, "flow.login.submit", f.Login.Submit)
	setSelectorDefault(v, "flow.login.error", f.Login.Error)
	setSelectorDefault(v, "flow.overlay", f.Overlay)
	setSelectorDefault(v, "flow.reboot", f.Reboot)
	v.SetDefault("flow.navigation", selectorList(f.Navigation))
	v.SetDefault("flow.confirmations", selectorList(f.Confirmations))
	setSelectorDefault(v, "flow.confirmation.indicator", f.Confirmation.Indicator)
	setSelectorDefault(v, "flow.confirmation.dismissed", f.Confirmation.Dismissed)
	v.SetDefault("flow.confirmation.detect_navigation", f.Confirmation.DetectNavigation)
	v.SetDefault("flow.confirmation.detect_unreachable", f.Confirmation.DetectUnreachable)
}
