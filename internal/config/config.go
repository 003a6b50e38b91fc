// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

// Driver names accepted by browser.driver.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// EnvPrefix prefixes every automatically bound environment variable
// (e.g. REBOOTCTL_LOGGER_LEVEL).
const EnvPrefix = "REBOOTCTL"

// Config holds the entire application configuration. It is built once at
// process start and passed by reference; nothing reads the environment later.
type Config struct {
	Logger   LoggerConfig         `mapstructure:"logger" yaml:"logger"`
	Router   schemas.RouterTarget `mapstructure:"router" yaml:"router"`
	Browser  BrowserConfig        `mapstructure:"browser" yaml:"browser"`
	Timeouts TimeoutConfig        `mapstructure:"timeouts" yaml:"timeouts"`
	Flow     schemas.Flow         `mapstructure:"flow" yaml:"flow"`
	Run      RunConfig            `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how the browser session is obtained.
type BrowserConfig struct {
	// Driver selects the automation client: "chromedp" or "playwright".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// RemoteURL is the automation endpoint. Empty means launch a local browser.
	RemoteURL       string   `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	// ConnectAttempts and ConnectDelay bound the wait for the endpoint to come up.
	ConnectAttempts int           `mapstructure:"connect_attempts" yaml:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay" yaml:"connect_delay"`
	// InstallDriver downloads the playwright driver before connecting.
	InstallDriver bool `mapstructure:"install_driver" yaml:"install_driver"`
}

// TimeoutConfig bounds every wait in the sequence.
type TimeoutConfig struct {
	// Connect bounds one attempt to start or attach to the browser.
	Connect      time.Duration `mapstructure:"connect" yaml:"connect"`
	Navigation   time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Element      time.Duration `mapstructure:"element" yaml:"element"`
	Login        time.Duration `mapstructure:"login" yaml:"login"`
	Overlay      time.Duration `mapstructure:"overlay" yaml:"overlay"`
	Confirmation time.Duration `mapstructure:"confirmation" yaml:"confirmation"`
	Diagnostics  time.Duration `mapstructure:"diagnostics" yaml:"diagnostics"`
	Close        time.Duration `mapstructure:"close" yaml:"close"`
	StepPause    time.Duration `mapstructure:"step_pause" yaml:"step_pause"`
	ClickSettle  time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// RunConfig holds per-run behaviour that is not browser specific.
type RunConfig struct {
	// DebugPauseSeconds keeps a failed session open for live inspection.
	DebugPauseSeconds int    `mapstructure:"debug_pause_seconds" yaml:"debug_pause_seconds"`
	ArtifactsDir      string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	// MetricsFile is an optional node_exporter textfile collector target.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// DebugPause returns the configured pause as a duration.
func (r RunConfig) DebugPause() time.Duration {
	return time.Duration(r.DebugPauseSeconds) * time.Second
}

// envBindings maps configuration keys to the variable names operators already
// use in their container environments.
var envBindings = map[string]string{
	"router.admin_url":        "ROUTER_ADMIN_URL",
	"router.password":         "ROUTER_PASSWORD",
	"router.ip":               "ROUTER_IP",
	"browser.remote_url":      "SELENIUM_REMOTE_URL",
	"run.debug_pause_seconds": "DEBUG_PAUSE_SECONDS",
	"run.artifacts_dir":       "ERROR_ARTIFACTS_DIR",
	"run.metrics_file":        "METRICS_TEXTFILE",
}

// BindEnvironment wires the prefixed automatic environment plus the explicit
// variable names above into v.
func BindEnvironment(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", key, env, err)
		}
	}
	return nil
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// Load unmarshals v into a Config and normalises paths. It does not validate.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindConfiguration, "", fmt.Errorf("error unmarshaling config: %w", err))
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, schemas.NewStepError(schemas.ErrKindConfiguration, "", err)
	}
	return &cfg, nil
}

// NewConfigFromViper creates a validated configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Run.ArtifactsDir, &c.Run.MetricsFile, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
// Every failure is a ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Router.Validate(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return schemas.NewStepError(schemas.ErrKindConfiguration, "", err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Browser.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, c.Browser.Driver)
	}
	if c.Browser.ConnectAttempts < 1 {
		return fmt.Errorf("browser.connect_attempts must be at least 1")
	}
	if c.Run.DebugPauseSeconds < 0 {
		return fmt.Errorf("run.debug_pause_seconds (DEBUG_PAUSE_SECONDS) must be >= 0")
	}
	if c.Run.ArtifactsDir == "" {
		return fmt.Errorf("run.artifacts_dir (ERROR_ARTIFACTS_DIR) must not be empty")
	}
	bounded := []struct {
		key string
		d   time.Duration
	}{
		{"timeouts.connect", c.Timeouts.Connect},
		{"timeouts.navigation", c.Timeouts.Navigation},
		{"timeouts.element", c.Timeouts.Element},
		{"timeouts.login", c.Timeouts.Login},
		{"timeouts.confirmation", c.Timeouts.Confirmation},
		{"timeouts.diagnostics", c.Timeouts.Diagnostics},
		{"timeouts.close", c.Timeouts.Close},
		{"timeouts.poll_interval", c.Timeouts.PollInterval},
	}
	for _, b := range bounded {
		if b.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", b.key)
		}
	}
	if err := c.Flow.Validate(); err != nil {
		return err
	}
	return nil
}

// Redacted returns a copy that is safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Router.Password != "" {
		cp.Router.Password = "********"
	}
	return &cp
}
