// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// DefaultTargetURL is the timetable portal login page the tool was written for.
const DefaultTargetURL = "https://ws-edt-cd.wigorservices.net/WebPsDyn.aspx?Action=posEDTLMS"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Target() TargetConfig
	Login() LoginConfig
	Artifacts() ArtifactsConfig

	// LoginOptions assembles the controller options from the login section.
	LoginOptions() login.Options

	// Setters used by CLI flags and interactive prompts.
	SetTargetURL(string)
	SetBrowserHeadless(bool)
	SetLoginUsername(string)
	SetScreenshotPath(string)
	SetRunLogPath(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	TargetCfg    TargetConfig    `mapstructure:"target" yaml:"target"`
	LoginCfg     LoginConfig     `mapstructure:"login" yaml:"login"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Target() TargetConfig       { return c.TargetCfg }
func (c *Config) Login() LoginConfig         { return c.LoginCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetTargetURL(u string)      { c.TargetCfg.URL = u }
func (c *Config) SetBrowserHeadless(b bool)  { c.BrowserCfg.Headless = b }
func (c *Config) SetLoginUsername(u string)  { c.LoginCfg.Username = u }
func (c *Config) SetScreenshotPath(p string) { c.ArtifactsCfg.Screenshot = p }
func (c *Config) SetRunLogPath(p string)     { c.ArtifactsCfg.RunLog = p }

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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chrome process driven over CDP.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string `mapstructure:"args" yaml:"args"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	// KeepOpen leaves a headed browser running after the attempt until the
	// user confirms.
	KeepOpen          bool          `mapstructure:"keep_open" yaml:"keep_open"`
	CloseDelay        time.Duration `mapstructure:"close_delay" yaml:"close_delay"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// TargetConfig names the login page.
type TargetConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// LoginConfig carries the attempt budget, retry policy, per-strategy and
// per-heuristic timeouts, and selector overrides.
type LoginConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	// Password is only ever read from the environment or a .env file.
	Password string `mapstructure:"password" yaml:"-"`

	Budget        time.Duration `mapstructure:"budget" yaml:"budget"`
	LocateTimeout time.Duration `mapstructure:"locate_timeout" yaml:"locate_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	EnterTimeout  time.Duration `mapstructure:"enter_timeout" yaml:"enter_timeout"`
	ButtonTimeout time.Duration `mapstructure:"button_timeout" yaml:"button_timeout"`
	ScriptTimeout time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	URLChangeTimeout time.Duration `mapstructure:"url_change_timeout" yaml:"url_change_timeout"`
	MarkerTimeout    time.Duration `mapstructure:"marker_timeout" yaml:"marker_timeout"`
	FormGoneTimeout  time.Duration `mapstructure:"form_gone_timeout" yaml:"form_gone_timeout"`

	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
}

// SelectorsConfig overrides the built-in selector lists. Entries use the
// "kind:value" notation (id:, name:, css:, text:); an empty list keeps the
// default.
type SelectorsConfig struct {
	Username       []string `mapstructure:"username" yaml:"username"`
	Password       []string `mapstructure:"password" yaml:"password"`
	SubmitButtons  []string `mapstructure:"submit_buttons" yaml:"submit_buttons"`
	LogoutMarkers  []string `mapstructure:"logout_markers" yaml:"logout_markers"`
	ContentMarkers []string `mapstructure:"content_markers" yaml:"content_markers"`
}

// ArtifactsConfig locates optional outputs. A leading ~ is expanded.
type ArtifactsConfig struct {
	Screenshot string `mapstructure:"screenshot" yaml:"screenshot"`
	RunLog     string `mapstructure:"run_log" yaml:"run_log"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scalpel-login")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.keep_open", true)
	v.SetDefault("browser.close_delay", "2s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.poll_interval", "100ms")

	// -- Target --
	v.SetDefault("target.url", DefaultTargetURL)

	// -- Login --
	v.SetDefault("login.budget", "60s")
	v.SetDefault("login.locate_timeout", "15s")
	v.SetDefault("login.retry_attempts", 3)
	v.SetDefault("login.retry_delay", "300ms")
	v.SetDefault("login.enter_timeout", "3s")
	v.SetDefault("login.button_timeout", "2s")
	v.SetDefault("login.script_timeout", "3s")
	v.SetDefault("login.settle_delay", "1s")
	v.SetDefault("login.url_change_timeout", "15s")
	v.SetDefault("login.marker_timeout", "2s")
	v.SetDefault("login.form_gone_timeout", "2s")
	v.SetDefault("login.selectors.username", []string{})
	v.SetDefault("login.selectors.password", []string{})
	v.SetDefault("login.selectors.submit_buttons", []string{})
	v.SetDefault("login.selectors.logout_markers", []string{})
	v.SetDefault("login.selectors.content_markers", []string{})

	// -- Artifacts --
	// Registered so AutomaticEnv can see them; unknown keys are never looked up.
	v.SetDefault("artifacts.screenshot", "")
	v.SetDefault("artifacts.run_log", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("login.password", "SCALPEL_LOGIN_PASSWORD")
	_ = v.BindEnv("login.username", "SCALPEL_LOGIN_USERNAME")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.TargetCfg.URL == "" {
		return errors.New("target.url is a required configuration field")
	}
	if c.LoginCfg.RetryAttempts <= 0 {
		return errors.New("login.retry_attempts must be a positive integer")
	}
	if c.LoginCfg.LocateTimeout <= 0 {
		return errors.New("login.locate_timeout must be a positive duration")
	}
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"login.enter_timeout", c.LoginCfg.EnterTimeout},
		{"login.button_timeout", c.LoginCfg.ButtonTimeout},
		{"login.script_timeout", c.LoginCfg.ScriptTimeout},
		{"login.url_change_timeout", c.LoginCfg.URLChangeTimeout},
		{"login.marker_timeout", c.LoginCfg.MarkerTimeout},
		{"login.form_gone_timeout", c.LoginCfg.FormGoneTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be a positive duration", d.key)
		}
	}
	if c.LoginCfg.Budget < 0 {
		return errors.New("login.budget must not be negative")
	}
	if c.BrowserCfg.PollInterval <= 0 {
		return errors.New("browser.poll_interval must be a positive duration")
	}
	if err := c.LoginCfg.Selectors.Validate(); err != nil {
		return fmt.Errorf("login.selectors invalid: %w", err)
	}
	return nil
}
