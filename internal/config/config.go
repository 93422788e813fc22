// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// Supported workflow strategies.
const (
	StrategyAnalyzeAndGenerate = "analyze_and_generate"
	StrategyDirectGenerate     = "direct_generate"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	App       AppConfig       `mapstructure:"app" yaml:"app"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Workflow  WorkflowConfig  `mapstructure:"workflow" yaml:"workflow"`
	Clipboard ClipboardConfig `mapstructure:"clipboard" yaml:"clipboard"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
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

// BrowserConfig controls how the automated browser is launched.
type BrowserConfig struct {
	Driver     string         `mapstructure:"driver" yaml:"driver"`
	Headless   bool           `mapstructure:"headless" yaml:"headless"`
	ProfileDir string         `mapstructure:"profile_dir" yaml:"profile_dir"`
	Binary     string         `mapstructure:"binary" yaml:"binary"`
	DisableGPU bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Stealth    bool           `mapstructure:"stealth" yaml:"stealth"`
	Locale     string         `mapstructure:"locale" yaml:"locale"`
	Timezone   string         `mapstructure:"timezone" yaml:"timezone"`
	Args       []string       `mapstructure:"args" yaml:"args"`
	Viewport   ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Proxy      ProxyConfig    `mapstructure:"proxy" yaml:"proxy"`
}

type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// ProxyConfig defines the configuration for an outbound proxy, shared by the browser and the fetch client.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// AppConfig describes the target application and where artifacts land.
type AppConfig struct {
	URL               string   `mapstructure:"url" yaml:"url"`
	Host              string   `mapstructure:"host" yaml:"host"`
	AuthDomain        string   `mapstructure:"auth_domain" yaml:"auth_domain"`
	OutputDir         string   `mapstructure:"output_dir" yaml:"output_dir"`
	DownloadDir       string   `mapstructure:"download_dir" yaml:"download_dir"`
	ExtraDownloadDirs []string `mapstructure:"extra_download_dirs" yaml:"extra_download_dirs"`
}

// TimeoutsConfig is the timeout table. All values are durations except the attempt count.
type TimeoutsConfig struct {
	PageLoad             time.Duration `mapstructure:"page_load" yaml:"page_load"`
	PageReady            time.Duration `mapstructure:"page_ready" yaml:"page_ready"`
	ElementVisible       time.Duration `mapstructure:"element_visible" yaml:"element_visible"`
	ElementClickable     time.Duration `mapstructure:"element_clickable" yaml:"element_clickable"`
	ButtonClick          time.Duration `mapstructure:"button_click" yaml:"button_click"`
	UploadSettle         time.Duration `mapstructure:"upload_settle" yaml:"upload_settle"`
	UploadVerifyAttempts int           `mapstructure:"upload_verify_attempts" yaml:"upload_verify_attempts"`
	UploadVerifyInterval time.Duration `mapstructure:"upload_verify_interval" yaml:"upload_verify_interval"`
	ResponseWait         time.Duration `mapstructure:"response_wait" yaml:"response_wait"`
	ResponseCheck        time.Duration `mapstructure:"response_check" yaml:"response_check"`
	ImageGeneration      time.Duration `mapstructure:"image_generation" yaml:"image_generation"`
	DownloadSettle       time.Duration `mapstructure:"download_settle" yaml:"download_settle"`
	DownloadClickSettle  time.Duration `mapstructure:"download_click_settle" yaml:"download_click_settle"`
	Fetch                time.Duration `mapstructure:"fetch" yaml:"fetch"`
	FreshnessWindow      time.Duration `mapstructure:"freshness_window" yaml:"freshness_window"`
	Short                time.Duration `mapstructure:"short" yaml:"short"`
	Medium               time.Duration `mapstructure:"medium" yaml:"medium"`
	Long                 time.Duration `mapstructure:"long" yaml:"long"`
}

// WorkflowConfig selects the strategy and prompt sources.
type WorkflowConfig struct {
	Strategy             string        `mapstructure:"strategy" yaml:"strategy"`
	DefaultCount         int           `mapstructure:"default_count" yaml:"default_count"`
	SystemPrompt         string        `mapstructure:"system_prompt" yaml:"system_prompt"`
	SystemPromptFile     string        `mapstructure:"system_prompt_file" yaml:"system_prompt_file"`
	RequireToolSelection bool          `mapstructure:"require_tool_selection" yaml:"require_tool_selection"`
	ContinueOnImageError bool          `mapstructure:"continue_on_image_error" yaml:"continue_on_image_error"`
	ProgressInterval     time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
	ToolPhrases          []string      `mapstructure:"tool_phrases" yaml:"tool_phrases"`
	ToolFallbackIndexes  []int         `mapstructure:"tool_fallback_indexes" yaml:"tool_fallback_indexes"`
}

// ClipboardConfig names the OS utility that receives PNG bytes on stdin.
type ClipboardConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "remixer")
	v.SetDefault("logger.log_file", "remixer.log")
	v.SetDefault("logger.max_size", 50)
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

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.profile_dir", "./chrome_profile")
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 900)
	v.SetDefault("browser.proxy.enabled", false)

	// -- App --
	v.SetDefault("app.url", "https://gemini.google.com/app")
	v.SetDefault("app.host", "gemini.google.com")
	v.SetDefault("app.auth_domain", "accounts.google.com")
	v.SetDefault("app.output_dir", "./images")
	v.SetDefault("app.download_dir", "./images/downloads")
	v.SetDefault("app.extra_download_dirs", []string{"~/Downloads", "~/İndirilenler"})

	// -- Timeouts --
	v.SetDefault("timeouts.page_load", 5*time.Second)
	v.SetDefault("timeouts.page_ready", 3*time.Second)
	v.SetDefault("timeouts.element_visible", 30*time.Second)
	v.SetDefault("timeouts.element_clickable", 20*time.Second)
	v.SetDefault("timeouts.button_click", 15*time.Second)
	v.SetDefault("timeouts.upload_settle", 5*time.Second)
	v.SetDefault("timeouts.upload_verify_attempts", 10)
	v.SetDefault("timeouts.upload_verify_interval", time.Second)
	v.SetDefault("timeouts.response_wait", 120*time.Second)
	v.SetDefault("timeouts.response_check", 3*time.Second)
	v.SetDefault("timeouts.image_generation", 180*time.Second)
	v.SetDefault("timeouts.download_settle", 3*time.Second)
	v.SetDefault("timeouts.download_click_settle", 5*time.Second)
	v.SetDefault("timeouts.fetch", 60*time.Second)
	v.SetDefault("timeouts.freshness_window", 30*time.Second)
	v.SetDefault("timeouts.short", time.Second)
	v.SetDefault("timeouts.medium", 2*time.Second)
	v.SetDefault("timeouts.long", 5*time.Second)

	// -- Selectors --
	setSelectorDefaults(v)

	// -- Workflow --
	v.SetDefault("workflow.strategy", StrategyAnalyzeAndGenerate)
	v.SetDefault("workflow.default_count", 1)
	v.SetDefault("workflow.system_prompt_file", "./prompt.txt")
	v.SetDefault("workflow.require_tool_selection", false)
	v.SetDefault("workflow.continue_on_image_error", true)
	v.SetDefault("workflow.progress_interval", 1500*time.Millisecond)
	v.SetDefault("workflow.tool_phrases", []string{"görüntü oluştur", "create image"})
	v.SetDefault("workflow.tool_fallback_indexes", []int{2, 0})

	// -- Clipboard --
	v.SetDefault("clipboard.command", "xclip")
	v.SetDefault("clipboard.args", []string{"-selection", "clipboard", "-t", "image/png", "-i"})

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9464")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	var err error
	expand := func(p *string) {
		if err != nil || *p == "" {
			return
		}
		*p, err = homedir.Expand(*p)
	}
	expand(&c.Browser.ProfileDir)
	expand(&c.Browser.Binary)
	expand(&c.App.OutputDir)
	expand(&c.App.DownloadDir)
	expand(&c.Workflow.SystemPromptFile)
	expand(&c.Logger.LogFile)
	for i := range c.App.ExtraDownloadDirs {
		expand(&c.App.ExtraDownloadDirs[i])
	}
	return err
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, c.Browser.Driver)
	}
	if c.Browser.Proxy.Enabled && c.Browser.Proxy.Address == "" {
		return fmt.Errorf("browser.proxy.address is required when the proxy is enabled")
	}
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app configuration invalid: %w", err)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if err := c.Selectors.Validate(); err != nil {
		return fmt.Errorf("selectors configuration invalid: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow configuration invalid: %w", err)
	}
	if c.Clipboard.Command == "" {
		return fmt.Errorf("clipboard.command is required")
	}
	return nil
}

// Validate checks the target application settings.
func (a *AppConfig) Validate() error {
	u, err := url.Parse(a.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must be an absolute URL, got %q", a.URL)
	}
	if a.Host == "" {
		return fmt.Errorf("host is required")
	}
	if a.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	return nil
}

// Validate requires every wait to be positive.
func (t *TimeoutsConfig) Validate() error {
	named := map[string]time.Duration{
		"page_load":              t.PageLoad,
		"page_ready":             t.PageReady,
		"element_visible":        t.ElementVisible,
		"element_clickable":      t.ElementClickable,
		"button_click":           t.ButtonClick,
		"upload_verify_interval": t.UploadVerifyInterval,
		"response_wait":          t.ResponseWait,
		"image_generation":       t.ImageGeneration,
		"fetch":                  t.Fetch,
		"freshness_window":       t.FreshnessWindow,
	}
	var errs []error
	for name, d := range named {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration", name))
		}
	}
	if t.UploadVerifyAttempts <= 0 {
		errs = append(errs, fmt.Errorf("upload_verify_attempts must be greater than 0"))
	}
	return errors.Join(errs...)
}

// Validate checks the WorkflowConfig settings.
func (w *WorkflowConfig) Validate() error {
	switch w.Strategy {
	case StrategyAnalyzeAndGenerate, StrategyDirectGenerate:
	default:
		return fmt.Errorf("strategy must be %q or %q, got %q", StrategyAnalyzeAndGenerate, StrategyDirectGenerate, w.Strategy)
	}
	if w.DefaultCount < 1 || w.DefaultCount > 9 {
		return fmt.Errorf("default_count must be between 1 and 9")
	}
	return nil
}

// LoadSystemPrompt returns the inline system prompt, or the contents of the prompt file.
func (w *WorkflowConfig) LoadSystemPrompt() (string, error) {
	if strings.TrimSpace(w.SystemPrompt) != "" {
		return w.SystemPrompt, nil
	}
	if w.SystemPromptFile == "" {
		return "", fmt.Errorf("no system prompt configured")
	}
	data, err := os.ReadFile(w.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt file: %w", err)
	}
	return string(data), nil
}
