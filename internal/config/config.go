// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Values are resolved by
// Viper with the usual precedence: defaults < config file < environment
// variables (UXPROBE_*) < command-line flags.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
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
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// SessionConfig tunes the session manager and the decide/act loop.
type SessionConfig struct {
	// Concurrency bounds how many sessions may run in parallel; excess
	// requests queue on the pool semaphore.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// MaxActions caps the interactive decide/act loop per session.
	MaxActions int `mapstructure:"max_actions" yaml:"max_actions"`
	// Deadline is the wall-clock budget for one session; zero disables it.
	Deadline time.Duration `mapstructure:"deadline" yaml:"deadline"`
	// ActionTimeout bounds each individual action, independent of Deadline.
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// BrokenTitlePatterns are substrings of a document title that indicate a
	// dead page (HTTP error pages, proxy errors).
	BrokenTitlePatterns []string `mapstructure:"broken_title_patterns" yaml:"broken_title_patterns"`
	// ErrorBannerSelectors are selectors whose presence marks a broken page.
	ErrorBannerSelectors []string `mapstructure:"error_banner_selectors" yaml:"error_banner_selectors"`
	// PushAnalyses forwards every PageAnalysis snapshot to the report sink.
	PushAnalyses bool `mapstructure:"push_analyses" yaml:"push_analyses"`
}

// AnalyzerConfig bounds the page analyzer.
type AnalyzerConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxElementsPerKind caps how many elements of each category make it into
	// a snapshot, keeping the payload within the instruction source's budget.
	MaxElementsPerKind int `mapstructure:"max_elements_per_kind" yaml:"max_elements_per_kind"`
}

// AgentConfig holds settings for the external instruction source.
type AgentConfig struct {
	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMConfig configures the Gemini-backed instruction source.
type LLMConfig struct {
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	// RequestsPerMinute rate-limits calls to the instruction source.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ReportConfig controls where finished reports are written.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	// DeliveryRetries bounds the best-effort retry of report delivery.
	DeliveryRetries int `mapstructure:"delivery_retries" yaml:"delivery_retries"`
}

// MetricsConfig controls the optional Prometheus debug listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uxprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.screenshot_dir", "screenshots")

	// -- Session --
	v.SetDefault("session.concurrency", 3)
	v.SetDefault("session.max_actions", 30)
	v.SetDefault("session.deadline", "15m")
	v.SetDefault("session.action_timeout", "30s")
	v.SetDefault("session.broken_title_patterns", []string{
		"404", "403", "500", "502", "503",
		"not found", "forbidden", "internal server error",
		"bad gateway", "service unavailable",
	})
	v.SetDefault("session.error_banner_selectors", []string{
		".error-page", ".fatal-error", "#error-container",
	})
	v.SetDefault("session.push_analyses", false)

	// -- Analyzer --
	v.SetDefault("analyzer.timeout", "10s")
	v.SetDefault("analyzer.max_elements_per_kind", 8)

	// -- Agent --
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.api_timeout", "45s")
	v.SetDefault("agent.llm.requests_per_minute", 30.0)
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 1024)

	// -- Report --
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.delivery_retries", 3)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9412")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("agent.llm.api_key", "UXPROBE_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal does not consult BindEnv for keys absent from the file.
	if cfg.Agent.LLM.APIKey == "" {
		cfg.Agent.LLM.APIKey = os.Getenv("UXPROBE_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Session.Concurrency <= 0 {
		return fmt.Errorf("session.concurrency must be a positive integer")
	}
	if c.Session.MaxActions <= 0 {
		return fmt.Errorf("session.max_actions must be a positive integer")
	}
	if c.Session.ActionTimeout <= 0 {
		return fmt.Errorf("session.action_timeout must be a positive duration")
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be a positive duration")
	}
	if c.Analyzer.MaxElementsPerKind <= 0 {
		return fmt.Errorf("analyzer.max_elements_per_kind must be a positive integer")
	}
	if c.Report.DeliveryRetries < 0 {
		return fmt.Errorf("report.delivery_retries must not be negative")
	}
	return nil
}
