package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"funding-rate-alerts/internal/logging"
	"funding-rate-alerts/internal/upstream"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// UpstreamConfig covers the third-party market-data API. Base URL, auth
// header name, and key are configuration so the upstream is swappable
// without code changes.
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	APIKeyHeader   string        `mapstructure:"api_key_header"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ProxyConfig governs the inbound HTTP surface and its resilience budget.
type ProxyConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	DefaultSymbol  string        `mapstructure:"default_symbol"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// MonitorConfig governs the polling loop.
type MonitorConfig struct {
	ProxyBaseURL     string        `mapstructure:"proxy_base_url"`
	Resources        []string      `mapstructure:"resources"`
	Symbols          []string      `mapstructure:"symbols"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	AlignToClock     bool          `mapstructure:"align_to_clock"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines webhook routing and the dedupe window. An empty
// webhook URL is valid: notifications degrade to local log lines.
type AlertingConfig struct {
	WebhookURL        string        `mapstructure:"webhook_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MinResendInterval time.Duration `mapstructure:"min_resend_interval"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUNDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fundingwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("upstream.base_url", "https://fapi.binance.com/fapi/v1")
	v.SetDefault("upstream.api_key_header", "X-API-Key")
	v.SetDefault("upstream.request_timeout", "15s")
	v.SetDefault("upstream.user_agent", "fundingwatcher/1.0")

	v.SetDefault("proxy.listen_addr", ":8080")
	v.SetDefault("proxy.default_symbol", "BTC")
	v.SetDefault("proxy.cache_ttl", "15s")
	v.SetDefault("proxy.max_attempts", 3)
	v.SetDefault("proxy.initial_backoff", "500ms")

	v.SetDefault("monitor.proxy_base_url", "http://127.0.0.1:8080")
	v.SetDefault("monitor.resources", []string{"funding"})
	v.SetDefault("monitor.symbols", []string{"BTC"})
	v.SetDefault("monitor.poll_interval", "30s")
	v.SetDefault("monitor.align_to_clock", false)
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.failure_threshold", 2)
	v.SetDefault("monitor.request_timeout", "15s")

	v.SetDefault("alerting.request_timeout", "10s")
	v.SetDefault("alerting.min_resend_interval", "60s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// A missing webhook URL or API key is deliberately not an error.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Proxy.CacheTTL <= 0 {
		return fmt.Errorf("proxy.cache_ttl must be greater than zero")
	}
	if c.Proxy.MaxAttempts < 1 {
		return fmt.Errorf("proxy.max_attempts must be at least 1")
	}
	if c.Proxy.InitialBackoff < 0 {
		return fmt.Errorf("proxy.initial_backoff cannot be negative")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be greater than zero")
	}
	if c.Monitor.FailureThreshold < 1 {
		return fmt.Errorf("monitor.failure_threshold must be at least 1")
	}
	if len(c.Monitor.Symbols) == 0 {
		return fmt.Errorf("monitor.symbols must contain at least one symbol")
	}
	for _, resource := range c.Monitor.Resources {
		if _, ok := upstream.CanonicalResource(resource); !ok {
			return fmt.Errorf("monitor.resources contains unknown resource %q", resource)
		}
	}
	if c.Alerting.MinResendInterval < 0 {
		return fmt.Errorf("alerting.min_resend_interval cannot be negative")
	}
	return nil
}

// CanonicalResources returns the monitor resource list with route aliases
// resolved.
func (c *Config) CanonicalResources() []string {
	out := make([]string, 0, len(c.Monitor.Resources))
	for _, resource := range c.Monitor.Resources {
		canonical, ok := upstream.CanonicalResource(resource)
		if !ok {
			continue
		}
		out = append(out, canonical)
	}
	return out
}
