package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// DefaultBaseURL is the data host root used when none is configured.
const DefaultBaseURL = "https://storage.googleapis.com/blockgroup-indices"

// Config holds the full application configuration.
type Config struct {
	DataHost DataHostConfig `yaml:"datahost" mapstructure:"datahost"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Defaults DefaultsConfig `yaml:"defaults" mapstructure:"defaults"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataHostConfig configures access to the static layer host.
type DataHostConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	// RateLimit is requests per second to the host. Zero means the
	// fetcher default.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	// AdaptiveRate lets the host limiter speed up on success and back off
	// on 429, starting from RateLimit.
	AdaptiveRate bool `yaml:"adaptive_rate" mapstructure:"adaptive_rate"`
}

// Timeout returns the per-request timeout.
func (c DataHostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxSessions     int      `yaml:"max_sessions" mapstructure:"max_sessions"`
	SessionIdleMins int      `yaml:"session_idle_mins" mapstructure:"session_idle_mins"`
}

// DefaultsConfig holds the initial map view.
type DefaultsConfig struct {
	City       string             `yaml:"city" mapstructure:"city"`
	Year       string             `yaml:"year" mapstructure:"year"`
	BeforeYear string             `yaml:"before_year" mapstructure:"before_year"`
	AfterYear  string             `yaml:"after_year" mapstructure:"after_year"`
	Weights    map[string]float64 `yaml:"weights" mapstructure:"weights"`
}

// WeightSet returns the configured weights. Metrics left out keep the
// default weight.
func (d DefaultsConfig) WeightSet() (model.WeightSet, error) {
	ws := model.DefaultWeights()
	for k, v := range d.Weights {
		m, err := model.ParseMetric(k)
		if err != nil {
			return nil, err
		}
		ws[m] = v
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BGINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("datahost.base_url", DefaultBaseURL)
	v.SetDefault("datahost.user_agent", "blockgroup-index/1.0")
	v.SetDefault("datahost.timeout_secs", 30)
	v.SetDefault("datahost.max_attempts", 1)
	v.SetDefault("datahost.rate_limit", 0)
	v.SetDefault("datahost.adaptive_rate", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.session_idle_mins", 30)
	v.SetDefault("defaults.city", string(model.CityAtlanta))
	v.SetDefault("defaults.year", string(model.Year2022))
	v.SetDefault("defaults.before_year", string(model.Year2013))
	v.SetDefault("defaults.after_year", string(model.Year2022))
	for _, m := range model.Metrics() {
		v.SetDefault("defaults.weights."+m.Param(), model.DefaultWeight)
	}
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.DataHost.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("datahost.base_url: %q is not an absolute URL", c.DataHost.BaseURL))
	}
	if c.DataHost.TimeoutSecs < 0 {
		errs = append(errs, "datahost.timeout_secs: must be >= 0")
	}
	if c.DataHost.MaxAttempts < 1 {
		errs = append(errs, "datahost.max_attempts: must be >= 1")
	}
	if c.DataHost.RateLimit < 0 {
		errs = append(errs, "datahost.rate_limit: must be >= 0")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: %d out of range", c.Server.Port))
	}
	if c.Server.MaxSessions < 0 {
		errs = append(errs, "server.max_sessions: must be >= 0")
	}

	if _, err := model.ParseCity(c.Defaults.City); err != nil {
		errs = append(errs, fmt.Sprintf("defaults.city: unknown city %q", c.Defaults.City))
	}
	for key, y := range map[string]string{
		"defaults.year":        c.Defaults.Year,
		"defaults.before_year": c.Defaults.BeforeYear,
		"defaults.after_year":  c.Defaults.AfterYear,
	} {
		if _, err := model.ParseYear(y); err != nil {
			errs = append(errs, fmt.Sprintf("%s: unsupported year %q", key, y))
		}
	}
	if _, err := c.Defaults.WeightSet(); err != nil {
		errs = append(errs, "defaults.weights: "+err.Error())
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %q is not a level", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("log.format: %q (want json or console)", c.Log.Format))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("config: %d problem(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
