// Package config loads serpcmp settings from a YAML file, SERPCMP_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/fingerprint"
	"github.com/FranksOps/serpcmp/internal/serp"
	"github.com/spf13/viper"
)

// Limits on a comparison.
const (
	MaxQueries     = 5
	MinResultCount = 1
	MaxResultCount = 100
)

// Storage backend names.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendJSON     = "json"
	BackendCSV      = "csv"
)

// Config holds every setting serpcmp reads.
type Config struct {
	Provider    string          `mapstructure:"provider"`
	BaseURL     string          `mapstructure:"base_url"`
	APIKey      string          `mapstructure:"api_key"`
	ResultCount int             `mapstructure:"result_count"`
	Queries     []compare.Query `mapstructure:"queries"`
	Concurrency int             `mapstructure:"concurrency"`
	CacheTTL    time.Duration   `mapstructure:"cache_ttl"`

	Storage StorageConfig `mapstructure:"storage"`
	Rate    RateConfig    `mapstructure:"rate"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type RateConfig struct {
	RPS    float64 `mapstructure:"rps"`
	Jitter float64 `mapstructure:"jitter"`
}

type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Fingerprint string        `mapstructure:"fingerprint"`
	ProxiesFile string        `mapstructure:"proxies_file"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"` // 0 disables the standalone listener
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", serp.ProviderSerpAPI)
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("result_count", serp.DefaultCount)
	v.SetDefault("concurrency", 4)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("rate.rps", 0)
	v.SetDefault("rate.jitter", 0)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("fetch.proxies_file", "")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
}

// New returns a viper instance with defaults, environment binding and, if
// path is non-empty, the given config file. Without a path, serpcmp.yaml is
// looked up in the working directory and is optional.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SERPCMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serpcmp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals v into a Config. It does not validate.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Load is New followed by Decode.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks the settings that apply to every command.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case serp.ProviderSerpAPI, serp.ProviderGoogle:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.ResultCount < MinResultCount || c.ResultCount > MaxResultCount {
		errs = append(errs, fmt.Errorf("result_count must be between %d and %d, got %d", MinResultCount, MaxResultCount, c.ResultCount))
	}
	switch c.Storage.Backend {
	case BackendNone, "":
	case BackendSQLite, BackendPostgres, BackendJSON, BackendCSV:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for backend %q", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateQueries checks a query list and fills in the default device.
func ValidateQueries(queries []compare.Query) error {
	if len(queries) > MaxQueries {
		return fmt.Errorf("at most %d queries can be compared, got %d", MaxQueries, len(queries))
	}
	if len(compare.ActiveQueries(queries)) == 0 {
		return compare.ErrEmptyInput
	}
	for i := range queries {
		if queries[i].Device == "" {
			queries[i].Device = compare.DeviceDesktop
		}
		if !queries[i].Device.Valid() {
			return fmt.Errorf("query %d: unknown device %q", i+1, queries[i].Device)
		}
	}
	return nil
}

// ParseQuery parses "keyword[,hl[,device[,gl]]]".
func ParseQuery(s string) (compare.Query, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 4 {
		return compare.Query{}, fmt.Errorf("query %q: expected keyword[,hl[,device[,gl]]]", s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	q := compare.Query{Keyword: parts[0], Device: compare.DeviceDesktop}
	if len(parts) > 1 {
		q.Language = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		q.Device = compare.Device(strings.ToLower(parts[2]))
		if !q.Device.Valid() {
			return compare.Query{}, fmt.Errorf("query %q: unknown device %q", s, parts[2])
		}
	}
	if len(parts) > 3 {
		q.Country = parts[3]
	}
	return q, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
