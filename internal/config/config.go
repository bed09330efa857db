// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sitecrawler/internal/extract"
	"github.com/JakeFAU/sitecrawler/internal/urlset"
)

// ErrInvalidArgs marks unusable command-line arguments or configuration values.
var ErrInvalidArgs = errors.New("invalid arguments")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Set     SetConfig     `mapstructure:"set"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Report  ReportConfig  `mapstructure:"report"`
}

// CrawlerConfig selects the crawl strategy.
type CrawlerConfig struct {
	SeedURL     string `mapstructure:"seed_url"`
	SetVariant  int    `mapstructure:"set_variant"`
	Concurrency int    `mapstructure:"concurrency"`
	Extractor   string `mapstructure:"extractor"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig bounds each fetch.
type HTTPConfig struct {
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int               `mapstructure:"max_body_bytes"`
	Headers        map[string]string `mapstructure:"headers"`
}

// SetConfig tunes the visited-set table.
type SetConfig struct {
	InitialCapacity int `mapstructure:"initial_capacity"`
	Stripes         int `mapstructure:"stripes"`
	LoadFactor      int `mapstructure:"load_factor"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the optional status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ReportConfig controls result output.
type ReportConfig struct {
	OutputFile string `mapstructure:"output_file"`
	Sorted     bool   `mapstructure:"sorted"`
}

const defaultUserAgent = "sitecrawler/1.0 (+https://github.com/JakeFAU/sitecrawler)"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"timeout":     "http.timeout_seconds",
	"extractor":   "crawler.extractor",
	"stripes":     "set.stripes",
	"output":      "report.output_file",
	"server-addr": "server.addr",
	"dev":         "logging.development",
}

// RegisterFlags defines the flags Load knows how to bind.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("timeout", 10, "per-request timeout in seconds")
	fs.String("extractor", extract.KindHTML, "link extractor: html or regex")
	fs.Int("stripes", urlset.DefaultStripes, "lock stripes for the striped set")
	fs.String("output", "", "write a JSON report to this file")
	fs.String("server-addr", "", "serve /healthz, /metrics and /status on this address")
	fs.Bool("dev", false, "human-friendly development logging")
}

// Load builds a Config from defaults, an optional file, the environment and
// any flags in fs that were registered with RegisterFlags.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seed_url", "")
	v.SetDefault("crawler.set_variant", int(urlset.KindStriped))
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.extractor", extract.KindHTML)
	v.SetDefault("crawler.user_agent", defaultUserAgent)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("set.initial_capacity", urlset.DefaultCapacity)
	v.SetDefault("set.stripes", urlset.DefaultStripes)
	v.SetDefault("set.load_factor", urlset.DefaultLoadFactor)
	v.SetDefault("logging.development", false)
	v.SetDefault("server.addr", "")
	v.SetDefault("report.output_file", "")
	v.SetDefault("report.sorted", true)
}

// ApplyArgs overrides the crawl keys with the positional arguments
// <set-variant> <seed-url> <thread-count> and validates the result.
func (c Config) ApplyArgs(args []string) (Config, error) {
	if len(args) != 3 {
		return Config{}, fmt.Errorf("%w: want <set-variant> <seed-url> <thread-count>, got %d arguments", ErrInvalidArgs, len(args))
	}
	variant, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Config{}, fmt.Errorf("%w: set-variant %q is not a number", ErrInvalidArgs, args[0])
	}
	threads, err := strconv.Atoi(strings.TrimSpace(args[2]))
	if err != nil {
		return Config{}, fmt.Errorf("%w: thread-count %q is not a number", ErrInvalidArgs, args[2])
	}

	c.Crawler.SetVariant = variant
	c.Crawler.SeedURL = strings.TrimSpace(args[1])
	c.Crawler.Concurrency = threads
	if c.Crawler.SeedURL == "" {
		return Config{}, fmt.Errorf("%w: seed-url is empty", ErrInvalidArgs)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !urlset.Kind(c.Crawler.SetVariant).Valid() {
		return fmt.Errorf("%w: crawler.set_variant must be 0, 1 or 2, got %d", ErrInvalidArgs, c.Crawler.SetVariant)
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("%w: crawler.concurrency must be > 0", ErrInvalidArgs)
	}
	if _, err := extract.New(c.Crawler.Extractor); err != nil {
		return fmt.Errorf("%w: crawler.extractor: %v", ErrInvalidArgs, err)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: http.timeout_seconds must be > 0", ErrInvalidArgs)
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: http.max_body_bytes must be >= 0", ErrInvalidArgs)
	}
	if c.Set.InitialCapacity <= 0 {
		return fmt.Errorf("%w: set.initial_capacity must be > 0", ErrInvalidArgs)
	}
	if c.Set.Stripes <= 0 {
		return fmt.Errorf("%w: set.stripes must be > 0", ErrInvalidArgs)
	}
	if c.Set.LoadFactor <= 0 {
		return fmt.Errorf("%w: set.load_factor must be > 0", ErrInvalidArgs)
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RequestHeaders returns the extra headers sent with every fetch. Names are
// canonicalized because viper lowercases map keys.
func (c Config) RequestHeaders() http.Header {
	if len(c.HTTP.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.HTTP.Headers))
	for name, value := range c.HTTP.Headers {
		h.Set(name, value)
	}
	return h
}

// SetKind returns the configured visited-set implementation.
func (c Config) SetKind() urlset.Kind {
	return urlset.Kind(c.Crawler.SetVariant)
}
