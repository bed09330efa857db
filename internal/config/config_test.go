package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/urlset"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, int(urlset.KindStriped), cfg.Crawler.SetVariant)
	require.Equal(t, 8, cfg.Crawler.Concurrency)
	require.Equal(t, "html", cfg.Crawler.Extractor)
	require.Equal(t, defaultUserAgent, cfg.Crawler.UserAgent)
	require.Equal(t, 10*time.Second, cfg.Timeout())
	require.Equal(t, 10*1024*1024, cfg.HTTP.MaxBodyBytes)
	require.Equal(t, urlset.DefaultStripes, cfg.Set.Stripes)
	require.Equal(t, urlset.DefaultCapacity, cfg.Set.InitialCapacity)
	require.Equal(t, urlset.DefaultLoadFactor, cfg.Set.LoadFactor)
	require.False(t, cfg.Logging.Development)
	require.Empty(t, cfg.Server.Addr)
	require.Empty(t, cfg.Report.OutputFile)
	require.True(t, cfg.Report.Sorted)
	require.Nil(t, cfg.RequestHeaders())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  set_variant: 1
  concurrency: 3
  extractor: regex
  user_agent: test-agent
http:
  timeout_seconds: 45
  max_body_bytes: 2048
  headers:
    x-crawl-run: nightly
set:
  initial_capacity: 64
  stripes: 8
  load_factor: 2
logging:
  development: true
server:
  addr: 127.0.0.1:9090
report:
  output_file: out.json
  sorted: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, urlset.KindCoarse, cfg.SetKind())
	require.Equal(t, 3, cfg.Crawler.Concurrency)
	require.Equal(t, "regex", cfg.Crawler.Extractor)
	require.Equal(t, "test-agent", cfg.Crawler.UserAgent)
	require.Equal(t, 45*time.Second, cfg.Timeout())
	require.Equal(t, 2048, cfg.HTTP.MaxBodyBytes)
	require.Equal(t, "nightly", cfg.RequestHeaders().Get("X-Crawl-Run"))
	require.Equal(t, SetConfig{InitialCapacity: 64, Stripes: 8, LoadFactor: 2}, cfg.Set)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	require.Equal(t, ReportConfig{OutputFile: "out.json", Sorted: false}, cfg.Report)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.ErrorContains(t, err, "read config")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("set:\n  stripes: 0\n"), 0o600))

	_, err := Load(path, nil)
	require.ErrorIs(t, err, ErrInvalidArgs)
	require.ErrorContains(t, err, "set.stripes")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CRAWLER_HTTP_TIMEOUT_SECONDS", "3")
	t.Setenv("CRAWLER_CRAWLER_EXTRACTOR", "regex")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.Timeout())
	require.Equal(t, "regex", cfg.Crawler.Extractor)
}

func TestLoadFlagOverrides(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--timeout=7",
		"--extractor=regex",
		"--stripes=4",
		"--output=report.json",
		"--server-addr=:8081",
		"--dev",
	}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, cfg.Timeout())
	require.Equal(t, "regex", cfg.Crawler.Extractor)
	require.Equal(t, 4, cfg.Set.Stripes)
	require.Equal(t, "report.json", cfg.Report.OutputFile)
	require.Equal(t, ":8081", cfg.Server.Addr)
	require.True(t, cfg.Logging.Development)
}

func TestLoadUnchangedFlagsKeepDefaults(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.Equal(t, urlset.DefaultStripes, cfg.Set.Stripes)
	require.True(t, cfg.Report.Sorted)
}

func TestApplyArgs(t *testing.T) {
	t.Parallel()

	base, err := Load("", nil)
	require.NoError(t, err)

	cfg, err := base.ApplyArgs([]string{"0", "http://example.com", "4"})
	require.NoError(t, err)
	require.Equal(t, urlset.KindList, cfg.SetKind())
	require.Equal(t, "http://example.com", cfg.Crawler.SeedURL)
	require.Equal(t, 4, cfg.Crawler.Concurrency)
	require.Equal(t, 8, base.Crawler.Concurrency, "receiver must not change")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "too few", args: []string{"1", "http://example.com"}, want: "got 2 arguments"},
		{name: "variant not a number", args: []string{"x", "http://example.com", "4"}, want: "set-variant"},
		{name: "variant out of range", args: []string{"3", "http://example.com", "4"}, want: "crawler.set_variant"},
		{name: "negative variant", args: []string{"-1", "http://example.com", "4"}, want: "crawler.set_variant"},
		{name: "threads not a number", args: []string{"1", "http://example.com", "many"}, want: "thread-count"},
		{name: "zero threads", args: []string{"1", "http://example.com", "0"}, want: "crawler.concurrency"},
		{name: "empty seed", args: []string{"1", " ", "2"}, want: "seed-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := base.ApplyArgs(tt.args)
			require.ErrorIs(t, err, ErrInvalidArgs)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid extractor", mutate: func(c *Config) { c.Crawler.Extractor = "xpath" }, want: "crawler.extractor"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "negative body cap", mutate: func(c *Config) { c.HTTP.MaxBodyBytes = -1 }, want: "http.max_body_bytes"},
		{name: "zero capacity", mutate: func(c *Config) { c.Set.InitialCapacity = 0 }, want: "set.initial_capacity"},
		{name: "zero load factor", mutate: func(c *Config) { c.Set.LoadFactor = 0 }, want: "set.load_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
