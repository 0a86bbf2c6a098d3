// Package config loads the process-wide troubleshoot configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional TOML file,
// then the environment (a .env file in the working directory is loaded into
// the environment first, without overriding variables that are already set).
// The credential is only ever read from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/troubleshoot/pkg/relay"
)

// Environment variables read by Load.
const (
	EnvAPIKey = "OPENAI_API_KEY"
	EnvPort   = "PORT"
	EnvDebug  = "TROUBLESHOOT_DEBUG"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the immutable process configuration.
type Config struct {
	// APIKey is the upstream credential. Never read from the TOML file.
	APIKey string `toml:"-"`

	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Debug     bool   `toml:"debug"`
	LogFormat string `toml:"log_format"`

	// IndexPath serves the front-end page from disk (with live reload)
	// instead of the embedded copy.
	IndexPath string `toml:"index_path"`

	Upstream Upstream `toml:"upstream"`
}

// Upstream configures the completion API.
type Upstream struct {
	BaseURL      string   `toml:"base_url"`
	Model        string   `toml:"model"`
	MaxTokens    int      `toml:"max_tokens"`
	Timeout      Duration `toml:"timeout"`
	SystemPrompt string   `toml:"system_prompt"`
}

// Duration is a time.Duration decoded from a Go duration string ("30s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	r := relay.DefaultConfig()
	return Config{
		Host:      "0.0.0.0",
		Port:      5000,
		LogFormat: LogFormatConsole,
		Upstream: Upstream{
			BaseURL:      r.BaseURL,
			Model:        r.Model,
			MaxTokens:    r.MaxTokens,
			Timeout:      Duration{r.Timeout},
			SystemPrompt: r.SystemPrompt,
		},
	}
}

// Load builds the configuration. path may be empty to skip the TOML file.
func Load(path string) (Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("could not read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIKey = os.Getenv(EnvAPIKey)

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}

	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		c.Debug = debug
	}

	return nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.LogFormat != LogFormatConsole && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log_format must be %q or %q, got %q", LogFormatConsole, LogFormatJSON, c.LogFormat))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Upstream.Model == "" {
		errs = append(errs, errors.New("upstream.model is required"))
	}
	if c.Upstream.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("upstream.max_tokens must be positive, got %d", c.Upstream.MaxTokens))
	}
	if c.Upstream.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout))
	}

	return errors.Join(errs...)
}

// ListenAddr is the host:port the HTTP server binds.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Relay returns the relay configuration.
func (c Config) Relay() relay.Config {
	return relay.Config{
		APIKey:       c.APIKey,
		BaseURL:      c.Upstream.BaseURL,
		Model:        c.Upstream.Model,
		MaxTokens:    c.Upstream.MaxTokens,
		Timeout:      c.Upstream.Timeout.Duration,
		SystemPrompt: c.Upstream.SystemPrompt,
	}
}
