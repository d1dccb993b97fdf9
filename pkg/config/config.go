// Package config loads extrepo configuration.
//
// Configuration comes from a TOML file, by default
// $XDG_CONFIG_HOME/extrepo/config.toml (~/.config/extrepo/config.toml), with
// a handful of environment overrides applied on top:
//
//   - EXTREPO_USER_AGENT: client identification string
//   - EXTREPO_SANDBOX_ROOT: directory sandboxes are created in
//   - EXTREPO_REDIS_ADDR: Redis address; selects the redis ledger backend
//   - EXTREPO_REMOTE: default remote repository URL
//
// Example file:
//
//	user_agent   = "XWiki/16.10"
//	sandbox_root = "/var/tmp/extrepo"
//	remote       = "https://repo.maven.apache.org/maven2"
//
//	[system_properties]
//	"java.version" = "17"
//
//	[[types]]
//	id        = "xar"
//	extension = "xar"
//	language  = "none"
//
//	[ledger]
//	backend = "redis"
//	addr    = "localhost:6379"
//	ttl     = "6h"
//
//	[proxy]
//	http     = "http://proxy.internal:3128"
//	no_proxy = "localhost,.internal"
//
//	[server]
//	addr = ":8080"
package config

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/extrepo/pkg/artifact"
	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/ledger"
	"github.com/matzehuels/extrepo/pkg/maven"
	"github.com/matzehuels/extrepo/pkg/proxy"
	"github.com/matzehuels/extrepo/pkg/sandbox"
	"github.com/matzehuels/extrepo/pkg/session"
)

const appName = "extrepo"

// Ledger backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultServerAddr is the listen address of `extrepo serve`.
const DefaultServerAddr = ":8080"

// Config is the complete extrepo configuration.
type Config struct {
	UserAgent        string            `toml:"user_agent"`
	SandboxRoot      string            `toml:"sandbox_root"`
	Remote           string            `toml:"remote"`
	Types            []artifact.Type   `toml:"types"`
	SystemProperties map[string]string `toml:"system_properties"`
	ConfigProperties map[string]string `toml:"config_properties"`
	Ledger           LedgerConfig      `toml:"ledger"`
	Proxy            ProxyConfig       `toml:"proxy"`
	Server           ServerConfig      `toml:"server"`
}

// LedgerConfig selects and configures the session ledger.
type LedgerConfig struct {
	Backend  string   `toml:"backend"` // none, memory or redis
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// ProxyConfig overrides the proxy settings detected from the environment.
// When every field is empty, the environment is used.
type ProxyConfig struct {
	HTTP    string `toml:"http"`
	HTTPS   string `toml:"https"`
	NoProxy string `toml:"no_proxy"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration written as a string such as "90m" in TOML.
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Remote: maven.CentralURL,
		Ledger: LedgerConfig{Backend: BackendMemory, TTL: Duration{ledger.DefaultTTL}},
		Server: ServerConfig{Addr: DefaultServerAddr},
	}
}

// DefaultPath returns the default configuration file location using the XDG
// standard (~/.config/extrepo/config.toml).
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the configuration at path, applies environment overrides and
// validates the result.
//
// An empty path loads the default location, where a missing file simply
// yields the defaults. A missing file at an explicit path, a malformed file
// or unknown keys are CONFIG_ERROR.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, errors.Config(err, "locate configuration")
		}
		path = p
	}

	if err := cfg.decodeFile(path); err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			err = nil
		} else {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes configuration from TOML text on top of the defaults.
// Environment overrides are not applied.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.Config(err, "parse configuration")
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.Config(err, "configuration file %s not found", path)
		}
		return errors.Config(err, "parse configuration %s", path)
	}
	return checkUndecoded(md)
}

func checkUndecoded(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeConfig, "unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv applies environment overrides using lookup (os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("EXTREPO_USER_AGENT"); ok && v != "" {
		c.UserAgent = v
	}
	if v, ok := lookup("EXTREPO_SANDBOX_ROOT"); ok && v != "" {
		c.SandboxRoot = v
	}
	if v, ok := lookup("EXTREPO_REMOTE"); ok && v != "" {
		c.Remote = v
	}
	if v, ok := lookup("EXTREPO_REDIS_ADDR"); ok && v != "" {
		c.Ledger.Backend = BackendRedis
		c.Ledger.Addr = v
	}
}

// Validate checks the configuration. Failures are CONFIG_ERROR.
func (c Config) Validate() error {
	if _, err := artifact.Extend(nil, c.Types...); err != nil {
		return err
	}
	if c.Remote != "" {
		if err := errors.ValidateURL(c.Remote); err != nil {
			return errors.Config(err, "invalid remote")
		}
	}
	switch c.Ledger.Backend {
	case "", BackendNone, BackendMemory:
	case BackendRedis:
		if c.Ledger.Addr == "" {
			return errors.New(errors.ErrCodeConfig, "ledger backend redis requires addr")
		}
	default:
		return errors.New(errors.ErrCodeConfig, "unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Ledger.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeConfig, "ledger ttl cannot be negative")
	}
	return nil
}

// ProxyResolver returns the configured proxy resolver: the settings of the
// [proxy] table when any is set, the process-wide environment resolver
// otherwise.
func (c Config) ProxyResolver() proxy.Resolver {
	p := c.Proxy
	if p.HTTP == "" && p.HTTPS == "" && p.NoProxy == "" {
		return proxy.Shared()
	}
	return proxy.FromSettings(proxy.Settings{Http: p.HTTP, Https: p.HTTPS, NoProxy: p.NoProxy})
}

// OpenLedger opens the configured ledger backend. It returns nil for the
// "none" backend. The caller closes the returned ledger.
func (c Config) OpenLedger(ctx context.Context) (ledger.Ledger, error) {
	switch c.Ledger.Backend {
	case BackendNone:
		return nil, nil
	case BackendRedis:
		l, err := ledger.NewRedis(ctx, ledger.RedisConfig{
			Addr:     c.Ledger.Addr,
			Password: c.Ledger.Password,
			DB:       c.Ledger.DB,
			TTL:      c.Ledger.TTL.Duration,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "open ledger")
		}
		return l, nil
	default:
		return ledger.NewMemory(), nil
	}
}

// SessionOptions returns builder options for this configuration.
func (c Config) SessionOptions(l ledger.Ledger, logger *log.Logger) session.Options {
	return session.Options{
		Store:            sandbox.NewStore(c.SandboxRoot),
		Proxy:            c.ProxyResolver(),
		ExtraTypes:       c.Types,
		UserAgent:        c.UserAgent,
		SystemProperties: c.SystemProperties,
		ConfigProperties: c.ConfigProperties,
		Ledger:           l,
		Logger:           logger,
	}
}
