package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

const (
	ServerModeDev  = "dev"
	ServerModeProd = "prod"

	ProcessorDigest = "digest"
	ProcessorFetch  = "fetch"
)

type Configuration struct {
	Server    Server    `mapstructure:"server"`
	Queue     Queue     `mapstructure:"queue"`
	Processor Processor `mapstructure:"processor"`
	Store     Store     `mapstructure:"store"`
	Auth      Auth      `mapstructure:"auth"`
	LogFormat string    `mapstructure:"log-format" default:"console"`
	LogLevel  string    `mapstructure:"log-level" default:"info"`
}

type Server struct {
	Mode     string `mapstructure:"mode" default:"dev"`
	HTTPPort int    `mapstructure:"http-port" default:"8000"`
}

type Queue struct {
	Name        string `mapstructure:"name" default:"tasks"`
	Parallelism int    `mapstructure:"parallelism" default:"100"`
}

type Processor struct {
	Kind           string        `mapstructure:"kind" default:"digest"`
	Latency        time.Duration `mapstructure:"latency" default:"0s"`
	MaxRetries     uint          `mapstructure:"max-retries" default:"3"`
	RequestTimeout time.Duration `mapstructure:"request-timeout" default:"10s"`
}

type Store struct {
	// DataFolder holds the DuckDB file. Empty means in-memory.
	DataFolder string `mapstructure:"data-folder" default:""`
}

type Auth struct {
	Enabled bool   `mapstructure:"enabled" default:"false"`
	Secret  string `mapstructure:"secret"`
}

// NewConfigurationWithDefaults returns a configuration with every default applied.
func NewConfigurationWithDefaults() *Configuration {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		// only malformed tags can fail here
		panic(err)
	}
	return cfg
}

// Load applies defaults, overlays everything viper knows (flags, environment,
// config file) and validates the result.
func Load(v *viper.Viper) (*Configuration, error) {
	cfg := NewConfigurationWithDefaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) Validate() error {
	var errs []error

	switch c.Server.Mode {
	case ServerModeDev, ServerModeProd:
	default:
		errs = append(errs, fmt.Errorf("invalid server mode %q: must be %q or %q", c.Server.Mode, ServerModeDev, ServerModeProd))
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.Server.HTTPPort))
	}
	if c.Queue.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("invalid parallelism %d: must be positive", c.Queue.Parallelism))
	}
	switch c.Processor.Kind {
	case ProcessorDigest, ProcessorFetch:
	default:
		errs = append(errs, fmt.Errorf("invalid processor %q: must be %q or %q", c.Processor.Kind, ProcessorDigest, ProcessorFetch))
	}
	if c.Processor.Latency < 0 {
		errs = append(errs, fmt.Errorf("invalid processor latency %s", c.Processor.Latency))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be \"console\" or \"json\"", c.LogFormat))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth is enabled but no secret is set"))
	}

	return errors.Join(errs...)
}

// DebugMap returns the configuration as a map suitable for structured
// logging. Secrets are hidden.
func (c *Configuration) DebugMap() map[string]any {
	secret := ""
	if c.Auth.Secret != "" {
		secret = "(hidden)"
	}
	return map[string]any{
		"server.mode":               c.Server.Mode,
		"server.http-port":          c.Server.HTTPPort,
		"queue.name":                c.Queue.Name,
		"queue.parallelism":         c.Queue.Parallelism,
		"processor.kind":            c.Processor.Kind,
		"processor.latency":         c.Processor.Latency.String(),
		"processor.max-retries":     c.Processor.MaxRetries,
		"processor.request-timeout": c.Processor.RequestTimeout.String(),
		"store.data-folder":         c.Store.DataFolder,
		"auth.enabled":              c.Auth.Enabled,
		"auth.secret":               secret,
		"log-format":                c.LogFormat,
		"log-level":                 c.LogLevel,
	}
}
