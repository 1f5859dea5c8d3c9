package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "ASYNCQUEUE"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"server-mode":     "server.mode",
	"http-port":       "server.http-port",
	"queue-name":      "queue.name",
	"parallelism":     "queue.parallelism",
	"processor":       "processor.kind",
	"latency":         "processor.latency",
	"max-retries":     "processor.max-retries",
	"request-timeout": "processor.request-timeout",
	"data-folder":     "store.data-folder",
	"auth-enabled":    "auth.enabled",
	"auth-secret":     "auth.secret",
	"log-format":      "log-format",
	"log-level":       "log-level",
}

// RegisterFlags adds one flag per configuration key. Flag defaults come from
// the struct tags so there is a single source of truth.
func RegisterFlags(fs *pflag.FlagSet) {
	d := NewConfigurationWithDefaults()

	fs.String("config", "", "Path to a configuration file (yaml, json or toml)")
	fs.String("server-mode", d.Server.Mode, "Server mode: \"dev\" or \"prod\"")
	fs.Int("http-port", d.Server.HTTPPort, "HTTP server listen port")
	fs.String("queue-name", d.Queue.Name, "Queue name used in logs and errors")
	fs.Int("parallelism", d.Queue.Parallelism, "Maximum number of tasks processed at once")
	fs.String("processor", d.Processor.Kind, "Processor: \"digest\" or \"fetch\"")
	fs.Duration("latency", d.Processor.Latency, "Artificial latency added by the digest processor")
	fs.Uint("max-retries", d.Processor.MaxRetries, "Retries for the fetch processor")
	fs.Duration("request-timeout", d.Processor.RequestTimeout, "HTTP timeout for the fetch processor")
	fs.String("data-folder", d.Store.DataFolder, "Folder for the DuckDB outcome log (empty for in-memory)")
	fs.Bool("auth-enabled", d.Auth.Enabled, "Require a bearer JWT on API requests")
	fs.String("auth-secret", d.Auth.Secret, "HMAC secret used to verify JWTs")
	fs.String("log-format", d.LogFormat, "Log format: \"console\" or \"json\"")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
}

// BindFlags wires the flags registered by RegisterFlags, the ASYNCQUEUE_*
// environment and the optional config file into v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}
