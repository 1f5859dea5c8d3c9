// Package config defines the configuration structure for the asyncqueue agent.
//
// Configuration is organized into logical sections. Defaults live in struct
// tags and are applied with github.com/creasty/defaults; overrides come from
// viper (flags, ASYNCQUEUE_* environment variables, optional config file).
//
// # Configuration Structure
//
//	Configuration
//	├── Server         - HTTP server settings
//	├── Queue          - Scheduler name and parallelism
//	├── Processor      - Which processor runs the tasks
//	├── Store          - DuckDB outcome log location
//	├── Auth           - JWT authentication
//	├── LogFormat      - Logging format
//	└── LogLevel       - Logging verbosity
//
// # Server Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ Mode             │ "dev"   │ Server mode: "prod" or "dev"           │
//	│ HTTPPort         │ 8000    │ HTTP server listen port                │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Queue Configuration
//
//	┌─────────────┬─────────┬────────────────────────────────────────────┐
//	│ Field       │ Default │ Description                                │
//	├─────────────┼─────────┼────────────────────────────────────────────┤
//	│ Name        │ "tasks" │ Label used in logs and wrapped errors      │
//	│ Parallelism │ 100     │ Maximum number of tasks processing at once │
//	└─────────────┴─────────┴────────────────────────────────────────────┘
//
// # Processor Configuration
//
//	┌────────────────┬──────────┬──────────────────────────────────────────┐
//	│ Field          │ Default  │ Description                              │
//	├────────────────┼──────────┼──────────────────────────────────────────┤
//	│ Kind           │ "digest" │ "digest" hashes the payload,             │
//	│                │          │ "fetch" downloads the payload URL        │
//	│ Latency        │ 0s       │ Artificial delay for the digest kind     │
//	│ MaxRetries     │ 3        │ Retries on transient fetch failures      │
//	│ RequestTimeout │ 10s      │ HTTP timeout for the fetch kind          │
//	└────────────────┴──────────┴──────────────────────────────────────────┘
//
// # Store and Authentication Configuration
//
//	┌──────────────┬─────────┬────────────────────────────────────────────┐
//	│ Field        │ Default │ Description                                │
//	├──────────────┼─────────┼────────────────────────────────────────────┤
//	│ DataFolder   │ ""      │ DuckDB folder, empty for in-memory         │
//	│ Auth.Enabled │ false   │ Require a bearer JWT (HS256)               │
//	│ Auth.Secret  │ ""      │ HMAC secret, required when enabled         │
//	└──────────────┴─────────┴────────────────────────────────────────────┘
//
// # Loading
//
//	v := viper.New()
//	config.RegisterFlags(cmd.Flags())
//	if err := config.BindFlags(v, cmd.Flags()); err != nil {
//	    return err
//	}
//	cfg, err := config.Load(v)
//
// # Debug Logging
//
// DebugMap returns a flat map of every setting with secrets hidden:
//
//	zap.S().Infow("configuration loaded", "config", cfg.DebugMap())
package config
