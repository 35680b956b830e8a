package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WORKSPACE_"

// Config is the workspace process configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" json:"log"`
	Runtime   RuntimeConfig   `yaml:"runtime" json:"runtime"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Bookmarks BookmarksConfig `yaml:"bookmarks" json:"bookmarks"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console" jsonschema:"enum=json,enum=console"`
}

// RuntimeConfig bounds guest execution.
type RuntimeConfig struct {
	// Timeout is the wall-clock limit per invocation; 0 disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	// MemoryLimitPages caps linear memory per guest in 64KiB pages; 0 is the engine default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages" validate:"lte=65536"`
	// EntryPoints are tried in order.
	EntryPoints []string `yaml:"entry_points" json:"entry_points" validate:"required,min=1,dive,required"`
}

type DatabaseConfig struct {
	// WorkDir holds live database files. Empty uses a temporary directory.
	WorkDir string `yaml:"work_dir" json:"work_dir,omitempty"`
	// CheckpointPath is the bbolt file checkpoints persist to. Empty keeps
	// checkpoints in memory only.
	CheckpointPath string `yaml:"checkpoint_path" json:"checkpoint_path,omitempty"`
}

type BookmarksConfig struct {
	// File is a Chromium-format Bookmarks JSON file. Empty leaves the cache
	// unpopulated.
	File string `yaml:"file" json:"file,omitempty"`
	// Resync is a cron spec for periodic reloads, e.g. "@every 30s".
	Resync string `yaml:"resync" json:"resync,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required,hostname_port"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Exporter string `yaml:"exporter" json:"exporter,omitempty" validate:"omitempty,oneof=stdout noop" jsonschema:"enum=stdout,enum=noop"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Runtime: RuntimeConfig{
			Timeout:     30 * time.Second,
			EntryPoints: []string{"run", "main"},
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8088",
		},
		Tracing: TracingConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML file over Defaults, applies WORKSPACE_* overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps WORKSPACE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(EnvPrefix + "RUNTIME_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sRUNTIME_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Runtime.Timeout = d
	}
	if v := os.Getenv(EnvPrefix + "RUNTIME_MEMORY_LIMIT_PAGES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sRUNTIME_MEMORY_LIMIT_PAGES: %w", EnvPrefix, err)
		}
		cfg.Runtime.MemoryLimitPages = uint32(n)
	}
	if v := os.Getenv(EnvPrefix + "RUNTIME_ENTRY_POINTS"); v != "" {
		cfg.Runtime.EntryPoints = splitAndTrim(v, ",")
	}
	if v := os.Getenv(EnvPrefix + "DATABASE_WORK_DIR"); v != "" {
		cfg.Database.WorkDir = v
	}
	if v := os.Getenv(EnvPrefix + "DATABASE_CHECKPOINT_PATH"); v != "" {
		cfg.Database.CheckpointPath = v
	}
	if v := os.Getenv(EnvPrefix + "BOOKMARKS_FILE"); v != "" {
		cfg.Bookmarks.File = v
	}
	if v := os.Getenv(EnvPrefix + "BOOKMARKS_RESYNC"); v != "" {
		cfg.Bookmarks.Resync = v
	}
	if v := os.Getenv(EnvPrefix + "SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRACING_ENABLED: %w", EnvPrefix, err)
		}
		cfg.Tracing.Enabled = enabled
	}
	if v := os.Getenv(EnvPrefix + "TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	return nil
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// NewLogger builds the process logger.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var zc zap.Config
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
