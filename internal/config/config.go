package config

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/reactor/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "reactor.json"

	// DefaultMaxFlushIterations is the scheduler loop guard ceiling.
	DefaultMaxFlushIterations = 1000

	// DefaultDispatchBuffer is the capacity of the runtime dispatch queue.
	DefaultDispatchBuffer = 256

	// DefaultPort is the default devtools server port.
	DefaultPort = 7070

	// DefaultHost is the default devtools server host.
	DefaultHost = "localhost"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "reactor"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "reactor"
)

// fileNames lists the configuration files Load looks for, in order.
var fileNames = []string{ConfigFileName, "reactor.yaml", "reactor.yml", "reactor.toml"}

// Config represents the complete runtime configuration.
type Config struct {
	// Scheduler contains batch scheduler limits.
	Scheduler SchedulerConfig `json:"scheduler,omitempty" yaml:"scheduler,omitempty" toml:"scheduler,omitempty"`

	// Dev enables development diagnostics (write call-site capture).
	Dev bool `json:"dev,omitempty" yaml:"dev,omitempty" toml:"dev,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty" toml:"log,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty" toml:"metrics,omitempty"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty" toml:"tracing,omitempty"`

	// Devtools contains the inspection server configuration.
	Devtools DevtoolsConfig `json:"devtools,omitempty" yaml:"devtools,omitempty" toml:"devtools,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SchedulerConfig contains batch scheduler settings.
type SchedulerConfig struct {
	// MaxFlushIterations aborts a flush that loops more than this many times.
	MaxFlushIterations int `json:"maxFlushIterations,omitempty" yaml:"maxFlushIterations,omitempty" toml:"maxFlushIterations,omitempty"`

	// DispatchBuffer is the capacity of the cross-goroutine dispatch queue.
	DispatchBuffer int `json:"dispatchBuffer,omitempty" yaml:"dispatchBuffer,omitempty" toml:"dispatchBuffer,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty" toml:"namespace,omitempty"`
	Subsystem string `json:"subsystem,omitempty" yaml:"subsystem,omitempty" toml:"subsystem,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty" toml:"tracerName,omitempty"`
}

// DevtoolsConfig contains devtools server settings.
type DevtoolsConfig struct {
	// Port is the port to run the devtools server on.
	Port int `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxFlushIterations: DefaultMaxFlushIterations,
			DispatchBuffer:     DefaultDispatchBuffer,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Devtools: DevtoolsConfig{
			Port: DefaultPort,
			Host: DefaultHost,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for reactor.json, reactor.yaml, reactor.yml and reactor.toml in
// that order.
func Load(dir string) (*Config, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E121").
		WithDetail("No reactor configuration found in " + dir).
		WithSuggestion("Create reactor.json or run without --config to use defaults")
}

// LoadOrDefault loads configuration from dir, falling back to defaults when
// no file exists.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		if ve, ok := err.(*errors.Error); ok && ve.Code == "E121" {
			return New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path. The format is
// selected by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.FromError(err, "E120")
	}

	cfg := New()
	if err := decode(path, data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check the file syntax").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, using the format
// implied by its extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.FromError(err, "E120")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.FromError(err, "E120")
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Scheduler.MaxFlushIterations == 0 {
		c.Scheduler.MaxFlushIterations = DefaultMaxFlushIterations
	}
	if c.Scheduler.DispatchBuffer == 0 {
		c.Scheduler.DispatchBuffer = DefaultDispatchBuffer
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
	if c.Devtools.Port == 0 {
		c.Devtools.Port = DefaultPort
	}
	if c.Devtools.Host == "" {
		c.Devtools.Host = DefaultHost
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Scheduler.MaxFlushIterations < 1 {
		return errors.New("E122").
			WithDetail("scheduler.maxFlushIterations must be at least 1")
	}
	if c.Scheduler.DispatchBuffer < 1 {
		return errors.New("E122").
			WithDetail("scheduler.dispatchBuffer must be at least 1")
	}
	if c.Devtools.Port < 0 || c.Devtools.Port > 65535 {
		return errors.New("E122").
			WithDetail("devtools.port must be between 0 and 65535")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E122").
			WithDetail("log.level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E122").
			WithDetail("log.format must be text or json")
	}
	return nil
}

// DevtoolsAddress returns the listen address for the devtools server.
func (c *Config) DevtoolsAddress() string {
	return c.Devtools.Host + ":" + strconv.Itoa(c.Devtools.Port)
}

// Logger builds a slog.Logger from the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
