// Package config loads the docroute service configuration from defaults, an
// optional YAML file and environment variables.
package config

import "time"

// DefaultEnvPrefix prefixes every environment variable read by the loader.
const DefaultEnvPrefix = "DOCROUTE"

// Config is the root configuration structure.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service" yaml:"service"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Management ManagementConfig `mapstructure:"management" yaml:"management"`
	CORS       CORSConfig       `mapstructure:"cors" yaml:"cors"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Worker     WorkerConfig     `mapstructure:"worker" yaml:"worker"`
	Routes     RoutesConfig     `mapstructure:"routes" yaml:"routes"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// HTTPConfig configures the public API server.
//
// ScriptName is the front-controller prefix stripped from request paths
// before routing, e.g. "/index.php".
type HTTPConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	ScriptName      string        `mapstructure:"script_name" yaml:"script_name"`
	// MaxBodyBytes caps request bodies; 0 disables the limit.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	// Compression enables Brotli/gzip response encoding.
	Compression bool `mapstructure:"compression" yaml:"compression"`
}

// ManagementConfig configures the management server (/health, /ready, /metrics).
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// CORSConfig configures the preflight answer.
type CORSConfig struct {
	AllowOrigin               string        `mapstructure:"allow_origin" yaml:"allow_origin"`
	AllowMethods              []string      `mapstructure:"allow_methods" yaml:"allow_methods"`
	MaxAge                    time.Duration `mapstructure:"max_age" yaml:"max_age"`
	OptionsResponseStatusCode int           `mapstructure:"options_response_status_code" yaml:"options_response_status_code"`
}

// LogConfig configures the zap logger. Output accepts "stdout", "stderr" or a
// file path; "{{PORT}}" in a path is replaced with the HTTP port.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DatabaseConfig configures the MongoDB connection pool.
type DatabaseConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	// FunctionsDir holds the JavaScript map/reduce sources loaded by name.
	FunctionsDir string `mapstructure:"functions_dir" yaml:"functions_dir"`
}

// WorkerConfig configures the Redis-backed background worker queue.
// An empty RedisURL disables the worker subsystem.
type WorkerConfig struct {
	RedisURL    string        `mapstructure:"redis_url" yaml:"redis_url"`
	Queue       string        `mapstructure:"queue" yaml:"queue"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// Enabled reports whether a Redis URL is configured.
func (w WorkerConfig) Enabled() bool { return w.RedisURL != "" }

// RoutesConfig points at the YAML route table.
type RoutesConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docroute",
			Environment: "production",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
			Compression:     true,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			AllowOrigin:               "*",
			AllowMethods:              []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			MaxAge:                    7 * 24 * time.Hour,
			OptionsResponseStatusCode: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Database: DatabaseConfig{
			URL:              "mongodb://localhost:27017/docroute",
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 30 * time.Second,
			FunctionsDir:     "functions",
		},
		Worker: WorkerConfig{
			Queue:       "workers",
			PollTimeout: 5 * time.Second,
			Concurrency: 1,
		},
		Routes: RoutesConfig{
			File: "routes.yaml",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
	}
}
