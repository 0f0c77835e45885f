package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nimburion/docroute/pkg/observability/logger"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// flagKeys maps command-line flag names to configuration keys. Flags only
// override when explicitly set.
var flagKeys = map[string]string{
	"port":      "http.port",
	"log-level": "log.level",
	"routes":    "routes.file",
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (defaults to DOCROUTE)
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags binds the known command-line flags found in flags.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	// Read config file if provided
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.prefix())
	if err := l.bindEnvVars(v); err != nil {
		return nil, err
	}
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars binds every key to its prefixed variable. Some keys also
// accept the unprefixed names used by hosting add-ons; the prefixed name
// wins when both are set.
func (l *ViperLoader) bindEnvVars(v *viper.Viper) error {
	bindings := []struct {
		key    string
		suffix string
		legacy []string
	}{
		{"service.name", "SERVICE_NAME", nil},
		{"service.environment", "SERVICE_ENVIRONMENT", nil},

		{"http.port", "HTTP_PORT", []string{"PORT"}},
		{"http.read_timeout", "HTTP_READ_TIMEOUT", nil},
		{"http.write_timeout", "HTTP_WRITE_TIMEOUT", nil},
		{"http.idle_timeout", "HTTP_IDLE_TIMEOUT", nil},
		{"http.shutdown_timeout", "HTTP_SHUTDOWN_TIMEOUT", nil},
		{"http.script_name", "HTTP_SCRIPT_NAME", nil},
		{"http.max_body_bytes", "HTTP_MAX_BODY_BYTES", nil},
		{"http.compression", "HTTP_COMPRESSION", nil},

		{"management.enabled", "MGMT_ENABLED", nil},
		{"management.port", "MGMT_PORT", nil},
		{"management.read_timeout", "MGMT_READ_TIMEOUT", nil},
		{"management.write_timeout", "MGMT_WRITE_TIMEOUT", nil},

		{"cors.allow_origin", "CORS_ALLOW_ORIGIN", nil},
		{"cors.allow_methods", "CORS_ALLOW_METHODS", nil},
		{"cors.max_age", "CORS_MAX_AGE", nil},
		{"cors.options_response_status_code", "CORS_OPTIONS_RESPONSE_STATUS_CODE", nil},

		{"log.level", "LOG_LEVEL", nil},
		{"log.format", "LOG_FORMAT", nil},
		{"log.output", "LOG_OUTPUT", []string{"BASE_LOG_FILE"}},

		{"database.url", "DB_URL", []string{"MONGOHQ_URL"}},
		{"database.connect_timeout", "DB_CONNECT_TIMEOUT", nil},
		{"database.operation_timeout", "DB_OPERATION_TIMEOUT", nil},
		{"database.functions_dir", "DB_FUNCTIONS_DIR", nil},

		{"worker.redis_url", "WORKER_REDIS_URL", []string{"REDISCLOUD_URL"}},
		{"worker.queue", "WORKER_QUEUE", nil},
		{"worker.poll_timeout", "WORKER_POLL_TIMEOUT", nil},
		{"worker.concurrency", "WORKER_CONCURRENCY", nil},

		{"routes.file", "ROUTES_FILE", nil},

		{"tracing.enabled", "TRACING_ENABLED", nil},
		{"tracing.endpoint", "TRACING_ENDPOINT", nil},
		{"tracing.sample_rate", "TRACING_SAMPLE_RATE", nil},
	}

	for _, b := range bindings {
		names := append([]string{b.key, l.prefixedEnv(b.suffix)}, b.legacy...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env %s: %w", b.key, err)
		}
	}
	return nil
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefix() string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return strings.ToUpper(prefix)
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return fmt.Sprintf("%s_%s", l.prefix(), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	v.SetDefault("http.script_name", cfg.HTTP.ScriptName)
	v.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	v.SetDefault("http.compression", cfg.HTTP.Compression)

	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)
	v.SetDefault("management.read_timeout", cfg.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", cfg.Management.WriteTimeout)

	v.SetDefault("cors.allow_origin", cfg.CORS.AllowOrigin)
	v.SetDefault("cors.allow_methods", cfg.CORS.AllowMethods)
	v.SetDefault("cors.max_age", cfg.CORS.MaxAge)
	v.SetDefault("cors.options_response_status_code", cfg.CORS.OptionsResponseStatusCode)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.output", cfg.Log.Output)

	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.operation_timeout", cfg.Database.OperationTimeout)
	v.SetDefault("database.functions_dir", cfg.Database.FunctionsDir)

	v.SetDefault("worker.redis_url", cfg.Worker.RedisURL)
	v.SetDefault("worker.queue", cfg.Worker.Queue)
	v.SetDefault("worker.poll_timeout", cfg.Worker.PollTimeout)
	v.SetDefault("worker.concurrency", cfg.Worker.Concurrency)

	v.SetDefault("routes.file", cfg.Routes.File)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
}

// Validate checks the loaded configuration and normalizes list values.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.CORS.AllowMethods = normalizeStringSlice(cfg.CORS.AllowMethods)

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}
	if !validPort(cfg.HTTP.Port) {
		errs = append(errs, fmt.Errorf("invalid http.port: %d", cfg.HTTP.Port))
	}
	if cfg.HTTP.ScriptName != "" && !strings.HasPrefix(cfg.HTTP.ScriptName, "/") {
		errs = append(errs, fmt.Errorf("http.script_name must start with '/': %s", cfg.HTTP.ScriptName))
	}
	if cfg.HTTP.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("http.max_body_bytes must not be negative"))
	}
	if cfg.Management.Enabled {
		if !validPort(cfg.Management.Port) {
			errs = append(errs, fmt.Errorf("invalid management.port: %d", cfg.Management.Port))
		} else if cfg.Management.Port == cfg.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, errors.New("cors.max_age must not be negative"))
	}
	if code := cfg.CORS.OptionsResponseStatusCode; code != 0 && (code < 200 || code > 299) {
		errs = append(errs, fmt.Errorf("cors.options_response_status_code must be 2xx: %d", code))
	}
	for _, m := range cfg.CORS.AllowMethods {
		if !contains(dispatchableMethods, strings.ToUpper(m)) {
			errs = append(errs, fmt.Errorf("cors.allow_methods contains unsupported method %q", m))
		}
	}

	if _, err := logger.ParseLogLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logger.ParseLogFormat(cfg.Log.Format); err != nil {
		errs = append(errs, err)
	}

	if cfg.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	} else if !strings.HasPrefix(cfg.Database.URL, "mongodb://") && !strings.HasPrefix(cfg.Database.URL, "mongodb+srv://") {
		errs = append(errs, errors.New("database.url must be a mongodb:// or mongodb+srv:// URL"))
	}
	if cfg.Database.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("database.connect_timeout must be positive"))
	}

	if strings.TrimSpace(cfg.Worker.Queue) == "" {
		errs = append(errs, errors.New("worker.queue is required"))
	}
	if cfg.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be at least 1: %d", cfg.Worker.Concurrency))
	}
	if cfg.Worker.Enabled() && !strings.HasPrefix(cfg.Worker.RedisURL, "redis://") && !strings.HasPrefix(cfg.Worker.RedisURL, "rediss://") {
		errs = append(errs, errors.New("worker.redis_url must be a redis:// or rediss:// URL"))
	}

	if strings.TrimSpace(cfg.Routes.File) == "" {
		errs = append(errs, errors.New("routes.file is required"))
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be between 0 and 1: %v", cfg.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

var dispatchableMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodHead,
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// normalizeStringSlice trims entries and drops empty ones. A single
// comma-separated entry, as produced by environment variables, is split.
func normalizeStringSlice(values []string) []string {
	if len(values) == 1 && strings.Contains(values[0], ",") {
		values = strings.Split(values[0], ",")
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
