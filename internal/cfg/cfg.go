package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"sustainai/internal/common"
	"sustainai/internal/ml"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelPath      string
	ModelFormat    ml.Format
	StrictDomain   bool
	ListenPort     int
	MetricsPort    int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
}

type ConfigFile struct {
	Model struct {
		Path         string `yaml:"path"`
		Format       string `yaml:"format"`
		StrictDomain bool   `yaml:"strictDomain"`
	} `yaml:"model"`

	Server struct {
		ListenPort     int    `yaml:"listenPort"`
		MetricsPort    int    `yaml:"metricsPort"`
		ReadTimeout    string `yaml:"readTimeout"`
		WriteTimeout   string `yaml:"writeTimeout"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment alone. Variables in a .env file in the working directory are
// applied first without overriding the real environment.
func Load() (Settings, error) {
	if err := LoadDotEnv(common.DefaultDotEnvFile); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// LoadDotEnv applies the variables in path to the process environment. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := parseDurationOrDefault(config.Server.ReadTimeout, common.DefaultReadTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("server.readTimeout: %w", err)
	}
	writeTimeout, err := parseDurationOrDefault(config.Server.WriteTimeout, common.DefaultWriteTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("server.writeTimeout: %w", err)
	}
	requestTimeout, err := parseDurationOrDefault(config.Server.RequestTimeout, common.DefaultRequestTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("server.requestTimeout: %w", err)
	}

	// Override with environment variables if they exist
	format, err := ml.ParseFormat(getEnvOrDefault(common.EnvModelFormat, config.Model.Format))
	if err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	settings := Settings{
		ModelPath:      getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		ModelFormat:    format,
		StrictDomain:   getBoolFromEnvOrConfig(common.EnvStrictDomain, config.Model.StrictDomain),
		ListenPort:     getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		MetricsPort:    getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		ReadTimeout:    getDurationOrDefault(common.EnvReadTimeout, readTimeout),
		WriteTimeout:   getDurationOrDefault(common.EnvWriteTimeout, writeTimeout),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, orDefault(config.Log.Format, common.DefaultLogFormat)),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	format, err := ml.ParseFormat(getEnvOrDefault(common.EnvModelFormat, common.DefaultModelFormat))
	if err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	settings := Settings{
		ModelPath:      getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ModelFormat:    format,
		StrictDomain:   getBoolOrDefault(common.EnvStrictDomain, false),
		ListenPort:     getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		MetricsPort:    getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		ReadTimeout:    getDurationOrDefault(common.EnvReadTimeout, common.DefaultReadTimeout),
		WriteTimeout:   getDurationOrDefault(common.EnvWriteTimeout, common.DefaultWriteTimeout),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ServerConfig returns the model server settings.
func (s *Settings) ServerConfig() ml.ServerConfig {
	return ml.ServerConfig{
		Port:           s.ListenPort,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
		RequestTimeout: s.RequestTimeout,
	}
}

// EngineOptions returns the engine options implied by the settings.
func (s *Settings) EngineOptions() []ml.Option {
	return []ml.Option{
		ml.WithFormat(s.ModelFormat),
		ml.WithStrictDomain(s.StrictDomain),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDurationOrDefault(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
		warnInvalidEnv(key, v, defaultValue, err)
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
		warnInvalidEnv(key, v, defaultValue, err)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
		warnInvalidEnv(key, v, defaultValue, err)
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	fallback := defaultValue
	if configValue != 0 {
		fallback = configValue
	}
	if env := os.Getenv(key); env != "" {
		val, err := strconv.Atoi(env)
		if err == nil {
			return val
		}
		warnInvalidEnv(key, env, fallback, err)
	}
	return fallback
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		val, err := strconv.ParseBool(env)
		if err == nil {
			return val
		}
		warnInvalidEnv(key, env, configValue, err)
	}
	return configValue
}

// warnInvalidEnv reports an environment value that could not be parsed and
// is therefore ignored.
func warnInvalidEnv(key, value string, using any, err error) {
	log.Warn().
		Err(err).
		Str("key", key).
		Str("value", value).
		Interface("using", using).
		Msg("Ignoring invalid environment variable")
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.ModelPath) == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	// Validate ports
	if settings.ListenPort < common.MinPort || settings.ListenPort > common.MaxPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ListenPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", settings.ListenPort)
	}

	// Validate time durations
	timeouts := []struct {
		name string
		v    time.Duration
	}{
		{"read timeout", settings.ReadTimeout},
		{"write timeout", settings.WriteTimeout},
		{"request timeout", settings.RequestTimeout},
	}
	for _, to := range timeouts {
		if to.v < common.MinTimeout || to.v > common.MaxTimeout {
			return fmt.Errorf("%s must be between %v and %v, got %v", to.name, common.MinTimeout, common.MaxTimeout, to.v)
		}
	}

	// Validate logging
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil || settings.LogLevel == "" {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	if settings.LogFormat != common.LogFormatJSON && settings.LogFormat != common.LogFormatConsole {
		return fmt.Errorf("log format must be %q or %q, got %q", common.LogFormatJSON, common.LogFormatConsole, settings.LogFormat)
	}

	return nil
}
