package common

import "time"

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvModelPath      = "MODEL_PATH"
	EnvModelFormat    = "MODEL_FORMAT"
	EnvStrictDomain   = "STRICT_DOMAIN"
	EnvListenPort     = "LISTEN_PORT"
	EnvMetricsPort    = "METRICS_PORT"
	EnvReadTimeout    = "READ_TIMEOUT"
	EnvWriteTimeout   = "WRITE_TIMEOUT"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvServerURL      = "SUSTAINAI_SERVER_URL"
)

// Configuration defaults
const (
	DefaultModelPath      = "models/efficiency_model.json"
	DefaultModelFormat    = "auto"
	DefaultListenPort     = 8080
	DefaultMetricsPort    = 9090
	DefaultReadTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultServerURL      = "http://localhost:8080"
	DefaultDotEnvFile     = ".env"
)

// Log formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Validation constants
const (
	MinPort    = 1024
	MaxPort    = 65535
	MinTimeout = time.Second
	MaxTimeout = time.Minute
)
