package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "canvas-engine/domain/config"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StoreSupabase = "supabase"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Remote store
	StoreBackend  string `yaml:"store_backend"`
	EnableBreaker bool   `yaml:"enable_breaker"`
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	SupabaseURL   string `yaml:"supabase_url"`
	SupabaseKey   string `yaml:"-"`
	EventBusName  string `yaml:"event_bus_name"`
	PublishEvents bool   `yaml:"publish_events"`

	// Lambda configuration
	IsLambda           bool   `yaml:"is_lambda"`
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Observability
	ServiceName   string `yaml:"service_name"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`

	// HTTP
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Canvas overrides applied on top of the environment's domain defaults
	Theme               string        `yaml:"theme"`
	ContainmentTieBreak string        `yaml:"containment_tie_break"`
	SaveDebounce        time.Duration `yaml:"save_debounce"`
	HistoryLimit        int           `yaml:"history_limit"`
}

// defaults returns the configuration before any file or environment overlay.
func defaults() *Config {
	return &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		ShutdownTimeout: 10 * time.Second,
		StoreBackend:    StoreMemory,
		EnableBreaker:   true,
		AWSRegion:       "us-west-2",
		DynamoDBTable:   "canvas-documents",
		EventBusName:    "canvas-events",
		LogLevel:        "info",
		ServiceName:     "canvas-engine",
		EnableMetrics:   true,
		EnableCORS:      true,
		AllowedOrigins:  []string{"*"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing priority.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironment() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.EnableBreaker = getEnvBool("ENABLE_BREAKER", c.EnableBreaker)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseKey)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.PublishEvents = getEnvBool("PUBLISH_EVENTS", c.PublishEvents)

	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", c.LambdaFunctionName)
	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || c.LambdaFunctionName != "")

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Theme = getEnv("CANVAS_THEME", c.Theme)
	c.ContainmentTieBreak = getEnv("CONTAINMENT_TIE_BREAK", c.ContainmentTieBreak)
	c.SaveDebounce = getEnvDuration("SAVE_DEBOUNCE", c.SaveDebounce)
	c.HistoryLimit = getEnvInt("HISTORY_LIMIT", c.HistoryLimit)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.PublishEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when PUBLISH_EVENTS is set")
	}
	switch domainconfig.ContainmentTieBreak(c.ContainmentTieBreak) {
	case "", domainconfig.TieBreakFirstMatch, domainconfig.TieBreakSmallestArea:
	default:
		return fmt.Errorf("unknown CONTAINMENT_TIE_BREAK %q", c.ContainmentTieBreak)
	}
	if c.SaveDebounce < 0 {
		return fmt.Errorf("SAVE_DEBOUNCE cannot be negative")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT cannot be negative")
	}
	return nil
}

// Domain returns the canvas rules for this environment with overrides applied.
func (c *Config) Domain() *domainconfig.DomainConfig {
	dc := domainconfig.LoadDomainConfig(c.Environment)
	if c.Theme != "" {
		dc.Theme = c.Theme
	}
	if c.ContainmentTieBreak != "" {
		dc.ContainmentTieBreak = domainconfig.ContainmentTieBreak(c.ContainmentTieBreak)
	}
	if c.SaveDebounce > 0 {
		dc.SaveDebounce = c.SaveDebounce
	}
	if c.HistoryLimit > 0 {
		dc.HistoryLimit = c.HistoryLimit
	}
	return dc
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "1.5s" or "300ms"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
