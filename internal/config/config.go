package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is built once by LoadConfig
// and passed down explicitly; nothing reads configuration from globals.
//
// Secret precedence:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RECROAI_AI_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Batch         BatchConfig         `mapstructure:"batch"`
	Authenticity  AuthenticityConfig  `mapstructure:"authenticity"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Store         StoreConfig         `mapstructure:"store"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// Prompts holds prompt bodies read from the *File settings.
	Prompts LoadedPrompts `mapstructure:"-"`
}

// AIConfig holds the scoring delegate configuration. The global values are
// fallbacks for the per-operation sections.
type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	BaseURL          string        `mapstructure:"baseURL"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig  `mapstructure:"customPrompts"`

	// Referer and AppTitle are sent to OpenRouter for attribution.
	Referer  string `mapstructure:"referer"`
	AppTitle string `mapstructure:"appTitle"`

	// Operation-specific configurations
	Score  OperationAIConfig `mapstructure:"score"`
	Filter OperationAIConfig `mapstructure:"filter"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for one delegate operation
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	BaseURL          string               `mapstructure:"baseURL"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig         `mapstructure:"customPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
	Referer          string               `mapstructure:"referer"`
	AppTitle         string               `mapstructure:"appTitle"`

	// Loaded holds prompt file contents resolved for this operation.
	Loaded OperationPrompts `mapstructure:"-"`
}

// PromptConfig holds configuration for customizable prompts
type PromptConfig struct {
	SystemPrompts PromptSet `mapstructure:"systemPrompts"`
	UserPrompts   PromptSet `mapstructure:"userPrompts"`
}

// PromptSet holds inline prompts and prompt file paths per operation
type PromptSet struct {
	ScoreCategory      string `mapstructure:"scoreCategory"`
	ScoreCategoryFile  string `mapstructure:"scoreCategoryFile"`
	EvaluateFilter     string `mapstructure:"evaluateFilter"`
	EvaluateFilterFile string `mapstructure:"evaluateFilterFile"`
}

// BatchConfig controls scoring runs
type BatchConfig struct {
	MaxCandidates        int           `mapstructure:"maxCandidates"`        // Hard per-run cap
	DelegateConcurrency  int           `mapstructure:"delegateConcurrency"`  // Simultaneous delegate calls
	CandidateConcurrency int           `mapstructure:"candidateConcurrency"` // Candidates processed at once
	CallTimeout          time.Duration `mapstructure:"callTimeout"`          // Per delegate call
	RunTimeout           time.Duration `mapstructure:"runTimeout"`           // Whole run, 0 for none
}

// AuthenticityConfig mirrors the detector policy
type AuthenticityConfig struct {
	Threshold              float64  `mapstructure:"threshold"`
	HighSeverityWeight     float64  `mapstructure:"highSeverityWeight"`
	HighSeverityCap        float64  `mapstructure:"highSeverityCap"`
	BoilerplateWeight      float64  `mapstructure:"boilerplateWeight"`
	SuperlativeWeight      float64  `mapstructure:"superlativeWeight"`
	LengthMismatchWeight   float64  `mapstructure:"lengthMismatchWeight"`
	InvisibleCharWeight    float64  `mapstructure:"invisibleCharWeight"`
	MarkupWeight           float64  `mapstructure:"markupWeight"`
	VocabularyWeight       float64  `mapstructure:"vocabularyWeight"`
	VocabularyCap          float64  `mapstructure:"vocabularyCap"`
	BoilerplateMinHits     int      `mapstructure:"boilerplateMinHits"`
	BoilerplateDensity     float64  `mapstructure:"boilerplateDensity"`
	SuperlativeMinHits     int      `mapstructure:"superlativeMinHits"`
	MinWordsPerClaimedYear float64  `mapstructure:"minWordsPerClaimedYear"`
	MaxSignalLength        int      `mapstructure:"maxSignalLength"`
	ExtraPatterns          []string `mapstructure:"extraPatterns"`
	UseDelegate            bool     `mapstructure:"useDelegate"` // Second opinion on flagged profiles
}

// JobsConfig locates job definition files
type JobsConfig struct {
	Dir           string        `mapstructure:"dir"`
	Watch         bool          `mapstructure:"watch"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// StoreConfig selects where candidates and score records live
type StoreConfig struct {
	Driver          string        `mapstructure:"driver"` // "memory" or "postgres"
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for authentication

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
	Window         time.Duration `mapstructure:"window"`         // Rate limiting window duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxRequestSize   int64    `mapstructure:"maxRequestSize"`
	InterviewTopN    int      `mapstructure:"interviewTopN"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	Delegate       DelegateMetricsConfig       `mapstructure:"delegate"`
	Scoring        ScoringMetricsConfig        `mapstructure:"scoring"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// DelegateMetricsConfig controls delegate call metrics
type DelegateMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
}

// ScoringMetricsConfig controls run and candidate metrics
type ScoringMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackRuns         bool `mapstructure:"trackRuns"`
	TrackAuthenticity bool `mapstructure:"trackAuthenticity"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("RECROAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'RECROAI'")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/recroai/")
	v.AddConfigPath("$HOME/.recroai")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/recroai/, $HOME/.recroai, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	return finishLoading(v, configFileUsed)
}

// LoadConfigFile loads configuration from an explicit file path, still
// honouring environment overrides.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RECROAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	log.Printf("[CONFIG] Successfully loaded config file: %s", path)
	return finishLoading(v, path)
}

func finishLoading(v *viper.Viper, configFileUsed string) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// supportedProviders lists delegate providers the ai package can build
var supportedProviders = map[string]bool{
	"gemini":     true,
	"openai":     true,
	"openrouter": true,
}

// Validate checks if the configuration is valid. A missing API key is not a
// configuration error: runs report it as an unavailable delegate so that
// commands which never call the delegate still work.
func (c *Config) Validate() error {
	if !supportedProviders[c.AI.Provider] {
		return fmt.Errorf("unsupported AI provider: %s (must be gemini, openai or openrouter)", c.AI.Provider)
	}
	for name, op := range map[string]OperationAIConfig{"score": c.AI.Score, "filter": c.AI.Filter} {
		if op.Provider != "" && !supportedProviders[op.Provider] {
			return fmt.Errorf("unsupported AI provider for %s: %s", name, op.Provider)
		}
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	if c.Batch.MaxCandidates < 1 || c.Batch.MaxCandidates > 50 {
		return fmt.Errorf("batch maxCandidates must be between 1 and 50, got %d", c.Batch.MaxCandidates)
	}
	if c.Batch.DelegateConcurrency < 1 {
		return fmt.Errorf("batch delegateConcurrency must be at least 1")
	}
	if c.Batch.CandidateConcurrency < 1 {
		return fmt.Errorf("batch candidateConcurrency must be at least 1")
	}
	if c.Batch.CallTimeout <= 0 {
		return fmt.Errorf("batch callTimeout must be positive")
	}

	if c.Authenticity.Threshold <= 0 || c.Authenticity.Threshold > 1 {
		return fmt.Errorf("authenticity threshold must be in (0, 1], got %g", c.Authenticity.Threshold)
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported store driver: %s (must be memory or postgres)", c.Store.Driver)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	return nil
}
