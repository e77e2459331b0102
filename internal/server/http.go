package server

import (
	"context"
	"sync"
	"time"

	"recroai/internal/batch"
	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/jobs"
	"recroai/internal/notify"
	"recroai/internal/observability"
	"recroai/internal/types"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string           `json:"error"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
	Run     *types.RunReport `json:"run,omitempty"`
}

// JobRegistry is the job catalog as seen by the API
type JobRegistry interface {
	Get(jobID string) (types.Job, error)
	List() []types.Job
	Put(def jobs.Definition) (types.Job, error)
}

// DelegateHealth reports scoring delegate availability
type DelegateHealth interface {
	Configured() bool
	Health(ctx context.Context) map[string]any
}

// Dependencies are the services the handlers call into
type Dependencies struct {
	Scoring       *batch.Service
	Jobs          JobRegistry
	Composer      *notify.Composer
	Delegate      DelegateHealth
	Observability *observability.ObservabilityManager
	// Vault, when set together with a poll interval, rotates API keys
	Vault VaultClientInterface
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	deps Dependencies

	// API Authentication
	apiKeys *apiKeySet

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	VaultWatcher *VaultWatcher

	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// ConfigFrom builds a ServerConfig from the application config
func ConfigFrom(cfg *config.Config, version string) ServerConfig {
	rl := cfg.Server.RateLimit
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxRequestSize,
		RateLimit:      &rl,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		deps:           deps,
		apiKeys:        newAPIKeySet(cfg.APIKeys),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
	}

	if deps.Vault != nil && appCfg != nil && appCfg.Vault.Secrets.APIKeys != "" && appCfg.Vault.PollInterval > 0 {
		s.VaultWatcher = NewVaultWatcher(deps.Vault, appCfg.Vault.Secrets.APIKeys, appCfg.Vault.PollInterval, s.SetAPIKeys, logger)
	}
	return s
}

// SetAPIKeys replaces the accepted API keys
func (s *Server) SetAPIKeys(keys []string) {
	s.apiKeys.replace(keys)
	s.Logger.Info("API keys updated", "count", s.apiKeys.len())
}

// apiKeySet is a concurrency-safe set of API keys
type apiKeySet struct {
	mu   sync.RWMutex
	keys map[string]bool
}

func newAPIKeySet(keys []string) *apiKeySet {
	set := &apiKeySet{}
	set.replace(keys)
	return set
}

func (a *apiKeySet) replace(keys []string) {
	m := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			m[key] = true
		}
	}
	a.mu.Lock()
	a.keys = m
	a.mu.Unlock()
}

func (a *apiKeySet) has(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keys[key]
}

func (a *apiKeySet) len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}
