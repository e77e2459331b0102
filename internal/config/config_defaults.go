package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.baseURL", "")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 2)
	v.SetDefault("ai.temperature", 0.0) // Scores should be as repeatable as the model allows
	v.SetDefault("ai.useSystemPrompts", true)
	v.SetDefault("ai.referer", "")
	v.SetDefault("ai.appTitle", "RecroAI")

	// Per-operation overrides fall back to the global values when empty
	v.SetDefault("ai.score.provider", "")
	v.SetDefault("ai.score.model", "")
	v.SetDefault("ai.filter.provider", "")
	v.SetDefault("ai.filter.model", "")

	for _, op := range []string{"score", "filter"} {
		v.SetDefault("ai."+op+".circuitBreaker.enabled", true)
		v.SetDefault("ai."+op+".circuitBreaker.maxRequests", 3)
		v.SetDefault("ai."+op+".circuitBreaker.interval", 60*time.Second)
		v.SetDefault("ai."+op+".circuitBreaker.timeout", 60*time.Second)
		v.SetDefault("ai."+op+".circuitBreaker.minRequests", 5)
		v.SetDefault("ai."+op+".circuitBreaker.failureThreshold", 0.6)
	}

	// Batch Configuration
	v.SetDefault("batch.maxCandidates", 50)
	v.SetDefault("batch.delegateConcurrency", 3)
	v.SetDefault("batch.candidateConcurrency", 5)
	v.SetDefault("batch.callTimeout", 30*time.Second)
	v.SetDefault("batch.runTimeout", 0)

	// Authenticity Configuration
	v.SetDefault("authenticity.threshold", 0.5)
	v.SetDefault("authenticity.highSeverityWeight", 0.4)
	v.SetDefault("authenticity.highSeverityCap", 1.0)
	v.SetDefault("authenticity.boilerplateWeight", 0.15)
	v.SetDefault("authenticity.superlativeWeight", 0.15)
	v.SetDefault("authenticity.lengthMismatchWeight", 0.1)
	v.SetDefault("authenticity.invisibleCharWeight", 0.2)
	v.SetDefault("authenticity.markupWeight", 0.1)
	v.SetDefault("authenticity.vocabularyWeight", 0.1)
	v.SetDefault("authenticity.vocabularyCap", 0.3)
	v.SetDefault("authenticity.boilerplateMinHits", 3)
	v.SetDefault("authenticity.boilerplateDensity", 2.0)
	v.SetDefault("authenticity.superlativeMinHits", 3)
	v.SetDefault("authenticity.minWordsPerClaimedYear", 3.0)
	v.SetDefault("authenticity.maxSignalLength", 80)
	v.SetDefault("authenticity.extraPatterns", []string{})
	v.SetDefault("authenticity.useDelegate", false)

	// Job catalog
	v.SetDefault("jobs.dir", "./jobs")
	v.SetDefault("jobs.watch", false)
	v.SetDefault("jobs.debounceDelay", 500*time.Millisecond)

	// Store
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.maxOpenConns", 10)
	v.SetDefault("store.connMaxLifetime", 30*time.Minute)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Minute) // Synchronous runs can take a while
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxRequestSize", 2*1024*1024) // 2MB
	v.SetDefault("app.interviewTopN", 5)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.pollInterval", "0s")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.aiKey", "")
	v.SetDefault("vault.secrets.storeDSN", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "recroai")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.customMetrics.delegate.enabled", true)
	v.SetDefault("observability.customMetrics.delegate.trackDuration", true)
	v.SetDefault("observability.customMetrics.delegate.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.scoring.enabled", true)
	v.SetDefault("observability.customMetrics.scoring.trackRuns", true)
	v.SetDefault("observability.customMetrics.scoring.trackAuthenticity", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}

// Default returns a configuration populated with the built-in defaults only,
// with no file, environment or Vault input.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic("config: defaults do not unmarshal: " + err.Error())
	}
	c.applyFallbacks()
	return &c
}
