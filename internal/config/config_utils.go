package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyServerAPIKeyFallbacks()
	c.applyStoreFallbacks()
	c.applyObservabilityDefaults()
}

// applyServerAPIKeyFallbacks normalises API keys, which may arrive as one
// comma-separated string from the environment
func (c *Config) applyServerAPIKeyFallbacks() {
	var keys []string
	for _, entry := range c.Server.APIKeys {
		keys = append(keys, splitKeys(entry)...)
	}
	if len(keys) == 0 {
		keys = splitKeys(os.Getenv("RECROAI_SERVER_APIKEYS"))
	}
	c.Server.APIKeys = keys
}

func splitKeys(s string) []string {
	var keys []string
	for _, key := range strings.Split(s, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// applyStoreFallbacks picks up the conventional DATABASE_URL
func (c *Config) applyStoreFallbacks() {
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		c.Store.DSN = os.Getenv("DATABASE_URL")
	}
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"RECROAI_AI_APIKEY",
		"RECROAI_AI_PROVIDER",
		"RECROAI_AI_MODEL",
		"RECROAI_SERVER_PORT",
		"RECROAI_SERVER_HOST",
		"RECROAI_APP_LOGLEVEL",
		"RECROAI_STORE_DRIVER",
		"RECROAI_STORE_DSN",
		"RECROAI_VAULT_ENABLED",
		"GEMINI_API_KEY",
		"OPENAI_API_KEY",
		"OPENROUTER_API_KEY",
		"DATABASE_URL",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			lower := strings.ToLower(envVar)
			if strings.Contains(lower, "key") || strings.Contains(lower, "dsn") || strings.Contains(lower, "url") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] AI Provider: %s", c.AI.Provider)
	log.Printf("[CONFIG] AI Model: %s", c.AI.Model)
	if c.AI.APIKey != "" {
		log.Println("[CONFIG] AI API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] AI API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Batch: max %d candidates, %d concurrent delegate calls, %s per call",
		c.Batch.MaxCandidates, c.Batch.DelegateConcurrency, c.Batch.CallTimeout)
	log.Printf("[CONFIG] Store Driver: %s", c.Store.Driver)
	log.Printf("[CONFIG] Jobs Directory: %s (watch: %t)", c.Jobs.Dir, c.Jobs.Watch)
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)

	log.Println("[CONFIG] === Operation-Specific AI Configurations ===")
	log.Printf("[CONFIG] Score - Provider: %s, Model: %s", c.AI.Score.Provider, c.AI.Score.Model)
	log.Printf("[CONFIG] Filter - Provider: %s, Model: %s", c.AI.Filter.Provider, c.AI.Filter.Model)

	log.Println("[CONFIG] =====================================")
}
