package config

import "os"

// Default endpoints for the OpenAI-compatible providers
const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// providerKeyEnv lists conventional API key variables per provider, used
// when no RECROAI key is configured.
var providerKeyEnv = map[string][]string{
	"gemini":     {"GEMINI_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY", "OPENAI_API_KEY"},
}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" && opCfg.Provider == c.AI.Provider {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = providerKeyFromEnv(opCfg.Provider)
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.AI.MaxRetries
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	if opCfg.UseSystemPrompts == nil {
		opCfg.UseSystemPrompts = &c.AI.UseSystemPrompts
	}
	if opCfg.BaseURL == "" && opCfg.Provider == c.AI.Provider {
		opCfg.BaseURL = c.AI.BaseURL
	}
	if opCfg.BaseURL == "" {
		switch opCfg.Provider {
		case "openai":
			opCfg.BaseURL = DefaultOpenAIBaseURL
		case "openrouter":
			opCfg.BaseURL = DefaultOpenRouterBaseURL
		}
	}
	if opCfg.Referer == "" {
		opCfg.Referer = c.AI.Referer
	}
	if opCfg.AppTitle == "" {
		opCfg.AppTitle = c.AI.AppTitle
	}
}

func providerKeyFromEnv(provider string) string {
	for _, name := range providerKeyEnv[provider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// GetScoreConfig returns the delegate configuration for category scoring
// with fallback to the global AI config
func (c *Config) GetScoreConfig() OperationAIConfig {
	config := c.AI.Score
	c.applyOperationDefaults(&config)
	config.CustomPrompts = mergePrompts(config.CustomPrompts, c.AI.CustomPrompts)
	config.Loaded = c.Prompts.forOperation(c.Prompts.Score)
	return config
}

// GetFilterConfig returns the delegate configuration for hard filter
// evaluation with fallback to the global AI config
func (c *Config) GetFilterConfig() OperationAIConfig {
	config := c.AI.Filter
	c.applyOperationDefaults(&config)
	config.CustomPrompts = mergePrompts(config.CustomPrompts, c.AI.CustomPrompts)
	config.Loaded = c.Prompts.forOperation(c.Prompts.Filter)
	return config
}

// mergePrompts fills empty operation prompt settings from the global ones.
func mergePrompts(op, global PromptConfig) PromptConfig {
	op.SystemPrompts = mergeSet(op.SystemPrompts, global.SystemPrompts)
	op.UserPrompts = mergeSet(op.UserPrompts, global.UserPrompts)
	return op
}

func mergeSet(op, global PromptSet) PromptSet {
	if op.ScoreCategory == "" {
		op.ScoreCategory = global.ScoreCategory
	}
	if op.ScoreCategoryFile == "" {
		op.ScoreCategoryFile = global.ScoreCategoryFile
	}
	if op.EvaluateFilter == "" {
		op.EvaluateFilter = global.EvaluateFilter
	}
	if op.EvaluateFilterFile == "" {
		op.EvaluateFilterFile = global.EvaluateFilterFile
	}
	return op
}
