package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"recroai/internal/config"
	"recroai/internal/errors"

	"google.golang.org/genai"
)

// modelCheckTimeout bounds GetModelInfo
const modelCheckTimeout = 10 * time.Second

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
	config config.OperationAIConfig
	logger *errors.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider for one delegate operation
func NewGeminiProvider(cfg config.OperationAIConfig, logger *errors.Logger) (*GeminiProvider, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: *cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, errors.NewDelegateError(errors.ErrCodeDelegateUnavailable,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Name implements Provider
func (g *GeminiProvider) Name() string { return "gemini" }

// Generate implements Provider. The response schema is enforced server-side,
// but the caller still validates the text.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (*Completion, error) {
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(req.Kind),
	}
	if *g.config.Temperature > 0 {
		genaiConfig.Temperature = g.config.Temperature
	}
	if *g.config.UseSystemPrompts && req.SystemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	userPrompt := req.UserPrompt
	if !*g.config.UseSystemPrompts && req.SystemPrompt != "" {
		userPrompt = req.SystemPrompt + "\n\n" + req.UserPrompt
	}

	result, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
	if err != nil {
		return nil, err
	}

	return &Completion{
		Text:  result.Text(),
		Usage: extractTokenUsage(result),
	}, nil
}

// responseSchema describes the JSON object expected for a response kind
func responseSchema(kind ResponseKind) *genai.Schema {
	switch kind {
	case ResponseAuthenticity:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"is_suspicious": {Type: genai.TypeBoolean},
				"risk_score":    {Type: genai.TypeNumber},
				"reason":        {Type: genai.TypeString},
			},
			Required: []string{"is_suspicious", "risk_score", "reason"},
		}
	case ResponseFilter:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"passed":    {Type: genai.TypeBoolean},
				"reasoning": {Type: genai.TypeString},
			},
			Required: []string{"passed", "reasoning"},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":     {Type: genai.TypeNumber},
			"reasoning": {Type: genai.TypeString},
		},
		Required: []string{"score", "reasoning"},
	}
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:     g.config.Model,
		Provider: g.Name(),
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.Name(),
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version
	return modelInfo
}

// Close implements Provider
func (g *GeminiProvider) Close() error {
	return nil
}

// extractTokenUsage extracts token usage information from a Gemini response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
