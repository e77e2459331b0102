package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/utils"
)

// maxResponseBytes bounds a chat completion body
const maxResponseBytes = 1 << 20

// OpenAIProvider implements Provider for OpenAI-compatible chat completion
// APIs, including OpenRouter
type OpenAIProvider struct {
	httpClient *http.Client
	config     config.OperationAIConfig
	logger     *errors.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIProvider creates a provider for the openai or openrouter backends
func NewOpenAIProvider(cfg config.OperationAIConfig, logger *errors.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		httpClient: &http.Client{Timeout: *cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}
}

// Name implements Provider
func (p *OpenAIProvider) Name() string { return p.config.Provider }

func (p *OpenAIProvider) endpoint(path string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + path
}

func (p *OpenAIProvider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if p.config.Provider == "openrouter" {
		if p.config.Referer != "" {
			req.Header.Set("HTTP-Referer", p.config.Referer)
		}
		if p.config.AppTitle != "" {
			req.Header.Set("X-Title", p.config.AppTitle)
		}
	}
	return req, nil
}

// Generate implements Provider
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Completion, error) {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		if *p.config.UseSystemPrompts {
			messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
		} else {
			req.UserPrompt = req.SystemPrompt + "\n\n" + req.UserPrompt
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	payload, err := json.Marshal(chatRequest{
		Model:          p.config.Model,
		Messages:       messages,
		Temperature:    *p.config.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := p.newRequest(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: utils.TruncateForLog(string(body), 300)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, malformed("provider returned an unreadable completion envelope", err, string(body))
	}
	if len(decoded.Choices) == 0 {
		return nil, malformed("provider returned no choices", nil, string(body))
	}

	completion := &Completion{Text: decoded.Choices[0].Message.Content}
	if decoded.Usage != nil {
		completion.Usage = &TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		}
	}
	return completion, nil
}

// GetModelInfo lists the provider's models and looks for the configured one
func (p *OpenAIProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{Name: p.config.Model, Provider: p.Name()}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	req, err := p.newRequest(checkCtx, http.MethodGet, "/models", nil)
	if err != nil {
		modelInfo.Error = err.Error()
		return modelInfo
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		return modelInfo
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: HTTP %d", resp.StatusCode)
		return modelInfo
	}

	var listing struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16*maxResponseBytes)).Decode(&listing); err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to decode model list: %v", err)
		return modelInfo
	}
	for _, m := range listing.Data {
		if m.ID == p.config.Model {
			modelInfo.Available = true
			modelInfo.DisplayName = m.Name
			return modelInfo
		}
	}
	modelInfo.Error = "model not offered by provider"
	p.logger.Warn("Model availability check failed", "model", p.config.Model, "provider", p.Name())
	return modelInfo
}

// Close implements Provider
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
