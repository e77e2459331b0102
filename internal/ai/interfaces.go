package ai

import (
	"context"
	"time"

	"recroai/internal/types"
)

// Delegate is the scoring capability consumed by the batch controller. It is
// invoked once per (candidate, rubric category) pair and may be slow,
// unavailable or return malformed output; callers classify errors by code.
type Delegate interface {
	ScoreCategory(ctx context.Context, category types.RubricCategory, profile types.CandidateProfile) (types.CategoryScore, error)
	EvaluateFilter(ctx context.Context, category types.RubricCategory, profile types.CandidateProfile) (types.FilterResult, error)
}

// AuthenticityReviewer gives a second opinion on a profile the heuristic
// detector flagged.
type AuthenticityReviewer interface {
	ReviewAuthenticity(ctx context.Context, profile types.CandidateProfile, signals []string) (types.AuthenticityReview, error)
}

// Provider is a text-generation backend behind the delegate
type Provider interface {
	Generate(ctx context.Context, req Request) (*Completion, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Name() string
	Close() error
}

// ResponseKind selects the JSON shape the provider is asked to return
type ResponseKind int

const (
	// ResponseScore is {"score": number, "reasoning": string}
	ResponseScore ResponseKind = iota
	// ResponseFilter is {"passed": boolean, "reasoning": string}
	ResponseFilter
	// ResponseAuthenticity is {"is_suspicious": boolean, "risk_score": number, "reason": string}
	ResponseAuthenticity
)

// Request is a single prompt-style call
type Request struct {
	Operation    string
	SystemPrompt string
	UserPrompt   string
	Kind         ResponseKind
}

// Completion is the raw text returned by a provider
type Completion struct {
	Text  string
	Usage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// CallRecord describes one finished delegate call for metrics
type CallRecord struct {
	Operation string
	Provider  string
	Model     string
	Duration  time.Duration
	Usage     *TokenUsage
	Err       error
}

// CallObserver receives a record for every delegate call
type CallObserver interface {
	ObserveDelegateCall(ctx context.Context, call CallRecord)
}
