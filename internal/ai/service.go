package ai

import (
	"context"
	"fmt"
	"time"

	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/types"
	"recroai/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Operation names used for breakers, spans and metrics
const (
	OperationScore  = "score_category"
	OperationFilter = "evaluate_filter"
	OperationReview = "review_authenticity"
)

// Service is the Delegate backed by configured providers. Each operation
// has its own provider, breaker and prompts.
type Service struct {
	score    *operation
	filter   *operation
	review   *operation
	observer CallObserver
	logger   *errors.Logger
}

var (
	_ Delegate             = (*Service)(nil)
	_ AuthenticityReviewer = (*Service)(nil)
)

type operation struct {
	name     string
	provider Provider
	config   config.OperationAIConfig
	breaker  *DelegateCircuitBreaker
	system   string
	user     string

	// unavailable is returned for every call when no provider could be built
	unavailable error
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithObserver reports every delegate call to o
func WithObserver(o CallObserver) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// NewService builds the delegate from the score and filter operation
// configs. A missing API key does not fail construction: every call then
// returns DELEGATE_UNAVAILABLE so the whole run aborts with a clear signal.
func NewService(scoreCfg, filterCfg config.OperationAIConfig, logger *errors.Logger, opts ...ServiceOption) (*Service, error) {
	s := &Service{logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.score, err = newOperation(OperationScore, scoreCfg, logger); err != nil {
		return nil, err
	}
	if s.filter, err = newOperation(OperationFilter, filterCfg, logger); err != nil {
		return nil, err
	}
	s.review = reviewOperation(s.score, logger)
	return s, nil
}

// newServiceWithProviders is used by tests to inject fake providers
func newServiceWithProviders(scoreCfg, filterCfg config.OperationAIConfig, score, filter Provider, logger *errors.Logger) *Service {
	s := &Service{
		score:  bindOperation(OperationScore, scoreCfg, score, logger),
		filter: bindOperation(OperationFilter, filterCfg, filter, logger),
		logger: logger,
	}
	s.review = reviewOperation(s.score, logger)
	return s
}

// reviewOperation shares the score provider but trips its own breaker
func reviewOperation(score *operation, logger *errors.Logger) *operation {
	op := bindOperation(OperationReview, score.config, score.provider, logger)
	op.unavailable = score.unavailable
	return op
}

func newOperation(name string, cfg config.OperationAIConfig, logger *errors.Logger) (*operation, error) {
	logger.Debug("Initializing delegate operation",
		"operation", name,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"has_api_key", cfg.APIKey != "")

	if cfg.APIKey == "" {
		op := bindOperation(name, cfg, nil, logger)
		op.unavailable = errors.NewDelegateError(errors.ErrCodeDelegateUnavailable,
			fmt.Sprintf("scoring delegate not configured: no API key for provider %s", cfg.Provider), nil).
			WithContext("operation", name)
		return op, nil
	}

	var provider Provider
	switch cfg.Provider {
	case "gemini":
		p, err := NewGeminiProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		provider = p
	case "openai", "openrouter":
		if cfg.BaseURL == "" {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("no base URL for provider %s", cfg.Provider), nil)
		}
		provider = NewOpenAIProvider(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	return bindOperation(name, cfg, provider, logger), nil
}

func bindOperation(name string, cfg config.OperationAIConfig, provider Provider, logger *errors.Logger) *operation {
	op := &operation{
		name:     name,
		provider: provider,
		config:   cfg,
		breaker:  NewDelegateCircuitBreaker(name, &cfg, logger),
	}

	prompts := cfg.CustomPrompts
	switch name {
	case OperationScore:
		op.system = resolvePrompt(cfg.Loaded.System.ScoreCategory, prompts.SystemPrompts.ScoreCategory, DefaultSystemPrompts.ScoreCategory)
		op.user = resolvePrompt(cfg.Loaded.User.ScoreCategory, prompts.UserPrompts.ScoreCategory, DefaultUserPrompts.ScoreCategory)
	case OperationFilter:
		op.system = resolvePrompt(cfg.Loaded.System.EvaluateFilter, prompts.SystemPrompts.EvaluateFilter, DefaultSystemPrompts.EvaluateFilter)
		op.user = resolvePrompt(cfg.Loaded.User.EvaluateFilter, prompts.UserPrompts.EvaluateFilter, DefaultUserPrompts.EvaluateFilter)
	case OperationReview:
		op.system = DefaultSystemPrompts.ReviewAuthenticity
		op.user = DefaultUserPrompts.ReviewAuthenticity
	}
	return op
}

func (op *operation) maxRetries() int {
	if op.config.MaxRetries == nil {
		return 0
	}
	return *op.config.MaxRetries
}

// ScoreCategory implements Delegate
func (s *Service) ScoreCategory(ctx context.Context, category types.RubricCategory, profile types.CandidateProfile) (types.CategoryScore, error) {
	req := Request{
		Operation:    OperationScore,
		SystemPrompt: s.score.system,
		UserPrompt:   fmt.Sprintf(s.score.user, category.Name, categoryRequirement(category), formatProfile(profile)),
		Kind:         ResponseScore,
	}

	out, err := invoke(s, ctx, s.score, req, parseScoreResponse,
		attribute.String("rubric.category", category.Name),
		attribute.String("candidate.id", profile.ID))
	if err != nil {
		return types.CategoryScore{}, err
	}

	return types.CategoryScore{
		CategoryName: category.Name,
		Score:        out.Score,
		Rationale:    out.Reasoning,
	}, nil
}

// EvaluateFilter implements Delegate
func (s *Service) EvaluateFilter(ctx context.Context, category types.RubricCategory, profile types.CandidateProfile) (types.FilterResult, error) {
	req := Request{
		Operation:    OperationFilter,
		SystemPrompt: s.filter.system,
		UserPrompt:   fmt.Sprintf(s.filter.user, categoryRequirement(category), formatProfile(profile)),
		Kind:         ResponseFilter,
	}

	out, err := invoke(s, ctx, s.filter, req, parseFilterResponse,
		attribute.String("rubric.category", category.Name),
		attribute.String("candidate.id", profile.ID))
	if err != nil {
		return types.FilterResult{}, err
	}

	return types.FilterResult{
		CategoryName: category.Name,
		Passed:       out.Passed,
		Rationale:    out.Reasoning,
	}, nil
}

// ReviewAuthenticity implements AuthenticityReviewer
func (s *Service) ReviewAuthenticity(ctx context.Context, profile types.CandidateProfile, signals []string) (types.AuthenticityReview, error) {
	req := Request{
		Operation:    OperationReview,
		SystemPrompt: s.review.system,
		UserPrompt:   fmt.Sprintf(s.review.user, formatSignals(signals), formatProfile(profile)),
		Kind:         ResponseAuthenticity,
	}

	out, err := invoke(s, ctx, s.review, req, parseReviewResponse,
		attribute.String("candidate.id", profile.ID))
	if err != nil {
		return types.AuthenticityReview{}, err
	}

	return types.AuthenticityReview{
		RiskScore:    out.RiskScore,
		IsSuspicious: out.IsSuspicious,
		Reason:       utils.TruncateForLog(out.Reason, maxReasonRunes),
	}, nil
}

// invoke runs one delegate call with tracing, the operation's breaker and
// retries, then parses the text. Parsing happens inside the breaker so
// malformed output is visible to it.
func invoke[Out any](
	s *Service,
	ctx context.Context,
	op *operation,
	req Request,
	parse func(string) (Out, error),
	spanAttributes ...attribute.KeyValue,
) (Out, error) {
	var output Out
	if op.unavailable != nil {
		return output, op.unavailable
	}

	tracer := otel.Tracer("recroai.ai")
	ctx, span := tracer.Start(ctx, "delegate."+op.name)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", op.provider.Name()),
		attribute.String("ai.model", op.config.Model),
	)
	span.SetAttributes(spanAttributes...)

	s.logger.Debug("Delegate request",
		"operation", op.name,
		"prompt", utils.TruncateForLog(req.UserPrompt, 200))

	start := time.Now()
	completion, err := op.breaker.Execute(func() (*Completion, error) {
		c, err := executeWithRetry(ctx, op.maxRetries(), op.name, s.logger, func() (*Completion, error) {
			return op.provider.Generate(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		output, err = parse(c.Text)
		return c, err
	})
	err = classifyError(err, op.name, op.provider.Name())

	var usage *TokenUsage
	if completion != nil {
		usage = completion.Usage
		s.logger.Debug("Delegate response",
			"operation", op.name,
			"response", utils.TruncateForLog(completion.Text, 200))
	}
	if s.observer != nil {
		s.observer.ObserveDelegateCall(ctx, CallRecord{
			Operation: op.name,
			Provider:  op.provider.Name(),
			Model:     op.config.Model,
			Duration:  time.Since(start),
			Usage:     usage,
			Err:       err,
		})
	}

	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.CodeOf(err))
		var zero Out
		return zero, err
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, nil
}

// Configured reports whether both operations have a provider
func (s *Service) Configured() bool {
	return s.score.unavailable == nil && s.filter.unavailable == nil
}

// Health returns model availability and breaker state per operation
func (s *Service) Health(ctx context.Context) map[string]any {
	health := make(map[string]any, 2)
	for _, op := range []*operation{s.score, s.filter} {
		entry := map[string]any{
			"provider":        op.config.Provider,
			"model":           op.config.Model,
			"circuit_breaker": op.breaker.GetStats(),
		}
		if op.unavailable != nil {
			entry["available"] = false
			entry["error"] = op.unavailable.Error()
		} else {
			info := op.provider.GetModelInfo(ctx)
			entry["available"] = info.Available && op.breaker.IsHealthy()
			entry["model_info"] = info
		}
		health[op.name] = entry
	}
	return health
}

// Close releases provider resources
func (s *Service) Close() error {
	for _, op := range []*operation{s.score, s.filter} {
		if op.provider != nil {
			if err := op.provider.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}
