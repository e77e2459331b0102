package ai

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/types"
)

func timePtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                      { return &i }
func float32Ptr(f float32) *float32          { return &f }
func boolPtr(b bool) *bool                   { return &b }

type fakeProvider struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []Request
}

func (f *fakeProvider) Generate(_ context.Context, req Request) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := f.replies[len(f.replies)-1]
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &Completion{Text: reply, Usage: &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}, nil
}

func (f *fakeProvider) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: "fake-model", Provider: "fake", Available: true}
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

type recordingObserver struct {
	mu    sync.Mutex
	calls []CallRecord
}

func (r *recordingObserver) ObserveDelegateCall(_ context.Context, call CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func testOperationConfig() config.OperationAIConfig {
	return config.OperationAIConfig{
		Provider:         "gemini",
		Model:            "fake-model",
		APIKey:           "test-key",
		Timeout:          timePtr(5 * time.Second),
		MaxRetries:       intPtr(1),
		Temperature:      float32Ptr(0),
		UseSystemPrompts: boolPtr(true),
	}
}

func testProfile() types.CandidateProfile {
	return types.CandidateProfile{
		ID:             "c-1",
		Name:           "Ada Example",
		Email:          "ada@example.com",
		ExperienceText: "Senior Go engineer, 6 years building payment APIs",
		SkillsText:     "Go, PostgreSQL, Kubernetes",
	}
}

func TestScoreCategory(t *testing.T) {
	provider := &fakeProvider{replies: []string{"```json\n{\"score\": 88, \"reasoning\": \"Six years of Go\"}\n```"}}
	svc := newServiceWithProviders(testOperationConfig(), testOperationConfig(), provider, &fakeProvider{}, errors.Nop())
	observer := &recordingObserver{}
	svc.observer = observer

	category := types.RubricCategory{Name: "skills", Weight: 40, RequirementText: "Production Go experience"}
	got, err := svc.ScoreCategory(context.Background(), category, testProfile())
	if err != nil {
		t.Fatalf("ScoreCategory() error = %v", err)
	}
	if got.CategoryName != "skills" || got.Score != 88 || got.Rationale != "Six years of Go" {
		t.Errorf("unexpected score %+v", got)
	}

	req := provider.requests[0]
	if req.Kind != ResponseScore {
		t.Error("score call should request the score shape")
	}
	for _, want := range []string{"skills", "Production Go experience", "Senior Go engineer", "Go, PostgreSQL"} {
		if !strings.Contains(req.UserPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(req.UserPrompt, "ada@example.com") {
		t.Error("email should not be sent to the delegate")
	}
	if req.SystemPrompt != DefaultSystemPrompts.ScoreCategory {
		t.Error("expected the default system prompt")
	}

	if len(observer.calls) != 1 || observer.calls[0].Err != nil || observer.calls[0].Usage.TotalTokens != 15 {
		t.Errorf("unexpected observed calls %+v", observer.calls)
	}
}

func TestEvaluateFilter(t *testing.T) {
	provider := &fakeProvider{replies: []string{`Sure. {"passed": false, "reasoning": "No degree listed"}`}}
	svc := newServiceWithProviders(testOperationConfig(), testOperationConfig(), &fakeProvider{}, provider, errors.Nop())

	category := types.RubricCategory{Name: "degree", IsHardFilter: true, RequirementText: "BSc in Computer Science"}
	got, err := svc.EvaluateFilter(context.Background(), category, testProfile())
	if err != nil {
		t.Fatalf("EvaluateFilter() error = %v", err)
	}
	if got.Passed || got.CategoryName != "degree" || got.Rationale != "No degree listed" {
		t.Errorf("unexpected filter result %+v", got)
	}
	if !strings.Contains(provider.requests[0].UserPrompt, "BSc in Computer Science") {
		t.Error("prompt should carry the requirement text")
	}
}

func TestReviewAuthenticity(t *testing.T) {
	provider := &fakeProvider{replies: []string{`{"is_suspicious": true, "risk_score": 0.85, "reason": "Embedded instruction to the scorer"}`}}
	svc := newServiceWithProviders(testOperationConfig(), testOperationConfig(), provider, &fakeProvider{}, errors.Nop())
	observer := &recordingObserver{}
	svc.observer = observer

	signals := []string{"injection in summary: ignore previous instructions"}
	got, err := svc.ReviewAuthenticity(context.Background(), testProfile(), signals)
	if err != nil {
		t.Fatalf("ReviewAuthenticity() error = %v", err)
	}
	if got.RiskScore != 0.85 || !got.IsSuspicious || got.Reason != "Embedded instruction to the scorer" {
		t.Errorf("unexpected review %+v", got)
	}

	req := provider.requests[0]
	if req.Kind != ResponseAuthenticity || req.SystemPrompt != DefaultSystemPrompts.ReviewAuthenticity {
		t.Error("review call should use the authenticity shape and prompt")
	}
	for _, want := range []string{"- injection in summary", "Senior Go engineer"} {
		if !strings.Contains(req.UserPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if len(observer.calls) != 1 || observer.calls[0].Operation != OperationReview {
		t.Errorf("unexpected observed calls %+v", observer.calls)
	}
}

func TestReviewAuthenticityWithoutKey(t *testing.T) {
	cfg := testOperationConfig()
	cfg.APIKey = ""

	svc, err := NewService(cfg, cfg, errors.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReviewAuthenticity(context.Background(), testProfile(), nil); !errors.IsRunFatal(err) {
		t.Fatalf("expected DELEGATE_UNAVAILABLE, got %v", err)
	}
}

func TestMalformedResponseIsNotRetried(t *testing.T) {
	provider := &fakeProvider{replies: []string{"I'd rather not say."}}
	svc := newServiceWithProviders(testOperationConfig(), testOperationConfig(), provider, &fakeProvider{}, errors.Nop())

	_, err := svc.ScoreCategory(context.Background(), types.RubricCategory{Name: "skills", Weight: 100}, testProfile())
	if !errors.HasCode(err, errors.ErrCodeDelegateMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if len(provider.requests) != 1 {
		t.Errorf("malformed output should not be retried, got %d calls", len(provider.requests))
	}
}

func TestTransientErrorIsRetried(t *testing.T) {
	provider := &fakeProvider{
		errs:    []error{&StatusError{StatusCode: 503}},
		replies: []string{"", `{"score": 61, "reasoning": "ok"}`},
	}
	svc := newServiceWithProviders(testOperationConfig(), testOperationConfig(), provider, &fakeProvider{}, errors.Nop())

	got, err := svc.ScoreCategory(context.Background(), types.RubricCategory{Name: "skills", Weight: 100}, testProfile())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if got.Score != 61 || len(provider.requests) != 2 {
		t.Errorf("got %+v after %d calls", got, len(provider.requests))
	}
}

func TestCallTimeout(t *testing.T) {
	provider := &fakeProvider{errs: []error{context.DeadlineExceeded}, replies: []string{""}}
	svc := newServiceWithProviders(testOperationConfig(), testOperationConfig(), provider, &fakeProvider{}, errors.Nop())

	_, err := svc.ScoreCategory(context.Background(), types.RubricCategory{Name: "skills", Weight: 100}, testProfile())
	if !errors.HasCode(err, errors.ErrCodeDelegateTimeout) {
		t.Fatalf("expected DELEGATE_TIMEOUT, got %v", err)
	}
	if errors.IsRunFatal(err) {
		t.Error("a timeout fails one candidate, not the run")
	}
}

func TestMissingAPIKeyIsUnavailable(t *testing.T) {
	cfg := testOperationConfig()
	cfg.APIKey = ""

	svc, err := NewService(cfg, cfg, errors.Nop())
	if err != nil {
		t.Fatalf("NewService() should not fail without a key: %v", err)
	}
	if svc.Configured() {
		t.Error("service without a key should report unconfigured")
	}

	_, err = svc.ScoreCategory(context.Background(), types.RubricCategory{Name: "skills", Weight: 100}, testProfile())
	if !errors.IsRunFatal(err) {
		t.Fatalf("expected DELEGATE_UNAVAILABLE, got %v", err)
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("error should say the delegate is not configured: %v", err)
	}

	health := svc.Health(context.Background())
	if health[OperationScore].(map[string]any)["available"] != false {
		t.Error("health should report the score operation unavailable")
	}
}

func TestUnsupportedProvider(t *testing.T) {
	cfg := testOperationConfig()
	cfg.Provider = "carrier-pigeon"

	if _, err := NewService(cfg, cfg, errors.Nop()); !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestCustomPromptsResolution(t *testing.T) {
	cfg := testOperationConfig()
	cfg.CustomPrompts.UserPrompts.ScoreCategory = "Category %s / %s / %s"
	cfg.Loaded.System.ScoreCategory = "From file"

	provider := &fakeProvider{replies: []string{`{"score": 10, "reasoning": "x"}`}}
	svc := newServiceWithProviders(cfg, testOperationConfig(), provider, &fakeProvider{}, errors.Nop())

	_, err := svc.ScoreCategory(context.Background(), types.RubricCategory{Name: "culture"}, types.CandidateProfile{})
	if err != nil {
		t.Fatal(err)
	}
	req := provider.requests[0]
	if req.SystemPrompt != "From file" {
		t.Errorf("file prompt should win, got %q", req.SystemPrompt)
	}
	if !strings.HasPrefix(req.UserPrompt, "Category culture / culture / ") {
		t.Errorf("inline template should be used with the category name as requirement fallback, got %q", req.UserPrompt)
	}
	if !strings.Contains(req.UserPrompt, "(not provided)") {
		t.Error("empty fields should be marked as not provided")
	}
}
