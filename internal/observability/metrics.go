package observability

import (
	"context"
	"fmt"

	"recroai/internal/ai"
	"recroai/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Metrics holds all custom metrics for recroai
type Metrics struct {
	// Delegate calls
	DelegateDuration metric.Float64Histogram
	DelegateCalls    metric.Int64Counter
	DelegateErrors   metric.Int64Counter
	DelegateTokens   metric.Int64Histogram

	// Scoring runs
	Runs       metric.Int64Counter
	Candidates metric.Int64Counter
	Suspicious metric.Int64Counter

	RateLimitHits metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.DelegateDuration, err = meter.Float64Histogram(
		"recroai_delegate_call_duration_seconds",
		metric.WithDescription("Time spent in delegate calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create delegate duration metric: %w", err)
	}
	if m.DelegateCalls, err = meter.Int64Counter(
		"recroai_delegate_calls_total",
		metric.WithDescription("Total number of delegate calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create delegate call metric: %w", err)
	}
	if m.DelegateErrors, err = meter.Int64Counter(
		"recroai_delegate_errors_total",
		metric.WithDescription("Total number of failed delegate calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create delegate error metric: %w", err)
	}
	if m.DelegateTokens, err = meter.Int64Histogram(
		"recroai_delegate_tokens",
		metric.WithDescription("Token usage per delegate call (input, output, total)"),
		metric.WithUnit("tokens"),
	); err != nil {
		return nil, fmt.Errorf("failed to create delegate token metric: %w", err)
	}

	if m.Runs, err = meter.Int64Counter(
		"recroai_runs_total",
		metric.WithDescription("Finished scoring runs by status"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runs metric: %w", err)
	}
	if m.Candidates, err = meter.Int64Counter(
		"recroai_candidates_total",
		metric.WithDescription("Candidates processed by scoring runs, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create candidates metric: %w", err)
	}
	if m.Suspicious, err = meter.Int64Counter(
		"recroai_suspicious_profiles_total",
		metric.WithDescription("Scored candidates flagged as suspicious"),
	); err != nil {
		return nil, fmt.Errorf("failed to create suspicious profiles metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"recroai_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}
	return m, nil
}

// ObserveDelegateCall records one finished delegate call
func (om *ObservabilityManager) ObserveDelegateCall(ctx context.Context, call ai.CallRecord) {
	if om == nil {
		return
	}
	m := om.GetMetrics()
	cfg := om.config.Custom.Delegate
	if m.DelegateCalls == nil || !cfg.Enabled {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", call.Operation),
		attribute.String("provider", call.Provider),
		attribute.String("model", call.Model),
		attribute.Bool("success", call.Err == nil),
	}
	set := metric.WithAttributes(attrs...)

	m.DelegateCalls.Add(ctx, 1, set)
	if cfg.TrackDuration {
		m.DelegateDuration.Record(ctx, call.Duration.Seconds(), set)
	}
	if call.Err != nil {
		m.DelegateErrors.Add(ctx, 1, set)
	}

	span := oteltrace.SpanFromContext(ctx)
	if call.Usage != nil {
		if cfg.TrackTokenUsage {
			recordTokens(ctx, m.DelegateTokens, call.Usage, attrs)
		}
		span.SetAttributes(
			attribute.Int64("delegate.tokens.input", call.Usage.InputTokens),
			attribute.Int64("delegate.tokens.output", call.Usage.OutputTokens),
			attribute.Int64("delegate.tokens.total", call.Usage.TotalTokens),
		)
	}
	if call.Err != nil {
		span.RecordError(call.Err, oteltrace.WithAttributes(attrs...))
	}
}

func recordTokens(ctx context.Context, h metric.Int64Histogram, usage *ai.TokenUsage, attrs []attribute.KeyValue) {
	for _, tt := range []struct {
		kind  string
		value int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	} {
		tokenAttrs := append(attrs[:len(attrs):len(attrs)], attribute.String("token_type", tt.kind))
		h.Record(ctx, tt.value, metric.WithAttributes(tokenAttrs...))
	}
}

// ObserveRun records a finished scoring run and its candidate outcomes
func (om *ObservabilityManager) ObserveRun(ctx context.Context, report types.RunReport) {
	if om == nil {
		return
	}
	m := om.GetMetrics()
	cfg := om.config.Custom.Scoring
	if m.Runs == nil || !cfg.Enabled {
		return
	}

	job := attribute.String("job_id", report.JobID)
	if cfg.TrackRuns {
		m.Runs.Add(ctx, 1, metric.WithAttributes(job, attribute.String("status", string(report.Status))))
	}

	skipped := make(map[string]bool, len(report.Skipped))
	for _, id := range report.Skipped {
		skipped[id] = true
	}
	scored, suspicious := 0, 0
	for _, r := range report.Scored {
		if skipped[r.CandidateID] {
			continue
		}
		scored++
		if r.Authenticity.IsSuspicious {
			suspicious++
		}
	}

	for outcome, n := range map[string]int{
		"scored":  scored,
		"skipped": len(report.Skipped),
		"failed":  len(report.Failed),
	} {
		if n > 0 {
			m.Candidates.Add(ctx, int64(n), metric.WithAttributes(job, attribute.String("outcome", outcome)))
		}
	}
	if cfg.TrackAuthenticity && suspicious > 0 {
		m.Suspicious.Add(ctx, int64(suspicious), metric.WithAttributes(job))
	}
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (om *ObservabilityManager) RecordRateLimitHit(ctx context.Context, attrs ...attribute.KeyValue) {
	if om == nil {
		return
	}
	m := om.GetMetrics()
	cfg := om.config.Custom.Infrastructure
	if m.RateLimitHits == nil || !cfg.Enabled || !cfg.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}
