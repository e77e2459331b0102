package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"recroai/internal/errors"
	"recroai/internal/utils"
)

// scoreResponse is the soft-category wire shape
type scoreResponse struct {
	Score     float64
	Reasoning string
}

// filterResponse is the hard-filter wire shape
type filterResponse struct {
	Passed    bool
	Reasoning string
}

// reviewResponse is the authenticity second-opinion wire shape
type reviewResponse struct {
	RiskScore    float64
	IsSuspicious bool
	Reason       string
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object in raw.
func extractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func decodeObject(raw string) (map[string]any, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, malformed("no JSON object in response", nil, raw)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, malformed("response is not valid JSON", err, raw)
	}
	return data, nil
}

func parseScoreResponse(raw string) (scoreResponse, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return scoreResponse{}, err
	}

	value, ok := data["score"]
	if !ok {
		return scoreResponse{}, malformed("response has no score field", nil, raw)
	}
	score := coerceFloat(value)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return scoreResponse{}, malformed(fmt.Sprintf("score %v is not a number", value), nil, raw)
	}
	if score < 0 || score > 100 {
		return scoreResponse{}, malformed(fmt.Sprintf("score %g is outside 0-100", score), nil, raw)
	}

	return scoreResponse{Score: score, Reasoning: reasoningOf(data)}, nil
}

func parseFilterResponse(raw string) (filterResponse, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return filterResponse{}, err
	}

	value, ok := data["passed"]
	if !ok {
		return filterResponse{}, malformed("response has no passed field", nil, raw)
	}
	passed, ok := coerceBool(value)
	if !ok {
		return filterResponse{}, malformed(fmt.Sprintf("passed %v is not a boolean", value), nil, raw)
	}

	return filterResponse{Passed: passed, Reasoning: reasoningOf(data)}, nil
}

// parseReviewResponse requires a risk in [0, 1]. A missing verdict counts as
// suspicious since the profile was already flagged.
func parseReviewResponse(raw string) (reviewResponse, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return reviewResponse{}, err
	}

	var value any
	found := false
	for _, key := range []string{"risk_score", "riskScore", "risk"} {
		if v, ok := data[key]; ok {
			value, found = v, true
			break
		}
	}
	if !found {
		return reviewResponse{}, malformed("response has no risk_score field", nil, raw)
	}
	risk := coerceFloat(value)
	if math.IsNaN(risk) || risk < 0 || risk > 1 {
		return reviewResponse{}, malformed(fmt.Sprintf("risk_score %v is outside 0-1", value), nil, raw)
	}

	suspicious := true
	if v, ok := data["is_suspicious"]; ok {
		if suspicious, ok = coerceBool(v); !ok {
			return reviewResponse{}, malformed(fmt.Sprintf("is_suspicious %v is not a boolean", v), nil, raw)
		}
	}

	return reviewResponse{RiskScore: risk, IsSuspicious: suspicious, Reason: reasoningOf(data)}, nil
}

// reasoningOf accepts the common synonyms models use for the rationale.
func reasoningOf(data map[string]any) string {
	for _, key := range []string{"reasoning", "rationale", "reason", "explanation"} {
		if v, ok := data[key]; ok && v != nil {
			return coerceString(v)
		}
	}
	return ""
}

func malformed(message string, cause error, raw string) error {
	return errors.NewDelegateError(errors.ErrCodeDelegateMalformedResponse, message, cause).
		WithContext("response", utils.TruncateForLog(raw, 200))
}

func coerceBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "pass", "passed":
			return true, true
		case "false", "no", "fail", "failed":
			return false, true
		}
	case float64:
		if val == 0 || val == 1 {
			return val == 1, true
		}
	}
	return false, false
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
