package profile

import (
	"bytes"
	"encoding/json"
	"strings"

	"recroai/internal/errors"
	"recroai/internal/types"
)

// DecodeCandidates reads a candidate upload: an array, or an object with a
// "candidates" array. An item without a "material" field is itself the
// candidate material.
//
//	[{"id": "ada", "material": {"name": "Ada"}}, {"id": "bob", "name": "Bob"}]
func DecodeCandidates(body []byte) ([]types.RawCandidate, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			Candidates json.RawMessage `json:"candidates"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Candidates == nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "expected an array of candidates", err)
		}
		body = wrapped.Candidates
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "expected an array of candidates", err)
	}

	out := make([]types.RawCandidate, 0, len(items))
	for _, item := range items {
		var c types.RawCandidate
		if err := json.Unmarshal(item, &c); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "candidate must be a JSON object", err)
		}
		c.ID = strings.TrimSpace(c.ID)
		if len(c.Material) == 0 {
			c.Material = item
		}
		out = append(out, c)
	}
	return out, nil
}
