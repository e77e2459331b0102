package rubric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"recroai/internal/errors"
)

// Decode converts loosely typed rubric data into an Input. It accepts either
// a list of category objects, a mapping of category name to attributes, or an
// object with a "categories" key holding one of those. Mapping keys have no
// order of their own, so they are sorted by name; use ParseJSON or the job
// catalog to keep author order.
//
// Attribute keys are matched without regard to case, "_" or "-", so
// "is_hard_filter", "isHardFilter" and "IsHardFilter" are equivalent. Values
// are weakly typed ("40" is a valid weight).
func Decode(raw any) (Input, error) {
	if m, ok := raw.(map[string]any); ok {
		if inner, ok := lookupFold(m, "categories"); ok {
			raw = inner
		}
	}

	switch v := raw.(type) {
	case []any:
		var in Input
		for i, item := range v {
			c, err := decodeCategory("", item)
			if err != nil {
				return Input{}, invalidInput(fmt.Sprintf("category %d", i+1), err)
			}
			in.Categories = append(in.Categories, c)
		}
		return in, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		return decodeOrdered(names, v)
	case nil:
		return Input{}, nil
	default:
		return Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported rubric input of type %T", raw), nil)
	}
}

// DecodeOrdered decodes a category-name mapping in the given key order.
func DecodeOrdered(order []string, attrs map[string]any) (Input, error) {
	return decodeOrdered(order, attrs)
}

func decodeOrdered(order []string, attrs map[string]any) (Input, error) {
	var in Input
	for _, name := range order {
		c, err := decodeCategory(name, attrs[name])
		if err != nil {
			return Input{}, invalidInput(fmt.Sprintf("category %q", name), err)
		}
		in.Categories = append(in.Categories, c)
	}
	return in, nil
}

// ParseJSON decodes a JSON rubric, keeping the author's category order when
// the categories are given as an object.
func ParseJSON(data []byte) (Input, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat, "empty rubric document", nil)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat, "rubric is not valid JSON", err)
	}

	body := data
	if m, ok := generic.(map[string]any); ok {
		if inner, ok := lookupFold(m, "categories"); ok {
			if _, isMap := inner.(map[string]any); !isMap {
				return Decode(inner)
			}
			raw, err := rawField(data, "categories")
			if err != nil {
				return Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat, "rubric is not valid JSON", err)
			}
			body = raw
			generic = inner
		}
	}

	attrs, ok := generic.(map[string]any)
	if !ok {
		return Decode(generic)
	}
	order, err := objectKeys(body)
	if err != nil {
		return Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat, "rubric is not valid JSON", err)
	}
	return decodeOrdered(order, attrs)
}

func decodeCategory(name string, item any) (CategoryInput, error) {
	attrs, ok := item.(map[string]any)
	if !ok {
		return CategoryInput{}, fmt.Errorf("expected an object, got %T", item)
	}

	normalised := make(map[string]any, len(attrs))
	for k, v := range attrs {
		normalised[normaliseKey(k)] = v
	}
	if rt, ok := normalised["requirement"]; ok {
		if _, exists := normalised["requirementtext"]; !exists {
			normalised["requirementtext"] = rt
		}
	}
	if hf, ok := normalised["hardfilter"]; ok {
		if _, exists := normalised["ishardfilter"]; !exists {
			normalised["ishardfilter"] = hf
		}
	}

	var c CategoryInput
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return CategoryInput{}, err
	}
	if err := decoder.Decode(normalised); err != nil {
		return CategoryInput{}, err
	}
	if name != "" {
		c.Name = name
	}
	return c, nil
}

func normaliseKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}

func lookupFold(m map[string]any, key string) (any, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// rawField returns the raw JSON of a top-level field, matched case-insensitively.
func rawField(data []byte, field string) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if key, _ := tok.(string); strings.EqualFold(key, field) {
			return value, nil
		}
	}
	return nil, fmt.Errorf("field %q not found", field)
}

func invalidInput(where string, cause error) *errors.AppError {
	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("%s: cannot decode rubric category", where), cause)
}
