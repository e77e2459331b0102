package rubric

import (
	"testing"

	"recroai/internal/errors"
)

func TestDecodeList(t *testing.T) {
	raw := []any{
		map[string]any{"name": "degree", "is_hard_filter": "true", "requirement_text": "BSc"},
		map[string]any{"name": "skills", "weight": "40"},
		map[string]any{"Name": "experience", "Weight": 60.0, "requirement": "5 years Go"},
	}

	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(in.Categories) != 3 {
		t.Fatalf("got %d categories", len(in.Categories))
	}
	if !in.Categories[0].IsHardFilter || in.Categories[0].RequirementText != "BSc" {
		t.Errorf("hard filter not decoded: %+v", in.Categories[0])
	}
	if in.Categories[1].Weight != 40 {
		t.Errorf("weakly typed weight = %v", in.Categories[1].Weight)
	}
	if in.Categories[2].RequirementText != "5 years Go" {
		t.Errorf("requirement alias not honoured: %+v", in.Categories[2])
	}
}

func TestDecodeMappingSortsNames(t *testing.T) {
	raw := map[string]any{
		"categories": map[string]any{
			"skills":    map[string]any{"weight": 40},
			"education": map[string]any{"weight": 20},
		},
	}
	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if in.Categories[0].Name != "education" || in.Categories[1].Name != "skills" {
		t.Errorf("unexpected order: %+v", in.Categories)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("skills=40"); !errors.HasCode(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("expected INVALID_FORMAT, got %v", err)
	}
	if _, err := Decode([]any{"skills"}); !errors.HasCode(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("expected INVALID_FORMAT for non-object category, got %v", err)
	}
}

func TestParseJSONKeepsDocumentOrder(t *testing.T) {
	doc := []byte(`{
		"categories": {
			"skills":     {"weight": 40, "requirementText": "Go, SQL"},
			"experience": {"weight": 30},
			"education":  {"weight": 20},
			"other":      {"weight": 10},
			"degree":     {"is_hard_filter": true, "requirement_text": "Any degree"}
		}
	}`)

	in, err := ParseJSON(doc)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	want := []string{"skills", "experience", "education", "other", "degree"}
	for i, name := range want {
		if in.Categories[i].Name != name {
			t.Errorf("category %d = %q, want %q", i, in.Categories[i].Name, name)
		}
	}

	r, err := Validate(in)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(r.HardFilters()) != 1 {
		t.Errorf("expected one hard filter")
	}
}

func TestParseJSONList(t *testing.T) {
	in, err := ParseJSON([]byte(`[{"name":"skills","weight":100}]`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if len(in.Categories) != 1 || in.Categories[0].Weight != 100 {
		t.Errorf("unexpected input: %+v", in)
	}
}

func TestParseJSONInvalid(t *testing.T) {
	for _, doc := range []string{"", "{", "not json"} {
		if _, err := ParseJSON([]byte(doc)); err == nil {
			t.Errorf("ParseJSON(%q) expected error", doc)
		}
	}
}
