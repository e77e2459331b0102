package rubric

import (
	"math"
	"strings"
	"testing"

	"recroai/internal/errors"
)

func TestValidateNormalisesWeights(t *testing.T) {
	tests := []struct {
		name       string
		categories []CategoryInput
		want       map[string]float64
		adjusted   bool
	}{
		{
			name: "already sums to 100",
			categories: []CategoryInput{
				{Name: "skills", Weight: 40},
				{Name: "experience", Weight: 30},
				{Name: "education", Weight: 20},
				{Name: "other", Weight: 10},
			},
			want: map[string]float64{"skills": 40, "experience": 30, "education": 20, "other": 10},
		},
		{
			name: "under 100 is scaled up",
			categories: []CategoryInput{
				{Name: "skills", Weight: 40},
				{Name: "experience", Weight: 40},
			},
			want:     map[string]float64{"skills": 50, "experience": 50},
			adjusted: true,
		},
		{
			name: "over 100 is scaled down",
			categories: []CategoryInput{
				{Name: "skills", Weight: 60},
				{Name: "experience", Weight: 60},
				{Name: "education", Weight: 30},
			},
			want:     map[string]float64{"skills": 40, "experience": 40, "education": 20},
			adjusted: true,
		},
		{
			name: "thirds",
			categories: []CategoryInput{
				{Name: "a", Weight: 1},
				{Name: "b", Weight: 1},
				{Name: "c", Weight: 1},
			},
			want:     map[string]float64{"a": 100.0 / 3, "b": 100.0 / 3, "c": 100.0 / 3},
			adjusted: true,
		},
		{
			name: "hard filters keep no weight",
			categories: []CategoryInput{
				{Name: "degree", IsHardFilter: true, RequirementText: "Bachelor's degree in CS"},
				{Name: "skills", Weight: 70},
				{Name: "experience", Weight: 30},
			},
			want: map[string]float64{"degree": 0, "skills": 70, "experience": 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Validate(Input{Categories: tt.categories})
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := SumWeights(r); math.Abs(got-100) > 1e-6 {
				t.Errorf("weights sum to %v, want 100", got)
			}
			for _, c := range r.Categories {
				if math.Abs(c.Weight-tt.want[c.Name]) > 1e-6 {
					t.Errorf("weight[%s] = %v, want %v", c.Name, c.Weight, tt.want[c.Name])
				}
			}
			if tt.adjusted && len(r.Adjustments) == 0 {
				t.Error("expected the rescale to be documented in Adjustments")
			}
			if !tt.adjusted && len(r.Adjustments) != 0 {
				t.Errorf("unexpected adjustments: %v", r.Adjustments)
			}
			if r.Version == "" {
				t.Error("validated rubric has no version")
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name       string
		categories []CategoryInput
		contains   string
	}{
		{"empty", nil, "at least one category"},
		{"negative weight", []CategoryInput{{Name: "skills", Weight: -5}}, "negative weight"},
		{"weight over 100", []CategoryInput{{Name: "skills", Weight: 150}}, "exceeds"},
		{"nan weight", []CategoryInput{{Name: "skills", Weight: math.NaN()}}, "invalid weight"},
		{"hard filter without requirement", []CategoryInput{{Name: "degree", IsHardFilter: true}}, "requirement description"},
		{"all zero", []CategoryInput{{Name: "a"}, {Name: "b"}}, "cannot normalise"},
		{"duplicate", []CategoryInput{{Name: "Skills", Weight: 50}, {Name: "skills", Weight: 50}}, "duplicate"},
		{"unnamed", []CategoryInput{{Weight: 50}}, "no name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(Input{Categories: tt.categories})
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.HasCode(err, errors.ErrCodeValidation) {
				t.Errorf("error code = %q, want %q", errors.CodeOf(err), errors.ErrCodeValidation)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestValidateHardFilterWeightIsNoted(t *testing.T) {
	r, err := Validate(Input{Categories: []CategoryInput{
		{Name: "license", IsHardFilter: true, Weight: 20, RequirementText: "Valid driving license"},
		{Name: "skills", Weight: 100},
	}})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if r.Categories[0].Weight != 0 {
		t.Errorf("hard filter weight = %v, want 0", r.Categories[0].Weight)
	}
	if len(r.Adjustments) != 1 || !strings.Contains(r.Adjustments[0], "license") {
		t.Errorf("adjustments = %v", r.Adjustments)
	}
}

func TestValidateOnlyHardFilters(t *testing.T) {
	r, err := Validate(Input{Categories: []CategoryInput{
		{Name: "degree", IsHardFilter: true, RequirementText: "Degree required"},
	}})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(r.Weighted()) != 0 || len(r.HardFilters()) != 1 {
		t.Errorf("unexpected category split: %+v", r.Categories)
	}
}

func TestValidateKeepsOrderAndIsPure(t *testing.T) {
	in := Input{Categories: []CategoryInput{
		{Name: "experience", Weight: 30},
		{Name: "skills", Weight: 30},
	}}
	r, err := Validate(in)
	if err != nil {
		t.Fatal(err)
	}
	if r.Categories[0].Name != "experience" || r.Categories[1].Name != "skills" {
		t.Errorf("order not preserved: %+v", r.Categories)
	}
	if in.Categories[0].Weight != 30 {
		t.Error("Validate mutated its input")
	}
}

func TestVersionChangesWithRubric(t *testing.T) {
	base := Input{Categories: []CategoryInput{{Name: "skills", Weight: 60}, {Name: "experience", Weight: 40}}}
	a, _ := Validate(base)
	b, _ := Validate(base)
	if a.Version != b.Version {
		t.Fatalf("same rubric produced versions %s and %s", a.Version, b.Version)
	}

	changed := Input{Categories: []CategoryInput{{Name: "skills", Weight: 50}, {Name: "experience", Weight: 50}}}
	c, _ := Validate(changed)
	if c.Version == a.Version {
		t.Error("changing weights must produce a new version")
	}

	reworded := Input{Categories: []CategoryInput{{Name: "skills", Weight: 60, RequirementText: "Go"}, {Name: "experience", Weight: 40}}}
	d, _ := Validate(reworded)
	if d.Version == a.Version {
		t.Error("changing requirement text must produce a new version")
	}
}
