// Package rubric validates recruiter-defined rubrics and normalises their
// weights.
package rubric

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"recroai/internal/errors"
	"recroai/internal/types"
)

// TotalWeight is the sum every validated rubric's weighted categories reach.
const TotalWeight = 100.0

const weightTolerance = 1e-9

// CategoryInput is one category as supplied by the job-definition side.
type CategoryInput struct {
	Name            string  `mapstructure:"name" json:"name"`
	Weight          float64 `mapstructure:"weight" json:"weight"`
	IsHardFilter    bool    `mapstructure:"isHardFilter" json:"isHardFilter"`
	RequirementText string  `mapstructure:"requirementText" json:"requirementText"`
}

// Input is an unvalidated rubric in category order.
type Input struct {
	Categories []CategoryInput `mapstructure:"categories" json:"categories"`
}

// Validate checks the input and returns an immutable rubric whose weighted
// categories sum to 100. Any rescaling is described in Rubric.Adjustments.
func Validate(in Input) (types.Rubric, error) {
	if len(in.Categories) == 0 {
		return types.Rubric{}, validationError("rubric must define at least one category")
	}

	seen := make(map[string]bool, len(in.Categories))
	categories := make([]types.RubricCategory, 0, len(in.Categories))
	var adjustments []string
	var sum float64

	for i, c := range in.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return types.Rubric{}, validationError(fmt.Sprintf("category %d has no name", i+1))
		}
		key := strings.ToLower(name)
		if seen[key] {
			return types.Rubric{}, validationError(fmt.Sprintf("duplicate category %q", name)).
				WithContext("category", name)
		}
		seen[key] = true

		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return types.Rubric{}, validationError(fmt.Sprintf("category %q has an invalid weight", name)).
				WithContext("category", name)
		}
		if c.Weight < 0 {
			return types.Rubric{}, validationError(fmt.Sprintf("category %q has negative weight %g", name, c.Weight)).
				WithContext("category", name)
		}
		if c.Weight > TotalWeight {
			return types.Rubric{}, validationError(fmt.Sprintf("category %q weight %g exceeds %g", name, c.Weight, TotalWeight)).
				WithContext("category", name)
		}

		requirement := strings.TrimSpace(c.RequirementText)
		cat := types.RubricCategory{
			Name:            name,
			IsHardFilter:    c.IsHardFilter,
			RequirementText: requirement,
		}
		if c.IsHardFilter {
			if requirement == "" {
				return types.Rubric{}, validationError(fmt.Sprintf("hard filter %q needs a requirement description", name)).
					WithContext("category", name)
			}
			if c.Weight != 0 {
				adjustments = append(adjustments, fmt.Sprintf("hard filter %q carries no weight; ignored weight %g", name, c.Weight))
			}
		} else {
			cat.Weight = c.Weight
			sum += c.Weight
		}
		categories = append(categories, cat)
	}

	weighted := 0
	for _, c := range categories {
		if !c.IsHardFilter {
			weighted++
		}
	}

	if weighted > 0 {
		if sum == 0 {
			return types.Rubric{}, validationError("weighted categories all have weight 0; cannot normalise")
		}
		if math.Abs(sum-TotalWeight) > weightTolerance {
			adjustments = append(adjustments, rescale(categories, sum))
		}
	}

	r := types.Rubric{
		Categories:  categories,
		Adjustments: adjustments,
	}
	r.Version = Version(r)
	return r, nil
}

// rescale brings weighted categories to TotalWeight in place. The last
// weighted category absorbs floating-point residue so the sum is exact.
func rescale(categories []types.RubricCategory, sum float64) string {
	factor := TotalWeight / sum
	var changes []string
	last := -1
	var acc float64
	for i := range categories {
		if categories[i].IsHardFilter {
			continue
		}
		old := categories[i].Weight
		categories[i].Weight = old * factor
		acc += categories[i].Weight
		last = i
		changes = append(changes, fmt.Sprintf("%s %s->%s", categories[i].Name, formatWeight(old), formatWeight(categories[i].Weight)))
	}
	if last >= 0 {
		categories[last].Weight += TotalWeight - acc
	}
	return fmt.Sprintf("weights summed to %s; rescaled proportionally to %s (%s)",
		formatWeight(sum), formatWeight(TotalWeight), strings.Join(changes, ", "))
}

func formatWeight(w float64) string {
	return fmt.Sprintf("%g", math.Round(w*100)/100)
}

// Version derives a stable identifier from the validated categories. Any
// change to names, weights, filter flags or requirement text changes it.
func Version(r types.Rubric) string {
	payload, _ := json.Marshal(r.Categories)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:12]
}

// SumWeights returns the total weight of the weighted categories.
func SumWeights(r types.Rubric) float64 {
	var sum float64
	for _, c := range r.Categories {
		if !c.IsHardFilter {
			sum += c.Weight
		}
	}
	return sum
}

func validationError(msg string) *errors.AppError {
	return errors.NewValidationError(errors.ErrCodeValidation, msg, nil)
}
