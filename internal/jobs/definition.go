// Package jobs keeps the catalog of job postings and their rubrics.
package jobs

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"recroai/internal/errors"
	"recroai/internal/rubric"
	"recroai/internal/types"
)

// Definition is an unvalidated job as written by a recruiter
type Definition struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Rubric      rubric.Input `json:"rubric"`
}

// Build validates the rubric and returns the job
func (d Definition) Build() (types.Job, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return types.Job{}, errors.NewValidationError(errors.ErrCodeValidation, "job id is required", nil)
	}
	r, err := rubric.Validate(d.Rubric)
	if err != nil {
		return types.Job{}, err
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = id
	}
	return types.Job{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(d.Description),
		Rubric:      r,
	}, nil
}

// ParseDefinition decodes a YAML job document. When the rubric is a mapping
// of category names, the document order becomes the category order. A
// document without an id takes the file's base name.
//
//	id: backend-go
//	title: Senior Go Engineer
//	rubric:
//	  degree: {isHardFilter: true, requirementText: "BSc in CS"}
//	  experience: {weight: 60, requirementText: "5 years of Go"}
//	  skills: {weight: 40, requirementText: "Kubernetes, PostgreSQL"}
func ParseDefinition(path string, data []byte) (Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Definition{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s is not valid YAML", path), err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return Definition{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s must contain a job mapping", path), nil)
	}
	root := doc.Content[0]

	var def Definition
	var header struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	}
	if err := root.Decode(&header); err != nil {
		return Definition{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s: invalid job header", path), err)
	}
	def.ID = header.ID
	def.Title = header.Title
	def.Description = header.Description
	if strings.TrimSpace(def.ID) == "" && path != "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	rubricNode := mappingValue(root, "rubric")
	if rubricNode == nil {
		rubricNode = mappingValue(root, "categories")
	}
	if rubricNode == nil {
		return Definition{}, errors.NewValidationError(errors.ErrCodeValidation,
			fmt.Sprintf("%s: job %s has no rubric", path, def.ID), nil)
	}

	in, err := decodeRubric(rubricNode)
	if err != nil {
		return Definition{}, err
	}
	def.Rubric = in
	return def, nil
}

func decodeRubric(n *yaml.Node) (rubric.Input, error) {
	if n.Kind == yaml.MappingNode {
		if inner := mappingValue(n, "categories"); inner != nil {
			n = inner
		}
	}

	if n.Kind != yaml.MappingNode {
		var generic any
		if err := n.Decode(&generic); err != nil {
			return rubric.Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat, "invalid rubric", err)
		}
		return rubric.Decode(generic)
	}

	order := make([]string, 0, len(n.Content)/2)
	attrs := make(map[string]any, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		var value any
		if err := n.Content[i+1].Decode(&value); err != nil {
			return rubric.Input{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("invalid rubric category %q", name), err)
		}
		if _, dup := attrs[name]; dup {
			return rubric.Input{}, errors.NewValidationError(errors.ErrCodeValidation,
				fmt.Sprintf("duplicate category %q", name), nil)
		}
		order = append(order, name)
		attrs[name] = value
	}
	return rubric.DecodeOrdered(order, attrs)
}

// mappingValue returns the value node for key, matched case-insensitively.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if strings.EqualFold(m.Content[i].Value, key) {
			return m.Content[i+1]
		}
	}
	return nil
}
