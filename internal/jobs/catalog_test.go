package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recroai/internal/errors"
)

const backendJob = `
id: backend-go
title: Senior Go Engineer
rubric:
  skills:
    weight: 40
    requirementText: Kubernetes and PostgreSQL
  degree:
    isHardFilter: true
    requirementText: BSc in Computer Science
  experience:
    weight: 60
    requirement_text: 5 years of Go
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseDefinitionKeepsDocumentOrder(t *testing.T) {
	def, err := ParseDefinition("backend.yaml", []byte(backendJob))
	require.NoError(t, err)

	job, err := def.Build()
	require.NoError(t, err)

	var names []string
	for _, c := range job.Rubric.Categories {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"skills", "degree", "experience"}, names)
	assert.Equal(t, "Senior Go Engineer", job.Title)
	assert.True(t, job.Rubric.Categories[1].IsHardFilter)
	assert.Equal(t, "5 years of Go", job.Rubric.Categories[2].RequirementText)
	assert.NotEmpty(t, job.Rubric.Version)
}

func TestParseDefinitionVariants(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		doc     string
		wantID  string
		wantErr string
	}{
		{
			name:   "list rubric and id from file name",
			path:   "/jobs/data-eng.yml",
			doc:    "rubric:\n  - {name: sql, weight: 1}\n  - {name: python, weight: 3}\n",
			wantID: "data-eng",
		},
		{
			name:   "nested categories key",
			path:   "x.yaml",
			doc:    "id: nested\nrubric:\n  categories:\n    go: {weight: 100}\n",
			wantID: "nested",
		},
		{
			name:    "missing rubric",
			path:    "x.yaml",
			doc:     "id: empty\ntitle: nothing\n",
			wantErr: errors.ErrCodeValidation,
		},
		{
			name:    "not a mapping",
			path:    "x.yaml",
			doc:     "- a\n- b\n",
			wantErr: errors.ErrCodeInvalidFormat,
		},
		{
			name:    "broken yaml",
			path:    "x.yaml",
			doc:     "id: [unterminated\n",
			wantErr: errors.ErrCodeInvalidFormat,
		},
		{
			name:    "duplicate category",
			path:    "x.yaml",
			doc:     "id: dup\nrubric:\n  go: {weight: 50}\n  go: {weight: 50}\n",
			wantErr: errors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseDefinition(tt.path, []byte(tt.doc))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, def.ID)
			_, err = def.Build()
			assert.NoError(t, err)
		})
	}
}

func TestCatalogLoadAndGet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "backend.yaml", backendJob)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "frontend.yml", "title: Frontend\nrubric:\n  react: {weight: 100}\n")

	c := NewCatalog(dir, errors.Nop())
	require.NoError(t, c.Load())

	jobs := c.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "backend-go", jobs[0].ID)
	assert.Equal(t, "frontend", jobs[1].ID)

	_, err := c.Get("missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestCatalogLoadRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", backendJob)
	writeFile(t, dir, "b.yaml", backendJob)

	c := NewCatalog(dir, errors.Nop())
	err := c.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
	assert.Empty(t, c.List())

	err = NewCatalog(filepath.Join(dir, "nope"), errors.Nop()).Load()
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestCatalogPut(t *testing.T) {
	c := NewCatalog("", errors.Nop())
	require.NoError(t, c.Load())

	def, err := ParseDefinition("", []byte(backendJob))
	require.NoError(t, err)
	first, err := c.Put(def)
	require.NoError(t, err)

	def.Rubric.Categories[0].Weight = 10
	second, err := c.Put(def)
	require.NoError(t, err)
	assert.NotEqual(t, first.Rubric.Version, second.Rubric.Version)
	assert.NotEmpty(t, second.Rubric.Adjustments)

	got, err := c.Get("backend-go")
	require.NoError(t, err)
	assert.Equal(t, second.Rubric.Version, got.Rubric.Version)

	_, err = c.Put(Definition{Title: "no id"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestCatalogWatchReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "backend.yaml", backendJob)

	c := NewCatalog(dir, errors.Nop())
	require.NoError(t, c.Load())
	before, err := c.Get("backend-go")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, 20*time.Millisecond) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "backend.yaml", backendJob+"  leadership:\n    weight: 20\n")

	require.Eventually(t, func() bool {
		job, err := c.Get("backend-go")
		return err == nil && job.Rubric.Version != before.Rubric.Version
	}, 3*time.Second, 20*time.Millisecond)

	// An invalid edit keeps the last good version.
	current, _ := c.Get("backend-go")
	writeFile(t, dir, "backend.yaml", "id: backend-go\nrubric: {}\n")
	time.Sleep(200 * time.Millisecond)
	still, err := c.Get("backend-go")
	require.NoError(t, err)
	assert.Equal(t, current.Rubric.Version, still.Rubric.Version)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, err := c.Get("backend-go")
		return errors.HasCode(err, errors.ErrCodeNotFound)
	}, 3*time.Second, 20*time.Millisecond)
}
