package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadPromptsFromFiles(t *testing.T) {
	dir := t.TempDir()
	globalSystem := writePrompt(t, dir, "system.score.md", "  You grade candidates.  \n")
	filterUser := writePrompt(t, dir, "user.filter.md", "Requirement: {{.Requirement}}")

	cfg := Default()
	cfg.AI.CustomPrompts.SystemPrompts.ScoreCategoryFile = globalSystem
	cfg.AI.Filter.CustomPrompts.UserPrompts.EvaluateFilterFile = filterUser

	require.NoError(t, cfg.validatePromptFiles())
	require.NoError(t, cfg.loadPromptsFromFiles())

	assert.Equal(t, "You grade candidates.", cfg.Prompts.Global.System.ScoreCategory)
	assert.Equal(t, "Requirement: {{.Requirement}}", cfg.Prompts.Filter.User.EvaluateFilter)

	score := cfg.GetScoreConfig()
	assert.Equal(t, "You grade candidates.", score.Loaded.System.ScoreCategory)
	assert.Empty(t, score.Loaded.User.EvaluateFilter)

	filter := cfg.GetFilterConfig()
	assert.Equal(t, "Requirement: {{.Requirement}}", filter.Loaded.User.EvaluateFilter)
	assert.Equal(t, "You grade candidates.", filter.Loaded.System.ScoreCategory, "global prompts apply to every operation")
}

func TestOperationPromptOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := writePrompt(t, dir, "global.md", "global")
	scoped := writePrompt(t, dir, "scoped.md", "scoped")

	cfg := Default()
	cfg.AI.CustomPrompts.UserPrompts.ScoreCategoryFile = global
	cfg.AI.Score.CustomPrompts.UserPrompts.ScoreCategoryFile = scoped
	require.NoError(t, cfg.loadPromptsFromFiles())

	assert.Equal(t, "scoped", cfg.GetScoreConfig().Loaded.User.ScoreCategory)
	assert.Equal(t, "global", cfg.GetFilterConfig().Loaded.User.ScoreCategory)
}

func TestLoadPromptFromFileErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writePrompt(t, dir, "empty.md", "   \n")

	_, err := loadPromptFromFile(empty, "global system", "scoreCategory")
	assert.ErrorContains(t, err, "is empty")

	_, err = loadPromptFromFile(filepath.Join(dir, "missing.md"), "global system", "scoreCategory")
	assert.ErrorContains(t, err, "not found")
}

func TestValidatePromptFilesMissing(t *testing.T) {
	cfg := Default()
	cfg.AI.Score.CustomPrompts.SystemPrompts.ScoreCategoryFile = filepath.Join(t.TempDir(), "nope.md")

	err := cfg.validatePromptFiles()
	assert.ErrorContains(t, err, "score system scoreCategory prompt file not found")
}

func TestInlinePromptsMergeFromGlobal(t *testing.T) {
	cfg := Default()
	cfg.AI.CustomPrompts.UserPrompts.EvaluateFilter = "global inline"
	cfg.AI.Filter.CustomPrompts.SystemPrompts.EvaluateFilter = "filter inline"

	filter := cfg.GetFilterConfig()
	assert.Equal(t, "global inline", filter.CustomPrompts.UserPrompts.EvaluateFilter)
	assert.Equal(t, "filter inline", filter.CustomPrompts.SystemPrompts.EvaluateFilter)
}
