package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LoadedPrompts holds the content of prompts loaded from files, per scope
type LoadedPrompts struct {
	Global OperationPrompts
	Score  OperationPrompts
	Filter OperationPrompts
}

// OperationPrompts holds system and user prompt file contents
type OperationPrompts struct {
	System LoadedPromptSet
	User   LoadedPromptSet
}

// LoadedPromptSet is the file content for each delegate operation
type LoadedPromptSet struct {
	ScoreCategory  string
	EvaluateFilter string
}

// forOperation overlays operation-specific file prompts on global ones.
func (p LoadedPrompts) forOperation(op OperationPrompts) OperationPrompts {
	return OperationPrompts{
		System: overlay(op.System, p.Global.System),
		User:   overlay(op.User, p.Global.User),
	}
}

func overlay(op, global LoadedPromptSet) LoadedPromptSet {
	if op.ScoreCategory == "" {
		op.ScoreCategory = global.ScoreCategory
	}
	if op.EvaluateFilter == "" {
		op.EvaluateFilter = global.EvaluateFilter
	}
	return op
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	scopes := []struct {
		name   string
		config PromptConfig
		target *OperationPrompts
	}{
		{"global", c.AI.CustomPrompts, &c.Prompts.Global},
		{"score", c.AI.Score.CustomPrompts, &c.Prompts.Score},
		{"filter", c.AI.Filter.CustomPrompts, &c.Prompts.Filter},
	}

	for _, scope := range scopes {
		if err := loadPromptSet(scope.config.SystemPrompts, &scope.target.System, scope.name+" system"); err != nil {
			return fmt.Errorf("failed to load %s system prompts: %w", scope.name, err)
		}
		if err := loadPromptSet(scope.config.UserPrompts, &scope.target.User, scope.name+" user"); err != nil {
			return fmt.Errorf("failed to load %s user prompts: %w", scope.name, err)
		}
	}

	c.logPromptLoadingSummary()
	return nil
}

func loadPromptSet(set PromptSet, target *LoadedPromptSet, promptType string) error {
	if set.ScoreCategoryFile != "" {
		content, err := loadPromptFromFile(set.ScoreCategoryFile, promptType, "scoreCategory")
		if err != nil {
			return err
		}
		target.ScoreCategory = content
	}
	if set.EvaluateFilterFile != "" {
		content, err := loadPromptFromFile(set.EvaluateFilterFile, promptType, "evaluateFilter")
		if err != nil {
			return err
		}
		target.EvaluateFilter = content
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	for scope, prompts := range map[string]PromptConfig{
		"global": c.AI.CustomPrompts,
		"score":  c.AI.Score.CustomPrompts,
		"filter": c.AI.Filter.CustomPrompts,
	} {
		validateFile(prompts.SystemPrompts.ScoreCategoryFile, scope+" system", "scoreCategory")
		validateFile(prompts.SystemPrompts.EvaluateFilterFile, scope+" system", "evaluateFilter")
		validateFile(prompts.UserPrompts.ScoreCategoryFile, scope+" user", "scoreCategory")
		validateFile(prompts.UserPrompts.EvaluateFilterFile, scope+" user", "evaluateFilter")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// logPromptLoadingSummary logs a summary of loaded prompts
func (c *Config) logPromptLoadingSummary() {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	checks := []struct {
		content string
		message string
	}{
		{c.Prompts.Global.System.ScoreCategory, "[CONFIG] Global system scoreCategory prompt: loaded from file"},
		{c.Prompts.Global.System.EvaluateFilter, "[CONFIG] Global system evaluateFilter prompt: loaded from file"},
		{c.Prompts.Global.User.ScoreCategory, "[CONFIG] Global user scoreCategory prompt: loaded from file"},
		{c.Prompts.Global.User.EvaluateFilter, "[CONFIG] Global user evaluateFilter prompt: loaded from file"},
		{c.Prompts.Score.System.ScoreCategory, "[CONFIG] Score-specific system prompt: loaded from file"},
		{c.Prompts.Score.User.ScoreCategory, "[CONFIG] Score-specific user prompt: loaded from file"},
		{c.Prompts.Filter.System.EvaluateFilter, "[CONFIG] Filter-specific system prompt: loaded from file"},
		{c.Prompts.Filter.User.EvaluateFilter, "[CONFIG] Filter-specific user prompt: loaded from file"},
	}

	count := 0
	for _, check := range checks {
		if check.content != "" {
			log.Println(check.message)
			count++
		}
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
	log.Println("[CONFIG] ==========================================")
}
