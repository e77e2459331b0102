package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recroai/internal/common"
	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/types"
)

const jobYAML = `id: backend-go
title: Senior Go Engineer
rubric:
  degree: {isHardFilter: true, requirementText: "BSc in Computer Science"}
  experience: {weight: 60, requirementText: "5 years of Go"}
  skills: {weight: 30, requirementText: "Kubernetes, PostgreSQL"}
`

const candidatesJSON = `[
  {"id": "ada", "material": {"name": "Ada Lovelace", "email": "ada@example.com", "skills": "Go"}},
  {"id": "bob", "name": "Bob", "skills": "Kubernetes"}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// testConfig is the default configuration without metrics exporters or
// delegate credentials.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, name := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(name, "")
	}
	cfg := config.Default()
	cfg.Observability.Enabled = false
	cfg.Jobs.Dir = ""
	cfg.AI.APIKey = ""
	cfg.AI.Score.APIKey = ""
	cfg.AI.Filter.APIKey = ""
	return cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	validateConfig = common.CommandConfig{}
	scoreConfig.CommandConfig = common.CommandConfig{}
	scoreConfig.Force, scoreConfig.Yes, scoreConfig.IDs = false, false, nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := Execute(context.Background(), cfg, errors.Nop())
	return out.String(), err
}

func TestValidateRubricText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "backend.yaml", jobYAML)

	out, err := runCLI(t, testConfig(t), "validate-rubric", path, "--format", "text")
	if err != nil {
		t.Fatalf("validate-rubric error = %v", err)
	}
	for _, want := range []string{"=== JOB backend-go ===", "1. degree [hard filter]", "2. experience (weight 66.67)", "=== ADJUSTMENTS ==="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateRubricJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "backend.yaml", jobYAML)

	out, err := runCLI(t, testConfig(t), "validate-rubric", path, "--format", "json")
	if err != nil {
		t.Fatalf("validate-rubric error = %v", err)
	}
	var job types.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("output is not a job: %v\n%s", err, out)
	}
	if job.ID != "backend-go" || len(job.Rubric.Categories) != 3 || len(job.Rubric.Version) != 12 {
		t.Errorf("job = %+v", job)
	}
}

func TestValidateRubricRejectsInvalidRubric(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "id: bad\nrubric:\n  go: {weight: -5}\n")

	_, err := runCLI(t, testConfig(t), "validate-rubric", path, "--format", "json")
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodeValidation)
	}
}

func TestValidateRubricRejectsUnsupportedFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "backend.yaml", jobYAML)

	_, err := runCLI(t, testConfig(t), "validate-rubric", path, "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("error = %v", err)
	}
}

func TestScoreWithoutCredentialsAbortsRun(t *testing.T) {
	dir := t.TempDir()
	jobPath := writeFile(t, dir, "backend.yaml", jobYAML)
	candidatesPath := writeFile(t, dir, "candidates.json", candidatesJSON)

	out, err := runCLI(t, testConfig(t), "score", jobPath, candidatesPath, "--format", "json")
	if !errors.HasCode(err, errors.ErrCodeDelegateUnavailable) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeDelegateUnavailable)
	}

	var report types.RunReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("report not written: %v\n%s", err, out)
	}
	if report.Status != types.RunFailed || report.JobID != "backend-go" {
		t.Errorf("report = %+v", report)
	}
	if len(report.Failed) != 2 || report.Failed[0].CandidateID != "ada" {
		t.Errorf("failed = %+v", report.Failed)
	}
}

func TestScoreRejectsMissingFile(t *testing.T) {
	jobPath := writeFile(t, t.TempDir(), "backend.yaml", jobYAML)

	_, err := runCLI(t, testConfig(t), "score", jobPath, filepath.Join(t.TempDir(), "missing.json"), "--yes")
	if err == nil {
		t.Fatal("expected an error for a missing candidates file")
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, testConfig(t), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "recroai version "+Version) {
		t.Errorf("output = %q", out)
	}
}
