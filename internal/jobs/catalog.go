package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"recroai/internal/errors"
	"recroai/internal/types"
)

// Catalog holds jobs loaded from a directory of YAML files plus jobs defined
// at runtime. A file reload replaces the file's job; a changed rubric gets a
// new version.
type Catalog struct {
	mu     sync.RWMutex
	dir    string
	jobs   map[string]types.Job
	files  map[string]string // path -> job id
	logger *errors.Logger
}

// NewCatalog creates an empty catalog over dir. dir may be empty.
func NewCatalog(dir string, logger *errors.Logger) *Catalog {
	return &Catalog{
		dir:    dir,
		jobs:   make(map[string]types.Job),
		files:  make(map[string]string),
		logger: logger,
	}
}

// Load reads every job file in the directory. Any invalid file fails the load
// and leaves the catalog untouched.
func (c *Catalog) Load() error {
	if c.dir == "" {
		return nil
	}

	paths, err := jobFiles(c.dir)
	if err != nil {
		return err
	}

	loaded := make(map[string]types.Job, len(paths))
	files := make(map[string]string, len(paths))
	for _, path := range paths {
		job, err := LoadFile(path)
		if err != nil {
			return err
		}
		if other, dup := findPath(files, job.ID); dup {
			return errors.NewValidationError(errors.ErrCodeValidation,
				fmt.Sprintf("job %s is defined in both %s and %s", job.ID, other, path), nil)
		}
		loaded[job.ID] = job
		files[path] = job.ID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for path, id := range c.files {
		if _, still := files[path]; !still {
			delete(c.jobs, id)
		}
	}
	for id, job := range loaded {
		c.jobs[id] = job
	}
	c.files = files

	c.logger.Info("Job catalog loaded", "dir", c.dir, "jobs", len(loaded))
	return nil
}

// LoadFile parses and validates a single job file
func LoadFile(path string) (types.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Job{}, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("job file not found: %s", path), err)
		}
		return types.Job{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("cannot read job file: %s", path), err)
	}
	def, err := ParseDefinition(path, data)
	if err != nil {
		return types.Job{}, err
	}
	job, err := def.Build()
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return types.Job{}, appErr.WithContext("file", path)
		}
		return types.Job{}, err
	}
	return job, nil
}

// Get returns a job by id
func (c *Catalog) Get(jobID string) (types.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return types.Job{}, errors.NewValidationError(errors.ErrCodeNotFound,
			fmt.Sprintf("job not found: %s", jobID), nil).WithContext("job_id", jobID)
	}
	return job, nil
}

// List returns all jobs ordered by id
func (c *Catalog) List() []types.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, job)
	}
	slices.SortFunc(out, func(a, b types.Job) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Put validates and stores a job, replacing any job with the same id
func (c *Catalog) Put(def Definition) (types.Job, error) {
	job, err := def.Build()
	if err != nil {
		return types.Job{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.jobs[job.ID]; ok && prev.Rubric.Version != job.Rubric.Version {
		c.logger.Info("Job rubric changed", "job_id", job.ID,
			"previous_version", prev.Rubric.Version, "version", job.Rubric.Version)
	}
	c.jobs[job.ID] = job
	return job, nil
}

// reloadFile refreshes the job defined by path. Invalid files keep the
// previous job.
func (c *Catalog) reloadFile(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.mu.Lock()
		if id, ok := c.files[path]; ok {
			delete(c.jobs, id)
			delete(c.files, path)
			c.logger.Info("Job file removed", "file", path, "job_id", id)
		}
		c.mu.Unlock()
		return
	}

	job, err := LoadFile(path)
	if err != nil {
		c.logger.LogError(err, "Ignoring invalid job file", "file", path)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if other, dup := findPath(c.files, job.ID); dup && other != path {
		c.logger.Warn("Ignoring job file with duplicate id", "file", path, "job_id", job.ID, "defined_in", other)
		return
	}
	if prevID, ok := c.files[path]; ok && prevID != job.ID {
		delete(c.jobs, prevID)
	}
	prev, existed := c.jobs[job.ID]
	c.jobs[job.ID] = job
	c.files[path] = job.ID
	if !existed || prev.Rubric.Version != job.Rubric.Version {
		c.logger.Info("Job reloaded", "file", path, "job_id", job.ID, "version", job.Rubric.Version)
	}
}

func findPath(files map[string]string, jobID string) (string, bool) {
	for path, id := range files {
		if id == jobID {
			return path, true
		}
	}
	return "", false
}

func jobFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("jobs directory not found: %s", dir), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("cannot read jobs directory: %s", dir), err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

func isJobFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
