// Package home manages the examforge home directory layout: input PDFs,
// per-file intermediate artifacts, and the final public output tree.
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultDirName is the default name for the examforge home directory.
	DefaultDirName = ".examforge"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the examforge home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.examforge).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// InputDir returns the directory scanned for exam PDFs.
func (d *Dir) InputDir() string {
	return filepath.Join(d.path, "input")
}

// IntermediateDir returns the parent of all per-file artifact directories.
func (d *Dir) IntermediateDir() string {
	return filepath.Join(d.path, "intermediate")
}

// OutputJSONDir returns the directory for final canonical JSON.
func (d *Dir) OutputJSONDir() string {
	return filepath.Join(d.path, "output", "json")
}

// OutputImagesDir returns the directory for publicly named images.
func (d *Dir) OutputImagesDir() string {
	return filepath.Join(d.path, "output", "images")
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// EnsureExists creates the home directory tree if it doesn't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{
		d.InputDir(),
		d.IntermediateDir(),
		d.OutputJSONDir(),
		d.OutputImagesDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ExamDir returns the intermediate directory for one exam file stem.
func (d *Dir) ExamDir(stem string) string {
	return filepath.Join(d.IntermediateDir(), stem)
}

// EnsureExamDir creates the intermediate directory for a stem.
func (d *Dir) EnsureExamDir(stem string) error {
	if err := os.MkdirAll(filepath.Join(d.ExamDir(stem), "images"), 0o755); err != nil {
		return fmt.Errorf("failed to create exam directory for %s: %w", stem, err)
	}
	return nil
}

// ExtractedImagesDir returns the bitmap directory under one stem's artifacts.
func (d *Dir) ExtractedImagesDir(stem string) string {
	return filepath.Join(d.ExamDir(stem), "images")
}

// Per-stem artifact paths. Artifacts double as on-disk checkpoints; a stage
// whose artifact is present is skipped on rerun unless forced.

func (d *Dir) RawExtractionPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "raw_extraction.json")
}

func (d *Dir) ReorderedTextPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "reordered_text.txt")
}

func (d *Dir) ProblemChunksPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "problem_chunks.json")
}

func (d *Dir) ConsecutiveChunksPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "consecutive_chunks.json")
}

func (d *Dir) StructuredProblemsPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "structured_problems.json")
}

func (d *Dir) StructuredConsecutivePath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "structured_consecutive.json")
}

func (d *Dir) ImageMappingPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "image_mapping.json")
}

func (d *Dir) ConsecutiveImageMappingPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "consecutive_image_mapping.json")
}

func (d *Dir) AnswerKeyPath(stem string) string {
	return filepath.Join(d.ExamDir(stem), "answer_key.json")
}

// Per-exam artifact paths, keyed by exam identity rather than stem.

func (d *Dir) IntegratedPath(examID string) string {
	return filepath.Join(d.IntermediateDir(), examID, "integrated.json")
}

func (d *Dir) UnmatchedAnswersPath(examID string) string {
	return filepath.Join(d.IntermediateDir(), examID, "unmatched_answers.json")
}

func (d *Dir) SummaryPath(examID string) string {
	return filepath.Join(d.IntermediateDir(), examID, "summary.json")
}

func (d *Dir) FinalJSONPath(examID string) string {
	return filepath.Join(d.OutputJSONDir(), examID+".json")
}

// ListInputPDFs returns all PDF paths in the input directory, sorted by name.
func (d *Dir) ListInputPDFs() ([]string, error) {
	entries, err := os.ReadDir(d.InputDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(d.InputDir(), entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
