// Package pipeline orchestrates the digitization stages over an exam's
// files. Stages declare dependencies by name; the registry resolves an
// execution order and the runner enforces checkpoint-skip and failure
// propagation per file.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/mkobayashi/examforge/internal/config"
	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/geometry"
	"github.com/mkobayashi/examforge/internal/home"
	"github.com/mkobayashi/examforge/internal/structurer"
)

// Env carries the shared services every stage runs against.
type Env struct {
	Home      *home.Dir
	Chunking  config.ChunkingCfg
	Svc       *structurer.Service
	Extractor geometry.Extractor
	Log       *slog.Logger
	Force     bool
}

// Stage is the common identity of every pipeline stage.
type Stage interface {
	Name() string
	Dependencies() []string
	Description() string
}

// FileStage runs once per applicable input file. Its artifacts double as
// checkpoints: when all exist the stage is skipped unless forced.
type FileStage interface {
	Stage

	// AppliesTo reports whether the stage processes this file kind.
	AppliesTo(f exam.File) bool

	// Artifacts returns the output paths for one file.
	Artifacts(env *Env, f exam.File) []string

	Run(ctx context.Context, env *Env, f exam.File) error
}

// ExamStage runs once per exam, over all of its files. An empty Artifacts
// result means the stage regenerates its output on every run.
type ExamStage interface {
	Stage

	Artifacts(env *Env, examID string, files []exam.File) []string

	Run(ctx context.Context, env *Env, examID string, files []exam.File) error
}
