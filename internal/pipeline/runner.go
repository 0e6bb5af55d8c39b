package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/mkobayashi/examforge/internal/exam"
)

// Failure records one stage failing for one unit of work. Stem is empty
// for exam-scoped stages.
type Failure struct {
	Stage string
	Stem  string
	Err   error
}

func (f Failure) String() string {
	if f.Stem == "" {
		return fmt.Sprintf("%s: %v", f.Stage, f.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", f.Stage, f.Stem, f.Err)
}

// Runner executes registered stages for one exam at a time. Failures are
// local: a failed file stage poisons only its own file's downstream
// stages, and a failed exam stage only its dependent exam stages. Other
// files and exams keep going.
type Runner struct {
	registry *Registry
	env      *Env
}

// NewRunner creates a runner over a validated registry.
func NewRunner(registry *Registry, env *Env) *Runner {
	return &Runner{registry: registry, env: env}
}

// RunExam runs every stage for one exam's files in dependency order.
// The returned failures are informational; only a context cancellation or
// an unresolvable registry aborts with an error.
func (r *Runner) RunExam(ctx context.Context, examID string, files []exam.File) ([]Failure, error) {
	ordered, err := r.registry.GetOrdered()
	if err != nil {
		return nil, err
	}

	log := r.env.Log
	// failed[stage][stem] marks poisoned units; stem "" marks a whole
	// exam-scoped stage.
	failed := make(map[string]map[string]bool)
	var failures []Failure

	markFailed := func(stage, stem string) {
		if failed[stage] == nil {
			failed[stage] = make(map[string]bool)
		}
		failed[stage][stem] = true
	}

	for _, stage := range ordered {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		switch s := stage.(type) {
		case FileStage:
			for _, f := range files {
				if !s.AppliesTo(f) {
					continue
				}
				if dep := r.poisonedDep(s, f.Stem, failed); dep != "" {
					log.Warn("skipping stage, dependency failed",
						"stage", s.Name(), "stem", f.Stem, "dependency", dep)
					markFailed(s.Name(), f.Stem)
					continue
				}
				if !r.env.Force && artifactsExist(s.Artifacts(r.env, f)) {
					log.Info("stage already complete, skipping",
						"stage", s.Name(), "stem", f.Stem)
					continue
				}
				if err := r.env.Home.EnsureExamDir(f.Stem); err != nil {
					return failures, err
				}

				log.Info("running stage", "stage", s.Name(), "stem", f.Stem)
				if err := s.Run(ctx, r.env, f); err != nil {
					if ctx.Err() != nil {
						return failures, ctx.Err()
					}
					log.Error("stage failed",
						"stage", s.Name(), "stem", f.Stem, "error", err)
					markFailed(s.Name(), f.Stem)
					failures = append(failures, Failure{Stage: s.Name(), Stem: f.Stem, Err: err})
				}
			}

		case ExamStage:
			if dep := r.poisonedExamDep(s, failed); dep != "" {
				log.Warn("skipping stage, dependency failed",
					"stage", s.Name(), "exam", examID, "dependency", dep)
				markFailed(s.Name(), "")
				continue
			}
			if !r.env.Force {
				if artifacts := s.Artifacts(r.env, examID, files); len(artifacts) > 0 && artifactsExist(artifacts) {
					log.Info("stage already complete, skipping",
						"stage", s.Name(), "exam", examID)
					continue
				}
			}

			log.Info("running stage", "stage", s.Name(), "exam", examID)
			if err := s.Run(ctx, r.env, examID, files); err != nil {
				if ctx.Err() != nil {
					return failures, ctx.Err()
				}
				log.Error("stage failed",
					"stage", s.Name(), "exam", examID, "error", err)
				markFailed(s.Name(), "")
				failures = append(failures, Failure{Stage: s.Name(), Err: err})
			}
		}
	}

	return failures, nil
}

// poisonedDep returns the name of the first dependency that failed for
// this stem, or "".
func (r *Runner) poisonedDep(s FileStage, stem string, failed map[string]map[string]bool) string {
	for _, dep := range s.Dependencies() {
		if failed[dep][stem] || failed[dep][""] {
			return dep
		}
	}
	return ""
}

// poisonedExamDep only considers whole-stage failures: a file stage that
// failed for some files still leaves the exam stage runnable over the rest.
func (r *Runner) poisonedExamDep(s ExamStage, failed map[string]map[string]bool) string {
	for _, dep := range s.Dependencies() {
		if failed[dep][""] {
			return dep
		}
	}
	return ""
}

func artifactsExist(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
