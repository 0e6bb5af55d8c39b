package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/home"
)

// scriptedStage is a file stage whose behavior is controlled per stem.
type scriptedStage struct {
	name     string
	deps     []string
	kinds    map[exam.FileKind]bool
	failFor  map[string]error
	artifact bool // expose a per-stem artifact path for checkpointing

	mu   sync.Mutex
	runs []string
}

func (s *scriptedStage) Name() string           { return s.name }
func (s *scriptedStage) Dependencies() []string { return s.deps }
func (s *scriptedStage) Description() string    { return "scripted" }

func (s *scriptedStage) AppliesTo(f exam.File) bool {
	if s.kinds == nil {
		return true
	}
	return s.kinds[f.Kind]
}

func (s *scriptedStage) Artifacts(env *Env, f exam.File) []string {
	if !s.artifact {
		return nil
	}
	return []string{filepath.Join(env.Home.ExamDir(f.Stem), s.name+".done")}
}

func (s *scriptedStage) Run(ctx context.Context, env *Env, f exam.File) error {
	s.mu.Lock()
	s.runs = append(s.runs, f.Stem)
	s.mu.Unlock()
	if err := s.failFor[f.Stem]; err != nil {
		return err
	}
	if s.artifact {
		return os.WriteFile(filepath.Join(env.Home.ExamDir(f.Stem), s.name+".done"), []byte("ok"), 0o644)
	}
	return nil
}

// scriptedExamStage runs once per exam.
type scriptedExamStage struct {
	name string
	deps []string
	err  error
	runs int
}

func (s *scriptedExamStage) Name() string           { return s.name }
func (s *scriptedExamStage) Dependencies() []string { return s.deps }
func (s *scriptedExamStage) Description() string    { return "scripted exam stage" }

func (s *scriptedExamStage) Artifacts(*Env, string, []exam.File) []string { return nil }

func (s *scriptedExamStage) Run(ctx context.Context, env *Env, examID string, files []exam.File) error {
	s.runs++
	return s.err
}

func testEnv(t *testing.T) *Env {
	t.Helper()
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	return &Env{
		Home: dir,
		Log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func bookletFile(stem string) exam.File {
	return exam.File{Path: stem + ".pdf", Stem: stem, ExamID: exam.ExamID(stem), Kind: exam.KindBooklet}
}

func TestRunnerRunsStagesInOrder(t *testing.T) {
	env := testEnv(t)
	r := NewRegistry()
	first := &scriptedStage{name: "first"}
	second := &scriptedStage{name: "second", deps: []string{"first"}}
	for _, s := range []Stage{second, first} {
		if err := r.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewRunner(r, env)
	failures, err := runner.RunExam(context.Background(), "exam-1", []exam.File{bookletFile("exam-1a_01")})
	if err != nil {
		t.Fatalf("RunExam failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(first.runs) != 1 || len(second.runs) != 1 {
		t.Fatalf("stages did not run: first=%v second=%v", first.runs, second.runs)
	}
}

func TestRunnerPoisonsDownstreamPerFile(t *testing.T) {
	env := testEnv(t)
	r := NewRegistry()
	boom := errors.New("boom")
	first := &scriptedStage{name: "first", failFor: map[string]error{"bad_01": boom}}
	second := &scriptedStage{name: "second", deps: []string{"first"}}
	for _, s := range []Stage{first, second} {
		if err := r.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewRunner(r, env)
	failures, err := runner.RunExam(context.Background(), "exam-1",
		[]exam.File{bookletFile("bad_01"), bookletFile("good_01")})
	if err != nil {
		t.Fatalf("RunExam failed: %v", err)
	}
	if len(failures) != 1 || failures[0].Stage != "first" || failures[0].Stem != "bad_01" {
		t.Fatalf("unexpected failures: %v", failures)
	}
	// second must have run for the good file only.
	if len(second.runs) != 1 || second.runs[0] != "good_01" {
		t.Fatalf("downstream not poisoned correctly: %v", second.runs)
	}
}

func TestRunnerCheckpointSkip(t *testing.T) {
	env := testEnv(t)
	r := NewRegistry()
	stage := &scriptedStage{name: "work", artifact: true}
	if err := r.Register(stage); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(r, env)
	files := []exam.File{bookletFile("exam-1a_01")}

	if _, err := runner.RunExam(context.Background(), "exam-1", files); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.RunExam(context.Background(), "exam-1", files); err != nil {
		t.Fatal(err)
	}
	if len(stage.runs) != 1 {
		t.Fatalf("expected checkpoint skip on rerun, got %d runs", len(stage.runs))
	}

	env.Force = true
	if _, err := runner.RunExam(context.Background(), "exam-1", files); err != nil {
		t.Fatal(err)
	}
	if len(stage.runs) != 2 {
		t.Fatalf("expected force to rerun, got %d runs", len(stage.runs))
	}
}

func TestRunnerExamStageAfterFileStages(t *testing.T) {
	env := testEnv(t)
	r := NewRegistry()
	fileStage := &scriptedStage{name: "file-work", failFor: map[string]error{"bad_01": errors.New("boom")}}
	examStage := &scriptedExamStage{name: "exam-work", deps: []string{"file-work"}}
	for _, s := range []Stage{fileStage, examStage} {
		if err := r.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewRunner(r, env)
	failures, err := runner.RunExam(context.Background(), "exam-1",
		[]exam.File{bookletFile("bad_01"), bookletFile("good_01")})
	if err != nil {
		t.Fatal(err)
	}
	// A per-file failure does not block the exam stage.
	if examStage.runs != 1 {
		t.Fatalf("exam stage should still run, got %d runs", examStage.runs)
	}
	if len(failures) != 1 {
		t.Fatalf("unexpected failures: %v", failures)
	}
}

func TestRunnerExamStageFailurePoisonsDependents(t *testing.T) {
	env := testEnv(t)
	r := NewRegistry()
	first := &scriptedExamStage{name: "first", err: errors.New("boom")}
	second := &scriptedExamStage{name: "second", deps: []string{"first"}}
	for _, s := range []Stage{first, second} {
		if err := r.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewRunner(r, env)
	failures, err := runner.RunExam(context.Background(), "exam-1", []exam.File{bookletFile("a_01")})
	if err != nil {
		t.Fatal(err)
	}
	if second.runs != 0 {
		t.Fatal("dependent exam stage should be skipped")
	}
	if len(failures) != 1 || failures[0].Stage != "first" {
		t.Fatalf("unexpected failures: %v", failures)
	}
}

func TestRunnerContextCancellation(t *testing.T) {
	env := testEnv(t)
	r := NewRegistry()
	if err := r.Register(&scriptedStage{name: "work"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(r, env)
	_, err := runner.RunExam(ctx, "exam-1", []exam.File{bookletFile("a_01")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
