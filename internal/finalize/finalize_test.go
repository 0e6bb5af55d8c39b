package finalize

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkobayashi/examforge/internal/exam"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeBitmap(t *testing.T, dir, rel string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("fake png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPublicImageName(t *testing.T) {
	got := PublicImageName("exam-24", "C-60-62", "A", ".png")
	if got != "exam-24-C-60-62-A.png" {
		t.Fatalf("unexpected name: %q", got)
	}
}

func TestRunPublishesSingleImages(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "images")
	writeBitmap(t, srcDir, "images/fig1.png")

	records := []exam.IntegratedRecord{{
		Format: exam.FormatSingle,
		Single: &exam.QuestionRecord{
			ID:            "id1",
			JoinKey:       "A-12",
			ProblemNumber: 12,
			Text:          "q",
			Images:        []exam.ImageRef{{ID: "A", Path: "images/fig1.png"}},
		},
	}}

	engine := NewEngine("exam-24", []string{srcDir}, outDir, discard())
	out, err := engine.Run(records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	images := out[0].Single.Images
	if len(images) != 1 {
		t.Fatalf("expected 1 ref, got %v", images)
	}
	if images[0].Path != "exam-24-A-12-A.png" {
		t.Fatalf("unexpected public path: %q", images[0].Path)
	}
	if _, err := os.Stat(filepath.Join(outDir, "exam-24-A-12-A.png")); err != nil {
		t.Fatalf("bitmap not copied: %v", err)
	}
	// Input record untouched.
	if records[0].Single.Images[0].Path != "images/fig1.png" {
		t.Fatal("input record was mutated")
	}
}

func TestRunPublishesConsecutiveImages(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "images")
	writeBitmap(t, srcDir, "images/case.webp")
	writeBitmap(t, srcDir, "images/sub.png")

	records := []exam.IntegratedRecord{{
		Format: exam.FormatConsecutive,
		Consecutive: &exam.ConsecutiveBlock{
			JoinKey: "C-60-62",
			CasePresentation: exam.CasePresentation{
				Text:   "case",
				Images: []exam.ImageRef{{ID: "A", Path: "images/case.webp"}},
			},
			SubQuestions: []exam.QuestionRecord{{
				ID:            "id60",
				JoinKey:       "C-60",
				ProblemNumber: 60,
				Images:        []exam.ImageRef{{ID: "A", Path: "images/sub.png"}},
			}},
		},
	}}

	engine := NewEngine("exam-24", []string{srcDir}, outDir, discard())
	out, err := engine.Run(records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	block := out[0].Consecutive
	if block.CasePresentation.Images[0].Path != "exam-24-C-60-62-A.webp" {
		t.Fatalf("unexpected case image path: %q", block.CasePresentation.Images[0].Path)
	}
	if block.SubQuestions[0].Images[0].Path != "exam-24-C-60-A.png" {
		t.Fatalf("unexpected sub image path: %q", block.SubQuestions[0].Images[0].Path)
	}
}

func TestRunDropsMissingBitmap(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "images")
	records := []exam.IntegratedRecord{{
		Format: exam.FormatSingle,
		Single: &exam.QuestionRecord{
			ID:      "id1",
			JoinKey: "A-1",
			Images:  []exam.ImageRef{{ID: "A", Path: "images/absent.png"}},
		},
	}}

	engine := NewEngine("exam-24", []string{t.TempDir()}, outDir, discard())
	out, err := engine.Run(records)
	if err != nil {
		t.Fatalf("missing bitmap must not be fatal: %v", err)
	}
	if len(out) != 1 {
		t.Fatal("record must survive")
	}
	if len(out[0].Single.Images) != 0 {
		t.Fatalf("missing ref should be dropped: %v", out[0].Single.Images)
	}
}

func TestRunSearchesDirsInOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "images")
	writeBitmap(t, second, "images/fig.png")

	records := []exam.IntegratedRecord{{
		Format: exam.FormatSingle,
		Single: &exam.QuestionRecord{
			ID:      "id1",
			JoinKey: "B-3",
			Images:  []exam.ImageRef{{ID: "A", Path: "images/fig.png"}},
		},
	}}

	engine := NewEngine("exam-24", []string{first, second}, outDir, discard())
	out, err := engine.Run(records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out[0].Single.Images) != 1 {
		t.Fatal("bitmap in later search dir should be found")
	}
}

func TestWriteFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exam-24.json")
	records := []exam.IntegratedRecord{{
		Format: exam.FormatSingle,
		Single: &exam.QuestionRecord{ID: "id1", JoinKey: "A-1", ProblemNumber: 1, Text: "q"},
	}}
	if err := WriteFinal(path, records); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty final document")
	}
}
