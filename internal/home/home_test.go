package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-examforge")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-examforge" {
			t.Errorf("expected path /tmp/test-examforge, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-examforge")

	t.Run("artifact paths", func(t *testing.T) {
		checks := map[string]string{
			dir.RawExtractionPath("118a_01"):       "/tmp/test-examforge/intermediate/118a_01/raw_extraction.json",
			dir.ReorderedTextPath("118a_01"):       "/tmp/test-examforge/intermediate/118a_01/reordered_text.txt",
			dir.ConsecutiveChunksPath("118a_01"):   "/tmp/test-examforge/intermediate/118a_01/consecutive_chunks.json",
			dir.IntegratedPath("tp240424-01"):      "/tmp/test-examforge/intermediate/tp240424-01/integrated.json",
			dir.UnmatchedAnswersPath("tp240424-01"): "/tmp/test-examforge/intermediate/tp240424-01/unmatched_answers.json",
			dir.FinalJSONPath("tp240424-01"):       "/tmp/test-examforge/output/json/tp240424-01.json",
		}
		for got, expected := range checks {
			if got != expected {
				t.Errorf("expected %s, got %s", expected, got)
			}
		}
	})

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-examforge/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "examforge-test")

	dir, err := New(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	for _, sub := range []string{dir.InputDir(), dir.IntermediateDir(), dir.OutputJSONDir(), dir.OutputImagesDir()} {
		if _, err := os.Stat(sub); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", sub)
		}
	}
}

func TestDir_EnsureExamDir(t *testing.T) {
	dir, _ := New(t.TempDir())

	if err := dir.EnsureExamDir("118a_01"); err != nil {
		t.Fatalf("EnsureExamDir failed: %v", err)
	}
	if _, err := os.Stat(dir.ExtractedImagesDir("118a_01")); os.IsNotExist(err) {
		t.Error("images directory should exist after EnsureExamDir")
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}

func TestDir_ListInputPDFs(t *testing.T) {
	dir, _ := New(t.TempDir())
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir.InputDir(), name), []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	paths, err := dir.ListInputPDFs()
	if err != nil {
		t.Fatalf("ListInputPDFs failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 PDFs, got %d: %v", len(paths), paths)
	}
	if filepath.Base(paths[0]) != "a.PDF" || filepath.Base(paths[1]) != "b.pdf" {
		t.Fatalf("unexpected order: %v", paths)
	}
}
