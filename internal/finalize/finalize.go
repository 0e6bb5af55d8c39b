// Package finalize publishes an exam's integrated records: image refs are
// renamed to their public form, the bitmaps are copied into the output
// images directory, and the records are re-serialized as the final per-exam
// JSON document.
package finalize

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mkobayashi/examforge/internal/exam"
)

// PublicImageName builds the public file name for one image ref:
// {exam_id}-{join_key}-{image_id}{ext}.
func PublicImageName(examID, joinKey, imageID, ext string) string {
	return fmt.Sprintf("%s-%s-%s%s", examID, joinKey, imageID, ext)
}

// Engine publishes integrated records for one exam.
type Engine struct {
	examID     string
	searchDirs []string // intermediate dirs holding extracted bitmaps
	imagesDir  string   // public output directory
	log        *slog.Logger
}

// NewEngine creates a finalization engine. searchDirs are probed in order
// when resolving an image ref's relative path.
func NewEngine(examID string, searchDirs []string, imagesDir string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{examID: examID, searchDirs: searchDirs, imagesDir: imagesDir, log: log}
}

// Run rewrites and copies every image ref and returns the publishable
// records. A ref whose source bitmap cannot be found is logged and dropped;
// the record itself survives.
func (e *Engine) Run(records []exam.IntegratedRecord) ([]exam.IntegratedRecord, error) {
	if err := os.MkdirAll(e.imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	out := make([]exam.IntegratedRecord, 0, len(records))
	for _, rec := range records {
		switch rec.Format {
		case exam.FormatSingle:
			q := *rec.Single
			q.Images = e.publishRefs(q.JoinKey, q.Images)
			rec.Single = &q
		case exam.FormatConsecutive:
			block := *rec.Consecutive
			block.CasePresentation.Images = e.publishRefs(block.JoinKey, block.CasePresentation.Images)
			subs := make([]exam.QuestionRecord, len(block.SubQuestions))
			copy(subs, block.SubQuestions)
			for i := range subs {
				subs[i].Images = e.publishRefs(subs[i].JoinKey, subs[i].Images)
			}
			block.SubQuestions = subs
			rec.Consecutive = &block
		}
		out = append(out, rec)
	}
	return out, nil
}

// publishRefs copies each ref's bitmap under its public name and rewrites
// the ref path.
func (e *Engine) publishRefs(joinKey string, refs []exam.ImageRef) []exam.ImageRef {
	if len(refs) == 0 {
		return refs
	}

	published := make([]exam.ImageRef, 0, len(refs))
	for _, ref := range refs {
		src := e.resolve(ref.Path)
		if src == "" {
			e.log.Warn("image bitmap not found, dropping ref",
				"join_key", joinKey, "path", ref.Path)
			continue
		}

		name := PublicImageName(e.examID, joinKey, ref.ID, filepath.Ext(src))
		if err := copyFile(src, filepath.Join(e.imagesDir, name)); err != nil {
			e.log.Warn("failed to copy image, dropping ref",
				"join_key", joinKey, "path", ref.Path, "error", err)
			continue
		}
		published = append(published, exam.ImageRef{ID: ref.ID, Path: name})
	}
	return published
}

// resolve finds the first search dir containing the ref's relative path.
func (e *Engine) resolve(relPath string) string {
	for _, dir := range e.searchDirs {
		candidate := filepath.Join(dir, relPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteFinal persists the publishable records as the per-exam document.
func WriteFinal(path string, records []exam.IntegratedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal final records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write final records: %w", err)
	}
	return nil
}
