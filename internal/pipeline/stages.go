package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mkobayashi/examforge/internal/answerkey"
	"github.com/mkobayashi/examforge/internal/chunk"
	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/finalize"
	"github.com/mkobayashi/examforge/internal/geometry"
	"github.com/mkobayashi/examforge/internal/imagemap"
	"github.com/mkobayashi/examforge/internal/integrate"
	"github.com/mkobayashi/examforge/internal/reorder"
	"github.com/mkobayashi/examforge/internal/summary"
)

// RegisterAll registers the full stage set in dependency order.
func RegisterAll(r *Registry) error {
	for _, s := range []Stage{
		&extractStage{},
		&reorderStage{},
		&detectConsecutiveStage{},
		&chunkProblemsStage{},
		&structureStage{},
		&structureConsecutiveStage{},
		&mapImagesStage{},
		&mapConsecutiveImagesStage{},
		&parseAnswerKeyStage{},
		&integrateStage{},
		&finalizeStage{},
		&summaryStage{},
	} {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return r.Validate()
}

// extract pulls glyph geometry and embedded bitmaps out of every PDF.
type extractStage struct{}

func (*extractStage) Name() string           { return "extract" }
func (*extractStage) Dependencies() []string { return nil }
func (*extractStage) Description() string {
	return "Extract text geometry and embedded images from input PDFs"
}
func (*extractStage) AppliesTo(exam.File) bool { return true }

func (*extractStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.RawExtractionPath(f.Stem)}
}

func (*extractStage) Run(ctx context.Context, env *Env, f exam.File) error {
	pages, err := env.Extractor.Extract(ctx, f.Path, env.Home.ExtractedImagesDir(f.Stem))
	if err != nil {
		return err
	}
	return geometry.WritePages(env.Home.RawExtractionPath(f.Stem), pages)
}

// reorder rebuilds reading order for question booklets.
type reorderStage struct{}

func (*reorderStage) Name() string           { return "reorder" }
func (*reorderStage) Dependencies() []string { return []string{"extract"} }
func (*reorderStage) Description() string {
	return "Reconstruct reading order from block geometry"
}
func (*reorderStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindBooklet }

func (*reorderStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.ReorderedTextPath(f.Stem)}
}

func (*reorderStage) Run(ctx context.Context, env *Env, f exam.File) error {
	return reorder.Run(env.Home.RawExtractionPath(f.Stem), env.Home.ReorderedTextPath(f.Stem))
}

// detect-consecutive finds case blocks by rule.
type detectConsecutiveStage struct{}

func (*detectConsecutiveStage) Name() string           { return "detect-consecutive" }
func (*detectConsecutiveStage) Dependencies() []string { return []string{"reorder"} }
func (*detectConsecutiveStage) Description() string {
	return "Detect consecutive case-question blocks in booklet text"
}
func (*detectConsecutiveStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindBooklet }

func (*detectConsecutiveStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.ConsecutiveChunksPath(f.Stem)}
}

func (*detectConsecutiveStage) Run(ctx context.Context, env *Env, f exam.File) error {
	text, err := os.ReadFile(env.Home.ReorderedTextPath(f.Stem))
	if err != nil {
		return fmt.Errorf("failed to read reordered text: %w", err)
	}
	spans := chunk.DetectConsecutive(string(text), filepath.Base(f.Path))
	return writeJSON(env.Home.ConsecutiveChunksPath(f.Stem), spans)
}

// chunk-problems partitions booklet text into problem-sized chunks.
type chunkProblemsStage struct{}

func (*chunkProblemsStage) Name() string           { return "chunk-problems" }
func (*chunkProblemsStage) Dependencies() []string { return []string{"reorder"} }
func (*chunkProblemsStage) Description() string {
	return "Partition booklet text into individual problems"
}
func (*chunkProblemsStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindBooklet }

func (*chunkProblemsStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.ProblemChunksPath(f.Stem)}
}

func (*chunkProblemsStage) Run(ctx context.Context, env *Env, f exam.File) error {
	text, err := os.ReadFile(env.Home.ReorderedTextPath(f.Stem))
	if err != nil {
		return fmt.Errorf("failed to read reordered text: %w", err)
	}
	chunks, err := chunk.Problems(ctx, env.Svc, string(text),
		env.Chunking.WindowSize, env.Chunking.WindowOverlap, env.Log)
	if err != nil {
		return err
	}
	return writeJSON(env.Home.ProblemChunksPath(f.Stem), chunks)
}

// structure turns problem chunks into question records.
type structureStage struct{}

func (*structureStage) Name() string           { return "structure" }
func (*structureStage) Dependencies() []string { return []string{"chunk-problems"} }
func (*structureStage) Description() string {
	return "Structure problem chunks into question records"
}
func (*structureStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindBooklet }

func (*structureStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.StructuredProblemsPath(f.Stem)}
}

func (*structureStage) Run(ctx context.Context, env *Env, f exam.File) error {
	var chunks []exam.ProblemChunk
	if err := readJSON(env.Home.ProblemChunksPath(f.Stem), &chunks); err != nil {
		return err
	}
	if max := env.Chunking.MaxBatches; max > 0 && len(chunks) > max*env.Chunking.BatchSize {
		env.Log.Warn("capping structured problems",
			"stem", f.Stem, "max_batches", max)
		chunks = chunks[:max*env.Chunking.BatchSize]
	}

	records, err := env.Svc.StructureProblems(ctx, chunks, exam.BlockLetter(f.Stem), env.Chunking.BatchSize)
	if err != nil {
		return err
	}
	return writeJSON(env.Home.StructuredProblemsPath(f.Stem), records)
}

// structure-consecutive structures each detected case block.
type structureConsecutiveStage struct{}

func (*structureConsecutiveStage) Name() string           { return "structure-consecutive" }
func (*structureConsecutiveStage) Dependencies() []string { return []string{"detect-consecutive"} }
func (*structureConsecutiveStage) Description() string {
	return "Structure consecutive case blocks into records"
}
func (*structureConsecutiveStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindBooklet }

func (*structureConsecutiveStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.StructuredConsecutivePath(f.Stem)}
}

func (*structureConsecutiveStage) Run(ctx context.Context, env *Env, f exam.File) error {
	var spans []exam.ConsecutiveSpan
	if err := readJSON(env.Home.ConsecutiveChunksPath(f.Stem), &spans); err != nil {
		return err
	}

	letter := exam.BlockLetter(f.Stem)
	blocks := make([]exam.ConsecutiveBlock, 0, len(spans))
	for _, span := range spans {
		block, err := env.Svc.StructureConsecutive(ctx, span, letter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			env.Log.Warn("skipping failed consecutive block",
				"stem", f.Stem, "numbers", span.QuestionNumbers, "error", err)
			continue
		}
		blocks = append(blocks, *block)
	}
	return writeJSON(env.Home.StructuredConsecutivePath(f.Stem), blocks)
}

// map-images associates supplement images with single questions.
type mapImagesStage struct{}

func (*mapImagesStage) Name() string           { return "map-images" }
func (*mapImagesStage) Dependencies() []string { return []string{"extract"} }
func (*mapImagesStage) Description() string {
	return "Associate supplement images with single questions by caption"
}
func (*mapImagesStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindImageSupplement }

func (*mapImagesStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.ImageMappingPath(f.Stem)}
}

func (*mapImagesStage) Run(ctx context.Context, env *Env, f exam.File) error {
	pages, err := geometry.ReadPages(env.Home.RawExtractionPath(f.Stem))
	if err != nil {
		return err
	}
	mapping, unmatched := imagemap.MapSingle(pages, env.Log)
	if len(unmatched) > 0 {
		env.Log.Warn("images without parsable captions",
			"stem", f.Stem, "count", len(unmatched))
	}
	return imagemap.Write(env.Home.ImageMappingPath(f.Stem), mapping)
}

// map-consecutive-images matches range-captioned images to detected case
// blocks. Exam-scoped because it joins a supplement file against its
// sibling booklet's spans.
type mapConsecutiveImagesStage struct{}

func (*mapConsecutiveImagesStage) Name() string { return "map-consecutive-images" }
func (*mapConsecutiveImagesStage) Dependencies() []string {
	return []string{"extract", "detect-consecutive"}
}
func (*mapConsecutiveImagesStage) Description() string {
	return "Associate supplement images with consecutive case blocks"
}

func (*mapConsecutiveImagesStage) Artifacts(env *Env, examID string, files []exam.File) []string {
	var paths []string
	for _, f := range files {
		if f.Kind == exam.KindImageSupplement {
			paths = append(paths, env.Home.ConsecutiveImageMappingPath(f.Stem))
		}
	}
	return paths
}

func (*mapConsecutiveImagesStage) Run(ctx context.Context, env *Env, examID string, files []exam.File) error {
	// Spans grouped by the block letter of the booklet they came from.
	spansByBlock := make(map[string][]exam.ConsecutiveSpan)
	for _, f := range files {
		if f.Kind != exam.KindBooklet {
			continue
		}
		var spans []exam.ConsecutiveSpan
		if err := readJSON(env.Home.ConsecutiveChunksPath(f.Stem), &spans); err != nil {
			env.Log.Warn("no consecutive chunks for booklet",
				"stem", f.Stem, "error", err)
			continue
		}
		letter := exam.BlockLetter(f.Stem)
		spansByBlock[letter] = append(spansByBlock[letter], spans...)
	}

	for _, f := range files {
		if f.Kind != exam.KindImageSupplement {
			continue
		}
		pages, err := geometry.ReadPages(env.Home.RawExtractionPath(f.Stem))
		if err != nil {
			env.Log.Warn("no raw extraction for supplement",
				"stem", f.Stem, "error", err)
			continue
		}
		letter := exam.BlockLetter(f.Stem)
		mapping := imagemap.MapConsecutive(pages, spansByBlock[letter], letter, env.Log)
		if err := imagemap.Write(env.Home.ConsecutiveImageMappingPath(f.Stem), mapping); err != nil {
			return err
		}
	}
	return nil
}

// parse-answer-key reads the official answer table.
type parseAnswerKeyStage struct{}

func (*parseAnswerKeyStage) Name() string           { return "parse-answer-key" }
func (*parseAnswerKeyStage) Dependencies() []string { return []string{"extract"} }
func (*parseAnswerKeyStage) Description() string {
	return "Parse the official answer-key document"
}
func (*parseAnswerKeyStage) AppliesTo(f exam.File) bool { return f.Kind == exam.KindAnswerKey }

func (*parseAnswerKeyStage) Artifacts(env *Env, f exam.File) []string {
	return []string{env.Home.AnswerKeyPath(f.Stem)}
}

func (*parseAnswerKeyStage) Run(ctx context.Context, env *Env, f exam.File) error {
	pages, err := geometry.ReadPages(env.Home.RawExtractionPath(f.Stem))
	if err != nil {
		return err
	}
	table, err := answerkey.Parse(ctx, env.Svc, pages, env.Log)
	if err != nil {
		return err
	}
	return answerkey.Write(env.Home.AnswerKeyPath(f.Stem), table)
}

// integrate merges all per-file artifacts into the canonical record set.
// Always regenerated: its inputs are cheap to re-merge and reruns must
// pick up any refreshed upstream artifact.
type integrateStage struct{}

func (*integrateStage) Name() string { return "integrate" }
func (*integrateStage) Dependencies() []string {
	return []string{"structure", "structure-consecutive", "map-images",
		"map-consecutive-images", "parse-answer-key"}
}
func (*integrateStage) Description() string {
	return "Merge records, answers, and images into the canonical set"
}

func (*integrateStage) Artifacts(*Env, string, []exam.File) []string { return nil }

func (*integrateStage) Run(ctx context.Context, env *Env, examID string, files []exam.File) error {
	in := integrate.Inputs{
		Answers:           make(exam.AnswerKeyTable),
		Images:            make(imagemap.Mapping),
		ConsecutiveImages: make(imagemap.Mapping),
	}

	for _, f := range files {
		switch f.Kind {
		case exam.KindBooklet:
			var singles []exam.QuestionRecord
			if readOptionalJSON(env.Home.StructuredProblemsPath(f.Stem), &singles, env.Log) {
				in.Singles = append(in.Singles, singles...)
			}
			var blocks []exam.ConsecutiveBlock
			if readOptionalJSON(env.Home.StructuredConsecutivePath(f.Stem), &blocks, env.Log) {
				in.Consecutives = append(in.Consecutives, blocks...)
			}
		case exam.KindImageSupplement:
			if mapping, err := imagemap.Read(env.Home.ImageMappingPath(f.Stem)); err != nil {
				env.Log.Warn("corrupt artifact skipped", "path", filepath.Base(env.Home.ImageMappingPath(f.Stem)), "error", err)
			} else {
				integrate.MergeImageMappings(in.Images, mapping)
			}
			if mapping, err := imagemap.Read(env.Home.ConsecutiveImageMappingPath(f.Stem)); err != nil {
				env.Log.Warn("corrupt artifact skipped", "path", filepath.Base(env.Home.ConsecutiveImageMappingPath(f.Stem)), "error", err)
			} else {
				integrate.MergeImageMappings(in.ConsecutiveImages, mapping)
			}
		case exam.KindAnswerKey:
			if table, err := answerkey.Read(env.Home.AnswerKeyPath(f.Stem)); err != nil {
				env.Log.Warn("corrupt artifact skipped", "path", filepath.Base(env.Home.AnswerKeyPath(f.Stem)), "error", err)
			} else {
				integrate.MergeAnswerTables(in.Answers, table)
			}
		}
	}

	result, err := integrate.Integrate(in, env.Log)
	if err != nil {
		return err
	}

	if err := env.Home.EnsureExamDir(examID); err != nil {
		return err
	}
	if err := integrate.WriteRecords(env.Home.IntegratedPath(examID), result.Records); err != nil {
		return err
	}
	return integrate.WriteUnmatched(env.Home.UnmatchedAnswersPath(examID), result.UnmatchedAnswers)
}

// finalize publishes the exam's records and images.
type finalizeStage struct{}

func (*finalizeStage) Name() string           { return "finalize" }
func (*finalizeStage) Dependencies() []string { return []string{"integrate"} }
func (*finalizeStage) Description() string {
	return "Publish final JSON and publicly named images"
}

func (*finalizeStage) Artifacts(*Env, string, []exam.File) []string { return nil }

func (*finalizeStage) Run(ctx context.Context, env *Env, examID string, files []exam.File) error {
	records, err := integrate.ReadRecords(env.Home.IntegratedPath(examID))
	if err != nil {
		return err
	}

	searchDirs := make([]string, 0, len(files))
	for _, f := range files {
		searchDirs = append(searchDirs, env.Home.ExamDir(f.Stem))
	}

	engine := finalize.NewEngine(examID, searchDirs, env.Home.OutputImagesDir(), env.Log)
	published, err := engine.Run(records)
	if err != nil {
		return err
	}
	return finalize.WriteFinal(env.Home.FinalJSONPath(examID), published)
}

// summary aggregates statistics over the integrated records.
type summaryStage struct{}

func (*summaryStage) Name() string           { return "summary" }
func (*summaryStage) Dependencies() []string { return []string{"integrate"} }
func (*summaryStage) Description() string {
	return "Aggregate per-exam statistics"
}

func (*summaryStage) Artifacts(*Env, string, []exam.File) []string { return nil }

func (*summaryStage) Run(ctx context.Context, env *Env, examID string, files []exam.File) error {
	records, err := integrate.ReadRecords(env.Home.IntegratedPath(examID))
	if err != nil {
		return err
	}
	unmatched, err := integrate.ReadUnmatched(env.Home.UnmatchedAnswersPath(examID))
	if err != nil {
		return err
	}
	return summary.Write(env.Home.SummaryPath(examID), summary.Build(records, unmatched))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readOptionalJSON loads an artifact a poisoned upstream stage may not have
// produced. A missing file degrades quietly to false; a present but
// unreadable or corrupt artifact is warned about, never silently dropped.
func readOptionalJSON(path string, v any, log *slog.Logger) bool {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err != nil {
		log.Warn("unreadable artifact skipped", "path", filepath.Base(path), "error", err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn("corrupt artifact skipped", "path", filepath.Base(path), "error", err)
		return false
	}
	return true
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
