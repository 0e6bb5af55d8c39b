package chunk

import (
	"context"
	"log/slog"
	"sort"

	"github.com/mkobayashi/examforge/internal/exam"
)

// ProblemChunker partitions one text window into question-sized chunks.
// The language model service implements it; tests use deterministic fakes.
type ProblemChunker interface {
	ChunkProblems(ctx context.Context, window string) ([]exam.ProblemChunk, error)
}

// Windows splits text into overlapping windows sized for the service's
// context budget. Sizes are in runes so multi-byte text never splits
// mid-character.
func Windows(text string, size, overlap int) []string {
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var windows []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// Problems runs the partitioner over every window and merges the results by
// problem number, later windows winning on overlap. A window whose service
// calls are exhausted is skipped with a warning; the file keeps processing.
func Problems(ctx context.Context, svc ProblemChunker, text string, size, overlap int, log *slog.Logger) ([]exam.ProblemChunk, error) {
	if log == nil {
		log = slog.Default()
	}

	byNumber := make(map[int]exam.ProblemChunk)
	windows := Windows(text, size, overlap)

	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := svc.ChunkProblems(ctx, window)
		if err != nil {
			log.Warn("window partition failed, skipping", "window", i+1, "of", len(windows), "error", err)
			continue
		}
		for _, chunk := range chunks {
			if chunk.ProblemNumber == 0 {
				log.Warn("chunk without problem number dropped", "window", i+1)
				continue
			}
			byNumber[chunk.ProblemNumber] = chunk
		}
	}

	result := make([]exam.ProblemChunk, 0, len(byNumber))
	for _, chunk := range byNumber {
		result = append(result, chunk)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProblemNumber < result[j].ProblemNumber
	})
	return result, nil
}
