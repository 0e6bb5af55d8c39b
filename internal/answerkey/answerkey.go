// Package answerkey turns official answer-key documents into join-key
// indexed answer tables.
package answerkey

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/geometry"
	"github.com/mkobayashi/examforge/internal/reorder"
)

// PageParser extracts answer rows from one page of answer-key text.
type PageParser interface {
	ParseAnswerKeyPage(ctx context.Context, pageText string) (exam.AnswerKeyTable, error)
}

// Parse runs the parser over every page of a raw extraction and merges the
// results. A page that fails to parse is logged and skipped; answer rows
// from the remaining pages still count. Later pages win on duplicate keys.
func Parse(ctx context.Context, parser PageParser, pages []geometry.RawPage, log *slog.Logger) (exam.AnswerKeyTable, error) {
	if log == nil {
		log = slog.Default()
	}

	table := make(exam.AnswerKeyTable)
	for _, page := range pages {
		text := reorder.Page(page)
		if text == "" {
			continue
		}

		pageTable, err := parser.ParseAnswerKeyPage(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("skipping unparsable answer-key page",
				"page", page.PageNumber, "error", err)
			continue
		}
		Merge(table, pageTable)
	}
	return table, nil
}

// Merge folds src into dst, overwriting duplicate keys.
func Merge(dst, src exam.AnswerKeyTable) {
	for key, answer := range src {
		dst[key] = answer
	}
}

// Write persists an answer table artifact.
func Write(path string, table exam.AnswerKeyTable) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer key: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write answer key: %w", err)
	}
	return nil
}

// Read loads an answer table artifact. A missing file yields an empty
// table so integration can proceed without answers.
func Read(path string) (exam.AnswerKeyTable, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return exam.AnswerKeyTable{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read answer key: %w", err)
	}
	var table exam.AnswerKeyTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse answer key: %w", err)
	}
	return table, nil
}
