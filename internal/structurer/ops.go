package structurer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkobayashi/examforge/internal/exam"
)

// ChunkProblems asks the model to partition one window of reordered text
// into individual problems.
func (s *Service) ChunkProblems(ctx context.Context, window string) ([]exam.ProblemChunk, error) {
	raw, err := s.callJSON(ctx, problemChunksSchema, chunkSystemPrompt, window)
	if err != nil {
		return nil, err
	}

	var chunks []exam.ProblemChunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode problem chunks: %w", err)
	}
	return chunks, nil
}

// StructureBatch structures one batch of problem chunks into question
// records. Join keys are derived from the booklet's block letter and each
// chunk's problem number; the model never chooses keys. Every record is
// minted a fresh id.
func (s *Service) StructureBatch(ctx context.Context, chunks []exam.ProblemChunk, blockLetter string) ([]exam.QuestionRecord, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode problem batch: %w", err)
	}

	raw, err := s.callJSON(ctx, structureBatchSchema, structureSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ProblemNumber int      `json:"problem_number"`
		Text          string   `json:"text"`
		Choices       []string `json:"choices"`
		QuestionType  string   `json:"question_type"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode structured problems: %w", err)
	}

	records := make([]exam.QuestionRecord, 0, len(rows))
	for _, row := range rows {
		if row.ProblemNumber <= 0 {
			s.log.Warn("dropping structured problem without a number", "text_len", len(row.Text))
			continue
		}
		records = append(records, exam.QuestionRecord{
			ID:            uuid.NewString(),
			JoinKey:       exam.NewSingle(blockLetter, row.ProblemNumber).String(),
			ProblemNumber: row.ProblemNumber,
			Text:          row.Text,
			Choices:       row.Choices,
			QuestionType:  row.QuestionType,
		})
	}
	return records, nil
}

// StructureProblems batches chunks and structures each batch. A failed
// batch is logged and skipped; its problems are absent from the result
// rather than aborting the whole booklet.
func (s *Service) StructureProblems(ctx context.Context, chunks []exam.ProblemChunk, blockLetter string, batchSize int) ([]exam.QuestionRecord, error) {
	if batchSize <= 0 {
		batchSize = 5
	}

	var records []exam.QuestionRecord
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch, err := s.StructureBatch(ctx, chunks[start:end], blockLetter)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("skipping failed batch",
				"from", chunks[start].ProblemNumber,
				"to", chunks[end-1].ProblemNumber,
				"error", err)
			continue
		}
		records = append(records, batch...)
	}
	return records, nil
}

// StructureConsecutive structures one detected case block. The join key
// comes from the span's question range, not from the model.
func (s *Service) StructureConsecutive(ctx context.Context, span exam.ConsecutiveSpan, blockLetter string) (*exam.ConsecutiveBlock, error) {
	if len(span.QuestionNumbers) == 0 {
		return nil, fmt.Errorf("consecutive span has no question numbers")
	}

	raw, err := s.callJSON(ctx, consecutiveSchema, consecutiveSystemPrompt, span.Text)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		CasePresentation string `json:"case_presentation"`
		SubQuestions     []struct {
			ProblemNumber int      `json:"problem_number"`
			Text          string   `json:"text"`
			Choices       []string `json:"choices"`
		} `json:"sub_questions"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode consecutive block: %w", err)
	}

	start := span.QuestionNumbers[0]
	end := span.QuestionNumbers[len(span.QuestionNumbers)-1]
	key := exam.NewRange(blockLetter, start, end)

	block := &exam.ConsecutiveBlock{
		JoinKey:   key.String(),
		SourcePDF: span.SourcePDF,
		CasePresentation: exam.CasePresentation{
			Text: parsed.CasePresentation,
		},
	}
	for _, sub := range parsed.SubQuestions {
		block.SubQuestions = append(block.SubQuestions, exam.QuestionRecord{
			ID:            uuid.NewString(),
			JoinKey:       exam.NewSingle(blockLetter, sub.ProblemNumber).String(),
			ProblemNumber: sub.ProblemNumber,
			Text:          sub.Text,
			Choices:       sub.Choices,
		})
	}
	return block, nil
}

// ParseAnswerKeyPage extracts answer rows from one page of an answer-key
// document, keyed by the canonical join-key string.
func (s *Service) ParseAnswerKeyPage(ctx context.Context, pageText string) (exam.AnswerKeyTable, error) {
	raw, err := s.callJSON(ctx, answerKeySchema, answerKeySystemPrompt, pageText)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Block         string   `json:"block"`
		ProblemNumber int      `json:"problem_number"`
		Answer        []string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode answer rows: %w", err)
	}

	table := make(exam.AnswerKeyTable, len(rows))
	for _, row := range rows {
		if row.ProblemNumber <= 0 {
			continue
		}
		key := exam.NewSingle(row.Block, row.ProblemNumber).String()
		table[key] = row.Answer
	}
	return table, nil
}
