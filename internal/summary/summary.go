// Package summary aggregates statistics over an exam's integrated records:
// question counts by format, type, and block, image coverage, and the
// questions and answer keys left unmatched by integration.
package summary

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mkobayashi/examforge/internal/exam"
)

// Summary is the per-exam statistics document.
type Summary struct {
	ProblemFormatCounts map[string]int `json:"problem_format_counts"`
	TotalQuestions      int            `json:"total_questions"`
	QuestionsWithImages int            `json:"questions_with_images"`
	TotalImages         int            `json:"total_images"`
	QuestionTypeCounts  map[string]int `json:"question_type_counts"`
	QuestionGroupCounts map[string]int `json:"question_group_counts"`
	Unmatched           UnmatchedCount `json:"unmatched_summary"`
	UnmatchedLists      UnmatchedLists `json:"unmatched_lists"`
}

// UnmatchedCount rolls up the sizes of the unmatched lists.
type UnmatchedCount struct {
	UnmatchedQuestionsCount int `json:"unmatched_questions_count"`
	UnmatchedAnswersCount   int `json:"unmatched_answers_count"`
}

// UnmatchedLists names the record ids left answerless and the answer keys
// that matched no record.
type UnmatchedLists struct {
	UnmatchedQuestions []string `json:"unmatched_questions"`
	UnmatchedAnswers   []string `json:"unmatched_answers"`
}

// Build computes statistics over integrated records. unmatchedAnswers is
// the integration stage's report, carried through verbatim.
func Build(records []exam.IntegratedRecord, unmatchedAnswers []string) *Summary {
	s := &Summary{
		ProblemFormatCounts: make(map[string]int),
		QuestionTypeCounts:  make(map[string]int),
		QuestionGroupCounts: make(map[string]int),
		UnmatchedLists: UnmatchedLists{
			UnmatchedQuestions: []string{},
			UnmatchedAnswers:   append([]string{}, unmatchedAnswers...),
		},
	}

	for _, rec := range records {
		s.ProblemFormatCounts[rec.Format]++

		switch rec.Format {
		case exam.FormatSingle:
			s.countQuestion(*rec.Single, false)
		case exam.FormatConsecutive:
			block := rec.Consecutive
			caseImages := len(block.CasePresentation.Images)
			s.TotalImages += caseImages
			for _, sub := range block.SubQuestions {
				s.countQuestion(sub, caseImages > 0)
			}
		}
	}

	s.Unmatched = UnmatchedCount{
		UnmatchedQuestionsCount: len(s.UnmatchedLists.UnmatchedQuestions),
		UnmatchedAnswersCount:   len(s.UnmatchedLists.UnmatchedAnswers),
	}
	return s
}

// countQuestion tallies one question. caseHasImages marks sub-questions
// whose shared case presentation carries images; they count as image
// questions even without their own.
func (s *Summary) countQuestion(q exam.QuestionRecord, caseHasImages bool) {
	s.TotalQuestions++

	if caseHasImages || len(q.Images) > 0 {
		s.QuestionsWithImages++
	}
	s.TotalImages += len(q.Images)

	qType := q.QuestionType
	if qType == "" {
		qType = "unknown"
	}
	s.QuestionTypeCounts[qType]++

	group := "unknown"
	if key, err := exam.ParseJoinKey(q.JoinKey); err == nil {
		group = key.Block
	}
	s.QuestionGroupCounts[group]++

	if q.Answer == nil {
		id := q.ID
		if id == "" {
			id = "unknown_id"
		}
		s.UnmatchedLists.UnmatchedQuestions = append(s.UnmatchedLists.UnmatchedQuestions, id)
	}
}

// Write persists the summary document.
func Write(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
