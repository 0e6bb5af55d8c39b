// Package integrate merges the per-file artifacts of one exam into the
// canonical record set: deduplication against consecutive blocks, answer
// attachment, image attachment, and deterministic ordering.
package integrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/imagemap"
)

// ErrNoRecords is returned when integration yields an empty record set.
// No artifact is written in that case.
var ErrNoRecords = errors.New("no records to integrate")

// Inputs collects everything integration consumes for one exam. A missing
// source degrades to its zero value upstream; integration itself never
// reads the filesystem.
type Inputs struct {
	Singles           []exam.QuestionRecord
	Consecutives      []exam.ConsecutiveBlock
	Answers           exam.AnswerKeyTable
	Images            imagemap.Mapping
	ConsecutiveImages imagemap.Mapping
}

// Result is the integrated record set plus the unmatched-answer report.
type Result struct {
	Records          []exam.IntegratedRecord
	UnmatchedAnswers []string
}

// Integrate builds the canonical record set for one exam. The steps run in
// a fixed order: dedup singles against consecutive blocks, attach answers,
// attach images, sort. Rerunning on identical inputs produces identical
// output bytes.
func Integrate(in Inputs, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = slog.Default()
	}

	singles := dedupSingles(in.Singles, in.Consecutives, log)
	if len(singles)+len(in.Consecutives) == 0 {
		return nil, ErrNoRecords
	}

	consumed := make(map[string]bool, len(in.Answers))

	records := make([]exam.IntegratedRecord, 0, len(singles)+len(in.Consecutives))
	for i := range singles {
		rec := singles[i]
		attachAnswer(&rec, in.Answers, consumed)
		attachImages(&rec, in.Images)
		records = append(records, exam.IntegratedRecord{
			Format: exam.FormatSingle,
			Single: &rec,
		})
	}
	for i := range in.Consecutives {
		block := in.Consecutives[i]
		subs := make([]exam.QuestionRecord, len(block.SubQuestions))
		copy(subs, block.SubQuestions)
		for j := range subs {
			attachAnswer(&subs[j], in.Answers, consumed)
			attachImages(&subs[j], in.Images)
		}
		block.SubQuestions = subs

		// The case presentation shares the block's range key. It carries
		// images only; answers attach to sub-questions.
		block.CasePresentation.Images = mergeImageRefs(
			block.CasePresentation.Images, in.ConsecutiveImages[block.JoinKey])

		records = append(records, exam.IntegratedRecord{
			Format:      exam.FormatConsecutive,
			Consecutive: &block,
		})
	}

	sortRecords(records)

	var unmatched []string
	for key := range in.Answers {
		if !consumed[key] {
			unmatched = append(unmatched, key)
		}
	}
	sort.Strings(unmatched)
	if len(unmatched) > 0 {
		log.Warn("answer keys with no matching record", "count", len(unmatched))
	}

	return &Result{Records: records, UnmatchedAnswers: unmatched}, nil
}

// dedupSingles drops standalone records whose question number also appears
// as a sub-question inside any consecutive block: the block's capture wins
// over a conflicting standalone extraction of the same number. Records
// without a positive problem number are exempt.
func dedupSingles(singles []exam.QuestionRecord, blocks []exam.ConsecutiveBlock, log *slog.Logger) []exam.QuestionRecord {
	covered := make(map[int]bool)
	for _, b := range blocks {
		for _, sub := range b.SubQuestions {
			if sub.ProblemNumber > 0 {
				covered[sub.ProblemNumber] = true
			}
		}
	}

	kept := make([]exam.QuestionRecord, 0, len(singles))
	for _, rec := range singles {
		if rec.ProblemNumber > 0 && covered[rec.ProblemNumber] {
			log.Info("dropping standalone duplicate of consecutive sub-question",
				"join_key", rec.JoinKey)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// attachAnswer looks the record's key up in the answer table and attaches
// the normalized form. Unnormalizable token sets are left unanswered.
func attachAnswer(rec *exam.QuestionRecord, answers exam.AnswerKeyTable, consumed map[string]bool) {
	tokens, ok := answers[rec.JoinKey]
	if !ok {
		return
	}
	consumed[rec.JoinKey] = true
	if answer, ok := exam.NormalizeAnswer(tokens); ok {
		rec.Answer = answer
	}
}

// attachImages merges the mapping's refs for the record's key into the
// record, deduplicating by path.
func attachImages(rec *exam.QuestionRecord, images imagemap.Mapping) {
	rec.Images = mergeImageRefs(rec.Images, images[rec.JoinKey])
}

// mergeImageRefs appends mapping entries not already present by path, then
// re-sorts by path so the list is stable regardless of input order.
func mergeImageRefs(existing []exam.ImageRef, entries []imagemap.Entry) []exam.ImageRef {
	if existing == nil {
		existing = []exam.ImageRef{}
	}
	for _, e := range entries {
		present := false
		for _, ref := range existing {
			if ref.Path == e.ImagePath {
				present = true
				break
			}
		}
		if !present {
			existing = append(existing, exam.ImageRef{ID: e.ImageID, Path: e.ImagePath})
		}
	}
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Path < existing[j].Path
	})
	return existing
}

// sortRecords orders records by (block letter, first number) of each
// record's own key. Records with unparsable keys sort last, ordered among
// themselves by raw key string.
func sortRecords(records []exam.IntegratedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ki, erri := exam.ParseJoinKey(records[i].Key())
		kj, errj := exam.ParseJoinKey(records[j].Key())
		switch {
		case erri == nil && errj == nil:
			return ki.Less(kj)
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return records[i].Key() < records[j].Key()
		}
	})
}

// MergeAnswerTables folds src into dst without mutating src. Later sources
// win on duplicate keys.
func MergeAnswerTables(dst, src exam.AnswerKeyTable) {
	for key, tokens := range src {
		dst[key] = tokens
	}
}

// MergeImageMappings folds src into dst, delegating dedup and id
// reassignment to the mapper.
func MergeImageMappings(dst, src imagemap.Mapping) {
	imagemap.MergeMappings(dst, src)
}

// WriteRecords persists the canonical integrated artifact.
func WriteRecords(path string, records []exam.IntegratedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal integrated records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write integrated records: %w", err)
	}
	return nil
}

// ReadRecords loads the canonical integrated artifact.
func ReadRecords(path string) ([]exam.IntegratedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read integrated records: %w", err)
	}
	var records []exam.IntegratedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse integrated records: %w", err)
	}
	return records, nil
}

// ReadUnmatched loads the unmatched-answer report. A missing report reads
// as empty.
func ReadUnmatched(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read unmatched answers: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse unmatched answers: %w", err)
	}
	return keys, nil
}

// WriteUnmatched persists the unmatched-answer report. An empty report is
// still written so reruns replace stale ones.
func WriteUnmatched(path string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal unmatched answers: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write unmatched answers: %w", err)
	}
	return nil
}
