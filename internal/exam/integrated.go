package exam

import (
	"encoding/json"
	"fmt"
)

// Problem formats of the canonical output artifact.
const (
	FormatSingle      = "single"
	FormatConsecutive = "consecutive"
)

// IntegratedRecord is the tagged union written to the canonical per-exam
// artifact: either one standalone question or one consecutive block. Exactly
// one payload field is set, selected by Format.
type IntegratedRecord struct {
	Format      string
	Single      *QuestionRecord
	Consecutive *ConsecutiveBlock
}

// Key returns the record's own join key string (the range key for
// consecutive records).
func (r IntegratedRecord) Key() string {
	switch r.Format {
	case FormatSingle:
		if r.Single != nil {
			return r.Single.JoinKey
		}
	case FormatConsecutive:
		if r.Consecutive != nil {
			return r.Consecutive.JoinKey
		}
	}
	return ""
}

type singleEnvelope struct {
	ID      string          `json:"id,omitempty"`
	Format  string          `json:"problem_format"`
	Problem *QuestionRecord `json:"problem"`
}

type consecutiveEnvelope struct {
	Format           string           `json:"problem_format"`
	JoinKey          string           `json:"join_key"`
	SourcePDF        string           `json:"source_pdf,omitempty"`
	CasePresentation CasePresentation `json:"case_presentation"`
	SubQuestions     []QuestionRecord `json:"sub_questions"`
}

// MarshalJSON writes the tagged on-disk shape: single payloads nest under
// "problem", consecutive payloads inline case_presentation and sub_questions.
func (r IntegratedRecord) MarshalJSON() ([]byte, error) {
	switch r.Format {
	case FormatSingle:
		if r.Single == nil {
			return nil, fmt.Errorf("single record with no problem payload")
		}
		return json.Marshal(singleEnvelope{
			ID:      r.Single.ID,
			Format:  FormatSingle,
			Problem: r.Single,
		})
	case FormatConsecutive:
		if r.Consecutive == nil {
			return nil, fmt.Errorf("consecutive record with no block payload")
		}
		c := r.Consecutive
		return json.Marshal(consecutiveEnvelope{
			Format:           FormatConsecutive,
			JoinKey:          c.JoinKey,
			SourcePDF:        c.SourcePDF,
			CasePresentation: c.CasePresentation,
			SubQuestions:     c.SubQuestions,
		})
	default:
		return nil, fmt.Errorf("unknown problem_format %q", r.Format)
	}
}

// UnmarshalJSON validates the variant shape at the stage boundary instead of
// trusting it at use sites.
func (r *IntegratedRecord) UnmarshalJSON(data []byte) error {
	var tag struct {
		Format string `json:"problem_format"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	switch tag.Format {
	case FormatSingle:
		var env singleEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		if env.Problem == nil {
			return fmt.Errorf("single record with no problem payload")
		}
		r.Format = FormatSingle
		r.Single = env.Problem
		r.Consecutive = nil
		return nil
	case FormatConsecutive:
		var env consecutiveEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		r.Format = FormatConsecutive
		r.Consecutive = &ConsecutiveBlock{
			JoinKey:          env.JoinKey,
			SourcePDF:        env.SourcePDF,
			CasePresentation: env.CasePresentation,
			SubQuestions:     env.SubQuestions,
		}
		r.Single = nil
		return nil
	default:
		return fmt.Errorf("unknown problem_format %q", tag.Format)
	}
}
