package exam

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Answer is the normalized form of a raw answer-key row. Exactly one of the
// two shapes is populated: a numeric value (with a null unit slot) when the
// row is a single number, or the lower-cased choice tokens otherwise.
type Answer struct {
	Value   json.Number
	Choices []string
}

type numericAnswer struct {
	Value json.Number `json:"value"`
	Unit  *string     `json:"unit"`
}

type choiceAnswer struct {
	Choices []string `json:"choices"`
}

// NormalizeAnswer converts raw answer tokens into an Answer.
// Returns false when there are no usable tokens.
func NormalizeAnswer(tokens []string) (*Answer, bool) {
	trimmed := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			trimmed = append(trimmed, tok)
		}
	}
	if len(trimmed) == 0 {
		return nil, false
	}

	// Only a lone numeric token is a computed value. Multi-token rows are
	// selected choice numbers even when every token is numeric; collapsing
	// them to one value would drop the other correct choices.
	if len(trimmed) == 1 {
		if _, err := strconv.ParseFloat(trimmed[0], 64); err == nil {
			return &Answer{Value: json.Number(trimmed[0])}, true
		}
	}

	choices := make([]string, len(trimmed))
	for i, tok := range trimmed {
		choices[i] = strings.ToLower(tok)
	}
	return &Answer{Choices: choices}, true
}

// MarshalJSON emits either {"value":N,"unit":null} or {"choices":[...]}.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Choices != nil {
		return json.Marshal(choiceAnswer{Choices: a.Choices})
	}
	return json.Marshal(numericAnswer{Value: a.Value})
}

// UnmarshalJSON accepts either normalized shape.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["choices"]; ok {
		var choices []string
		if err := json.Unmarshal(raw, &choices); err != nil {
			return err
		}
		a.Choices = choices
		a.Value = ""
		return nil
	}
	if _, ok := fields["value"]; ok {
		var num numericAnswer
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		a.Value = num.Value
		a.Choices = nil
		return nil
	}
	return fmt.Errorf("answer has neither value nor choices")
}
