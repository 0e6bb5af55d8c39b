package structurer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema pairs a compiled JSON schema with a name for error
// reporting. All schemas are compiled once at package init; a malformed
// schema is a programming error.
type responseSchema struct {
	name   string
	schema *jsonschema.Schema
}

func (s *responseSchema) validate(raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode %s output: %w", s.name, err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("%s output does not match schema: %w", s.name, err)
	}
	return nil
}

func mustCompile(name, doc string) *responseSchema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", strings.NewReader(doc)); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name + ".json")
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return &responseSchema{name: name, schema: schema}
}

var problemChunksSchema = mustCompile("problem_chunks", `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["problem_number", "text"],
		"properties": {
			"problem_number": {"type": "integer"},
			"text": {"type": "string"}
		}
	}
}`)

var structureBatchSchema = mustCompile("structured_problems", `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["problem_number", "text"],
		"properties": {
			"problem_number": {"type": "integer"},
			"text": {"type": "string"},
			"choices": {
				"type": "array",
				"items": {"type": "string"}
			},
			"question_type": {"type": "string"}
		}
	}
}`)

var consecutiveSchema = mustCompile("structured_consecutive", `{
	"type": "object",
	"required": ["case_presentation", "sub_questions"],
	"properties": {
		"case_presentation": {"type": "string"},
		"sub_questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["problem_number", "text"],
				"properties": {
					"problem_number": {"type": "integer"},
					"text": {"type": "string"},
					"choices": {
						"type": "array",
						"items": {"type": "string"}
					}
				}
			}
		}
	}
}`)

var answerKeySchema = mustCompile("answer_key", `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["block", "problem_number", "answer"],
		"properties": {
			"block": {"type": "string", "pattern": "^[A-Z]$"},
			"problem_number": {"type": "integer"},
			"answer": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}
}`)
