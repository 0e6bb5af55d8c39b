package structurer

import "testing"

func TestExtractJSONPlain(t *testing.T) {
	raw, err := ExtractJSON(`[{"problem_number": 1, "text": "x"}]`)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if string(raw) != `[{"problem_number": 1, "text": "x"}]` {
		t.Fatalf("unexpected raw: %s", raw)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	input := "```json\n{\"a\": 1}\n```"
	raw, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if string(raw) != `{"a": 1}` {
		t.Fatalf("unexpected raw: %s", raw)
	}
}

func TestExtractJSONSurroundingText(t *testing.T) {
	input := "Here is the result:\n[1, 2, 3]\nLet me know if you need more."
	raw, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if string(raw) != `[1, 2, 3]` {
		t.Fatalf("unexpected raw: %s", raw)
	}
}

func TestExtractJSONInvalid(t *testing.T) {
	for _, input := range []string{"", "not json at all", "{broken"} {
		if _, err := ExtractJSON(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
