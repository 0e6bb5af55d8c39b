package chunk

import (
	"strings"
	"testing"
)

func TestDetectConsecutiveSpanBoundary(t *testing.T) {
	text := strings.Join([]string{
		"--- Page 3 ---",
		"次の文を読み、60～62 の問いに答えよ。",
		"72歳の女性。主訴は発熱。",
		"60　まず行うべき検査はどれか。",
		"61　最も考えられる診断はどれか。",
		"--- Page 4 ---",
		"62　適切な治療はどれか。",
		"63　これは無関係な単独問題である。",
		"",
	}, "\n")

	spans := DetectConsecutive(text, "118c_01.pdf")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if len(span.QuestionNumbers) != 3 || span.QuestionNumbers[0] != 60 || span.QuestionNumbers[2] != 62 {
		t.Fatalf("question numbers wrong: %v", span.QuestionNumbers)
	}
	if !strings.Contains(span.Text, "62　適切な治療はどれか。") {
		t.Fatalf("span should include question 62: %q", span.Text)
	}
	if strings.Contains(span.Text, "63") {
		t.Fatalf("span must exclude question 63: %q", span.Text)
	}
	if strings.Contains(span.Text, "--- Page") {
		t.Fatalf("page markers must be stripped from span text: %q", span.Text)
	}
	if span.SourcePDF != "118c_01.pdf" || span.Type != "consecutive" {
		t.Fatalf("span metadata wrong: %+v", span)
	}
}

func TestDetectConsecutiveFullWidthDigits(t *testing.T) {
	// Some booklets print question numbers full-width; the trigger and the
	// following-question anchor must match either style.
	text := strings.Join([]string{
		"次の文を読み、６０～６２　の問いに答えよ。",
		"症例文。",
		"６０　まず行うべき検査はどれか。",
		"６１　診断はどれか。",
		"６２　治療はどれか。",
		"６３　無関係な単独問題。",
		"",
	}, "\n")

	spans := DetectConsecutive(text, "118c_01.pdf")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if len(span.QuestionNumbers) != 3 || span.QuestionNumbers[0] != 60 || span.QuestionNumbers[2] != 62 {
		t.Fatalf("question numbers wrong: %v", span.QuestionNumbers)
	}
	if strings.Contains(span.Text, "63") {
		t.Fatalf("span must exclude the question after the range: %q", span.Text)
	}
}

func TestDetectConsecutiveNoTriggers(t *testing.T) {
	spans := DetectConsecutive("1　通常の問題。\n2　別の問題。\n", "118a_01.pdf")
	if len(spans) != 0 {
		t.Fatalf("expected no spans, got %d", len(spans))
	}
}

func TestDetectConsecutiveMultipleSpans(t *testing.T) {
	text := strings.Join([]string{
		"次の文を読み、10、12 の問いに答えよ。",
		"症例文その1。",
		"次の文を読み、20～21 の問いに答えよ。",
		"症例文その2。",
		"",
	}, "\n")

	spans := DetectConsecutive(text, "x.pdf")
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].QuestionNumbers[0] != 10 || spans[0].QuestionNumbers[len(spans[0].QuestionNumbers)-1] != 12 {
		t.Fatalf("first span numbers wrong: %v", spans[0].QuestionNumbers)
	}
	if strings.Contains(spans[0].Text, "症例文その2") {
		t.Fatalf("first span leaked into second: %q", spans[0].Text)
	}
	if spans[1].QuestionNumbers[0] != 20 {
		t.Fatalf("second span numbers wrong: %v", spans[1].QuestionNumbers)
	}
}

func TestDetectConsecutiveKeepsRangeWithoutFollowingQuestion(t *testing.T) {
	text := "次の文を読み、5～6 の問いに答えよ。\n症例。\n5　設問その1。\n6　設問その2。\n"
	spans := DetectConsecutive(text, "x.pdf")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if !strings.Contains(spans[0].Text, "6　設問その2。") {
		t.Fatalf("full candidate span should be kept when question 7 is absent: %q", spans[0].Text)
	}
}

func TestStripBoilerplate(t *testing.T) {
	text := strings.Join([]string{
		"注意事項",
		"◎指示があるまで開かないこと。",
		"1　本物の問題文。",
		"42",
		"次の行は残る。",
		"",
	}, "\n")

	cleaned := StripBoilerplate(text)
	if strings.Contains(cleaned, "注意事項") || strings.Contains(cleaned, "開かないこと") {
		t.Fatalf("banners not removed: %q", cleaned)
	}
	if strings.Contains(cleaned, "\n42\n") {
		t.Fatalf("bare number footer not removed: %q", cleaned)
	}
	if !strings.Contains(cleaned, "本物の問題文") || !strings.Contains(cleaned, "次の行は残る") {
		t.Fatalf("content lost: %q", cleaned)
	}
}
