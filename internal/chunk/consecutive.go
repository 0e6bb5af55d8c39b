// Package chunk splits linear booklet text into question-sized units: a
// rule-based detector for consecutive "case" blocks and a language-model
// partitioner for the remaining single questions.
package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/reorder"
)

// triggerRe matches the sentence introducing a consecutive block:
// 「次の文を読み、60～62 の問いに答えよ。」. The separator between the two
// numbers may be a range glyph or a comma.
var triggerRe = regexp.MustCompile(`次の文を読み、(\d+)(?:、|～|〜)(\d+)[\s　]*の問いに答えよ。`)

// boilerplateRules remove print codes, instruction banners, worked examples,
// and page footers before span detection. Purely textual normalization; the
// rules are independent of each other.
var boilerplateRules = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[A-Z]{2,5}-\d{2}-[A-Z]{2}-\d+\n?`),
	regexp.MustCompile(`◎指示があるまで開かないこと。?\n`),
	regexp.MustCompile(`（令和[\s　]+年[\s　]+月[\s　]+日[\s　]+時[\s　]+分[\s　]+～[\s　]+時[\s　]+分）\n`),
	regexp.MustCompile(`注意事項\n`),
	regexp.MustCompile(`(?m)^\d{12,16}C?\n`),
	regexp.MustCompile(`(?m)^\d+\n`),
	regexp.MustCompile(`(?s)（例\d+\).*?（例\d+\)の正解は.*?\n`),
	regexp.MustCompile(`(?s)（例\d+\).*?すればよい。\n`),
	regexp.MustCompile(`(?s)答案用紙①の場合、.*?或\n`),
}

var blankRunsRe = regexp.MustCompile(`\n{3,}`)

// StripBoilerplate applies the fixed normalization rules. Full-width digits
// fold to ASCII first so the numeric rules, the trigger pattern, and the
// question-start anchors match either print style. Page-boundary markers
// survive so span boundaries can still anchor on them.
func StripBoilerplate(text string) string {
	text = strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, text)
	for _, rule := range boilerplateRules {
		text = rule.ReplaceAllString(text, "")
	}
	return blankRunsRe.ReplaceAllString(text, "\n\n")
}

// DetectConsecutive finds consecutive question blocks in the linear text of
// one booklet. Each span is a contiguous verbatim excerpt from trigger to
// the start of the next trigger, truncated earlier when the first question
// after the block's own range is found at a line start. A document with no
// triggers yields an empty list. Overlapping or out-of-order ranges are
// preserved as printed; validating them against exam structure is not this
// stage's concern.
func DetectConsecutive(text, sourcePDF string) []exam.ConsecutiveSpan {
	cleaned := StripBoilerplate(text)

	matches := triggerRe.FindAllStringSubmatchIndex(cleaned, -1)
	spans := make([]exam.ConsecutiveSpan, 0, len(matches))

	for i, m := range matches {
		start := m[0]
		end := len(cleaned)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		startNum := atoiGroup(cleaned, m, 1)
		endNum := atoiGroup(cleaned, m, 2)
		candidate := cleaned[start:end]

		// The candidate may have swept in the unrelated single question that
		// follows the block. If question M+1 starts on its own line inside
		// the candidate, cut right before it.
		if idx := nextQuestionStart(candidate, endNum+1); idx >= 0 {
			candidate = candidate[:idx]
		}

		numbers := make([]int, 0, endNum-startNum+1)
		for n := startNum; n <= endNum; n++ {
			numbers = append(numbers, n)
		}
		if len(numbers) == 0 {
			// Out-of-order range: keep the trigger's numbers as given.
			numbers = []int{startNum, endNum}
		}

		spans = append(spans, exam.ConsecutiveSpan{
			SourcePDF:       sourcePDF,
			Type:            "consecutive",
			QuestionNumbers: numbers,
			Text:            strings.TrimSpace(reorder.PageMarkerRe.ReplaceAllString(candidate, "")),
		})
	}

	return spans
}

// nextQuestionStart locates the line-anchored start of question n inside the
// candidate span: the number followed by an ideographic space, preceded by a
// page-boundary marker or a newline. Returns -1 if absent.
func nextQuestionStart(candidate string, n int) int {
	re := regexp.MustCompile(fmt.Sprintf(`(?:--- Page \d+ ---\n|\n)%d　`, n))
	loc := re.FindStringIndex(candidate)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func atoiGroup(s string, m []int, group int) int {
	val := 0
	for _, r := range s[m[2*group]:m[2*group+1]] {
		val = val*10 + int(r-'0')
	}
	return val
}
