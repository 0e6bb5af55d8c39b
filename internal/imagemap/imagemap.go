// Package imagemap associates floating supplement images with the questions
// they illustrate: direct caption matching for single questions, range
// caption matching for consecutive blocks. The produced ids are embossed
// into public file names later, so the assignment must be reproducible
// byte-for-byte given the same inputs.
package imagemap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/geometry"
)

// Entry is one image reference inside a mapping.
type Entry struct {
	ImagePath  string `json:"image_path"`
	SourcePage int    `json:"source_page"`
	SourceText string `json:"source_text"`
	ImageID    string `json:"image_id"`
}

// Mapping maps canonical join-key strings to their images.
type Mapping map[string][]Entry

// captionRe extracts a "(A 問題20)"-style annotation. Half- and full-width
// parentheses, block letters, and digits all appear in print.
var captionRe = regexp.MustCompile(`[（(]([A-ZＡ-Ｚ])[\s　]*問題[\s　]*([0-9０-９]+)[\s　]*[)）]`)

// rangeCaptionRe extracts a "問題60〜62"-style range annotation.
var rangeCaptionRe = regexp.MustCompile(`問題[\s　]?([0-9０-９]+)(?:〜|～|、|,|[\s　])+([0-9０-９]+)`)

// MapSingle builds the mapping for a single-question image supplement.
// Captions may repeat an enclosing context before the specific annotation,
// so the last match wins. Images without a parsable caption are returned in
// the second value for reporting; they are excluded from the mapping but
// never silently lost.
func MapSingle(pages []geometry.RawPage, log *slog.Logger) (Mapping, []Entry) {
	if log == nil {
		log = slog.Default()
	}

	mapping := make(Mapping)
	var unmatched []Entry

	for _, page := range pages {
		images := sortedByY(page.Images)

		for _, img := range images {
			if img.AssociatedText == "" || img.ImagePath == "" {
				continue
			}

			matches := captionRe.FindAllStringSubmatch(img.AssociatedText, -1)
			if len(matches) == 0 {
				log.Warn("could not parse join key from caption",
					"page", page.PageNumber, "image", img.ImagePath)
				unmatched = append(unmatched, Entry{
					ImagePath:  img.ImagePath,
					SourcePage: page.PageNumber,
					SourceText: img.AssociatedText,
				})
				continue
			}

			last := matches[len(matches)-1]
			block := normalizeBlockLetter(last[1])
			key := exam.NewSingle(block, parseNumber(last[2])).String()

			mapping[key] = appendUnique(mapping[key], Entry{
				ImagePath:  img.ImagePath,
				SourcePage: page.PageNumber,
				SourceText: img.AssociatedText,
			})
		}
	}

	assignIDs(mapping)
	return mapping, unmatched
}

// MapConsecutive builds the mapping for consecutive blocks: an image joins
// a span only when its range caption equals the span's range exactly. The
// key combines the booklet's block letter with the span's numeric range.
func MapConsecutive(pages []geometry.RawPage, spans []exam.ConsecutiveSpan, blockLetter string, log *slog.Logger) Mapping {
	if log == nil {
		log = slog.Default()
	}

	type located struct {
		img  geometry.RawImage
		page int
	}
	var all []located
	for _, page := range pages {
		for _, img := range sortedByY(page.Images) {
			all = append(all, located{img: img, page: page.PageNumber})
		}
	}

	mapping := make(Mapping)
	for _, span := range spans {
		if len(span.QuestionNumbers) < 2 {
			continue
		}
		start := span.QuestionNumbers[0]
		end := span.QuestionNumbers[len(span.QuestionNumbers)-1]
		key := exam.NewRange(blockLetter, start, end).String()

		for _, loc := range all {
			m := rangeCaptionRe.FindStringSubmatch(loc.img.AssociatedText)
			if m == nil {
				continue
			}
			imgStart := parseNumber(m[1])
			imgEnd := parseNumber(m[2])
			if imgStart != start || imgEnd != end {
				continue
			}
			mapping[key] = appendUnique(mapping[key], Entry{
				ImagePath:  loc.img.ImagePath,
				SourcePage: loc.page,
				SourceText: loc.img.AssociatedText,
			})
		}

		if n := len(mapping[key]); n > 0 {
			log.Info("mapped images to consecutive block", "join_key", key, "count", n)
		}
	}

	assignIDs(mapping)
	return mapping
}

// MergeMappings folds src into dst, deduplicating by path per key.
// Ids are reassigned afterwards so the merged set stays ordered by path
// regardless of which source contributed an image.
func MergeMappings(dst, src Mapping) {
	for key, entries := range src {
		for _, e := range entries {
			dst[key] = appendUnique(dst[key], Entry{
				ImagePath:  e.ImagePath,
				SourcePage: e.SourcePage,
				SourceText: e.SourceText,
			})
		}
	}
	assignIDs(dst)
}

// assignIDs sorts each key's images by path and assigns sequential
// single-letter ids in that order.
func assignIDs(mapping Mapping) {
	for key, entries := range mapping {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].ImagePath < entries[j].ImagePath
		})
		for i := range entries {
			entries[i].ImageID = string(rune('A' + i))
		}
		mapping[key] = entries
	}
}

// appendUnique adds an entry unless the path is already present.
func appendUnique(entries []Entry, e Entry) []Entry {
	for _, existing := range entries {
		if existing.ImagePath == e.ImagePath {
			return entries
		}
	}
	return append(entries, e)
}

// sortedByY returns images ordered top-to-bottom so the first visual
// occurrence wins ties when captions are ambiguous.
func sortedByY(images []geometry.RawImage) []geometry.RawImage {
	out := make([]geometry.RawImage, len(images))
	copy(out, images)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Y0() < out[j].Y0()
	})
	return out
}

// normalizeBlockLetter folds full-width block letters to ASCII.
func normalizeBlockLetter(s string) string {
	r := []rune(s)[0]
	if r >= 'Ａ' && r <= 'Ｚ' {
		r = 'A' + (r - 'Ａ')
	}
	return string(r)
}

// parseNumber parses a caption number, folding full-width digits first.
func parseNumber(s string) int {
	folded := strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
	n, _ := strconv.Atoi(folded)
	return n
}

// Write persists a mapping artifact.
func Write(path string, mapping Mapping) error {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal image mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image mapping: %w", err)
	}
	return nil
}

// Read loads a mapping artifact. A missing file is not an error; the
// integration stage degrades to an empty mapping.
func Read(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Mapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image mapping: %w", err)
	}
	var mapping Mapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("failed to parse image mapping: %w", err)
	}
	return mapping, nil
}
