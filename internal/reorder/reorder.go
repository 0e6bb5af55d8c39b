// Package reorder reconstructs human reading order from raw per-page block
// geometry: top-to-bottom by y0, left-to-right on ties, with page-boundary
// markers retained for downstream span detection.
package reorder

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mkobayashi/examforge/internal/geometry"
)

// PageMarker formats the literal page-boundary line for page n.
func PageMarker(n int) string {
	return fmt.Sprintf("--- Page %d ---", n)
}

// PageMarkerRe matches page-boundary marker lines.
var PageMarkerRe = regexp.MustCompile(`--- Page \d+ ---\n`)

// Page reconstructs one page's text in natural reading order. Blocks with a
// malformed or missing bbox are appended after the positioned ones in their
// original order; nothing is dropped. No block moves across pages.
func Page(page geometry.RawPage) string {
	var positioned, malformed []geometry.TextBlock
	for _, b := range page.TextBlocks {
		if b.HasValidBBox() {
			positioned = append(positioned, b)
		} else {
			malformed = append(malformed, b)
		}
	}

	// Round y to tolerate sub-pixel jitter from the extractor.
	sort.SliceStable(positioned, func(i, j int) bool {
		yi := math.Round(positioned[i].Y0())
		yj := math.Round(positioned[j].Y0())
		if yi != yj {
			return yi < yj
		}
		return positioned[i].X0() < positioned[j].X0()
	})

	lines := make([]string, 0, len(page.TextBlocks))
	for _, b := range positioned {
		lines = append(lines, b.Text)
	}
	for _, b := range malformed {
		lines = append(lines, b.Text)
	}
	return strings.Join(lines, "\n")
}

// Pages reconstructs the full linear text for a file: each page's reordered
// text prefixed by its page marker.
func Pages(pages []geometry.RawPage) string {
	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(PageMarker(page.PageNumber))
		sb.WriteString("\n")
		sb.WriteString(Page(page))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Run reads a raw extraction artifact and writes the linear-text artifact.
func Run(rawPath, outPath string) error {
	pages, err := geometry.ReadPages(rawPath)
	if err != nil {
		return err
	}
	text := Pages(pages)
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write reordered text: %w", err)
	}
	return nil
}
