package geometry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
)

// Extractor yields raw per-page geometry for one PDF. The pipeline treats
// this as a black box producing RawPage data; apart from the bundled PDF
// implementation any source of the artifact shape will do.
type Extractor interface {
	Extract(ctx context.Context, pdfPath, imagesDir string) ([]RawPage, error)
}

// PDFExtractor reads glyph geometry with a pure-Go PDF parser and pulls
// embedded bitmaps out with pdfcpu.
type PDFExtractor struct {
	log *slog.Logger
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(log *slog.Logger) *PDFExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &PDFExtractor{log: log}
}

// Extract opens the PDF and produces one RawPage per page. Text geometry
// failures on individual pages are logged and yield a page with no blocks;
// an unreadable file is an extraction failure for the whole input.
func (e *PDFExtractor) Extract(ctx context.Context, pdfPath, imagesDir string) ([]RawPage, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	imagesByPage, err := e.extractImages(pdfPath, imagesDir)
	if err != nil {
		// Bitmap extraction failing does not make the text unreadable.
		e.log.Warn("image extraction failed", "file", filepath.Base(pdfPath), "error", err)
		imagesByPage = map[int][]RawImage{}
	}

	numPages := reader.NumPage()
	pages := make([]RawPage, 0, numPages)

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rawPage := RawPage{
			PageNumber: pageNum,
			TextBlocks: []TextBlock{},
			Images:     imagesByPage[pageNum],
		}
		if rawPage.Images == nil {
			rawPage.Images = []RawImage{}
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, rawPage)
			continue
		}

		blocks, err := pageTextBlocks(page)
		if err != nil {
			e.log.Warn("page text extraction failed", "file", filepath.Base(pdfPath), "page", pageNum, "error", err)
		} else {
			rawPage.TextBlocks = blocks
		}

		// Captions live on the same page as the bitmaps they annotate.
		// Each image gets only the slice of page text around its own
		// caption so a multi-image page keeps captions apart.
		if len(rawPage.Images) > 0 {
			pageText := joinBlockText(rawPage.TextBlocks)
			segments, ambiguous := CaptionSegments(pageText, len(rawPage.Images))
			if ambiguous {
				e.log.Warn("caption count does not match image count; images share page text",
					"file", filepath.Base(pdfPath), "page", pageNum, "images", len(rawPage.Images))
			}
			for i := range rawPage.Images {
				rawPage.Images[i].AssociatedText = segments[i]
			}
		}

		pages = append(pages, rawPage)
	}

	return pages, nil
}

// pageTextBlocks groups the page's glyphs into line-level text blocks in
// top-down page coordinates.
func pageTextBlocks(page pdf.Page) (blocks []TextBlock, err error) {
	// The content stream parser panics on some malformed PDFs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content parse panic: %v", r)
		}
	}()

	pageHeight := 842.0 // A4 fallback
	if mb := page.V.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
		if h := mb.Index(3).Float64() - mb.Index(1).Float64(); h > 0 {
			pageHeight = h
		}
	}

	content := page.Content()

	// Group glyphs into lines by rounded baseline.
	type glyph struct {
		x, w float64
		s    string
		size float64
	}
	lines := make(map[int][]glyph)
	for _, t := range content.Text {
		y := int(math.Round(t.Y))
		lines[y] = append(lines[y], glyph{x: t.X, w: t.W, s: t.S, size: t.FontSize})
	}

	ys := make([]int, 0, len(lines))
	for y := range lines {
		ys = append(ys, y)
	}
	// PDF coordinates grow upward; highest baseline is the top line.
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	for _, y := range ys {
		glyphs := lines[y]
		sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].x < glyphs[j].x })

		var sb strings.Builder
		x0 := glyphs[0].x
		x1 := x0
		size := glyphs[0].size
		for _, g := range glyphs {
			sb.WriteString(g.s)
			if right := g.x + g.w; right > x1 {
				x1 = right
			}
		}

		text := strings.TrimRight(sb.String(), " ")
		if strings.TrimSpace(text) == "" {
			continue
		}

		top := pageHeight - float64(y) - size
		blocks = append(blocks, TextBlock{
			BBox: []float64{x0, top, x1, top + size},
			Text: text,
		})
	}

	return blocks, nil
}

// captionMarkerRe locates question-caption annotations; it only marks split
// points, the mapper parses the captions themselves.
var captionMarkerRe = regexp.MustCompile(`問題[\s　]*[0-9０-９]+`)

// CaptionSegments splits one page's text into n segments, one per image in
// top-down order, each ending after the line of its own caption. Images and
// captions appear in the same visual order, so the i-th segment belongs to
// the i-th image. When the caption count does not match n the split is
// ambiguous: every segment is the full page text and ambiguous reports
// whether distinct captions were really present.
func CaptionSegments(pageText string, n int) (segments []string, ambiguous bool) {
	if n <= 0 {
		return nil, false
	}
	segments = make([]string, n)

	matches := captionMarkerRe.FindAllStringIndex(pageText, -1)
	if n < 2 || len(matches) != n {
		for i := range segments {
			segments[i] = pageText
		}
		return segments, n > 1 && len(matches) > 1
	}

	prev := 0
	for i, m := range matches {
		end := len(pageText)
		if i < n-1 {
			if nl := strings.IndexByte(pageText[m[1]:], '\n'); nl >= 0 {
				end = m[1] + nl + 1
			}
		}
		segments[i] = pageText[prev:end]
		prev = end
	}
	return segments, false
}

var imagePageRe = regexp.MustCompile(`_(\d+)_[^_]*\.(?i:png|jpe?g|tiff?|webp)$`)

// extractImages runs pdfcpu image extraction into imagesDir and indexes the
// written files by page number parsed from pdfcpu's output naming.
func (e *PDFExtractor) extractImages(pdfPath, imagesDir string) (map[int][]RawImage, error) {
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	if err := pdfcpu.ExtractImagesFile(pdfPath, imagesDir, nil, nil); err != nil {
		return nil, fmt.Errorf("pdfcpu image extraction failed: %w", err)
	}

	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	byPage := make(map[int][]RawImage)
	for _, name := range names {
		m := imagePageRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		pageNum, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		// Position within the page is not available from stream extraction;
		// the per-page index stands in for y ordering, which keeps caption
		// tie-breaking deterministic.
		idx := len(byPage[pageNum])
		byPage[pageNum] = append(byPage[pageNum], RawImage{
			BBox:       []float64{0, float64(idx), 0, float64(idx)},
			ImagePath:  filepath.Join("images", name),
			SourcePage: pageNum,
		})
	}

	return byPage, nil
}

func joinBlockText(blocks []TextBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}
