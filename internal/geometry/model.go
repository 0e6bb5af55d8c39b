// Package geometry models raw per-page extraction output: text blocks and
// embedded images with their bounding boxes. Pages are written once per file
// and are immutable afterward; every downstream stage only reads them.
package geometry

// TextBlock is one positioned text run on a page. BBox is (x0, y0, x1, y1)
// in top-down page coordinates; a slice shorter than 2 elements is treated
// as malformed downstream, never dropped.
type TextBlock struct {
	BBox []float64 `json:"bbox"`
	Text string    `json:"text"`
}

// RawImage is one embedded bitmap on a page. AssociatedText carries the
// nearest candidate caption resolved during extraction.
type RawImage struct {
	BBox           []float64 `json:"bbox"`
	ImagePath      string    `json:"image_path"`
	AssociatedText string    `json:"associated_text"`
	SourcePage     int       `json:"source_page"`
}

// RawPage is everything extracted from one PDF page.
type RawPage struct {
	PageNumber int         `json:"page_number"`
	TextBlocks []TextBlock `json:"text_blocks"`
	Images     []RawImage  `json:"images"`
}

// HasValidBBox reports whether the block carries usable coordinates.
func (b TextBlock) HasValidBBox() bool {
	return len(b.BBox) >= 2
}

// Y0 returns the top coordinate, or 0 for malformed boxes.
func (b TextBlock) Y0() float64 {
	if len(b.BBox) >= 2 {
		return b.BBox[1]
	}
	return 0
}

// X0 returns the left coordinate, or 0 for malformed boxes.
func (b TextBlock) X0() float64 {
	if len(b.BBox) >= 1 {
		return b.BBox[0]
	}
	return 0
}

// Y0 returns the image's top coordinate, or 0 for malformed boxes.
func (im RawImage) Y0() float64 {
	if len(im.BBox) >= 2 {
		return im.BBox[1]
	}
	return 0
}
