package exam

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FileKind classifies one scanned exam PDF by the role it plays.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindBooklet
	KindImageSupplement
	KindAnswerKey
)

// String returns a short name for the kind.
func (k FileKind) String() string {
	switch k {
	case KindBooklet:
		return "booklet"
	case KindImageSupplement:
		return "images"
	case KindAnswerKey:
		return "answer-key"
	default:
		return "unknown"
	}
}

// File is one input PDF resolved to its exam identity and role.
type File struct {
	Path   string
	Stem   string
	ExamID string
	Kind   FileKind
}

var (
	// Booklet stems look like "tp240424-01a_01": exam session, block letter,
	// part suffix. "_01" is the question booklet, "_02" the image supplement.
	stemRe  = regexp.MustCompile(`-(\d{2})([A-Za-z])_(\d+)$`)
	blockRe = regexp.MustCompile(`-(\d{2})([A-Za-z])_`)
	examRe  = regexp.MustCompile(`^(.*-\d{2})[A-Za-z]_`)
)

// Classify resolves a PDF path into a File.
func Classify(path string) File {
	stem := Stem(path)
	f := File{Path: path, Stem: stem, ExamID: ExamID(stem), Kind: KindUnknown}

	lower := strings.ToLower(stem)
	if strings.Contains(lower, "seitou") || strings.Contains(lower, "answer") {
		f.Kind = KindAnswerKey
		return f
	}

	if m := stemRe.FindStringSubmatch(stem); m != nil {
		switch m[3] {
		case "02":
			f.Kind = KindImageSupplement
		default:
			f.Kind = KindBooklet
		}
		return f
	}

	// No recognizable suffix: treat as a booklet so text still flows through.
	f.Kind = KindBooklet
	return f
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExamID derives the exam identity shared by all files of one sitting,
// e.g. "tp240424-01a_01" -> "tp240424-01". Stems that do not match the
// convention are their own identity.
func ExamID(stem string) string {
	if m := examRe.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	if i := strings.IndexAny(stem, "_"); i > 0 {
		return stem[:i]
	}
	return stem
}

// BlockLetter derives the question-block letter from a stem,
// e.g. "tp220502-01c_01" -> "C". Falls back to "X" for unexpected formats.
func BlockLetter(stem string) string {
	if m := blockRe.FindStringSubmatch(stem); m != nil {
		return strings.ToUpper(m[2])
	}
	return "X"
}
