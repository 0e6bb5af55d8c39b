// Package exam defines the canonical data model shared by every pipeline
// stage: join keys, question records, consecutive blocks, normalized answers,
// and the tagged integrated-record union written to the final artifact.
package exam

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidJoinKey is returned when a join key string cannot be parsed.
var ErrInvalidJoinKey = errors.New("invalid join key")

var joinKeyRe = regexp.MustCompile(`^([A-Z])-(\d+)(?:-(\d+))?$`)

// JoinKey identifies one gradable unit across independently scanned files.
// Block is a single uppercase letter. End == 0 denotes a single question;
// End > Start denotes a consecutive range.
type JoinKey struct {
	Block string
	Start int
	End   int
}

// NewSingle returns the join key for a single question.
func NewSingle(block string, number int) JoinKey {
	return JoinKey{Block: block, Start: number}
}

// NewRange returns the join key for a consecutive question range.
// A range that collapses to one question is normalized to single form.
func NewRange(block string, start, end int) JoinKey {
	if end <= start {
		return JoinKey{Block: block, Start: start}
	}
	return JoinKey{Block: block, Start: start, End: end}
}

// ParseJoinKey parses the canonical string form "A-12" or "C-60-62".
func ParseJoinKey(s string) (JoinKey, error) {
	m := joinKeyRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return JoinKey{}, fmt.Errorf("%w: %q", ErrInvalidJoinKey, s)
	}
	start, err := strconv.Atoi(m[2])
	if err != nil {
		return JoinKey{}, fmt.Errorf("%w: %q", ErrInvalidJoinKey, s)
	}
	key := JoinKey{Block: m[1], Start: start}
	if m[3] != "" {
		end, err := strconv.Atoi(m[3])
		if err != nil {
			return JoinKey{}, fmt.Errorf("%w: %q", ErrInvalidJoinKey, s)
		}
		if end != start {
			key.End = end
		}
	}
	return key, nil
}

// String returns the canonical string form.
func (k JoinKey) String() string {
	if k.IsRange() {
		return fmt.Sprintf("%s-%d-%d", k.Block, k.Start, k.End)
	}
	return fmt.Sprintf("%s-%d", k.Block, k.Start)
}

// IsRange reports whether the key denotes a consecutive question range.
func (k JoinKey) IsRange() bool {
	return k.End != 0 && k.End != k.Start
}

// IsZero reports whether the key is unset.
func (k JoinKey) IsZero() bool {
	return k.Block == "" && k.Start == 0 && k.End == 0
}

// Contains reports whether question number n falls inside the key's range.
// Single-form keys contain only their own number.
func (k JoinKey) Contains(n int) bool {
	if k.IsRange() {
		return n >= k.Start && n <= k.End
	}
	return n == k.Start
}

// Less orders keys by (block letter, first number). Used for the canonical
// record ordering; callers handle unparsable keys separately.
func (k JoinKey) Less(other JoinKey) bool {
	if k.Block != other.Block {
		return k.Block < other.Block
	}
	if k.Start != other.Start {
		return k.Start < other.Start
	}
	return k.End < other.End
}
