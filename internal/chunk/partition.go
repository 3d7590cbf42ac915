// Package chunk cuts content into randomly sized, contiguous chunks.
package chunk

import (
	"errors"
	"fmt"
	"math/rand"
	"unicode/utf8"
)

// Limit is the largest chunk size accepted from user input.
const Limit = 1000

var ErrBounds = errors.New("invalid chunk bounds")

// Source draws chunk sizes. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// NewSource returns a seeded source so partitions are reproducible.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Span is a half-open [Start, End) range.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// CheckBounds validates a min/max pair against Limit.
func CheckBounds(min, max int) error {
	switch {
	case min < 0:
		return fmt.Errorf("%w: min %d is negative", ErrBounds, min)
	case max < 1:
		return fmt.Errorf("%w: max %d must be at least 1", ErrBounds, max)
	case max > Limit:
		return fmt.Errorf("%w: max %d exceeds %d", ErrBounds, max, Limit)
	case min > max:
		return fmt.Errorf("%w: min %d greater than max %d", ErrBounds, min, max)
	}
	return nil
}

// Spans covers [0, total) with consecutive spans whose lengths are drawn
// uniformly from [min, max] and clamped to what remains. A zero draw is
// discarded and drawn again so no span is empty.
func Spans(total, min, max int, src Source) ([]Span, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: negative total %d", ErrBounds, total)
	}
	if min < 0 || max < min {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrBounds, min, max)
	}
	if total == 0 {
		return nil, nil
	}
	if max == 0 {
		return nil, fmt.Errorf("%w: max is 0 with %d units to cover", ErrBounds, total)
	}

	var spans []Span
	pos := 0
	for pos < total {
		size := min + src.Intn(max-min+1)
		if size == 0 {
			continue
		}
		if rem := total - pos; size > rem {
			size = rem
		}
		spans = append(spans, Span{Start: pos, End: pos + size})
		pos += size
	}
	return spans, nil
}

// Partition splits content into byte chunks. The chunks alias content.
func Partition(content []byte, min, max int, src Source) ([][]byte, error) {
	spans, err := Spans(len(content), min, max, src)
	if err != nil {
		return nil, err
	}
	chunks := make([][]byte, len(spans))
	for i, s := range spans {
		chunks[i] = content[s.Start:s.End:s.End]
	}
	return chunks, nil
}

// PartitionRunes is Partition with sizes counted in UTF-8 characters, so a
// multi-byte sequence is never split across chunks. Invalid bytes count as
// one character each.
func PartitionRunes(content []byte, min, max int, src Source) ([][]byte, error) {
	offsets := make([]int, 0, len(content)+1)
	for i := 0; i < len(content); {
		offsets = append(offsets, i)
		_, w := utf8.DecodeRune(content[i:])
		i += w
	}
	offsets = append(offsets, len(content))

	spans, err := Spans(len(offsets)-1, min, max, src)
	if err != nil {
		return nil, err
	}
	chunks := make([][]byte, len(spans))
	for i, s := range spans {
		start, end := offsets[s.Start], offsets[s.End]
		chunks[i] = content[start:end:end]
	}
	return chunks, nil
}
