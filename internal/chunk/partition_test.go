package chunk

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

// fixedSource replays a list of draws, cycling when exhausted.
type fixedSource struct {
	draws []int
	i     int
}

func (f *fixedSource) Intn(n int) int {
	v := f.draws[f.i%len(f.draws)] % n
	f.i++
	return v
}

func TestPartitionCoverage(t *testing.T) {
	content := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40))
	bounds := [][2]int{{0, 1}, {1, 1}, {3, 5}, {0, 7}, {10, 10}, {1, 1000}, {999, 1000}}

	for seed := int64(0); seed < 25; seed++ {
		for _, b := range bounds {
			for _, total := range []int{0, 1, 2, 11, 57, len(content)} {
				src := NewSource(seed)
				chunks, err := Partition(content[:total], b[0], b[1], src)
				if err != nil {
					t.Fatalf("Partition(%d, %v) failed: %v", total, b, err)
				}
				if (len(chunks) == 0) != (total == 0) {
					t.Fatalf("total=%d produced %d chunks", total, len(chunks))
				}
				if got := bytes.Join(chunks, nil); !bytes.Equal(got, content[:total]) {
					t.Fatalf("seed %d bounds %v: concatenation differs from input", seed, b)
				}
				for i, c := range chunks {
					last := i == len(chunks)-1
					if len(c) > b[1] || len(c) < 1 {
						t.Errorf("chunk %d length %d outside [1,%d]", i, len(c), b[1])
					}
					if !last && len(c) < b[0] {
						t.Errorf("chunk %d length %d below min %d", i, len(c), b[0])
					}
				}
			}
		}
	}
}

func TestPartitionFixedSize(t *testing.T) {
	chunks, err := Partition([]byte("HELLO WORLD"), 4, 4, NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"HELL", "O WO", "RLD"}
	if len(chunks) != len(want) {
		t.Fatalf("Expected %d chunks, got %d", len(want), len(chunks))
	}
	for i := range want {
		if string(chunks[i]) != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSpansSkipsZeroDraws(t *testing.T) {
	// min=0 lets the source draw 0; those draws must not produce empty spans.
	src := &fixedSource{draws: []int{0, 0, 2, 0, 1}}
	spans, err := Spans(5, 0, 3, src)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range spans {
		if s.Len() == 0 {
			t.Fatalf("empty span in %v", spans)
		}
	}
	if spans[len(spans)-1].End != 5 {
		t.Errorf("Expected coverage to 5, got %v", spans)
	}
}

func TestSpansDeterministic(t *testing.T) {
	a, _ := Spans(500, 3, 17, NewSource(42))
	b, _ := Spans(500, 3, 17, NewSource(42))
	if len(a) != len(b) {
		t.Fatalf("same seed, different chunk counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed, span %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSpansErrors(t *testing.T) {
	cases := []struct{ total, min, max int }{
		{-1, 1, 2},
		{10, -1, 5},
		{10, 6, 5},
		{10, 0, 0},
	}
	for _, tc := range cases {
		if _, err := Spans(tc.total, tc.min, tc.max, NewSource(1)); !errors.Is(err, ErrBounds) {
			t.Errorf("Spans(%d,%d,%d): expected ErrBounds, got %v", tc.total, tc.min, tc.max, err)
		}
	}
	// Nothing to cover is fine even with a zero max.
	if spans, err := Spans(0, 0, 0, NewSource(1)); err != nil || len(spans) != 0 {
		t.Errorf("Expected no spans and no error, got %v %v", spans, err)
	}
}

func TestCheckBounds(t *testing.T) {
	if err := CheckBounds(3, 5); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	for _, b := range [][2]int{{-1, 5}, {0, 0}, {6, 5}, {0, 1001}} {
		if err := CheckBounds(b[0], b[1]); !errors.Is(err, ErrBounds) {
			t.Errorf("CheckBounds(%d,%d): expected ErrBounds, got %v", b[0], b[1], err)
		}
	}
}

func TestPartitionRunes(t *testing.T) {
	content := []byte("héllo wörld, 你好世界")
	for seed := int64(0); seed < 20; seed++ {
		chunks, err := PartitionRunes(content, 1, 3, NewSource(seed))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(bytes.Join(chunks, nil), content) {
			t.Fatalf("seed %d: coverage broken", seed)
		}
		for i, c := range chunks {
			if !utf8.Valid(c) {
				t.Fatalf("seed %d: chunk %d splits a character: %q", seed, i, c)
			}
			if n := utf8.RuneCount(c); n < 1 || n > 3 {
				t.Errorf("chunk %d has %d characters", i, n)
			}
		}
	}
}
