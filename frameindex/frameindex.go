// Package frameindex answers frame-level questions about a row store whose
// rows are sorted ascending by frame number: which frames exist, and which
// physical row span holds a given frame.
//
// Frame numbers are assumed to form a contiguous integer range with step 1
// between the first and last physical rows. That assumption comes from the
// producing tracker and is not re-validated against the data.
package frameindex

import (
	"iter"

	"github.com/hupe1980/trackstore/model"
	"github.com/hupe1980/trackstore/table"
)

// RowSource is the slice of the storage engine the frame index needs.
// *table.Table satisfies it.
type RowSource interface {
	// Rows returns the total row count.
	Rows() uint64
	// RowAt returns the row at physical position i.
	RowAt(i uint64) (model.TrackPoint, error)
	// FrameSpan returns the half-open row range holding a frame, empty when
	// the frame is absent.
	FrameSpan(fnum float32) (start, end uint64, err error)
}

var _ RowSource = (*table.Table)(nil)

// Range returns the frame numbers of the first and last physical rows. Given
// the sort invariant these are the minimum and maximum frames, read in O(1).
func Range(src RowSource) (min, max int, err error) {
	n := src.Rows()
	if n == 0 {
		return 0, 0, table.ErrEmptyTable
	}
	first, err := src.RowAt(0)
	if err != nil {
		return 0, 0, err
	}
	last, err := src.RowAt(n - 1)
	if err != nil {
		return 0, 0, err
	}
	return int(first.Frame), int(last.Frame), nil
}

// Sequence lazily yields every frame number from min to max inclusive,
// stepping by stride. A stride below 1 is treated as 1.
func Sequence(min, max, stride int) iter.Seq[int] {
	if stride < 1 {
		stride = 1
	}
	return func(yield func(int) bool) {
		for f := min; f <= max; f += stride {
			if !yield(f) {
				return
			}
		}
	}
}

// Slice materializes Sequence.
func Slice(min, max, stride int) []int {
	var out []int
	for f := range Sequence(min, max, stride) {
		out = append(out, f)
	}
	return out
}

// Locate returns the contiguous physical row span holding frame fnum, found
// via the store's frame index or a binary search over the sorted frame
// column. An absent frame yields an empty span, not an error.
func Locate(src RowSource, fnum int) (start, end uint64, err error) {
	return src.FrameSpan(float32(fnum))
}
