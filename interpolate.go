package trackstore

import (
	"math"
	"sort"

	"github.com/hupe1980/trackstore/frameindex"
	"github.com/hupe1980/trackstore/model"
	"github.com/hupe1980/trackstore/table"
)

// Interpolate returns tracks data at a non-integer frame number by linear
// interpolation between the two bracketing observed frames, joined by
// particle identity. Particles present in only one of the two frames are
// dropped; there is no extrapolation.
//
// The blend fraction is the fractional part of fnum. For fnum with no
// fractional part this is exactly GetFrame. The comparison is against zero,
// not an epsilon: a frame number a rounding error away from an integer is
// interpolated, not snapped.
//
// Result rows keep every column of the earlier bracketing frame except
// Frame (set to fnum), X and Y (blended), and are ordered with fresh ordinal
// positions carrying no further meaning.
func (t *Tracks) Interpolate(fnum float64) (model.Snapshot, error) {
	frac := math.Mod(fnum, 1)
	if frac == 0 {
		return t.GetFrame(int(fnum))
	}

	var snap model.Snapshot
	err := t.withTable(func(tbl *table.Table) error {
		min, max, err := frameindex.Range(tbl)
		if err != nil {
			return err
		}

		frames := frameindex.Slice(min, max, 1)
		i := sort.Search(len(frames), func(n int) bool { return float64(frames[n]) >= fnum })
		if i == 0 || i >= len(frames) {
			return &ErrOutOfRange{Frame: fnum, Min: min, Max: max}
		}
		fnum0, fnum1 := frames[i-1], frames[i]

		snap0, err := t.GetFrame(fnum0)
		if err != nil {
			return err
		}
		snap1, err := t.GetFrame(fnum1)
		if err != nil {
			return err
		}

		by1 := snap1.ByParticle()
		rows := make([]model.TrackPoint, 0, snap0.Len())
		for _, r0 := range snap0.Rows() {
			r1, ok := by1[r0.Particle]
			if !ok {
				continue
			}
			out := r0
			out.Frame = float32(fnum)
			out.X = r0.X + (r1.X-r0.X)*float32(frac)
			out.Y = r0.Y + (r1.Y-r0.Y)*float32(frac)
			rows = append(rows, out)
		}
		snap = model.NewSnapshot(rows)
		return nil
	})
	return snap, err
}
