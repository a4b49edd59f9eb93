package trackstore

import (
	"github.com/hupe1980/trackstore/frameindex"
	"github.com/hupe1980/trackstore/table"
)

// DefaultFrameInterval is the sampling stride used when ComputeQuality is
// given a non-positive interval.
const DefaultFrameInterval = 10

// QualityStat describes one sampled frame of a quality report.
type QualityStat struct {
	// N is the number of particles observed in the frame.
	N int
	// NConserved is the number of those particles whose identity also
	// appears in the first sampled frame.
	NConserved int
}

// ComputeQuality computes global tracking-quality diagnostics, looking at
// one out of every frameInterval frames. The first sampled frame is the
// reference; every sampled frame (including the first) reports its particle
// count and its identity overlap with the reference.
//
// Consumers typically plot (N-N0)/N0 and the conserved fraction against
// frame number. The table is not modified.
//
// Particle identities are assumed unique within a frame; rows sharing an
// identity each count toward the overlap.
func ComputeQuality(t *Tracks, frameInterval int) (map[int]QualityStat, error) {
	if frameInterval < 1 {
		frameInterval = DefaultFrameInterval
	}

	out := make(map[int]QualityStat)
	err := t.withTable(func(tbl *table.Table) error {
		min, max, err := frameindex.Range(tbl)
		if err != nil {
			return err
		}

		var ref map[float32]struct{}
		for fnum := range frameindex.Sequence(min, max, frameInterval) {
			snap, err := t.GetFrame(fnum)
			if err != nil {
				return err
			}
			if ref == nil {
				ref = snap.Particles()
			}
			conserved := 0
			for _, r := range snap.Rows() {
				if _, ok := ref[r.Particle]; ok {
					conserved++
				}
			}
			out[fnum] = QualityStat{N: snap.Len(), NConserved: conserved}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
