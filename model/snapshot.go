package model

import "fmt"

// Snapshot is an ordered collection of TrackPoint rows, typically all rows of
// one frame. The zero value is an empty snapshot.
//
// Row order carries no meaning beyond "ordinal positions starting at 0".
type Snapshot struct {
	rows []TrackPoint
}

// NewSnapshot creates a snapshot over rows. The slice is taken over, not
// copied.
func NewSnapshot(rows []TrackPoint) Snapshot {
	return Snapshot{rows: rows}
}

// Len returns the number of rows.
func (s Snapshot) Len() int { return len(s.rows) }

// Empty reports whether the snapshot has no rows.
func (s Snapshot) Empty() bool { return len(s.rows) == 0 }

// Row returns the row at ordinal position i.
func (s Snapshot) Row(i int) TrackPoint { return s.rows[i] }

// Rows returns the underlying row slice. Callers must not mutate it if the
// snapshot is shared.
func (s Snapshot) Rows() []TrackPoint { return s.rows }

// Column returns the named column as a slice, one value per row.
func (s Snapshot) Column(name string) ([]float32, error) {
	if _, ok := (TrackPoint{}).column(name); !ok {
		return nil, fmt.Errorf("snapshot: unknown column %q", name)
	}
	out := make([]float32, len(s.rows))
	for i, r := range s.rows {
		out[i], _ = r.column(name)
	}
	return out, nil
}

// ByParticle returns a map from particle id to row.
//
// Within one frame each particle appears at most once; if the input violates
// that, later rows win.
func (s Snapshot) ByParticle() map[float32]TrackPoint {
	m := make(map[float32]TrackPoint, len(s.rows))
	for _, r := range s.rows {
		m[r.Particle] = r
	}
	return m
}

// Particles returns the set of particle ids present in the snapshot.
func (s Snapshot) Particles() map[float32]struct{} {
	m := make(map[float32]struct{}, len(s.rows))
	for _, r := range s.rows {
		m[r.Particle] = struct{}{}
	}
	return m
}
