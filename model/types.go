package model

import "fmt"

// Column names of the fixed track-table schema, in physical order.
const (
	ColFrame     = "frame"
	ColParticle  = "particle"
	ColX         = "x"
	ColY         = "y"
	ColIntensity = "intensity"
	ColRG2       = "rg2"
)

// Columns lists the schema columns in on-disk order.
var Columns = []string{ColFrame, ColParticle, ColX, ColY, ColIntensity, ColRG2}

// RowSize is the on-disk size of one TrackPoint in bytes (six float32 columns).
const RowSize = 24

// TrackPoint is one row of a track table: a single particle observed in a
// single video frame.
//
// Frame is an integer-valued float and is non-decreasing across the physical
// row order of a table. Particle is a numeric identity that is stable across
// frames for the same physical object, but need not be contiguous or start
// at zero.
type TrackPoint struct {
	Frame     float32
	Particle  float32
	X         float32
	Y         float32
	Intensity float32
	RG2       float32
}

// String returns a compact representation for debugging.
func (p TrackPoint) String() string {
	return fmt.Sprintf("TrackPoint(frame=%g particle=%g x=%g y=%g)", p.Frame, p.Particle, p.X, p.Y)
}

// column returns the named column value.
func (p TrackPoint) column(name string) (float32, bool) {
	switch name {
	case ColFrame:
		return p.Frame, true
	case ColParticle:
		return p.Particle, true
	case ColX:
		return p.X, true
	case ColY:
		return p.Y, true
	case ColIntensity:
		return p.Intensity, true
	case ColRG2:
		return p.RG2, true
	default:
		return 0, false
	}
}
