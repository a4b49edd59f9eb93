// Package model defines the core types shared by the trackstore packages.
//
// # Row Type
//
//   - TrackPoint: one observation of one particle in one video frame,
//     six float32 columns (frame, particle, x, y, intensity, rg2)
//
// # Result Type
//
//   - Snapshot: the ordered rows for one frame (or a derived selection),
//     with column access by name and a particle-keyed view
//
// Snapshots are plain value containers; they hold no reference to the file
// they were read from.
package model
