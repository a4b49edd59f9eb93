// Package trackstore provides read/write access to particle-tracking data
// stored as a single large binary table, one row per particle per video
// frame, sorted by frame number.
//
// # Reading
//
// Each read method opens the file and closes it again, so no stale handle
// lingers in long-running sessions:
//
//	bt := trackstore.NewTracks("output/bigtracks.trk")
//	frame5, _ := bt.GetFrame(5) // opens and closes the file
//	min, max, _ := bt.FrameRange()  // opens it again
//
// When doing many operations, bracket them in one explicit session so the
// file is opened once:
//
//	err := bt.With(func(bt *trackstore.Tracks) error {
//	    frame5, err := bt.GetFrame(5)
//	    ...
//	    return err
//	})
//
// Entering a session while one is already open fails with ErrAlreadyOpen.
//
// # Writing
//
// A Writer appends frame-sorted batches and builds the frame and particle
// indices when finalized:
//
//	w, _ := trackstore.NewWriter("out.trk", func(o *trackstore.WriterOptions) {
//	    o.ExpectedRows = 2_000_000
//	})
//	_ = w.Append(rows)
//	_ = w.Finalize()
//
// If a producer dies before finalizing, RepairIndices builds the indices for
// the already-written rows in place.
//
// # Derived operations
//
// Interpolate synthesizes particle positions at fractional frame numbers by
// linearly blending the two bracketing frames, matched by particle identity.
// ComputeQuality samples frames at a stride and reports particle-count
// retention relative to the first sampled frame.
package trackstore
