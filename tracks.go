package trackstore

import (
	"iter"

	"github.com/hupe1980/trackstore/frameindex"
	"github.com/hupe1980/trackstore/model"
	"github.com/hupe1980/trackstore/table"
)

// Tracks reads a track-table file.
//
// Construction does not open the file. Each read method opens and closes it
// on its own, unless an explicit session (Open/Close or With) is active, in
// which case the session's handle is reused.
//
// Tracks is not safe for concurrent use.
type Tracks struct {
	path   string
	logger *Logger
	tbl    *table.Table // non-nil while a session is open
}

// NewTracks creates a reader for the table at path. The file is not opened.
func NewTracks(path string, optFns ...func(o *Options)) *Tracks {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	return &Tracks{
		path:   path,
		logger: opts.Logger.WithPath(path),
	}
}

// Path returns the tracks file path.
func (t *Tracks) Path() string { return t.path }

// Open enters an explicit session: the file stays open until Close so that
// consecutive operations reuse one handle. Opening while a session is
// already open fails with ErrAlreadyOpen.
func (t *Tracks) Open() error {
	if t.tbl != nil {
		return ErrAlreadyOpen
	}
	tbl, err := table.Open(t.path)
	if err != nil {
		return translateOpenError(t.path, err)
	}
	t.tbl = tbl
	t.logger.Debug("session opened")
	return nil
}

// Close exits the session and releases the file handle. It is idempotent.
func (t *Tracks) Close() error {
	if t.tbl == nil {
		return nil
	}
	err := t.tbl.Close()
	t.tbl = nil
	t.logger.Debug("session closed")
	return err
}

// With runs fn inside a session, guaranteeing the file is closed on every
// exit path. Like Open, it fails with ErrAlreadyOpen when called while a
// session is active.
func (t *Tracks) With(fn func(t *Tracks) error) error {
	if err := t.Open(); err != nil {
		return err
	}
	defer t.Close()
	return fn(t)
}

// withTable runs fn against the open table, opening the file just for this
// call when no session is active.
func (t *Tracks) withTable(fn func(tbl *table.Table) error) error {
	if t.tbl != nil {
		return fn(t.tbl)
	}
	if err := t.Open(); err != nil {
		return err
	}
	defer t.Close()
	return fn(t.tbl)
}

// GetFrame returns all rows with the given frame number. A frame with no
// rows yields an empty snapshot, not an error; use Frame when absence must
// fail.
func (t *Tracks) GetFrame(fnum int) (model.Snapshot, error) {
	var snap model.Snapshot
	err := t.withTable(func(tbl *table.Table) error {
		rows, err := tbl.ReadWhere(model.ColFrame, float32(fnum))
		if err != nil {
			return err
		}
		snap = model.NewSnapshot(rows)
		return nil
	})
	return snap, err
}

// Frame is GetFrame with absence turned into *ErrFrameNotFound.
func (t *Tracks) Frame(fnum int) (model.Snapshot, error) {
	snap, err := t.GetFrame(fnum)
	if err != nil {
		return model.Snapshot{}, err
	}
	if snap.Empty() {
		return model.Snapshot{}, &ErrFrameNotFound{Frame: fnum}
	}
	return snap, nil
}

// GetAll returns the entire contents of the table.
func (t *Tracks) GetAll() (model.Snapshot, error) {
	var snap model.Snapshot
	err := t.withTable(func(tbl *table.Table) error {
		rows, err := tbl.ReadAll()
		if err != nil {
			return err
		}
		snap = model.NewSnapshot(rows)
		return nil
	})
	return snap, err
}

// FrameRange returns the first and last frame numbers in the table.
func (t *Tracks) FrameRange() (min, max int, err error) {
	err = t.withTable(func(tbl *table.Table) error {
		min, max, err = frameindex.Range(tbl)
		return err
	})
	return min, max, err
}

// MaxFrame returns the frame number of the last physical row.
func (t *Tracks) MaxFrame() (int, error) {
	_, max, err := t.FrameRange()
	return max, err
}

// Frames yields every frame number from the first to the last, stepping by
// stride. Contiguity with step 1 is assumed, not validated.
func (t *Tracks) Frames(stride int) (iter.Seq[int], error) {
	min, max, err := t.FrameRange()
	if err != nil {
		return nil, err
	}
	return frameindex.Sequence(min, max, stride), nil
}
