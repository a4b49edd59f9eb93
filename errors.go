package trackstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/trackstore/table"
)

var (
	// ErrAlreadyOpen is returned when opening a session on a Tracks instance
	// whose session is still open. Sessions deliberately do not nest: a
	// nesting counter would make it ambiguous which exit actually closes the
	// file.
	ErrAlreadyOpen = errors.New("tracks file is already open as a session")

	// ErrCorruptFile is returned when the storage engine cannot parse the
	// file or the expected table is absent.
	ErrCorruptFile = errors.New("tracks file appears to be corrupted")
)

// ErrFrameNotFound indicates an indexed frame access that matched no rows.
//
// GetFrame returns an empty snapshot in the same situation; Frame returns
// this error instead, for callers where absence is exceptional.
type ErrFrameNotFound struct {
	Frame int
}

func (e *ErrFrameNotFound) Error() string {
	return fmt.Sprintf("frame %d not found", e.Frame)
}

// ErrOutOfRange indicates an interpolation request outside the available
// frame range.
type ErrOutOfRange struct {
	Frame    float64
	Min, Max int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("frame %g is outside available data [%d, %d]", e.Frame, e.Min, e.Max)
}

// translateOpenError maps storage-engine open failures into the unified
// corruption error. Other errors (missing file, permissions) pass through.
func translateOpenError(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, table.ErrCorruptFile) {
		return fmt.Errorf("%w: %s: %w", ErrCorruptFile, path, err)
	}
	return err
}
