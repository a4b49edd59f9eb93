package trackstore

import (
	"errors"

	"github.com/hupe1980/trackstore/model"
	"github.com/hupe1980/trackstore/table"
)

// Writer writes a new track table with the fixed six-column schema.
//
// Rows must be appended in frame-sorted order (the tracker's natural output
// order). Call Finalize to build the frame and particle indices and close
// the file; a table closed without Finalize is readable but unindexed, and
// can be indexed later with RepairIndices.
type Writer struct {
	tbl    *table.Table
	logger *Logger
}

// NewWriter creates a new table file at path for writing.
func NewWriter(path string, optFns ...func(o *WriterOptions)) (*Writer, error) {
	opts := DefaultWriterOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	tbl, err := table.Create(path, opts.ExpectedRows, opts.Compression)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger.WithPath(path)
	logger.Debug("writer created", "expected_rows", opts.ExpectedRows, "codec", uint8(opts.Compression))
	return &Writer{tbl: tbl, logger: logger}, nil
}

// NewCompressedWriter is NewWriter with block compression defaulted on.
func NewCompressedWriter(path string, optFns ...func(o *WriterOptions)) (*Writer, error) {
	withCompression := append([]func(o *WriterOptions){WithCompression(table.CodecZstd)}, optFns...)
	return NewWriter(path, withCompression...)
}

// Append appends a batch of rows to the file.
func (w *Writer) Append(rows []model.TrackPoint) error {
	if w.tbl == nil {
		return errors.New("writer is closed")
	}
	err := w.tbl.Append(rows)
	w.logger.LogAppend(len(rows), err)
	return err
}

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() uint64 {
	if w.tbl == nil {
		return 0
	}
	return w.tbl.Rows()
}

// Finalize builds the frame and particle indices and closes the file, so a
// reader opening the result gets efficient lookups.
func (w *Writer) Finalize() error {
	if w.tbl == nil {
		return nil
	}
	tbl := w.tbl
	w.tbl = nil

	rows := tbl.Rows()
	err := tbl.BuildIndices()
	if err != nil {
		tbl.Close()
		w.logger.LogFinalize(rows, err)
		return err
	}
	err = tbl.Close()
	w.logger.LogFinalize(rows, err)
	return err
}

// Close closes the file without building indices. Prefer Finalize; Close
// exists for abnormal shutdown paths. The result can be indexed later with
// RepairIndices. Idempotent.
func (w *Writer) Close() error {
	if w.tbl == nil {
		return nil
	}
	tbl := w.tbl
	w.tbl = nil
	return tbl.Close()
}

// RepairIndices creates the frame and particle indices for the table at
// path. Only needed when the producing process did not finalize, e.g. after
// a crash.
func RepairIndices(path string, optFns ...func(o *Options)) error {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	err := table.Repair(path)
	opts.Logger.LogRepair(path, translateOpenError(path, err))
	return translateOpenError(path, err)
}
