package table

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sort"

	"github.com/hupe1980/trackstore/model"
)

// Table is an open track-table file. Exactly one of read or write mode is
// active for the lifetime of the handle: tables returned by Create accept
// Append until Close, tables returned by Open are read-only.
type Table struct {
	path     string
	f        *os.File
	hdr      fileHeader
	blocks   []blockEntry
	rowStart []uint64 // cumulative first-row number per block
	writable bool

	// Write state.
	pending []model.TrackPoint
	offset  int64 // next write position
	crc     uint32

	// Single-block decode cache for the read path.
	cacheBlock int
	cacheRows  []model.TrackPoint

	// Secondary indices, keyed by math.Float32bits of the column value.
	frameIdx    columnIndex
	particleIdx columnIndex
}

// Create creates a new table file for writing. capacityHint is the expected
// total row count; it sizes internal buffers and is not a limit. codec
// selects block compression for the row data.
func Create(path string, capacityHint int, codec Codec) (*Table, error) {
	if !codec.valid() {
		return nil, fmt.Errorf("create %s: unknown codec %d", path, codec)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	// Reserve the header region; the real header is written on Close so a
	// torn file is detected by its zeroed magic.
	if _, err := f.Write(make([]byte, headerSize)); err != nil {
		f.Close()
		return nil, err
	}

	pendingCap := DefaultRowsPerBlock
	if capacityHint > 0 && capacityHint < pendingCap {
		pendingCap = capacityHint
	}

	return &Table{
		path: path,
		f:    f,
		hdr: fileHeader{
			Magic:        magicNumber,
			Version:      formatVersion,
			Codec:        uint8(codec),
			RowsPerBlock: DefaultRowsPerBlock,
		},
		writable:   true,
		pending:    make([]model.TrackPoint, 0, pendingCap),
		offset:     headerSize,
		cacheBlock: -1,
	}, nil
}

// Open opens an existing table for reading. It validates the header, the
// block directory, and the sorted-by-frame precondition (first vs last row),
// and loads the index section when present. Parse failures are reported as
// ErrCorruptFile.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	t := &Table{path: path, f: f, cacheBlock: -1}
	if err := t.loadMeta(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// loadMeta reads and validates the header, block directory and indices.
func (t *Table) loadMeta() error {
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Read(t.f, binary.LittleEndian, &t.hdr); err != nil {
		return fmt.Errorf("%w: %s: short header", ErrCorruptFile, t.path)
	}
	if t.hdr.Magic != magicNumber {
		return fmt.Errorf("%w: %s: %v (got 0x%08x)", ErrCorruptFile, t.path, errInvalidMagic, t.hdr.Magic)
	}
	if t.hdr.Version != formatVersion {
		return fmt.Errorf("%w: %s: %v (got 0x%08x)", ErrCorruptFile, t.path, errInvalidVersion, t.hdr.Version)
	}
	if !Codec(t.hdr.Codec).valid() {
		return fmt.Errorf("%w: %s: unknown codec %d", ErrCorruptFile, t.path, t.hdr.Codec)
	}
	if t.hdr.RowCount > 0 && t.hdr.RowsPerBlock == 0 {
		return fmt.Errorf("%w: %s: zero rows per block", ErrCorruptFile, t.path)
	}

	if err := t.loadBlockDir(); err != nil {
		return err
	}
	if t.hdr.IndexOff != 0 {
		if err := t.loadIndexSection(); err != nil {
			return err
		}
	}
	return t.checkSorted()
}

func (t *Table) loadBlockDir() error {
	if t.hdr.BlockDirOff < headerSize && t.hdr.RowCount > 0 {
		return fmt.Errorf("%w: %s: bad block directory offset", ErrCorruptFile, t.path)
	}
	if t.hdr.RowCount == 0 {
		return nil
	}

	if _, err := t.f.Seek(int64(t.hdr.BlockDirOff), io.SeekStart); err != nil {
		return err
	}
	var count uint32
	if err := binary.Read(t.f, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: %s: short block directory", ErrCorruptFile, t.path)
	}
	t.blocks = make([]blockEntry, count)
	if err := binary.Read(t.f, binary.LittleEndian, t.blocks); err != nil {
		return fmt.Errorf("%w: %s: short block directory", ErrCorruptFile, t.path)
	}

	t.rowStart = make([]uint64, count+1)
	for i, b := range t.blocks {
		t.rowStart[i+1] = t.rowStart[i] + uint64(b.Rows)
	}
	if t.rowStart[count] != t.hdr.RowCount {
		return fmt.Errorf("%w: %s: directory row count %d != header row count %d",
			ErrCorruptFile, t.path, t.rowStart[count], t.hdr.RowCount)
	}
	return nil
}

// checkSorted validates the sorted-by-frame precondition by comparing the
// frame numbers of the first and last physical rows. A full sort check would
// defeat open being cheap; the endpoints catch gross violations.
func (t *Table) checkSorted() error {
	if t.hdr.RowCount == 0 {
		return nil
	}
	first, err := t.RowAt(0)
	if err != nil {
		return err
	}
	last, err := t.RowAt(t.hdr.RowCount - 1)
	if err != nil {
		return err
	}
	if first.Frame > last.Frame {
		return fmt.Errorf("%w: %s: rows not sorted by frame (first=%g last=%g)",
			ErrCorruptFile, t.path, first.Frame, last.Frame)
	}
	return nil
}

// Path returns the file path backing the table.
func (t *Table) Path() string { return t.path }

// Rows returns the total row count.
func (t *Table) Rows() uint64 { return t.hdr.RowCount + uint64(len(t.pending)) }

// Compression returns the block codec recorded in the header.
func (t *Table) Compression() Codec { return Codec(t.hdr.Codec) }

// HasIndices reports whether frame and particle indices are loaded.
func (t *Table) HasIndices() bool { return t.frameIdx != nil && t.particleIdx != nil }

// Append appends a batch of rows. Rows must arrive in frame-sorted order;
// that precondition belongs to the producing tracker and is only spot-checked
// at open time.
func (t *Table) Append(rows []model.TrackPoint) error {
	if t.f == nil {
		return ErrClosed
	}
	if !t.writable {
		return ErrReadOnly
	}
	for len(rows) > 0 {
		n := int(t.hdr.RowsPerBlock) - len(t.pending)
		if n > len(rows) {
			n = len(rows)
		}
		t.pending = append(t.pending, rows[:n]...)
		rows = rows[n:]
		if len(t.pending) == int(t.hdr.RowsPerBlock) {
			if err := t.flushPending(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) flushPending() error {
	if len(t.pending) == 0 {
		return nil
	}
	raw := encodeRows(t.pending)
	blk, err := encodeBlock(Codec(t.hdr.Codec), raw)
	if err != nil {
		return err
	}
	if _, err := t.f.WriteAt(blk, t.offset); err != nil {
		return err
	}
	t.blocks = append(t.blocks, blockEntry{Offset: uint64(t.offset), Rows: uint32(len(t.pending))})
	t.hdr.RowCount += uint64(len(t.pending))
	t.crc = crc32.Update(t.crc, crc32.IEEETable, blk)
	t.offset += int64(len(blk))
	t.pending = t.pending[:0]
	return nil
}

// RowAt returns the row at physical position i.
func (t *Table) RowAt(i uint64) (model.TrackPoint, error) {
	rows, first, err := t.blockFor(i)
	if err != nil {
		return model.TrackPoint{}, err
	}
	return rows[i-first], nil
}

// blockFor returns the decoded rows of the block containing row i and the
// absolute row number of the block's first row.
func (t *Table) blockFor(i uint64) ([]model.TrackPoint, uint64, error) {
	if t.f == nil {
		return nil, 0, ErrClosed
	}
	if i >= t.hdr.RowCount {
		return nil, 0, fmt.Errorf("row %d out of range (rows=%d)", i, t.hdr.RowCount)
	}

	b := sort.Search(len(t.blocks), func(n int) bool { return t.rowStart[n+1] > i }) // first block ending past i
	if b == t.cacheBlock {
		return t.cacheRows, t.rowStart[b], nil
	}

	rows, err := t.readBlock(b)
	if err != nil {
		return nil, 0, err
	}
	t.cacheBlock = b
	t.cacheRows = rows
	return rows, t.rowStart[b], nil
}

func (t *Table) readBlock(b int) ([]model.TrackPoint, error) {
	entry := t.blocks[b]
	// The block directory does not exist yet while writing; the write cursor
	// bounds the last block instead.
	end := t.hdr.BlockDirOff
	if t.writable {
		end = uint64(t.offset)
	}
	if b+1 < len(t.blocks) {
		end = t.blocks[b+1].Offset
	}
	if end <= entry.Offset {
		return nil, fmt.Errorf("%w: %s: bad block bounds", ErrCorruptFile, t.path)
	}

	buf := make([]byte, end-entry.Offset)
	if _, err := t.f.ReadAt(buf, int64(entry.Offset)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptFile, t.path, err)
	}
	raw, err := decodeBlock(Codec(t.hdr.Codec), buf)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptFile, t.path, err)
	}
	if len(rows) != int(entry.Rows) {
		return nil, fmt.Errorf("%w: %s: block %d has %d rows, directory says %d",
			ErrCorruptFile, t.path, b, len(rows), entry.Rows)
	}
	return rows, nil
}

// ReadAll returns every row in physical order.
func (t *Table) ReadAll() ([]model.TrackPoint, error) {
	return t.ReadRange(0, t.hdr.RowCount)
}

// ReadRange returns rows in the half-open physical range [start, end).
func (t *Table) ReadRange(start, end uint64) ([]model.TrackPoint, error) {
	if t.f == nil {
		return nil, ErrClosed
	}
	if end > t.hdr.RowCount {
		end = t.hdr.RowCount
	}
	if start >= end {
		return nil, nil
	}

	out := make([]model.TrackPoint, 0, end-start)
	for i := start; i < end; {
		rows, first, err := t.blockFor(i)
		if err != nil {
			return nil, err
		}
		hi := first + uint64(len(rows))
		if hi > end {
			hi = end
		}
		out = append(out, rows[i-first:hi-first]...)
		i = hi
	}
	return out, nil
}

// FrameSpan returns the half-open physical row range holding frame fnum.
// With a loaded frame index this is a single bitmap lookup; otherwise it is a
// binary search over the sorted frame column. An absent frame yields an empty
// span, not an error.
func (t *Table) FrameSpan(fnum float32) (start, end uint64, err error) {
	if t.f == nil {
		return 0, 0, ErrClosed
	}
	if t.frameIdx != nil {
		bm, ok := t.frameIdx[math.Float32bits(fnum)]
		if !ok {
			return 0, 0, nil
		}
		// Same-frame rows are physically contiguous, so min/max bound the span.
		return uint64(bm.Minimum()), uint64(bm.Maximum()) + 1, nil
	}

	n := t.hdr.RowCount
	lo, err := t.searchFrame(n, func(f float32) bool { return f >= fnum })
	if err != nil {
		return 0, 0, err
	}
	hi, err := t.searchFrame(n, func(f float32) bool { return f > fnum })
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// searchFrame returns the smallest row number whose frame satisfies pred,
// or n if none does. pred must be monotone over the sorted frame column.
func (t *Table) searchFrame(n uint64, pred func(float32) bool) (uint64, error) {
	lo, hi := uint64(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		row, err := t.RowAt(mid)
		if err != nil {
			return 0, err
		}
		if pred(row.Frame) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// ReadWhere returns all rows whose column equals value. The frame column uses
// the sort order (or index), the particle column uses its index when loaded,
// anything else falls back to a full scan.
func (t *Table) ReadWhere(column string, value float32) ([]model.TrackPoint, error) {
	if t.f == nil {
		return nil, ErrClosed
	}

	switch {
	case column == model.ColFrame:
		start, end, err := t.FrameSpan(value)
		if err != nil {
			return nil, err
		}
		return t.ReadRange(start, end)

	case column == model.ColParticle && t.particleIdx != nil:
		bm, ok := t.particleIdx[math.Float32bits(value)]
		if !ok {
			return nil, nil
		}
		out := make([]model.TrackPoint, 0, bm.GetCardinality())
		it := bm.Iterator()
		for it.HasNext() {
			row, err := t.RowAt(uint64(it.Next()))
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, nil

	default:
		all, err := t.ReadAll()
		if err != nil {
			return nil, err
		}
		var out []model.TrackPoint
		for _, r := range all {
			if rowColumn(r, column) == value {
				out = append(out, r)
			}
		}
		return out, nil
	}
}

// Verify recomputes the CRC32 of the block region and compares it against the
// header. Tables written before checksumming (checksum 0) pass trivially.
func (t *Table) Verify() error {
	if t.f == nil {
		return ErrClosed
	}
	if t.hdr.Checksum == 0 || t.hdr.RowCount == 0 {
		return nil
	}
	if _, err := t.f.Seek(headerSize, io.SeekStart); err != nil {
		return err
	}
	h := crc32.NewIEEE()
	if _, err := io.CopyN(h, t.f, int64(t.hdr.BlockDirOff)-headerSize); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptFile, t.path, err)
	}
	if h.Sum32() != t.hdr.Checksum {
		return fmt.Errorf("%w: %s: checksum mismatch", ErrCorruptFile, t.path)
	}
	return nil
}

// Close flushes pending rows, persists the block directory, indices (if
// built) and header on writable tables, then releases the file handle.
// Close is idempotent.
func (t *Table) Close() error {
	if t.f == nil {
		return nil
	}

	var err error
	if t.writable {
		err = t.finishWrite(t.f)
	}
	if closeErr := t.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	t.f = nil
	t.cacheBlock = -1
	t.cacheRows = nil
	return err
}

func (t *Table) finishWrite(f *os.File) error {
	if err := t.flushPending(); err != nil {
		return err
	}

	t.hdr.BlockDirOff = uint64(t.offset)
	t.hdr.Checksum = t.crc
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(t.blocks))); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, t.blocks); err != nil {
		return err
	}

	if t.frameIdx != nil {
		off, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		t.hdr.IndexOff = uint64(off)
		if err := writeIndexSection(f, t.frameIdx, t.particleIdx); err != nil {
			return err
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, &t.hdr); err != nil {
		return err
	}
	return f.Sync()
}

func rowColumn(r model.TrackPoint, column string) float32 {
	switch column {
	case model.ColFrame:
		return r.Frame
	case model.ColParticle:
		return r.Particle
	case model.ColX:
		return r.X
	case model.ColY:
		return r.Y
	case model.ColIntensity:
		return r.Intensity
	case model.ColRG2:
		return r.RG2
	default:
		return float32(math.NaN())
	}
}

// encodeRows serializes rows as packed little-endian float32 columns.
func encodeRows(rows []model.TrackPoint) []byte {
	out := make([]byte, len(rows)*model.RowSize)
	for i, r := range rows {
		off := i * model.RowSize
		binary.LittleEndian.PutUint32(out[off+0:], math.Float32bits(r.Frame))
		binary.LittleEndian.PutUint32(out[off+4:], math.Float32bits(r.Particle))
		binary.LittleEndian.PutUint32(out[off+8:], math.Float32bits(r.X))
		binary.LittleEndian.PutUint32(out[off+12:], math.Float32bits(r.Y))
		binary.LittleEndian.PutUint32(out[off+16:], math.Float32bits(r.Intensity))
		binary.LittleEndian.PutUint32(out[off+20:], math.Float32bits(r.RG2))
	}
	return out
}

func decodeRows(data []byte) ([]model.TrackPoint, error) {
	if len(data)%model.RowSize != 0 {
		return nil, fmt.Errorf("row data length %d is not a multiple of %d", len(data), model.RowSize)
	}
	rows := make([]model.TrackPoint, len(data)/model.RowSize)
	for i := range rows {
		off := i * model.RowSize
		rows[i] = model.TrackPoint{
			Frame:     math.Float32frombits(binary.LittleEndian.Uint32(data[off+0:])),
			Particle:  math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			X:         math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
			Y:         math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:])),
			Intensity: math.Float32frombits(binary.LittleEndian.Uint32(data[off+16:])),
			RG2:       math.Float32frombits(binary.LittleEndian.Uint32(data[off+20:])),
		}
	}
	return rows, nil
}
