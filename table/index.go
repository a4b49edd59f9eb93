package table

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/trackstore/model"
)

// columnIndex maps a column value (as float32 bit pattern) to the set of row
// positions holding that value.
type columnIndex = map[uint32]*roaring.Bitmap

// indexMagic opens the on-disk index section (ASCII: "TIDX").
const indexMagic = 0x54494458

// BuildIndices scans every row and builds the frame and particle secondary
// indices in memory. On a writable table the section is persisted by Close;
// use Repair to persist indices into an already-written file.
func (t *Table) BuildIndices() error {
	if t.f == nil {
		return ErrClosed
	}
	if t.writable {
		if err := t.flushPending(); err != nil {
			return err
		}
	}

	frame := make(columnIndex)
	particle := make(columnIndex)
	var row uint64
	for b := range t.blocks {
		rows, err := t.readBlock(b)
		if err != nil {
			return err
		}
		for _, r := range rows {
			indexAdd(frame, r.Frame, row)
			indexAdd(particle, r.Particle, row)
			row++
		}
	}

	t.frameIdx = frame
	t.particleIdx = particle
	return nil
}

func indexAdd(idx columnIndex, value float32, row uint64) {
	key := math.Float32bits(value)
	bm, ok := idx[key]
	if !ok {
		bm = roaring.New()
		idx[key] = bm
	}
	bm.Add(uint32(row))
}

// Repair builds and persists the frame and particle indices for a table that
// was written but never indexed, e.g. when the producing process died before
// finalizing. The row data is left untouched.
func Repair(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}

	t := &Table{path: path, f: f, cacheBlock: -1}
	if err := t.loadMeta(); err != nil {
		f.Close()
		return err
	}
	if err := t.BuildIndices(); err != nil {
		f.Close()
		return err
	}

	// The index section always trails the block directory; rewriting there
	// covers both the fresh and the rebuild case.
	dirEnd := int64(t.hdr.BlockDirOff) + 4 + 16*int64(len(t.blocks))
	if t.hdr.RowCount == 0 {
		dirEnd = headerSize
	}
	if _, err := f.Seek(dirEnd, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	t.hdr.IndexOff = uint64(dirEnd)
	if err := writeIndexSection(f, t.frameIdx, t.particleIdx); err != nil {
		f.Close()
		return err
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Truncate(pos); err != nil {
		f.Close()
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, &t.hdr); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeIndexSection serializes both column indices.
//
// Section format:
//
//	magic uint32, columnCount uint32
//	per column: nameLen uint16, name, keyCount uint32
//	per key:    key uint32 (float32 bits), byteLen uint32, roaring bytes
func writeIndexSection(w io.Writer, frame, particle columnIndex) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(indexMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(2)); err != nil {
		return err
	}
	for _, col := range []struct {
		name string
		idx  columnIndex
	}{
		{model.ColFrame, frame},
		{model.ColParticle, particle},
	} {
		if err := writeColumnIndex(w, col.name, col.idx); err != nil {
			return err
		}
	}
	return nil
}

func writeColumnIndex(w io.Writer, name string, idx columnIndex) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(name)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(idx))); err != nil {
		return err
	}

	// Deterministic key order keeps identical inputs byte-identical on disk.
	keys := make([]uint32, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		data, err := idx[k].ToBytes()
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, k); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// loadIndexSection reads the index section at hdr.IndexOff.
func (t *Table) loadIndexSection() error {
	if _, err := t.f.Seek(int64(t.hdr.IndexOff), io.SeekStart); err != nil {
		return err
	}
	r := t.f

	var magic, colCount uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("%w: %s: short index section", ErrCorruptFile, t.path)
	}
	if magic != indexMagic {
		return fmt.Errorf("%w: %s: bad index section magic 0x%08x", ErrCorruptFile, t.path, magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &colCount); err != nil {
		return fmt.Errorf("%w: %s: short index section", ErrCorruptFile, t.path)
	}

	for range colCount {
		name, idx, err := t.readColumnIndex(r)
		if err != nil {
			return err
		}
		switch name {
		case model.ColFrame:
			t.frameIdx = idx
		case model.ColParticle:
			t.particleIdx = idx
		default:
			// Unknown column index from a newer writer: ignore.
		}
	}
	return nil
}

func (t *Table) readColumnIndex(r io.Reader) (string, columnIndex, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return "", nil, fmt.Errorf("%w: %s: short column index", ErrCorruptFile, t.path)
	}
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return "", nil, fmt.Errorf("%w: %s: short column index", ErrCorruptFile, t.path)
	}

	var keyCount uint32
	if err := binary.Read(r, binary.LittleEndian, &keyCount); err != nil {
		return "", nil, fmt.Errorf("%w: %s: short column index", ErrCorruptFile, t.path)
	}

	idx := make(columnIndex, keyCount)
	for range keyCount {
		var key, byteLen uint32
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return "", nil, fmt.Errorf("%w: %s: short column index", ErrCorruptFile, t.path)
		}
		if err := binary.Read(r, binary.LittleEndian, &byteLen); err != nil {
			return "", nil, fmt.Errorf("%w: %s: short column index", ErrCorruptFile, t.path)
		}
		buf := make([]byte, byteLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", nil, fmt.Errorf("%w: %s: short column index", ErrCorruptFile, t.path)
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(buf); err != nil {
			return "", nil, fmt.Errorf("%w: %s: bad bitmap: %v", ErrCorruptFile, t.path, err)
		}
		idx[key] = bm
	}
	return string(nameBuf), idx, nil
}
