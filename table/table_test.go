package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/trackstore/model"
)

// genRows produces sorted rows: one row per particle per frame.
func genRows(frames, particles int) []model.TrackPoint {
	rows := make([]model.TrackPoint, 0, frames*particles)
	for f := 0; f < frames; f++ {
		for p := 0; p < particles; p++ {
			rows = append(rows, model.TrackPoint{
				Frame:     float32(f),
				Particle:  float32(p),
				X:         float32(f) + float32(p)*0.25,
				Y:         float32(f)*2 + float32(p)*0.5,
				Intensity: float32(100 + p),
				RG2:       float32(p) * 0.125,
			})
		}
	}
	return rows
}

func writeTable(t *testing.T, path string, rows []model.TrackPoint, codec Codec, index bool) {
	t.Helper()
	tbl, err := Create(path, len(rows), codec)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tbl.Append(rows); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if index {
		if err := tbl.BuildIndices(); err != nil {
			t.Fatalf("BuildIndices() error = %v", err)
		}
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestTableRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.testName(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tracks.trk")
			// Enough rows to span multiple blocks.
			rows := genRows(500, 12)
			writeTable(t, path, rows, codec, false)

			tbl, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer tbl.Close()

			if tbl.Rows() != uint64(len(rows)) {
				t.Fatalf("Rows() = %d, want %d", tbl.Rows(), len(rows))
			}
			if tbl.Compression() != codec {
				t.Errorf("Compression() = %d, want %d", tbl.Compression(), codec)
			}

			got, err := tbl.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			for i := range rows {
				if got[i] != rows[i] {
					t.Fatalf("row %d = %v, want %v", i, got[i], rows[i])
				}
			}

			if err := tbl.Verify(); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestTableReadRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	rows := genRows(600, 10) // 6000 rows, >1 block
	writeTable(t, path, rows, CodecNone, false)

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tbl.Close()

	got, err := tbl.ReadRange(4000, 4500)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if len(got) != 500 {
		t.Fatalf("ReadRange() returned %d rows, want 500", len(got))
	}
	if got[0] != rows[4000] || got[499] != rows[4499] {
		t.Error("ReadRange() endpoints mismatch")
	}

	// Degenerate and clamped ranges.
	if got, _ := tbl.ReadRange(10, 10); got != nil {
		t.Error("empty range should yield nil")
	}
	got, err = tbl.ReadRange(5990, 99999)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if len(got) != 10 {
		t.Errorf("clamped range returned %d rows, want 10", len(got))
	}

	row, err := tbl.RowAt(4321)
	if err != nil {
		t.Fatalf("RowAt() error = %v", err)
	}
	if row != rows[4321] {
		t.Errorf("RowAt(4321) = %v, want %v", row, rows[4321])
	}
}

func TestTableFrameSpan(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		name := "binary search"
		if indexed {
			name = "indexed"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tracks.trk")
			rows := genRows(50, 8)
			writeTable(t, path, rows, CodecLZ4, indexed)

			tbl, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer tbl.Close()

			if tbl.HasIndices() != indexed {
				t.Fatalf("HasIndices() = %v, want %v", tbl.HasIndices(), indexed)
			}

			start, end, err := tbl.FrameSpan(17)
			if err != nil {
				t.Fatalf("FrameSpan() error = %v", err)
			}
			if start != 17*8 || end != 18*8 {
				t.Errorf("FrameSpan(17) = [%d, %d), want [136, 144)", start, end)
			}

			start, end, err = tbl.FrameSpan(99)
			if err != nil {
				t.Fatalf("FrameSpan() error = %v", err)
			}
			if start != end {
				t.Errorf("FrameSpan(99) = [%d, %d), want empty", start, end)
			}
		})
	}
}

func TestTableReadWhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	rows := genRows(40, 5)
	writeTable(t, path, rows, CodecZstd, true)

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tbl.Close()

	frame, err := tbl.ReadWhere(model.ColFrame, 12)
	if err != nil {
		t.Fatalf("ReadWhere(frame) error = %v", err)
	}
	if len(frame) != 5 {
		t.Fatalf("ReadWhere(frame=12) returned %d rows, want 5", len(frame))
	}
	for _, r := range frame {
		if r.Frame != 12 {
			t.Errorf("unexpected frame %g", r.Frame)
		}
	}

	particle, err := tbl.ReadWhere(model.ColParticle, 3)
	if err != nil {
		t.Fatalf("ReadWhere(particle) error = %v", err)
	}
	if len(particle) != 40 {
		t.Fatalf("ReadWhere(particle=3) returned %d rows, want 40", len(particle))
	}
	for i, r := range particle {
		if r.Particle != 3 || r.Frame != float32(i) {
			t.Errorf("particle rows out of order at %d: %v", i, r)
		}
	}

	none, err := tbl.ReadWhere(model.ColParticle, 77)
	if err != nil {
		t.Fatalf("ReadWhere() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ReadWhere(particle=77) returned %d rows, want 0", len(none))
	}
}

func TestTableRepair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	rows := genRows(30, 4)
	writeTable(t, path, rows, CodecNone, false) // closed without indices

	if err := Repair(path); err != nil {
		t.Fatalf("Repair() error = %v", err)
	}

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open() after repair error = %v", err)
	}
	defer tbl.Close()

	if !tbl.HasIndices() {
		t.Fatal("expected indices after repair")
	}
	start, end, err := tbl.FrameSpan(7)
	if err != nil {
		t.Fatalf("FrameSpan() error = %v", err)
	}
	if start != 28 || end != 32 {
		t.Errorf("FrameSpan(7) = [%d, %d), want [28, 32)", start, end)
	}

	// Repair is safe to run again.
	if err := Repair(path); err != nil {
		t.Fatalf("second Repair() error = %v", err)
	}
	if _, err := Open(path); err != nil {
		t.Fatalf("Open() after second repair error = %v", err)
	}
}

func TestTableBuildIndicesWhileWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	rows := genRows(3, 1)

	tbl, err := Create(path, len(rows), CodecNone)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tbl.Append(rows); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// Indices are built before Close, so reading back the just-written
	// blocks must work without a block directory on disk.
	if err := tbl.BuildIndices(); err != nil {
		t.Fatalf("BuildIndices() error = %v", err)
	}
	if !tbl.HasIndices() {
		t.Fatal("expected in-memory indices after BuildIndices")
	}
	start, end, err := tbl.FrameSpan(1)
	if err != nil {
		t.Fatalf("FrameSpan() error = %v", err)
	}
	if start != 1 || end != 2 {
		t.Errorf("FrameSpan(1) = [%d, %d), want [1, 2)", start, end)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rd, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rd.Close()
	if !rd.HasIndices() {
		t.Error("expected persisted indices after finalized close")
	}
}

func TestTableBuildIndicesMultiBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	rows := genRows(1000, 10) // 10000 rows, several blocks

	tbl, err := Create(path, len(rows), CodecLZ4)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tbl.Append(rows); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := tbl.BuildIndices(); err != nil {
		t.Fatalf("BuildIndices() error = %v", err)
	}
	// Every block, including the final partial one, must index cleanly.
	start, end, err := tbl.FrameSpan(999)
	if err != nil {
		t.Fatalf("FrameSpan() error = %v", err)
	}
	if start != 9990 || end != 10000 {
		t.Errorf("FrameSpan(999) = [%d, %d), want [9990, 10000)", start, end)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestTableOpenErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "nope.trk"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Open() error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.trk")
		if err := os.WriteFile(path, []byte("not a track table at all, definitely not"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Open(path)
		if !errors.Is(err, ErrCorruptFile) {
			t.Errorf("Open() error = %v, want ErrCorruptFile", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "short.trk")
		if err := os.WriteFile(path, []byte{0x4b, 0x52}, 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Open(path)
		if !errors.Is(err, ErrCorruptFile) {
			t.Errorf("Open() error = %v, want ErrCorruptFile", err)
		}
	})

	t.Run("unsorted", func(t *testing.T) {
		path := filepath.Join(dir, "unsorted.trk")
		rows := []model.TrackPoint{
			{Frame: 9, Particle: 1},
			{Frame: 5, Particle: 1},
			{Frame: 1, Particle: 1},
		}
		writeTable(t, path, rows, CodecNone, false)
		_, err := Open(path)
		if !errors.Is(err, ErrCorruptFile) {
			t.Errorf("Open() error = %v, want ErrCorruptFile", err)
		}
	})
}

func TestTableVerifyDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	writeTable(t, path, genRows(10, 3), CodecNone, false)

	// Flip a byte inside the intensity column of the first row; the sort
	// check at open will not notice, Verify must.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	off := int64(headerSize + blockHeaderSize + 16)
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, off); err != nil {
		t.Fatal(err)
	}
	buf[0] ^= 0xff
	if _, err := f.WriteAt(buf, off); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tbl.Close()

	if err := tbl.Verify(); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("Verify() error = %v, want ErrCorruptFile", err)
	}
}

func TestTableEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.trk")
	writeTable(t, path, nil, CodecNone, false)

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tbl.Close()

	if tbl.Rows() != 0 {
		t.Errorf("Rows() = %d, want 0", tbl.Rows())
	}
	all, err := tbl.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("ReadAll() returned %d rows, want 0", len(all))
	}
	start, end, err := tbl.FrameSpan(0)
	if err != nil {
		t.Fatalf("FrameSpan() error = %v", err)
	}
	if start != end {
		t.Error("FrameSpan() on empty table should be empty")
	}
}

func TestTableLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.trk")
	rows := genRows(5, 2)

	tbl, err := Create(path, 10, CodecNone)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tbl.Append(rows); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Idempotent close, and operations after close fail cleanly.
	if err := tbl.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := tbl.Append(rows); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() after close error = %v, want ErrClosed", err)
	}

	rd, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rd.Close()
	if err := rd.Append(rows); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Append() on reader error = %v, want ErrReadOnly", err)
	}
}

func (c Codec) testName() string {
	switch c {
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}
