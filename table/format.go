package table

import "errors"

const (
	// magicNumber identifies track-table files (ASCII: "PTRK").
	magicNumber = 0x5054524B
	// formatVersion is the current file format version (v1.0).
	formatVersion = 0x00010000

	headerSize = 64

	// DefaultRowsPerBlock is the number of rows grouped into one block.
	DefaultRowsPerBlock = 4096
)

var (
	// ErrCorruptFile indicates a file the engine cannot parse: wrong magic,
	// unsupported version, truncated sections, or a violated sort invariant.
	ErrCorruptFile = errors.New("corrupt track table file")

	// ErrClosed is returned by operations that need an open file handle.
	ErrClosed = errors.New("track table is closed")

	// ErrReadOnly is returned when appending to a table opened for reading.
	ErrReadOnly = errors.New("track table is read-only")

	// ErrEmptyTable is returned by operations that need at least one row.
	ErrEmptyTable = errors.New("track table is empty")

	errInvalidMagic   = errors.New("invalid magic number")
	errInvalidVersion = errors.New("unsupported format version")
)

// Codec selects the block compression algorithm.
type Codec uint8

const (
	// CodecNone stores blocks raw.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast, moderate ratio).
	CodecLZ4 Codec = 1
	// CodecZstd uses zstd block compression (better ratio).
	CodecZstd Codec = 2
)

func (c Codec) valid() bool { return c <= CodecZstd }

// fileHeader is the fixed 64-byte header at the start of every table file.
type fileHeader struct {
	Magic        uint32
	Version      uint32
	Codec        uint8
	_            [3]byte
	RowCount     uint64
	RowsPerBlock uint32
	Checksum     uint32 // CRC32-IEEE of the block region; 0 = not recorded
	BlockDirOff  uint64
	IndexOff     uint64 // 0 = no index section
	_            [4]byte
	Reserved     [16]byte
}

// blockEntry is one block directory record.
type blockEntry struct {
	Offset uint64 // file offset of the block header
	Rows   uint32
	_      uint32
}
