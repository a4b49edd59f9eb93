// Package table implements the single-file storage engine for track tables.
//
// A track table is a flat, append-only sequence of fixed-size rows (see
// model.TrackPoint), physically sorted ascending by frame number. On disk the
// rows are grouped into blocks, each optionally block-compressed with LZ4 or
// zstd, followed by a block directory and an optional index section holding
// roaring-bitmap secondary indices on the frame and particle columns.
//
// Layout:
//
//	[64-byte header][block]...[block][block directory][index section]
//
// The header is rewritten on close, so a file whose producer died mid-write
// has a zero row count and fails to open; a file closed without indices is
// fully readable and can be repaired in place with Repair.
//
// Tables are written once and read many times. A Table is not safe for
// concurrent use.
package table
