package table

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// On-disk block format: [UncompressedSize uint32][CompressedSize uint32][payload].
// CompressedSize == 0 means the payload is stored raw.
const blockHeaderSize = 8

// zstd encoder/decoder pools, shared across tables.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) { zstdEncoderPool.Put(enc) }

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) { zstdDecoderPool.Put(dec) }

// encodeBlock frames (and optionally compresses) raw row bytes into an
// on-disk block. Incompressible data is stored raw regardless of codec.
func encodeBlock(codec Codec, raw []byte) ([]byte, error) {
	var compressed []byte

	switch codec {
	case CodecNone:
		// Stored raw below.
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 {
			compressed = buf[:n]
		}
	case CodecZstd:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(raw, nil)
		putZstdEncoder(enc)
	default:
		return nil, fmt.Errorf("unknown codec %d", codec)
	}

	// Fall back to raw storage when compression does not pay off.
	if len(compressed) == 0 || len(compressed) >= len(raw) {
		out := make([]byte, blockHeaderSize+len(raw))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[blockHeaderSize:], raw)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// decodeBlock reverses encodeBlock. data must start at the block header and
// may extend past the block's end.
func decodeBlock(codec Codec, data []byte) ([]byte, error) {
	if len(data) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block truncated", ErrCorruptFile)
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])

	if compressedSize == 0 {
		if uint64(len(data)) < blockHeaderSize+uint64(uncompressedSize) {
			return nil, fmt.Errorf("%w: block payload truncated", ErrCorruptFile)
		}
		return data[blockHeaderSize : blockHeaderSize+uncompressedSize], nil
	}

	if uint64(len(data)) < blockHeaderSize+uint64(compressedSize) {
		return nil, fmt.Errorf("%w: compressed block payload truncated", ErrCorruptFile)
	}
	payload := data[blockHeaderSize : blockHeaderSize+compressedSize]
	out := make([]byte, uncompressedSize)

	switch codec {
	case CodecLZ4:
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptFile, err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptFile)
		}
		return out, nil
	case CodecZstd:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(payload, out[:0])
		putZstdDecoder(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptFile, err)
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptFile)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block in codec-less table", ErrCorruptFile)
	}
}
