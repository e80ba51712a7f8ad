package codec

import (
	"encoding/binary"
	"fmt"
)

// CompressionAlgorithm is the wire identifier from the negotiated
// SMB2_COMPRESSION_CAPABILITIES context, spec.md §4.4.
type CompressionAlgorithm uint16

const (
	CompressionNone        CompressionAlgorithm = 0x0000
	CompressionLZ77        CompressionAlgorithm = 0x0001
	CompressionLZ77Huffman CompressionAlgorithm = 0x0002
	CompressionPatternV1   CompressionAlgorithm = 0x0003
)

// This client never offers LZ77/LZ77+Huffman in its negotiate context (see
// DESIGN.md open question 2); the identifiers are kept so a chained
// response naming them fails with a clear decompression error rather than
// an unrecognized value.

const unchainedHeaderSize = 16

// CompressedUnchained is the simple (non-chained) compressed envelope:
// original size (4), compression algorithm (2), 2 reserved/flags, offset
// to the compressed payload (4), then [uncompressed prefix][compressed data].
type CompressedUnchained struct {
	OriginalSize uint32
	Algorithm    CompressionAlgorithm
	Offset       uint32
	Payload      []byte // bytes from Offset onward, compressed
	Prefix       []byte // bytes before Offset, left uncompressed
}

func (c *CompressedUnchained) Encode() []byte {
	buf := make([]byte, unchainedHeaderSize+len(c.Prefix)+len(c.Payload))
	copy(buf[0:4], magicCompressed[:])
	binary.LittleEndian.PutUint32(buf[4:8], c.OriginalSize)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(c.Algorithm))
	binary.LittleEndian.PutUint16(buf[10:12], 0) // reserved
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(c.Prefix)))
	copy(buf[16:16+len(c.Prefix)], c.Prefix)
	copy(buf[16+len(c.Prefix):], c.Payload)
	return buf
}

func DecodeCompressedUnchained(buf []byte) (*CompressedUnchained, error) {
	if len(buf) < unchainedHeaderSize {
		return nil, fmt.Errorf("codec: short compressed envelope (%d bytes)", len(buf))
	}
	c := &CompressedUnchained{}
	c.OriginalSize = binary.LittleEndian.Uint32(buf[4:8])
	c.Algorithm = CompressionAlgorithm(binary.LittleEndian.Uint16(buf[8:10]))
	off := binary.LittleEndian.Uint32(buf[12:16])
	rest := buf[16:]
	if int(off) > len(rest) {
		return nil, fmt.Errorf("codec: compressed offset out of range")
	}
	c.Prefix = append([]byte{}, rest[:off]...)
	c.Payload = append([]byte{}, rest[off:]...)
	return c, nil
}

// Decompress expands the payload per the negotiated algorithm and returns
// Prefix||plaintext, reconstituting the original OriginalSize bytes.
//
// maxSize caps the claimed OriginalSize (and, for Pattern_V1, the claimed
// run count) checked before any allocation sized off peer-supplied data;
// a maxSize of 0 disables the cap. This rejects a hostile or buggy peer's
// oversized count before it ever reaches make([]byte, count).
func (c *CompressedUnchained) Decompress(maxSize uint32) ([]byte, error) {
	if maxSize > 0 && c.OriginalSize > maxSize {
		return nil, fmt.Errorf("codec: claimed original_size %d exceeds cap %d", c.OriginalSize, maxSize)
	}
	var plain []byte
	switch c.Algorithm {
	case CompressionNone:
		plain = c.Payload
	case CompressionPatternV1:
		p, err := decodePatternV1(c.Payload, maxSize)
		if err != nil {
			return nil, err
		}
		plain = p
	default:
		return nil, fmt.Errorf("codec: unsupported compression algorithm 0x%04x", c.Algorithm)
	}
	out := append(append([]byte{}, c.Prefix...), plain...)
	if uint32(len(out)) != c.OriginalSize {
		return nil, fmt.Errorf("codec: decompressed size mismatch: got %d want %d", len(out), c.OriginalSize)
	}
	return out, nil
}

// patternV1Header is the 8-byte run-length payload: 1-byte pattern, 3
// reserved, 4-byte repeat count (MS-SMB2 2.2.42.2.1).
const patternV1HeaderSize = 8

func encodePatternV1(pattern byte, count uint32) []byte {
	buf := make([]byte, patternV1HeaderSize)
	buf[0] = pattern
	binary.LittleEndian.PutUint32(buf[4:8], count)
	return buf
}

func decodePatternV1(buf []byte, maxSize uint32) ([]byte, error) {
	if len(buf) != patternV1HeaderSize {
		return nil, fmt.Errorf("codec: pattern_v1 payload must be %d bytes, got %d", patternV1HeaderSize, len(buf))
	}
	pattern := buf[0]
	count := binary.LittleEndian.Uint32(buf[4:8])
	if maxSize > 0 && count > maxSize {
		return nil, fmt.Errorf("codec: pattern_v1 count %d exceeds cap %d", count, maxSize)
	}
	out := make([]byte, count)
	for i := range out {
		out[i] = pattern
	}
	return out, nil
}

// tryEncodePatternV1 compresses data with Pattern_V1 only when it is a
// single repeated byte run (the only shape Pattern_V1 can represent); the
// caller falls back to CompressionNone otherwise.
func tryEncodePatternV1(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	first := data[0]
	for _, b := range data[1:] {
		if b != first {
			return nil, false
		}
	}
	return encodePatternV1(first, uint32(len(data))), true
}

// CompressIfWorthwhile produces a Pattern_V1 CompressedUnchained envelope
// when data is at least threshold bytes long and is a single repeated byte
// run, or reports ok=false to signal the caller should send the message
// uncompressed.
func CompressIfWorthwhile(data []byte, threshold int) (env *CompressedUnchained, ok bool) {
	if len(data) < threshold {
		return nil, false
	}
	if payload, matched := tryEncodePatternV1(data); matched {
		return &CompressedUnchained{
			OriginalSize: uint32(len(data)),
			Algorithm:    CompressionPatternV1,
			Payload:      payload,
		}, true
	}
	return nil, false
}
