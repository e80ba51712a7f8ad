package codec

import (
	"encoding/binary"
	"fmt"
)

// headerNextCommandOffset is byte offset 20 in the 64-byte SMB2 header
// (the next_command field), duplicated here rather than importing the smb
// package to avoid a codec<->smb import cycle (smb imports codec).
const headerNextCommandOffset = 20

// next reads a message's next_command field without fully decoding its
// header, used to walk a compound chain.
func next(buf []byte) uint32 {
	if len(buf) < headerNextCommandOffset+4 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[headerNextCommandOffset : headerNextCommandOffset+4])
}

// SplitCompound walks a received byte stream into its individual SMB2
// messages by following each one's next_command offset, per spec.md §4.6.
// Offsets must be 8-byte aligned except for the final message.
func SplitCompound(buf []byte) ([][]byte, error) {
	var out [][]byte
	for {
		off := next(buf)
		if off == 0 {
			out = append(out, buf)
			return out, nil
		}
		if off%8 != 0 {
			return nil, fmt.Errorf("codec: compound next_command offset %d not 8-byte aligned", off)
		}
		if int(off) > len(buf) {
			return nil, fmt.Errorf("codec: compound next_command offset %d exceeds buffer", off)
		}
		out = append(out, buf[:off])
		buf = buf[off:]
	}
}

// JoinCompound concatenates messages into one compound request, patching
// each non-final message's next_command field to point at the next one and
// padding each to an 8-byte boundary as spec.md §4.6 requires.
func JoinCompound(messages [][]byte) []byte {
	padded := make([][]byte, len(messages))
	for i, m := range messages {
		padded[i] = padTo8(m)
	}
	var total int
	for _, m := range padded {
		total += len(m)
	}
	out := make([]byte, 0, total)
	for i, m := range padded {
		if i < len(padded)-1 {
			binary.LittleEndian.PutUint32(m[headerNextCommandOffset:headerNextCommandOffset+4], uint32(len(m)))
		} else {
			binary.LittleEndian.PutUint32(m[headerNextCommandOffset:headerNextCommandOffset+4], 0)
		}
		out = append(out, m...)
	}
	return out
}

func padTo8(buf []byte) []byte {
	rem := len(buf) % 8
	if rem == 0 {
		return buf
	}
	return append(append([]byte{}, buf...), make([]byte, 8-rem)...)
}
