package smb

import (
	"context"
	"encoding/binary"
	"fmt"
)

// IoctlFlags is MS-SMB2 2.2.31's Flags field; only the fsctl-vs-ioctl
// discriminant the client sets is named.
type IoctlFlags uint32

const IoctlIsFsctl IoctlFlags = 0x00000001

// Ioctl sends an FSCTL/IOCTL control code to r with the given input buffer,
// per MS-SMB2 2.2.31/2.2.32. Used by callers that need a specific control
// code (e.g. FSCTL_SET_SPARSE, FSCTL_PIPE_TRANSCEIVE for named pipes); this
// client exposes the generic passthrough rather than wrapping every control
// code individually, per spec.md §4.10's facade surface.
func (r *Resource) Ioctl(ctx context.Context, ctlCode uint32, input []byte, flags IoctlFlags) ([]byte, error) {
	body := encodeIoctlRequest(r.id, ctlCode, input, flags)
	_, respBody, err := r.tree.session.roundtripTree(ctx, r.tree, CommandIoctl, body, "ioctl")
	if err != nil {
		return nil, err
	}
	return decodeIoctlOutput(respBody)
}

func encodeIoctlRequest(fileID FileID, ctlCode uint32, input []byte, flags IoctlFlags) []byte {
	const fixed = 56
	buf := make([]byte, fixed+len(input))
	binary.LittleEndian.PutUint16(buf[0:2], 57)
	binary.LittleEndian.PutUint32(buf[4:8], ctlCode)
	copy(buf[8:24], fileID[:])
	binary.LittleEndian.PutUint32(buf[24:28], HeaderSize+fixed)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(input)))
	binary.LittleEndian.PutUint32(buf[44:48], 0x00010000) // MaxOutputResponse: 64KiB
	binary.LittleEndian.PutUint32(buf[48:52], uint32(flags))
	copy(buf[fixed:], input)
	return buf
}

func decodeIoctlOutput(body []byte) ([]byte, error) {
	if len(body) < 48 {
		return nil, fmt.Errorf("%w: short ioctl response", ErrUnexpectedContent)
	}
	outOffset := binary.LittleEndian.Uint32(body[32:36])
	outCount := binary.LittleEndian.Uint32(body[36:40])
	if outCount == 0 {
		return nil, nil
	}
	start := int(outOffset) - HeaderSize
	if start < 0 || start+int(outCount) > len(body) {
		return nil, fmt.Errorf("%w: ioctl response output out of range", ErrUnexpectedContent)
	}
	return body[start : start+int(outCount)], nil
}
