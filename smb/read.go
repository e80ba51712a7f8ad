package smb

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Read reads up to len(p) bytes from r starting at offset, per MS-SMB2
// 2.2.19/2.2.20. It returns the number of bytes actually read; fewer than
// len(p) bytes with a nil error means the server had less data available,
// not end-of-file (see ErrEndOfFile below for that case).
func (r *Resource) Read(ctx context.Context, p []byte, offset uint64) (int, error) {
	maxLen := uint32(len(p))
	if max := r.tree.session.conn.negResponse.MaxReadSize(); max > 0 && maxLen > max {
		maxLen = max
	}

	body := make([]byte, 49)
	binary.LittleEndian.PutUint16(body[0:2], 49)
	binary.LittleEndian.PutUint32(body[4:8], maxLen)
	binary.LittleEndian.PutUint64(body[8:16], offset)
	copy(body[16:32], r.id[:])

	_, respBody, err := r.tree.session.roundtripTree(ctx, r.tree, CommandRead, body, "read")
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.Status == StatusEndOfFile {
			return 0, ErrEndOfFile
		}
		return 0, err
	}
	if len(respBody) < 16 {
		return 0, fmt.Errorf("%w: short read response", ErrUnexpectedContent)
	}
	dataOffset := respBody[0]
	dataLength := binary.LittleEndian.Uint32(respBody[4:8])

	start := int(dataOffset) - HeaderSize
	if start < 0 || start+int(dataLength) > len(respBody) {
		return 0, fmt.Errorf("%w: read response data out of range", ErrUnexpectedContent)
	}
	n := copy(p, respBody[start:start+int(dataLength)])
	return n, nil
}

// ErrEndOfFile reports that a Read reached the end of the resource.
var ErrEndOfFile = fmt.Errorf("%w: end of file", ErrUnexpectedStatus)
