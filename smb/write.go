package smb

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Write writes p to r at offset, per MS-SMB2 2.2.21/2.2.22. It may write
// fewer bytes than len(p) if the negotiated max write size requires
// chunking; callers that need the whole buffer written should loop.
func (r *Resource) Write(ctx context.Context, p []byte, offset uint64) (int, error) {
	data := p
	if max := r.tree.session.conn.negResponse.MaxWriteSize(); max > 0 && uint32(len(data)) > max {
		data = data[:max]
	}

	body := make([]byte, 48+len(data))
	binary.LittleEndian.PutUint16(body[0:2], 49)
	binary.LittleEndian.PutUint16(body[2:4], HeaderSize+48)
	binary.LittleEndian.PutUint32(body[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint64(body[8:16], offset)
	copy(body[16:32], r.id[:])
	copy(body[48:], data)

	_, respBody, err := r.tree.session.roundtripTree(ctx, r.tree, CommandWrite, body, "write")
	if err != nil {
		return 0, err
	}
	if len(respBody) < 8 {
		return 0, fmt.Errorf("%w: short write response", ErrUnexpectedContent)
	}
	return int(binary.LittleEndian.Uint32(respBody[4:8])), nil
}
