package smb

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeWriteResponseBody(n uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[4:8], n)
	return buf
}

func TestResourceWriteHappyPath(t *testing.T) {
	pt, res := newTestResource(t)
	payload := []byte("write this")

	go func() {
		req := <-pt.sent
		reqHdr, err := DecodeHeader(req)
		require.NoError(t, err)
		assert.Equal(t, CommandWrite, reqHdr.Command)
		body := req[HeaderSize:]
		assert.Equal(t, uint32(len(payload)), binary.LittleEndian.Uint32(body[4:8]))
		assert.Equal(t, uint64(200), binary.LittleEndian.Uint64(body[8:16]))
		assert.True(t, bytes.Equal(payload, body[48:48+len(payload)]))

		respHdr := NewHeader(CommandWrite, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeWriteResponseBody(uint32(len(payload)))...)
	}()

	n, err := res.Write(context.Background(), payload, 200)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
}

func TestResourceWriteClampsToMaxWriteSize(t *testing.T) {
	pt, res := newTestResource(t)
	res.tree.session.conn.negResponse.maxWriteSize = 4
	payload := []byte("much longer than four bytes")

	go func() {
		req := <-pt.sent
		body := req[HeaderSize:]
		assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(body[4:8]))
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandWrite, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeWriteResponseBody(4)...)
	}()

	n, err := res.Write(context.Background(), payload, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestResourceWriteShortResponse(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandWrite, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), make([]byte, 2)...)
	}()

	_, err := res.Write(context.Background(), []byte("x"), 0)
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}
