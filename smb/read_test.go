package smb

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeReadResponseBody(data []byte) []byte {
	buf := make([]byte, 16+len(data))
	buf[0] = HeaderSize + 16
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(data)))
	copy(buf[16:], data)
	return buf
}

func TestResourceReadHappyPath(t *testing.T) {
	pt, res := newTestResource(t)
	want := []byte("the file contents")

	go func() {
		req := <-pt.sent
		reqHdr, err := DecodeHeader(req)
		require.NoError(t, err)
		assert.Equal(t, CommandRead, reqHdr.Command)
		body := req[HeaderSize:]
		assert.Equal(t, uint64(1024), binary.LittleEndian.Uint64(body[8:16]))

		respHdr := NewHeader(CommandRead, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeReadResponseBody(want)...)
	}()

	buf := make([]byte, 64)
	n, err := res.Read(context.Background(), buf, 1024)
	require.NoError(t, err)
	assert.Equal(t, want, buf[:n])
}

func TestResourceReadReturnsErrEndOfFile(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandRead, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusEndOfFile
		pt.recv <- append(respHdr.Encode(), make([]byte, 16)...)
	}()

	buf := make([]byte, 16)
	_, err := res.Read(context.Background(), buf, 0)
	assert.ErrorIs(t, err, ErrEndOfFile)
}

func TestResourceReadClampsToMaxReadSize(t *testing.T) {
	pt, res := newTestResource(t)
	res.tree.session.conn.negResponse.maxReadSize = 8

	go func() {
		req := <-pt.sent
		body := req[HeaderSize:]
		assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(body[4:8]))
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandRead, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeReadResponseBody([]byte("12345678"))...)
	}()

	buf := make([]byte, 64)
	n, err := res.Read(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestResourceReadShortResponse(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandRead, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), make([]byte, 4)...)
	}()

	_, err := res.Read(context.Background(), make([]byte, 4), 0)
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}
