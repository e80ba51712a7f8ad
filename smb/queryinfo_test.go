package smb

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsmb/smb2/smb/info"
)

func encodeQueryInfoResponseBody(payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], 9)
	binary.LittleEndian.PutUint16(buf[2:4], HeaderSize+8)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func TestQueryBasicInformationHappyPath(t *testing.T) {
	pt, res := newTestResource(t)
	want := info.FileBasicInformation{
		CreationTime:   info.FileTime(1),
		FileAttributes: info.FileAttributeReadonly,
	}

	go func() {
		req := <-pt.sent
		reqHdr, err := DecodeHeader(req)
		require.NoError(t, err)
		assert.Equal(t, CommandQueryInfo, reqHdr.Command)
		body := req[HeaderSize:]
		assert.Equal(t, byte(info.InfoTypeFile), body[2])
		assert.Equal(t, byte(info.FileClassBasic), body[3])

		respHdr := NewHeader(CommandQueryInfo, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeQueryInfoResponseBody(want.Encode())...)
	}()

	got, err := res.QueryBasicInformation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQueryStandardInformationHappyPath(t *testing.T) {
	pt, res := newTestResource(t)
	payload := make([]byte, 24)
	payload[21] = 1 // Directory

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		body := req[HeaderSize:]
		assert.Equal(t, byte(info.FileClassStandard), body[3])

		respHdr := NewHeader(CommandQueryInfo, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeQueryInfoResponseBody(payload)...)
	}()

	got, err := res.QueryStandardInformation(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Directory)
}

func TestQueryInfoShortResponse(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandQueryInfo, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), make([]byte, 4)...)
	}()

	_, err := res.QueryBasicInformation(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}

func TestEncodeQueryInfoRequestLayout(t *testing.T) {
	buf := encodeQueryInfoRequest(FileID{1, 2}, info.InfoTypeFile, info.FileClassBasic, 40)
	assert.Equal(t, byte(info.InfoTypeFile), buf[2])
	assert.Equal(t, byte(info.FileClassBasic), buf[3])
	assert.Equal(t, uint32(40), binary.LittleEndian.Uint32(buf[4:8]))
}
