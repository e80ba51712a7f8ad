package smb

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsmb/smb2/smb/info"
)

func encodeQueryDirectoryResponseBody(entries []byte) []byte {
	buf := make([]byte, 8+len(entries))
	binary.LittleEndian.PutUint16(buf[0:2], 9)
	binary.LittleEndian.PutUint16(buf[2:4], HeaderSize+8)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(entries)))
	copy(buf[8:], entries)
	return buf
}

func TestQueryDirectoryHappyPath(t *testing.T) {
	pt, res := newTestResource(t)
	entry := encodeOneFullDirectoryEntryForQueryDirTest(0, "file.txt", info.FileAttributeArchive)

	go func() {
		req := <-pt.sent
		reqHdr, err := DecodeHeader(req)
		require.NoError(t, err)
		assert.Equal(t, CommandQueryDirectory, reqHdr.Command)

		respHdr := NewHeader(CommandQueryDirectory, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeQueryDirectoryResponseBody(entry)...)
	}()

	entries, err := res.QueryDirectory(context.Background(), "*", QueryDirRestartScans)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].FileName)
}

func TestQueryDirectoryNoMoreFilesReturnsNilNil(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandQueryDirectory, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusNoMoreFiles
		pt.recv <- append(respHdr.Encode(), make([]byte, 8)...)
	}()

	entries, err := res.QueryDirectory(context.Background(), "*", 0)
	assert.NoError(t, err)
	assert.Nil(t, entries)
}

func TestQueryDirectoryShortResponse(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandQueryDirectory, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), make([]byte, 4)...)
	}()

	_, err := res.QueryDirectory(context.Background(), "*", 0)
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}

func TestQueryDirectoryDataOutOfRange(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		body := make([]byte, 8)
		binary.LittleEndian.PutUint16(body[2:4], HeaderSize+8)
		binary.LittleEndian.PutUint32(body[4:8], 1000) // claims far more data than present
		respHdr := NewHeader(CommandQueryDirectory, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), body...)
	}()

	_, err := res.QueryDirectory(context.Background(), "*", 0)
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}

func TestEncodeQueryDirectoryRequestEncodesPatternAndFlags(t *testing.T) {
	buf := encodeQueryDirectoryRequest(FileID{1, 2, 3}, "*.txt", QueryDirReopen)
	assert.Equal(t, byte(QueryDirReopen), buf[3])
	var gotID FileID
	copy(gotID[:], buf[8:24])
	assert.Equal(t, FileID{1, 2, 3}, gotID)
}

func encodeOneFullDirectoryEntryForQueryDirTest(next uint32, name string, attrs info.FileAttributes) []byte {
	u16 := utf16leEncode(name)
	buf := make([]byte, 68+len(u16))
	binary.LittleEndian.PutUint32(buf[0:4], next)
	binary.LittleEndian.PutUint32(buf[56:60], uint32(attrs))
	binary.LittleEndian.PutUint32(buf[60:64], uint32(len(u16)))
	copy(buf[68:], u16)
	return buf
}
