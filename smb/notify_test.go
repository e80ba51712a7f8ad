package smb

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeNotifyEntry(next uint32, action NotifyAction, name string) []byte {
	u16 := utf16leEncode(name)
	buf := make([]byte, 12+len(u16))
	binary.LittleEndian.PutUint32(buf[0:4], next)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(action))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(u16)))
	copy(buf[12:], u16)
	return buf
}

func encodeChangeNotifyResponseBody(entries []byte) []byte {
	buf := make([]byte, 8+len(entries))
	binary.LittleEndian.PutUint16(buf[0:2], 9)
	binary.LittleEndian.PutUint16(buf[2:4], HeaderSize+8)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(entries)))
	copy(buf[8:], entries)
	return buf
}

func TestChangeNotifyHappyPath(t *testing.T) {
	pt, res := newTestResource(t)
	entry := encodeNotifyEntry(0, NotifyActionAdded, "new.txt")

	go func() {
		req := <-pt.sent
		reqHdr, err := DecodeHeader(req)
		require.NoError(t, err)
		assert.Equal(t, CommandChangeNotify, reqHdr.Command)
		body := req[HeaderSize:]
		assert.Equal(t, uint32(NotifyFileName), binary.LittleEndian.Uint32(body[24:28]))

		respHdr := NewHeader(CommandChangeNotify, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeChangeNotifyResponseBody(entry)...)
	}()

	events, err := res.ChangeNotify(context.Background(), NotifyFileName, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, NotifyActionAdded, events[0].Action)
	assert.Equal(t, "new.txt", events[0].FileName)
}

func TestChangeNotifyChainedEntries(t *testing.T) {
	pt, res := newTestResource(t)
	first := encodeNotifyEntry(uint32(len(encodeNotifyEntry(0, NotifyActionModified, "a"))), NotifyActionModified, "a")
	second := encodeNotifyEntry(0, NotifyActionRemoved, "b")
	entries := append(append([]byte{}, first...), second...)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandChangeNotify, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeChangeNotifyResponseBody(entries)...)
	}()

	events, err := res.ChangeNotify(context.Background(), NotifyFileName|NotifyDirName, true)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].FileName)
	assert.Equal(t, "b", events[1].FileName)
}

func TestChangeNotifyZeroLengthReturnsNilNil(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandChangeNotify, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusSuccess
		pt.recv <- append(respHdr.Encode(), encodeChangeNotifyResponseBody(nil)...)
	}()

	events, err := res.ChangeNotify(context.Background(), NotifyFileName, false)
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestDecodeNotifyEventsNameOverrunsBuffer(t *testing.T) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[8:12], 100)
	_, err := decodeNotifyEvents(buf)
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}

func TestDecodeNotifyEventsShortEntry(t *testing.T) {
	_, err := decodeNotifyEvents(make([]byte, 4))
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}
