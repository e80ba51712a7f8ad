package smb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsmb/smb2/smb/info"
)

func recvSetInfoSuccess(t *testing.T, pt *pipeTransport) []byte {
	t.Helper()
	req := <-pt.sent
	reqHdr, err := DecodeHeader(req)
	require.NoError(t, err)
	assert.Equal(t, CommandSetInfo, reqHdr.Command)

	respHdr := NewHeader(CommandSetInfo, reqHdr.msgID)
	respHdr.Flags |= FlagServerToRedir
	respHdr.Status = StatusSuccess
	pt.recv <- append(respHdr.Encode(), make([]byte, 2)...)
	return req
}

func TestSetBasicInformationHappyPath(t *testing.T) {
	pt, res := newTestResource(t)

	var req []byte
	done := make(chan struct{})
	go func() {
		req = recvSetInfoSuccess(t, pt)
		close(done)
	}()

	err := res.SetBasicInformation(context.Background(), info.FileBasicInformation{FileAttributes: info.FileAttributeHidden})
	require.NoError(t, err)
	<-done
	body := req[HeaderSize:]
	assert.Equal(t, byte(info.InfoTypeFile), body[2])
	assert.Equal(t, byte(info.FileClassBasic), body[3])
}

func TestSetDispositionHappyPath(t *testing.T) {
	pt, res := newTestResource(t)

	var req []byte
	done := make(chan struct{})
	go func() {
		req = recvSetInfoSuccess(t, pt)
		close(done)
	}()

	err := res.SetDisposition(context.Background(), true)
	require.NoError(t, err)
	<-done
	body := req[HeaderSize:]
	assert.Equal(t, byte(info.FileClassDisposition), body[3])
	assert.Equal(t, byte(1), body[32])
}

func TestSetEndOfFileHappyPath(t *testing.T) {
	pt, res := newTestResource(t)

	var req []byte
	done := make(chan struct{})
	go func() {
		req = recvSetInfoSuccess(t, pt)
		close(done)
	}()

	err := res.SetEndOfFile(context.Background(), 4096)
	require.NoError(t, err)
	<-done
	body := req[HeaderSize:]
	assert.Equal(t, byte(info.FileClassEndOfFile), body[3])
}

func TestRenameHappyPath(t *testing.T) {
	pt, res := newTestResource(t)

	var req []byte
	done := make(chan struct{})
	go func() {
		req = recvSetInfoSuccess(t, pt)
		close(done)
	}()

	err := res.Rename(context.Background(), "renamed.txt", true)
	require.NoError(t, err)
	<-done
	body := req[HeaderSize:]
	assert.Equal(t, byte(info.FileClassRename), body[3])
}

func TestSetInfoPropagatesError(t *testing.T) {
	pt, res := newTestResource(t)

	go func() {
		req := <-pt.sent
		reqHdr, _ := DecodeHeader(req)
		respHdr := NewHeader(CommandSetInfo, reqHdr.msgID)
		respHdr.Flags |= FlagServerToRedir
		respHdr.Status = StatusAccessDenied
		pt.recv <- append(respHdr.Encode(), make([]byte, 2)...)
	}()

	err := res.SetEndOfFile(context.Background(), 0)
	assert.Error(t, err)
}

func TestEncodeSetInfoRequestLayout(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	buf := encodeSetInfoRequest(FileID{5}, info.InfoTypeFile, info.FileClassEndOfFile, payload)
	assert.Equal(t, byte(info.FileClassEndOfFile), buf[3])
	assert.Equal(t, payload, buf[32:])
}
