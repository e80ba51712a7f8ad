package worker

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a channel-backed Transport double: Send publishes onto
// sent for the test to observe, Receive delivers whatever the test pushes
// onto recv (or returns an error once recv is closed).
type fakeTransport struct {
	sent chan []byte
	recv chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(chan []byte, 16), recv: make(chan []byte, 16)}
}

func (f *fakeTransport) Send(msg []byte) error {
	f.sent <- msg
	return nil
}

func (f *fakeTransport) Receive() ([]byte, error) {
	msg, ok := <-f.recv
	if !ok {
		return nil, fmt.Errorf("fake transport closed")
	}
	return msg, nil
}

func (f *fakeTransport) Close() error { return nil }

// Test messages encode routing fields directly so the decoder doesn't need
// real SMB2 header parsing: byte0 messageID, byte1 isPending, byte2 credit,
// byte3 isNotification, bytes4-11 asyncID (little-endian).
func encodeTestMessage(messageID uint64, isPending bool, credit uint16, isNotification bool, asyncID uint64) []byte {
	buf := make([]byte, 12)
	buf[0] = byte(messageID)
	if isPending {
		buf[1] = 1
	}
	buf[2] = byte(credit)
	if isNotification {
		buf[3] = 1
	}
	binary.LittleEndian.PutUint64(buf[4:12], asyncID)
	return buf
}

func testDecoder(msg []byte) (messageID uint64, status uint32, isPending bool, credit uint16, isNotification bool, asyncID uint64) {
	messageID = uint64(msg[0])
	isPending = msg[1] == 1
	credit = uint16(msg[2])
	isNotification = msg[3] == 1
	asyncID = binary.LittleEndian.Uint64(msg[4:12])
	return
}

func mustRecv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestNextMessageIDIsSequential(t *testing.T) {
	SetDecoder(testDecoder)
	w := New(newFakeTransport(), Cooperative, nil)
	defer w.Close()

	assert.Equal(t, uint64(0), w.NextMessageID())
	assert.Equal(t, uint64(1), w.NextMessageID())
	assert.Equal(t, uint64(2), w.NextMessageID())
}

func TestSendReceiveRoundTrip(t *testing.T) {
	SetDecoder(testDecoder)
	ft := newFakeTransport()
	w := New(ft, Cooperative, nil)
	defer w.Close()

	initialCredits := w.Credits()

	req := encodeTestMessage(5, false, 0, false, 0)
	recv, err := w.Send(context.Background(), 5, 1, req)
	require.NoError(t, err)

	// Sending consumed the request's 1-credit charge immediately.
	assert.Equal(t, initialCredits-1, w.Credits())

	sentMsg := mustRecv(t, ft.sent)
	assert.Equal(t, req, sentMsg)

	reply := encodeTestMessage(5, false, 3, false, 0)
	ft.recv <- reply

	got := mustRecv(t, recv)
	assert.Equal(t, reply, got)
	assert.Equal(t, initialCredits-1+3, w.Credits())
}

func TestSendBlocksUntilCreditsAvailableThenConsumesThem(t *testing.T) {
	SetDecoder(testDecoder)
	ft := newFakeTransport()
	w := New(ft, Cooperative, nil)
	defer w.Close()

	require.Equal(t, 1, w.Credits())

	// Charging 3 against a pool of 1 must block rather than oversend.
	done := make(chan struct{})
	go func() {
		defer close(done)
		recv, err := w.Send(context.Background(), 20, 3, encodeTestMessage(20, false, 0, false, 0))
		assert.NoError(t, err)
		mustRecv(t, recv)
	}()

	select {
	case <-ft.sent:
		t.Fatal("send should block until enough credits are granted")
	case <-time.After(100 * time.Millisecond):
	}

	// Grant 2 more, bringing the pool to 3, which should unblock the send.
	w.GrantCredits(2)

	sent := mustRecv(t, ft.sent)
	assert.Equal(t, uint64(20), uint64(sent[0]))
	assert.Equal(t, 0, w.Credits())

	ft.recv <- encodeTestMessage(20, false, 0, false, 0)
	<-done
}

func TestSendReleasesCreditsOnContextCancellationBeforeDispatch(t *testing.T) {
	SetDecoder(testDecoder)
	w := New(newFakeTransport(), Cooperative, nil)
	defer w.Close()

	before := w.Credits()
	require.Equal(t, 1, before)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Charge exceeds the pool, so acquireCredits blocks on ctx until it
	// observes cancellation, returning the charge without ever consuming it.
	_, err := w.Send(ctx, 30, 5, encodeTestMessage(30, false, 0, false, 0))
	assert.Error(t, err)
	assert.Equal(t, before, w.Credits())
}

func TestStatusPendingLeavesRequestOpenUntilFinalResponse(t *testing.T) {
	SetDecoder(testDecoder)
	ft := newFakeTransport()
	w := New(ft, Cooperative, nil)
	defer w.Close()

	recv, err := w.Send(context.Background(), 9, 1, encodeTestMessage(9, false, 0, false, 0))
	require.NoError(t, err)
	mustRecv(t, ft.sent)

	ft.recv <- encodeTestMessage(9, true, 1, false, 77)

	select {
	case <-recv:
		t.Fatal("pending interim response should not complete the request")
	case <-time.After(100 * time.Millisecond):
	}

	asyncID, ok := w.CancelPending(9)
	assert.True(t, ok)
	assert.Equal(t, uint64(77), asyncID)

	// Cancelled: a late final response for the same id is now unrecognized
	// and silently dropped rather than delivered.
	ft.recv <- encodeTestMessage(9, false, 1, false, 0)
	select {
	case <-recv:
		t.Fatal("response after CancelPending should not be delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelPendingUnknownMessageID(t *testing.T) {
	SetDecoder(testDecoder)
	w := New(newFakeTransport(), Cooperative, nil)
	defer w.Close()

	_, ok := w.CancelPending(404)
	assert.False(t, ok)
}

func TestSendNoReplyDoesNotRegisterPending(t *testing.T) {
	SetDecoder(testDecoder)
	ft := newFakeTransport()
	w := New(ft, Cooperative, nil)
	defer w.Close()

	msg := encodeTestMessage(11, false, 0, false, 0)
	require.NoError(t, w.SendNoReply(msg))

	sent := mustRecv(t, ft.sent)
	assert.Equal(t, msg, sent)

	_, ok := w.CancelPending(11)
	assert.False(t, ok)
}

func TestNotificationBypassesPendingTable(t *testing.T) {
	SetDecoder(testDecoder)
	ft := newFakeTransport()

	notified := make(chan []byte, 1)
	w := New(ft, Cooperative, func(msg []byte) { notified <- msg })
	defer w.Close()

	note := encodeTestMessage(0xff, false, 0, true, 0)
	ft.recv <- note

	got := mustRecv(t, notified)
	assert.Equal(t, note, got)
}

func TestCloseFailsPendingRequests(t *testing.T) {
	SetDecoder(testDecoder)
	ft := newFakeTransport()
	w := New(ft, Cooperative, nil)

	recv, err := w.Send(context.Background(), 1, 1, encodeTestMessage(1, false, 0, false, 0))
	require.NoError(t, err)
	mustRecv(t, ft.sent)

	require.NoError(t, w.Close())

	_, ok := <-recv
	assert.False(t, ok, "pending recv channel should be closed on shutdown")

	_, err = w.Send(context.Background(), 2, 1, encodeTestMessage(2, false, 0, false, 0))
	assert.Error(t, err)
}

