package smb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relsmb/smb2/smb/transform"
)

func TestSendSignedReturnsErrTimedOutOnContextCancellation(t *testing.T) {
	c, _ := newTestConnection(t)
	s := &Session{conn: c, id: 1, trees: make(map[uint32]*Tree), transformer: &transform.Transformer{}}
	c.sessions[1] = s

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHeader(CommandEcho, c.w.NextMessageID())
	_, err := s.sendSigned(ctx, h, []byte{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("got %v, want wrapping ErrTimedOut", err)
	}
}

func TestSendSignedWinsOverLateArrivingReply(t *testing.T) {
	c, pt := newTestConnection(t)
	s := &Session{conn: c, id: 1, trees: make(map[uint32]*Tree), transformer: &transform.Transformer{}}
	c.sessions[1] = s

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	h := NewHeader(CommandEcho, c.w.NextMessageID())
	_, err := s.sendSigned(ctx, h, []byte{})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("got %v, want wrapping ErrTimedOut", err)
	}

	// A reply arriving after the deadline must not be mistaken for success;
	// draining it here just proves the request was actually sent.
	select {
	case <-pt.sent:
	case <-time.After(time.Second):
		t.Fatal("request was never sent to the transport")
	}
}
