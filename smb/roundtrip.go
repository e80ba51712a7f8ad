package smb

import (
	"context"
	"fmt"
)

// sendSigned runs h||body through the session's transformer (signing it,
// or encrypting it when the session's policy requires encryption; a tree's
// own encryption requirement is not consulted), dispatches it
// through the connection's worker, and returns the raw reply bytes for
// recvChecked to unframe. Grounded on the teacher's synchronous
// send-then-block-for-reply pattern in main.go's testNegotiation/treeConnect
// helpers, generalized across every per-operation file (tree.go, handle.go,
// read.go, write.go, ...) that needs the same send/sign/receive shape.
func (s *Session) sendSigned(ctx context.Context, h *Header, body []byte) ([]byte, error) {
	h.SessionID = s.id
	msg := append(h.Encode(), body...)

	out, err := s.transformer.Outgoing(h, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageProcessing, err)
	}

	recv, err := s.conn.w.Send(ctx, h.msgID, h.CreditCharge, out)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimedOut, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportIO, err)
	}

	select {
	case raw, ok := <-recv:
		if !ok {
			return nil, fmt.Errorf("%w: connection dropped", ErrConnectionDropped)
		}
		return raw, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimedOut, ctx.Err())
	}
}

// recvChecked unframes raw via the session's transformer and returns its
// decoded header and body, failing with a *StatusError when the server
// reported anything other than STATUS_SUCCESS. op names the operation for
// the error message (e.g. "logoff", "tree_connect").
func (s *Session) recvChecked(ctx context.Context, raw []byte, op string) (*Header, []byte, error) {
	plain, err := s.transformer.Incoming(raw, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	h, err := DecodeHeader(plain)
	if err != nil {
		return nil, nil, err
	}
	body := plain[HeaderSize:]
	if h.Status != StatusSuccess && h.Status != StatusPending {
		return h, body, &StatusError{Status: h.Status, Op: op}
	}
	return h, body, nil
}

// roundtrip is the common send+receive+status-check shape: encode body
// under cmd, send it signed/encrypted per the session's policy, and
// decode+validate the reply. Used by every single-request operation
// (logoff, tree connect/disconnect, create, close, query/set info, ...).
func (s *Session) roundtrip(ctx context.Context, cmd Command, body []byte, op string) (*Header, []byte, error) {
	h := NewHeader(cmd, s.conn.w.NextMessageID())
	raw, err := s.sendSigned(ctx, h, body)
	if err != nil {
		return nil, nil, err
	}
	return s.recvChecked(ctx, raw, op)
}

// roundtripTree is roundtrip scoped to one tree: it stamps the header's
// TreeId before sending, used by every tree/handle operation once a tree
// connection exists (TreeDisconnect, Create, Read, Write, Close, ...).
func (s *Session) roundtripTree(ctx context.Context, t *Tree, cmd Command, body []byte, op string) (*Header, []byte, error) {
	h := NewHeader(cmd, s.conn.w.NextMessageID())
	h.SetTreeID(t.id)
	raw, err := s.sendSigned(ctx, h, body)
	if err != nil {
		return nil, nil, err
	}
	return s.recvChecked(ctx, raw, op)
}
