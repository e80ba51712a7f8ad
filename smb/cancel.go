package smb

import "encoding/binary"

// CancelRequest cancels a pending request by message id on the given
// session (sessionID 0 for a pre-session-setup request such as Negotiate),
// per spec.md §5: drops the completion slot and, if the worker learned an
// async_id from a STATUS_PENDING interim response, sends a Cancel
// referencing it; otherwise the Cancel is addressed by message_id alone.
// Cancellation is fire-and-forget: a late response for messageID is simply
// dropped as unrecognized.
func (c *Connection) CancelRequest(sessionID, messageID uint64) error {
	asyncID, hasAsyncID := c.w.CancelPending(messageID)

	h := NewHeader(CommandCancel, messageID)
	h.SessionID = sessionID
	if hasAsyncID {
		h.Flags |= FlagAsyncCommand
		h.AsyncID = asyncID
	}
	body := make([]byte, 4)
	binary.LittleEndian.PutUint16(body[0:2], 4)

	msg := append(h.Encode(), body...)
	out, err := c.transformerFor(sessionID).Outgoing(h, msg)
	if err != nil {
		return err
	}
	return c.w.SendNoReply(out)
}
