package smb

import (
	"context"
	"encoding/binary"
)

// Echo sends an SMB2 ECHO request on the connection (MS-SMB2 2.2.28/2.2.29),
// used as a liveness probe independent of any session or tree.
func (c *Connection) Echo(ctx context.Context) error {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint16(body[0:2], 4)

	h := NewHeader(CommandEcho, c.w.NextMessageID())
	msg := append(h.Encode(), body...)

	recv, err := c.w.Send(ctx, h.msgID, h.CreditCharge, msg)
	if err != nil {
		return err
	}
	raw, ok := <-recv
	if !ok {
		return ErrConnectionDropped
	}
	plain, err := c.transformerFor(0).Incoming(raw, nil)
	if err != nil {
		return err
	}
	respHdr, err := DecodeHeader(plain)
	if err != nil {
		return err
	}
	if respHdr.Status != StatusSuccess {
		return &StatusError{Status: respHdr.Status, Op: "echo"}
	}
	return nil
}
