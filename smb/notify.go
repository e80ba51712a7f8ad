package smb

import (
	"context"
	"encoding/binary"
	"fmt"
)

// NotifyFilter is MS-SMB2 2.2.35's CompletionFilter bit field, naming the
// file-system change classes a ChangeNotify watches for.
type NotifyFilter uint32

const (
	NotifyFileName      NotifyFilter = 0x00000001
	NotifyDirName       NotifyFilter = 0x00000002
	NotifyAttributes    NotifyFilter = 0x00000004
	NotifySize          NotifyFilter = 0x00000008
	NotifyLastWrite     NotifyFilter = 0x00000010
	NotifyLastAccess    NotifyFilter = 0x00000020
	NotifyCreation      NotifyFilter = 0x00000040
	NotifySecurity      NotifyFilter = 0x00000100
)

// NotifyAction is MS-FSCC 2.7.1's FILE_NOTIFY_INFORMATION Action field.
type NotifyAction uint32

const (
	NotifyActionAdded          NotifyAction = 0x00000001
	NotifyActionRemoved        NotifyAction = 0x00000002
	NotifyActionModified       NotifyAction = 0x00000003
	NotifyActionRenamedOldName NotifyAction = 0x00000004
	NotifyActionRenamedNewName NotifyAction = 0x00000005
)

// NotifyEvent is one decoded FILE_NOTIFY_INFORMATION record.
type NotifyEvent struct {
	Action   NotifyAction
	FileName string
}

// ChangeNotify issues a watch over the directory Resource r, per spec.md
// §8 scenario 5: it suspends (via the worker's STATUS_PENDING handling)
// until the server observes a matching change or the request is cancelled,
// then returns the batch of events delivered in that single response.
func (r *Resource) ChangeNotify(ctx context.Context, filter NotifyFilter, watchTree bool) ([]NotifyEvent, error) {
	body := make([]byte, 32)
	binary.LittleEndian.PutUint16(body[0:2], 32)
	if watchTree {
		binary.LittleEndian.PutUint16(body[2:4], 0x0001)
	}
	binary.LittleEndian.PutUint32(body[4:8], 0x00010000) // OutputBufferLength: 64KiB
	copy(body[8:24], r.id[:])
	binary.LittleEndian.PutUint32(body[24:28], uint32(filter))

	_, respBody, err := r.tree.session.roundtripTree(ctx, r.tree, CommandChangeNotify, body, "change_notify")
	if err != nil {
		return nil, err
	}
	if len(respBody) < 8 {
		return nil, fmt.Errorf("%w: short change_notify response", ErrUnexpectedContent)
	}
	dataOffset := binary.LittleEndian.Uint16(respBody[2:4])
	dataLength := binary.LittleEndian.Uint32(respBody[4:8])
	start := int(dataOffset) - HeaderSize
	if dataLength == 0 {
		return nil, nil
	}
	if start < 0 || start+int(dataLength) > len(respBody) {
		return nil, fmt.Errorf("%w: change_notify response data out of range", ErrUnexpectedContent)
	}
	return decodeNotifyEvents(respBody[start : start+int(dataLength)])
}

func decodeNotifyEvents(buf []byte) ([]NotifyEvent, error) {
	var out []NotifyEvent
	for {
		if len(buf) < 12 {
			return nil, fmt.Errorf("%w: short FILE_NOTIFY_INFORMATION entry", ErrUnexpectedContent)
		}
		next := binary.LittleEndian.Uint32(buf[0:4])
		action := NotifyAction(binary.LittleEndian.Uint32(buf[4:8]))
		nameLen := binary.LittleEndian.Uint32(buf[8:12])
		if 12+int(nameLen) > len(buf) {
			return nil, fmt.Errorf("%w: FILE_NOTIFY_INFORMATION name overruns buffer", ErrUnexpectedContent)
		}
		out = append(out, NotifyEvent{Action: action, FileName: utf16leDecode(buf[12 : 12+int(nameLen)])})
		if next == 0 {
			break
		}
		if int(next) >= len(buf) {
			return nil, fmt.Errorf("%w: FILE_NOTIFY_INFORMATION next_entry_offset overruns buffer", ErrUnexpectedContent)
		}
		buf = buf[next:]
	}
	return out, nil
}
