package smb

import (
	"context"
	"encoding/binary"

	"github.com/relsmb/smb2/smb/info"
)

// SetBasicInformation applies MS-FSCC FileBasicInformation to r (timestamps,
// attributes) via SetInfo (MS-SMB2 2.2.39/2.2.40).
func (r *Resource) SetBasicInformation(ctx context.Context, data info.FileBasicInformation) error {
	return r.setInfo(ctx, info.InfoTypeFile, info.FileClassBasic, data.Encode())
}

// SetDisposition marks r for delete-on-close (or cancels a pending one) via
// SetInfo, per spec.md §4.10's Close/teardown surface.
func (r *Resource) SetDisposition(ctx context.Context, deletePending bool) error {
	data := info.FileDispositionInformation{DeletePending: deletePending}
	return r.setInfo(ctx, info.InfoTypeFile, info.FileClassDisposition, data.Encode())
}

// SetEndOfFile truncates or extends r to size via SetInfo.
func (r *Resource) SetEndOfFile(ctx context.Context, size uint64) error {
	data := info.FileEndOfFileInformation{EndOfFile: size}
	return r.setInfo(ctx, info.InfoTypeFile, info.FileClassEndOfFile, data.Encode())
}

// Rename renames/moves r to newName via SetInfo's FileRenameInformation.
func (r *Resource) Rename(ctx context.Context, newName string, replaceIfExists bool) error {
	data := info.FileRenameInformation{ReplaceIfExists: replaceIfExists, FileName: newName}
	return r.setInfo(ctx, info.InfoTypeFile, info.FileClassRename, data.Encode())
}

func (r *Resource) setInfo(ctx context.Context, infoType info.InfoType, class info.FileInfoClass, payload []byte) error {
	body := encodeSetInfoRequest(r.id, infoType, class, payload)
	_, _, err := r.tree.session.roundtripTree(ctx, r.tree, CommandSetInfo, body, "set_info")
	return err
}

func encodeSetInfoRequest(fileID FileID, infoType info.InfoType, class info.FileInfoClass, payload []byte) []byte {
	buf := make([]byte, 32+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], 33)
	buf[2] = byte(infoType)
	buf[3] = byte(class)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint16(buf[8:10], HeaderSize+32)
	copy(buf[16:32], fileID[:])
	copy(buf[32:], payload)
	return buf
}
