package smb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/relsmb/smb2/smb/info"
)

// QueryDirectoryFlags is MS-SMB2 2.2.33's Flags byte.
type QueryDirectoryFlags uint8

const (
	QueryDirRestartScans    QueryDirectoryFlags = 0x01
	QueryDirReturnSingle    QueryDirectoryFlags = 0x02
	QueryDirIndexSpecified  QueryDirectoryFlags = 0x04
	QueryDirReopen          QueryDirectoryFlags = 0x10
)

// QueryDirectory lists pattern (e.g. "*") within the open directory
// Resource r, per MS-SMB2 2.2.33/2.2.34, requesting the
// FileFullDirectoryInformation class. A StatusNoMoreFiles reply is not an
// error: it's returned as (nil, nil) to signal scan completion.
func (r *Resource) QueryDirectory(ctx context.Context, pattern string, flags QueryDirectoryFlags) ([]info.FileFullDirectoryInformation, error) {
	body := encodeQueryDirectoryRequest(r.id, pattern, flags)
	_, respBody, err := r.tree.session.roundtripTree(ctx, r.tree, CommandQueryDirectory, body, "query_directory")
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.Status == StatusNoMoreFiles {
			return nil, nil
		}
		return nil, err
	}
	if len(respBody) < 8 {
		return nil, fmt.Errorf("%w: short query_directory response", ErrUnexpectedContent)
	}
	dataOffset := binary.LittleEndian.Uint16(respBody[2:4])
	dataLength := binary.LittleEndian.Uint32(respBody[4:8])
	start := int(dataOffset) - HeaderSize
	if start < 0 || start+int(dataLength) > len(respBody) {
		return nil, fmt.Errorf("%w: query_directory response data out of range", ErrUnexpectedContent)
	}
	return info.DecodeFullDirectoryInformation(respBody[start : start+int(dataLength)])
}

func encodeQueryDirectoryRequest(fileID FileID, pattern string, flags QueryDirectoryFlags) []byte {
	// Implicit in every call: FileFullDirectoryInformation (class 0x02).
	const fileInfoClassFullDirectory = 0x02

	name := utf16leEncode(pattern)
	buf := make([]byte, 32+len(name))
	binary.LittleEndian.PutUint16(buf[0:2], 33)
	buf[2] = fileInfoClassFullDirectory
	buf[3] = byte(flags)
	copy(buf[8:24], fileID[:])
	binary.LittleEndian.PutUint16(buf[24:26], HeaderSize+32)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint32(buf[28:32], 0x00010000) // OutputBufferLength: 64KiB
	copy(buf[32:], name)
	return buf
}
