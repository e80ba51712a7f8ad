package smb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/relsmb/smb2/smb/info"
)

// QueryBasicInformation fetches MS-FSCC FileBasicInformation for r
// (MS-SMB2 2.2.37/2.2.38, InfoType=FILE, FileInfoClass=FileBasicInformation).
func (r *Resource) QueryBasicInformation(ctx context.Context) (info.FileBasicInformation, error) {
	respBody, err := r.queryInfo(ctx, info.InfoTypeFile, info.FileClassBasic, 40)
	if err != nil {
		return info.FileBasicInformation{}, err
	}
	return info.DecodeFileBasicInformation(respBody)
}

// QueryStandardInformation fetches MS-FSCC FileStandardInformation for r.
func (r *Resource) QueryStandardInformation(ctx context.Context) (info.FileStandardInformation, error) {
	respBody, err := r.queryInfo(ctx, info.InfoTypeFile, info.FileClassStandard, 24)
	if err != nil {
		return info.FileStandardInformation{}, err
	}
	return info.DecodeFileStandardInformation(respBody)
}

func (r *Resource) queryInfo(ctx context.Context, infoType info.InfoType, class info.FileInfoClass, outputLen uint32) ([]byte, error) {
	body := encodeQueryInfoRequest(r.id, infoType, class, outputLen)
	_, respBody, err := r.tree.session.roundtripTree(ctx, r.tree, CommandQueryInfo, body, "query_info")
	if err != nil {
		return nil, err
	}
	if len(respBody) < 8 {
		return nil, fmt.Errorf("%w: short query_info response", ErrUnexpectedContent)
	}
	dataOffset := binary.LittleEndian.Uint16(respBody[2:4])
	dataLength := binary.LittleEndian.Uint32(respBody[4:8])
	start := int(dataOffset) - HeaderSize
	if start < 0 || start+int(dataLength) > len(respBody) {
		return nil, fmt.Errorf("%w: query_info response data out of range", ErrUnexpectedContent)
	}
	return respBody[start : start+int(dataLength)], nil
}

func encodeQueryInfoRequest(fileID FileID, infoType info.InfoType, class info.FileInfoClass, outputLen uint32) []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint16(buf[0:2], 41)
	buf[2] = byte(infoType)
	buf[3] = byte(class)
	binary.LittleEndian.PutUint32(buf[4:8], outputLen)
	copy(buf[24:40], fileID[:])
	return buf
}
