package info

import (
	"encoding/binary"
	"fmt"
)

// InfoType is MS-SMB2 2.2.37/2.2.39's InfoType field selecting which
// info-class table a QueryInfo/SetInfo FileInfoClass byte is drawn from.
type InfoType uint8

const (
	InfoTypeFile       InfoType = 0x01
	InfoTypeFilesystem InfoType = 0x02
	InfoTypeSecurity   InfoType = 0x03
)

// FileInfoClass is MS-FSCC 2.4's FILE_INFORMATION_CLASS byte.
type FileInfoClass uint8

const (
	FileClassDirectory     FileInfoClass = 0x01
	FileClassFullDirectory FileInfoClass = 0x02
	FileClassBasic         FileInfoClass = 0x04
	FileClassStandard      FileInfoClass = 0x05
	FileClassRename        FileInfoClass = 0x0a
	FileClassDisposition   FileInfoClass = 0x0d
	FileClassEndOfFile     FileInfoClass = 0x14
)

// FileBasicInformation is MS-FSCC 2.4.7 (40 bytes on the wire).
type FileBasicInformation struct {
	CreationTime   FileTime
	LastAccessTime FileTime
	LastWriteTime  FileTime
	ChangeTime     FileTime
	FileAttributes FileAttributes
}

func (b FileBasicInformation) Encode() []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(b.CreationTime))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(b.LastAccessTime))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(b.LastWriteTime))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(b.ChangeTime))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(b.FileAttributes))
	return buf
}

func DecodeFileBasicInformation(buf []byte) (FileBasicInformation, error) {
	if len(buf) < 40 {
		return FileBasicInformation{}, fmt.Errorf("info: short FileBasicInformation (%d bytes)", len(buf))
	}
	return FileBasicInformation{
		CreationTime:   FileTime(binary.LittleEndian.Uint64(buf[0:8])),
		LastAccessTime: FileTime(binary.LittleEndian.Uint64(buf[8:16])),
		LastWriteTime:  FileTime(binary.LittleEndian.Uint64(buf[16:24])),
		ChangeTime:     FileTime(binary.LittleEndian.Uint64(buf[24:32])),
		FileAttributes: FileAttributes(binary.LittleEndian.Uint32(buf[32:36])),
	}, nil
}

// FileStandardInformation is MS-FSCC 2.4.41 (24 bytes on the wire).
type FileStandardInformation struct {
	AllocationSize uint64
	EndOfFile      uint64
	NumberOfLinks  uint32
	DeletePending  bool
	Directory      bool
}

func DecodeFileStandardInformation(buf []byte) (FileStandardInformation, error) {
	if len(buf) < 24 {
		return FileStandardInformation{}, fmt.Errorf("info: short FileStandardInformation (%d bytes)", len(buf))
	}
	return FileStandardInformation{
		AllocationSize: binary.LittleEndian.Uint64(buf[0:8]),
		EndOfFile:      binary.LittleEndian.Uint64(buf[8:16]),
		NumberOfLinks:  binary.LittleEndian.Uint32(buf[16:20]),
		DeletePending:  buf[20] != 0,
		Directory:      buf[21] != 0,
	}, nil
}

// FileDispositionInformation is MS-FSCC 2.4.11 (1 byte on the wire),
// SetInfo'd to mark a handle for delete-on-close.
type FileDispositionInformation struct {
	DeletePending bool
}

func (d FileDispositionInformation) Encode() []byte {
	if d.DeletePending {
		return []byte{1}
	}
	return []byte{0}
}

// FileRenameInformation is MS-FSCC 2.4.39 (trimmed: no root-directory
// handle support, matching spec.md's Non-goals around path handling beyond UNC).
type FileRenameInformation struct {
	ReplaceIfExists bool
	FileName        string
}

func (r FileRenameInformation) Encode() []byte {
	name := encodeUTF16LE(r.FileName)
	buf := make([]byte, 20+len(name))
	if r.ReplaceIfExists {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(name)))
	copy(buf[20:], name)
	return buf
}

// FileEndOfFileInformation is MS-FSCC 2.4.13 (8 bytes on the wire), SetInfo'd
// to truncate/extend a file.
type FileEndOfFileInformation struct {
	EndOfFile uint64
}

func (e FileEndOfFileInformation) Encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, e.EndOfFile)
	return buf
}
