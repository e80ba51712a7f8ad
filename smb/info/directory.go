package info

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// FileAttributes is MS-FSCC 2.6's file attribute bit field.
type FileAttributes uint32

const (
	FileAttributeReadonly  FileAttributes = 0x00000001
	FileAttributeHidden    FileAttributes = 0x00000002
	FileAttributeSystem    FileAttributes = 0x00000004
	FileAttributeDirectory FileAttributes = 0x00000010
	FileAttributeArchive   FileAttributes = 0x00000020
	FileAttributeNormal    FileAttributes = 0x00000080
)

func (a FileAttributes) IsDirectory() bool { return a&FileAttributeDirectory != 0 }

// FileFullDirectoryInformation is MS-FSCC 2.4.14's FileFullDirectoryInformation
// class, the one this client requests from QueryDirectory.
type FileFullDirectoryInformation struct {
	CreationTime   FileTime
	LastAccessTime FileTime
	LastWriteTime  FileTime
	ChangeTime     FileTime
	EndOfFile      uint64
	AllocationSize uint64
	FileAttributes FileAttributes
	EaSize         uint32
	FileName       string
}

// DecodeFullDirectoryInformation walks a QueryDirectory response buffer,
// chained via each entry's NextEntryOffset per MS-FSCC 2.4, adapted from the
// teacher's fromUnicodeStrArray double-null-terminated-list walk (see
// DESIGN.md) generalized from "array of strings" to "array of fixed-layout
// records with a trailing variable-length filename".
func DecodeFullDirectoryInformation(buf []byte) ([]FileFullDirectoryInformation, error) {
	var out []FileFullDirectoryInformation
	for {
		if len(buf) < 68 {
			return nil, fmt.Errorf("info: short FileFullDirectoryInformation entry (%d bytes)", len(buf))
		}
		next := binary.LittleEndian.Uint32(buf[0:4])
		nameLen := binary.LittleEndian.Uint32(buf[60:64])

		entry := FileFullDirectoryInformation{
			CreationTime:   FileTime(binary.LittleEndian.Uint64(buf[8:16])),
			LastAccessTime: FileTime(binary.LittleEndian.Uint64(buf[16:24])),
			LastWriteTime:  FileTime(binary.LittleEndian.Uint64(buf[24:32])),
			ChangeTime:     FileTime(binary.LittleEndian.Uint64(buf[32:40])),
			EndOfFile:      binary.LittleEndian.Uint64(buf[40:48]),
			AllocationSize: binary.LittleEndian.Uint64(buf[48:56]),
			FileAttributes: FileAttributes(binary.LittleEndian.Uint32(buf[56:60])),
			EaSize:         binary.LittleEndian.Uint32(buf[64:68]),
		}
		if 68+int(nameLen) > len(buf) {
			return nil, fmt.Errorf("info: FileFullDirectoryInformation name overruns buffer")
		}
		entry.FileName = decodeUTF16LE(buf[68 : 68+int(nameLen)])
		out = append(out, entry)

		if next == 0 {
			break
		}
		if int(next) >= len(buf) {
			return nil, fmt.Errorf("info: FileFullDirectoryInformation next_entry_offset overruns buffer")
		}
		buf = buf[next:]
	}
	return out, nil
}

func decodeUTF16LE(buf []byte) string {
	u16 := make([]uint16, len(buf)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return string(utf16.Decode(u16))
}

func encodeUTF16LE(s string) []byte {
	u16 := utf16.Encode([]rune(s))
	buf := make([]byte, len(u16)*2)
	for i, c := range u16 {
		binary.LittleEndian.PutUint16(buf[i*2:], c)
	}
	return buf
}
