package info

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeOneFullDirectoryEntry(next uint32, name string, attrs FileAttributes) []byte {
	u16 := encodeUTF16LE(name)
	buf := make([]byte, 68+len(u16))
	binary.LittleEndian.PutUint32(buf[0:4], next)
	binary.LittleEndian.PutUint32(buf[56:60], uint32(attrs))
	binary.LittleEndian.PutUint32(buf[60:64], uint32(len(u16)))
	copy(buf[68:], u16)
	return buf
}

func TestFileAttributesIsDirectory(t *testing.T) {
	assert.True(t, FileAttributeDirectory.IsDirectory())
	assert.False(t, FileAttributeArchive.IsDirectory())
}

func TestDecodeFullDirectoryInformationSingleEntry(t *testing.T) {
	buf := encodeOneFullDirectoryEntry(0, "file.txt", FileAttributeArchive)
	entries, err := DecodeFullDirectoryInformation(buf)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].FileName)
	assert.Equal(t, FileAttributeArchive, entries[0].FileAttributes)
}

func TestDecodeFullDirectoryInformationChainedEntries(t *testing.T) {
	second := encodeOneFullDirectoryEntry(0, "second.txt", FileAttributeNormal)
	firstLen := uint32(len(encodeOneFullDirectoryEntry(0, ".", FileAttributeDirectory)))
	first := encodeOneFullDirectoryEntry(firstLen, ".", FileAttributeDirectory)

	buf := append(append([]byte{}, first...), second...)

	entries, err := DecodeFullDirectoryInformation(buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ".", entries[0].FileName)
	assert.Equal(t, "second.txt", entries[1].FileName)
}

func TestDecodeFullDirectoryInformationShortEntry(t *testing.T) {
	_, err := DecodeFullDirectoryInformation(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeFullDirectoryInformationNameOverrunsBuffer(t *testing.T) {
	buf := make([]byte, 68)
	binary.LittleEndian.PutUint32(buf[60:64], 100) // claims 100 bytes of name, has none
	_, err := DecodeFullDirectoryInformation(buf)
	assert.Error(t, err)
}

func TestDecodeFullDirectoryInformationOffsetOverrunsBuffer(t *testing.T) {
	buf := make([]byte, 68)
	binary.LittleEndian.PutUint32(buf[0:4], 1000)
	_, err := DecodeFullDirectoryInformation(buf)
	assert.Error(t, err)
}
