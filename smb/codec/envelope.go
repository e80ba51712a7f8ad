// Package codec recognizes and frames the three SMB2 message envelope
// kinds on the wire — plain, compressed, and encrypted — and chases
// compound/related-operations chains (component C4).
package codec

import (
	"encoding/binary"
	"fmt"
)

// MessageKind identifies which 4-byte magic an on-wire message starts with.
type MessageKind int

const (
	KindPlain MessageKind = iota
	KindCompressed
	KindEncrypted
	KindUnknown
)

var (
	magicPlain      = [4]byte{0xfe, 'S', 'M', 'B'}
	magicCompressed = [4]byte{0xfc, 'S', 'M', 'B'}
	magicEncrypted  = [4]byte{0xfd, 'S', 'M', 'B'}
)

// Sniff classifies a raw message by its 4-byte magic, per spec.md §4.4.
func Sniff(buf []byte) MessageKind {
	if len(buf) < 4 {
		return KindUnknown
	}
	var magic [4]byte
	copy(magic[:], buf[:4])
	switch magic {
	case magicPlain:
		return KindPlain
	case magicCompressed:
		return KindCompressed
	case magicEncrypted:
		return KindEncrypted
	default:
		return KindUnknown
	}
}

// EncryptedEnvelope is the SMB2_TRANSFORM_HEADER (spec.md §4.4): 16-byte
// signature/tag, 16-byte nonce field (only the cipher's NonceSize() prefix
// is meaningful), 4-byte original message size, 2 reserved, 2-byte flags
// (always 1, "encrypted"), 8-byte session id, followed by ciphertext.
type EncryptedEnvelope struct {
	Signature   [16]byte
	Nonce       [16]byte
	OriginalLen uint32
	Flags       uint16
	SessionID   uint64
	Ciphertext  []byte
}

const encryptedHeaderSize = 52

// Encode serializes the transform header and ciphertext.
func (e *EncryptedEnvelope) Encode() []byte {
	buf := make([]byte, encryptedHeaderSize+len(e.Ciphertext))
	copy(buf[0:4], magicEncrypted[:])
	copy(buf[4:20], e.Signature[:])
	copy(buf[20:36], e.Nonce[:])
	binary.LittleEndian.PutUint32(buf[36:40], e.OriginalLen)
	binary.LittleEndian.PutUint16(buf[40:42], 0) // reserved
	binary.LittleEndian.PutUint16(buf[42:44], 1) // flags: encrypted
	binary.LittleEndian.PutUint64(buf[44:52], e.SessionID)
	copy(buf[52:], e.Ciphertext)
	return buf
}

// DecodeEncrypted parses a transform-header-framed message, rejecting a
// session_id of 0 (spec.md §3 invariant: every encrypted envelope carries a
// non-zero session_id; §8's "Encrypted envelope with session_id=0" case).
func DecodeEncrypted(buf []byte) (*EncryptedEnvelope, error) {
	if len(buf) < encryptedHeaderSize {
		return nil, fmt.Errorf("codec: short encrypted envelope (%d bytes)", len(buf))
	}
	e := &EncryptedEnvelope{}
	copy(e.Signature[:], buf[4:20])
	copy(e.Nonce[:], buf[20:36])
	e.OriginalLen = binary.LittleEndian.Uint32(buf[36:40])
	e.Flags = binary.LittleEndian.Uint16(buf[42:44])
	e.SessionID = binary.LittleEndian.Uint64(buf[44:52])
	if e.SessionID == 0 {
		return nil, fmt.Errorf("codec: encrypted envelope with session_id=0")
	}
	e.Ciphertext = append([]byte{}, buf[52:]...)
	return e, nil
}
