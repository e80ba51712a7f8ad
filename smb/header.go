package smb

import (
	"encoding/binary"
	"fmt"
)

// Command identifies an SMB2 message's operation, spec.md §3.
type Command uint16

const (
	CommandNegotiate      Command = 0x0000
	CommandSessionSetup   Command = 0x0001
	CommandLogoff         Command = 0x0002
	CommandTreeConnect    Command = 0x0003
	CommandTreeDisconnect Command = 0x0004
	CommandCreate         Command = 0x0005
	CommandClose          Command = 0x0006
	CommandFlush          Command = 0x0007
	CommandRead           Command = 0x0008
	CommandWrite          Command = 0x0009
	CommandLock           Command = 0x000a
	CommandIoctl          Command = 0x000b
	CommandCancel         Command = 0x000c
	CommandEcho           Command = 0x000d
	CommandQueryDirectory Command = 0x000e
	CommandChangeNotify   Command = 0x000f
	CommandQueryInfo      Command = 0x0010
	CommandSetInfo        Command = 0x0011
	CommandOplockBreak    Command = 0x0012
)

// HeaderFlags are the SMB2 header's Flags field bits, spec.md §3.
type HeaderFlags uint32

const (
	FlagServerToRedir     HeaderFlags = 0x00000001
	FlagAsyncCommand      HeaderFlags = 0x00000002
	FlagRelatedOperations HeaderFlags = 0x00000004
	FlagSigned            HeaderFlags = 0x00000008
	FlagPriorityMask      HeaderFlags = 0x00000070
	FlagDFSOperations     HeaderFlags = 0x10000000
	FlagReplayOperation   HeaderFlags = 0x20000000
)

func (f HeaderFlags) ServerToRedir() bool     { return f&FlagServerToRedir != 0 }
func (f HeaderFlags) Async() bool             { return f&FlagAsyncCommand != 0 }
func (f HeaderFlags) RelatedOperations() bool { return f&FlagRelatedOperations != 0 }
func (f HeaderFlags) Signed() bool            { return f&FlagSigned != 0 }

// HeaderSize is the fixed 64-byte SMB2 header size, spec.md §3.
const HeaderSize = 64

// ProtocolID is the 4-byte magic that starts a plain SMB2 message.
var ProtocolID = [4]byte{0xfe, 'S', 'M', 'B'}

// Header is the 64-byte SMB2 message header. Fixed layout, hand-coded
// little-endian (un)marshalling rather than the reflective encoder package,
// matching the teacher's own split between the fixed SMB1Header (manual
// layout) and its variable-shaped bodies (encoder-driven).
//
// The signature field is unexported (sig) so the type can expose a
// Signature()/SetSignature() accessor pair satisfying transform.HeaderSigner
// without a field/method name collision.
type Header struct {
	ProtocolID    [4]byte
	StructureSize uint16 // always 64
	CreditCharge  uint16
	// ChannelSequence/Reserved on request; Status on response.
	Status  uint32
	Command Command
	// CreditRequest on request; CreditResponse on response.
	CreditRequest uint16
	Flags         HeaderFlags
	NextCommand   uint32
	msgID         uint64
	// Reserved(4)+TreeID(4) on sync; AsyncID(8) on async.
	AsyncID   uint64
	SessionID uint64
	sig       [16]byte
}

// NewHeader builds a request header for command with the given message id.
func NewHeader(cmd Command, messageID uint64) *Header {
	return &Header{
		ProtocolID:    ProtocolID,
		StructureSize: HeaderSize,
		Command:       cmd,
		msgID:         messageID,
	}
}

// MessageID returns the header's message id.
func (h *Header) MessageID() uint64 { return h.msgID }

// SetMessageID installs the message id assigned by the connection's
// sequence window.
func (h *Header) SetMessageID(id uint64) { h.msgID = id }

// TreeID extracts the synchronous TreeID from the AsyncID field.
func (h *Header) TreeID() uint32 { return uint32(h.AsyncID) }

// SetTreeID packs a synchronous TreeID into the AsyncID field layout.
func (h *Header) SetTreeID(id uint32) { h.AsyncID = uint64(id) }

// Signature returns the header's 16-byte signature/tag field.
func (h *Header) Signature() [16]byte { return h.sig }

// SetSignature installs a computed signature/tag into the header.
func (h *Header) SetSignature(sig [16]byte) { h.sig = sig }

// ZeroSignature clears the signature field in place, required before both
// signing and AEAD-authenticating a message (spec.md §3 invariant).
func (h *Header) ZeroSignature() { h.sig = [16]byte{} }

// IsServerToRedir reports the ServerToRedir header flag.
func (h *Header) IsServerToRedir() bool { return h.Flags.ServerToRedir() }

// IsCancel reports whether this message is a Cancel request.
func (h *Header) IsCancel() bool { return h.Command == CommandCancel }

// SetSignedFlag sets the Signed header flag bit.
func (h *Header) SetSignedFlag() { h.Flags |= FlagSigned }

// Encode serializes the header to exactly HeaderSize bytes.
func (h *Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], h.ProtocolID[:])
	binary.LittleEndian.PutUint16(b[4:6], 64)
	binary.LittleEndian.PutUint16(b[6:8], h.CreditCharge)
	binary.LittleEndian.PutUint32(b[8:12], h.Status)
	binary.LittleEndian.PutUint16(b[12:14], uint16(h.Command))
	binary.LittleEndian.PutUint16(b[14:16], h.CreditRequest)
	binary.LittleEndian.PutUint32(b[16:20], uint32(h.Flags))
	binary.LittleEndian.PutUint32(b[20:24], h.NextCommand)
	binary.LittleEndian.PutUint64(b[24:32], h.msgID)
	if h.Flags.Async() {
		binary.LittleEndian.PutUint64(b[32:40], h.AsyncID)
	} else {
		binary.LittleEndian.PutUint32(b[32:36], 0) // reserved
		binary.LittleEndian.PutUint32(b[36:40], uint32(h.AsyncID))
	}
	binary.LittleEndian.PutUint64(b[40:48], h.SessionID)
	copy(b[48:64], h.sig[:])
	return b
}

// DecodeHeader parses the first HeaderSize bytes of buf into a Header.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrUnexpectedContent, len(buf))
	}
	h := &Header{}
	copy(h.ProtocolID[:], buf[0:4])
	if h.ProtocolID != ProtocolID {
		return nil, fmt.Errorf("%w: bad protocol id", ErrUnexpectedContent)
	}
	h.StructureSize = binary.LittleEndian.Uint16(buf[4:6])
	h.CreditCharge = binary.LittleEndian.Uint16(buf[6:8])
	h.Status = binary.LittleEndian.Uint32(buf[8:12])
	h.Command = Command(binary.LittleEndian.Uint16(buf[12:14]))
	h.CreditRequest = binary.LittleEndian.Uint16(buf[14:16])
	h.Flags = HeaderFlags(binary.LittleEndian.Uint32(buf[16:20]))
	h.NextCommand = binary.LittleEndian.Uint32(buf[20:24])
	h.msgID = binary.LittleEndian.Uint64(buf[24:32])
	if h.Flags.Async() {
		h.AsyncID = binary.LittleEndian.Uint64(buf[32:40])
	} else {
		h.AsyncID = uint64(binary.LittleEndian.Uint32(buf[36:40]))
	}
	h.SessionID = binary.LittleEndian.Uint64(buf[40:48])
	copy(h.sig[:], buf[48:64])
	return h, nil
}
