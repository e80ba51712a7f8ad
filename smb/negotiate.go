package smb

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/relsmb/smb2/smb/crypto"
)

// NegotiateContextType identifies one SMB2_NEGOTIATE_CONTEXT entry,
// MS-SMB2 2.2.3.1, used only from dialect 3.1.1 onward.
type NegotiateContextType uint16

const (
	ContextPreauthIntegrity NegotiateContextType = 0x0001
	ContextEncryption       NegotiateContextType = 0x0002
	ContextCompression      NegotiateContextType = 0x0003
	ContextNetName          NegotiateContextType = 0x0005
	ContextSigning          NegotiateContextType = 0x0008
)

// HashAlgorithm identifies the preauth integrity hash, spec.md §3. SHA-512
// is the only value the client offers or accepts.
type HashAlgorithm uint16

const HashSHA512 HashAlgorithm = 0x0001

// SigningAlgorithmID is the wire identifier for the negotiated signing
// algorithm negotiate context, spec.md §3.
type SigningAlgorithmID uint16

const (
	SigningIDAESCMAC SigningAlgorithmID = 0x0000
	SigningIDAESGMAC SigningAlgorithmID = 0x0002
)

// CipherID is the wire identifier for the negotiated encryption algorithm.
type CipherID uint16

const (
	CipherIDAES128CCM CipherID = 0x0001
	CipherIDAES128GCM CipherID = 0x0002
)

// SecurityMode bits, MS-SMB2 2.2.3.
const (
	SecurityModeSigningEnabled  uint16 = 0x0001
	SecurityModeSigningRequired uint16 = 0x0002
)

// Capabilities bits relevant to this client, MS-SMB2 2.2.3.
const (
	CapDFS            uint32 = 0x00000001
	CapLeasing        uint32 = 0x00000002
	CapLargeMTU       uint32 = 0x00000004
	CapMultiChannel   uint32 = 0x00000008
	CapPersistentHnds uint32 = 0x00000010
	CapDirectoryLease uint32 = 0x00000020
	CapEncryption     uint32 = 0x00000040
)

// NegotiateRequest is the client's SMB2 NEGOTIATE request body.
type NegotiateRequest struct {
	SecurityMode uint16
	Capabilities uint32
	ClientGUID   GUID
	Dialects     []uint16
	// 3.1.1+ only.
	HashSalt              []byte
	SupportedCiphers      []CipherID
	CompressionAlgorithms []CompressionAlgorithmID
	SigningAlgorithms     []SigningAlgorithmID
	ClientName            string
}

// CompressionAlgorithmID mirrors codec.CompressionAlgorithm for the
// negotiate-context wire value (kept separate to avoid the smb package
// importing codec just for this one enum).
type CompressionAlgorithmID uint16

const (
	CompressionIDNone      CompressionAlgorithmID = 0x0000
	CompressionIDPatternV1 CompressionAlgorithmID = 0x0003
)

// Encode serializes the SMB2 NEGOTIATE request body (structure size 36,
// fixed part, followed by the dialect list and, for 3.1.1, the padded
// negotiate context list).
func (r *NegotiateRequest) Encode() []byte {
	fixed := make([]byte, 36+2*len(r.Dialects))
	binary.LittleEndian.PutUint16(fixed[0:2], 36)
	binary.LittleEndian.PutUint16(fixed[2:4], uint16(len(r.Dialects)))
	binary.LittleEndian.PutUint16(fixed[4:6], r.SecurityMode)
	binary.LittleEndian.PutUint16(fixed[6:8], 0) // reserved
	binary.LittleEndian.PutUint32(fixed[8:12], r.Capabilities)
	copy(fixed[12:28], r.ClientGUID[:])
	// NegotiateContextOffset/Count or ClientStartTime occupy bytes 28:36;
	// filled in below once we know whether contexts are present.
	for i, d := range r.Dialects {
		binary.LittleEndian.PutUint16(fixed[36+2*i:38+2*i], d)
	}

	has311 := false
	for _, d := range r.Dialects {
		if d == DialectSMB311 {
			has311 = true
		}
	}
	if !has311 {
		return fixed
	}

	contexts := r.encodeContexts()
	body := padTo8(fixed)
	offset := uint32(HeaderSize + len(body))
	binary.LittleEndian.PutUint32(body[28:32], offset)
	binary.LittleEndian.PutUint16(body[32:34], uint16(r.contextCount()))
	binary.LittleEndian.PutUint16(body[34:36], 0)

	return append(body, contexts...)
}

func (r *NegotiateRequest) contextCount() int {
	n := 3 // preauth-integrity, encryption, compression
	if len(r.SigningAlgorithms) > 0 {
		n++
	}
	if r.ClientName != "" {
		n++
	}
	return n
}

func (r *NegotiateRequest) encodeContexts() []byte {
	var out []byte
	out = append(out, padTo8(encodeNegotiateContext(ContextPreauthIntegrity, encodeHashContext(r.HashSalt)))...)
	out = append(out, padTo8(encodeNegotiateContext(ContextEncryption, encodeCipherContext(r.SupportedCiphers)))...)
	out = append(out, padTo8(encodeNegotiateContext(ContextCompression, encodeCompressionContext(r.CompressionAlgorithms)))...)
	if len(r.SigningAlgorithms) > 0 {
		out = append(out, padTo8(encodeNegotiateContext(ContextSigning, encodeSigningContext(r.SigningAlgorithms)))...)
	}
	if r.ClientName != "" {
		out = append(out, padTo8(encodeNegotiateContext(ContextNetName, encodeNetNameContext(r.ClientName)))...)
	}
	return out
}

func encodeNegotiateContext(t NegotiateContextType, data []byte) []byte {
	hdr := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(t))
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(data)))
	copy(hdr[8:], data)
	return hdr
}

func encodeHashContext(salt []byte) []byte {
	buf := make([]byte, 4+2+len(salt))
	binary.LittleEndian.PutUint16(buf[0:2], 1)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(HashSHA512))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(salt)))
	copy(buf[6:], salt)
	return buf[:6+len(salt)]
}

func encodeCipherContext(ciphers []CipherID) []byte {
	buf := make([]byte, 2+2*len(ciphers))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(ciphers)))
	for i, c := range ciphers {
		binary.LittleEndian.PutUint16(buf[2+2*i:4+2*i], uint16(c))
	}
	return buf
}

func encodeCompressionContext(algs []CompressionAlgorithmID) []byte {
	buf := make([]byte, 8+2*len(algs))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(algs)))
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], 0) // flags: none (chained not offered)
	for i, a := range algs {
		binary.LittleEndian.PutUint16(buf[8+2*i:10+2*i], uint16(a))
	}
	return buf
}

func encodeSigningContext(algs []SigningAlgorithmID) []byte {
	buf := make([]byte, 2+2*len(algs))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(algs)))
	for i, a := range algs {
		binary.LittleEndian.PutUint16(buf[2+2*i:4+2*i], uint16(a))
	}
	return buf
}

func encodeNetNameContext(name string) []byte {
	u := utf16leEncode(name)
	return u
}

func utf16leEncode(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for _, r := range s {
		if r > 0xffff {
			r = '?'
		}
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func utf16leDecode(buf []byte) string {
	u16 := make([]uint16, len(buf)/2)
	for i := range u16 {
		u16[i] = uint16(buf[i*2]) | uint16(buf[i*2+1])<<8
	}
	return string(utf16.Decode(u16))
}

func padTo8(buf []byte) []byte {
	rem := len(buf) % 8
	if rem == 0 {
		return buf
	}
	return append(buf, make([]byte, 8-rem)...)
}

// NegotiateResponse is the parsed SMB2 NEGOTIATE response, exposing
// accessor methods matching the teacher's `session.IsSigningSupported()`
// style rather than raw exported fields, per DESIGN.md's "Supplemented
// Features" NegotiateResponse accessors note.
type NegotiateResponse struct {
	securityMode    uint16
	dialect         uint16
	serverGUID      GUID
	capabilities    uint32
	maxTransactSize uint32
	maxReadSize     uint32
	maxWriteSize    uint32
	securityBuffer  []byte

	hashAlgorithm HashAlgorithm
	cipherID      CipherID
	hasCipher     bool
	signingID     SigningAlgorithmID
	hasSigning    bool
	compression   []CompressionAlgorithmID
}

func (n *NegotiateResponse) IsSigningRequired() bool {
	return n.securityMode&SecurityModeSigningRequired != 0
}

func (n *NegotiateResponse) IsSigningSupported() bool {
	return n.securityMode&SecurityModeSigningEnabled != 0
}

func (n *NegotiateResponse) Dialect() uint16          { return n.dialect }
func (n *NegotiateResponse) Capabilities() uint32     { return n.capabilities }
func (n *NegotiateResponse) SupportsEncryption() bool { return n.capabilities&CapEncryption != 0 }
func (n *NegotiateResponse) MaxReadSize() uint32      { return n.maxReadSize }
func (n *NegotiateResponse) MaxWriteSize() uint32     { return n.maxWriteSize }
func (n *NegotiateResponse) MaxTransactSize() uint32  { return n.maxTransactSize }
func (n *NegotiateResponse) SecurityBuffer() []byte   { return n.securityBuffer }
func (n *NegotiateResponse) ServerGUID() GUID         { return n.serverGUID }

func (n *NegotiateResponse) CipherID() (CipherID, bool) { return n.cipherID, n.hasCipher }
func (n *NegotiateResponse) SigningID() (SigningAlgorithmID, bool) {
	return n.signingID, n.hasSigning
}

// DecodeNegotiateResponse parses the SMB2 NEGOTIATE response body.
func DecodeNegotiateResponse(buf []byte) (*NegotiateResponse, error) {
	if len(buf) < 64 {
		return nil, fmt.Errorf("%w: short negotiate response", ErrUnexpectedContent)
	}
	n := &NegotiateResponse{}
	n.securityMode = binary.LittleEndian.Uint16(buf[2:4])
	n.dialect = binary.LittleEndian.Uint16(buf[4:6])
	copy(n.serverGUID[:], buf[8:24])
	n.capabilities = binary.LittleEndian.Uint32(buf[24:28])
	n.maxTransactSize = binary.LittleEndian.Uint32(buf[28:32])
	n.maxReadSize = binary.LittleEndian.Uint32(buf[32:36])
	n.maxWriteSize = binary.LittleEndian.Uint32(buf[36:40])
	secBufOffset := binary.LittleEndian.Uint16(buf[56:58])
	secBufLen := binary.LittleEndian.Uint16(buf[58:60])

	if n.dialect == DialectSMB2Wildcard {
		return n, nil
	}

	if int(secBufOffset)+int(secBufLen) <= len(buf)+HeaderSize {
		start := int(secBufOffset) - HeaderSize
		if start >= 0 && start+int(secBufLen) <= len(buf) {
			n.securityBuffer = append([]byte{}, buf[start:start+int(secBufLen)]...)
		}
	}

	if n.dialect != DialectSMB311 {
		return n, nil
	}

	ctxOffset := binary.LittleEndian.Uint32(buf[60:64])
	ctxCount := binary.LittleEndian.Uint16(buf[6:8])
	start := int(ctxOffset) - HeaderSize
	if start < 0 || start > len(buf) {
		return nil, fmt.Errorf("%w: negotiate context offset out of range", ErrUnexpectedContent)
	}
	list := buf[start:]
	for i := 0; i < int(ctxCount) && len(list) >= 8; i++ {
		ctxType := NegotiateContextType(binary.LittleEndian.Uint16(list[0:2]))
		dataLen := binary.LittleEndian.Uint16(list[2:4])
		if len(list) < 8+int(dataLen) {
			return nil, fmt.Errorf("%w: truncated negotiate context", ErrUnexpectedContent)
		}
		data := list[8 : 8+dataLen]
		switch ctxType {
		case ContextPreauthIntegrity:
			if len(data) >= 4 {
				n.hashAlgorithm = HashAlgorithm(binary.LittleEndian.Uint16(data[2:4]))
			}
		case ContextEncryption:
			if len(data) >= 4 {
				n.cipherID = CipherID(binary.LittleEndian.Uint16(data[2:4]))
				n.hasCipher = true
			}
		case ContextSigning:
			if len(data) >= 4 {
				n.signingID = SigningAlgorithmID(binary.LittleEndian.Uint16(data[2:4]))
				n.hasSigning = true
			}
		case ContextCompression:
			count := binary.LittleEndian.Uint16(data[0:2])
			for j := 0; j < int(count); j++ {
				off := 8 + 2*j
				if off+2 > len(data) {
					break
				}
				n.compression = append(n.compression, CompressionAlgorithmID(binary.LittleEndian.Uint16(data[off:off+2])))
			}
		}
		next := 8 + int(dataLen)
		rem := next % 8
		if rem != 0 {
			next += 8 - rem
		}
		if next > len(list) {
			break
		}
		list = list[next:]
	}

	return n, nil
}

// signingAlgorithmFor maps a negotiated SigningAlgorithmID onto this
// repo's crypto.SigningAlgorithm.
func signingAlgorithmFor(id SigningAlgorithmID) crypto.SigningAlgorithm {
	if id == SigningIDAESGMAC {
		return crypto.SigningAESGMAC
	}
	return crypto.SigningAESCMAC
}

// cipherFor maps a negotiated CipherID onto this repo's crypto.EncryptionCipher.
func cipherFor(id CipherID) crypto.EncryptionCipher {
	if id == CipherIDAES128GCM {
		return crypto.CipherAES128GCM
	}
	return crypto.CipherAES128CCM
}
