package smb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/relsmb/smb2/smb/encoder"
)

// smb1Header is MS-CIFS 2.2.3.1's 32-byte SMB1 header, needed only for the
// one multi-protocol negotiate probe spec.md §4.7 step 2 allows; this
// client never continues an SMB1 session past that single probe (spec.md
// disallows SMB1 fallback), unlike the teacher's open-ended SMB1Header use.
type smb1Header struct {
	Protocol         []byte `smb:"fixed:4"`
	Command          uint8
	Status           uint32
	Flags            uint8
	Flags2           uint16
	PIDHigh          uint16
	SecurityFeatures []byte `smb:"fixed:8"`
	Reserved         uint16
	TID              uint16
	PIDLow           uint16
	UID              uint16
	MID              uint16
}

const smb1CommandNegotiate uint8 = 0x72

var smb1Protocol = []byte{0xff, 'S', 'M', 'B'}

// multiProtoNegotiateReq is the one-shot SMB1 negotiate that only ever
// advertises the SMB2 wildcard dialect, used purely to detect whether the
// server speaks SMB2 at all (spec.md §4.7 step 2). Grounded on the
// teacher's SMB1NegotiateReq/SMB1Dialect MarshalBinary, trimmed to a
// single dialect string since this client does not negotiate SMB1.
type multiProtoNegotiateReq struct {
	Header smb1Header
}

func (r *multiProtoNegotiateReq) MarshalBinary(meta *encoder.Metadata) ([]byte, error) {
	buf := make([]byte, 0, 46)
	w := bytes.NewBuffer(buf)
	hBuf, err := encoder.Marshal(r.Header)
	if err != nil {
		return nil, err
	}
	w.Write(hBuf)
	w.WriteByte(0) // WordCount

	dialect := append([]byte{0x02}, []byte("SMB 2.???\x00")...)
	binary.Write(w, binary.LittleEndian, uint16(len(dialect)))
	w.Write(dialect)

	return w.Bytes(), nil
}

func (r *multiProtoNegotiateReq) UnmarshalBinary(buf []byte, meta *encoder.Metadata) error {
	return fmt.Errorf("smb: multiProtoNegotiateReq is request-only")
}

func newMultiProtoNegotiateReq() *multiProtoNegotiateReq {
	return &multiProtoNegotiateReq{
		Header: smb1Header{
			Protocol:         smb1Protocol,
			Command:          smb1CommandNegotiate,
			Flags:            0x18,
			Flags2:           0xc801,
			SecurityFeatures: make([]byte, 8),
			TID:              0xffff,
		},
	}
}

// isSMB2WildcardResponse reports whether buf starts with the plain-SMB2
// magic (0xfeSMB), meaning the server answered the multi-protocol probe
// directly with an SMB2 negotiate response rather than an SMB1 one.
func isSMB2WildcardResponse(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xfe && buf[1] == 'S' && buf[2] == 'M' && buf[3] == 'B'
}
