package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/crypto/md4"
)

// NTLMSSPOid is the Microsoft NTLMSSP mechanism OID, as offered in SPNEGO
// mechTypes lists (grounded on the NTLM OID used throughout the pack's
// msultra-spnego/sematext-go-ntlm reference code).
var NTLMSSPOid = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}

const (
	ntlmSignature = "NTLMSSP\x00"

	ntlmNegotiate   uint32 = 1
	ntlmChallenge   uint32 = 2
	ntlmAuthenticate uint32 = 3

	flagNegotiateUnicode    uint32 = 0x00000001
	flagNegotiateTargetInfo uint32 = 0x00800000
	flagNegotiate128        uint32 = 0x20000000
	flagNegotiateKeyExch    uint32 = 0x40000000
	flagNegotiateExtendedSec uint32 = 0x00080000
	flagNegotiateAlwaysSign uint32 = 0x00008000
	flagNegotiateSign       uint32 = 0x00000010
	flagNegotiateSeal       uint32 = 0x00000020
	flagNegotiateNTLM       uint32 = 0x00000200
)

// NTLMInitiator authenticates with NTLMv2, matching the teacher's
// spnego.NTLMInitiator{User, Password, Domain} usage contract from main.go.
type NTLMInitiator struct {
	User     string
	Password string
	Domain   string
	Hash     []byte // pre-computed NT hash; used instead of Password if set

	clientChallenge []byte
	sessionBaseKey  []byte
	negotiateMsg    []byte
	state           int
}

func (n *NTLMInitiator) Oid() asn1.ObjectIdentifier { return NTLMSSPOid }

func (n *NTLMInitiator) InitSecContext() ([]byte, error) {
	msg, _, err := n.AcceptSecContext(nil)
	return msg, err
}

func (n *NTLMInitiator) AcceptSecContext(token []byte) ([]byte, bool, error) {
	switch n.state {
	case 0:
		n.state = 1
		msg := n.negotiateMessage()
		n.negotiateMsg = msg
		return msg, false, nil
	case 1:
		n.state = 2
		msg, err := n.authenticateMessage(token)
		if err != nil {
			return nil, false, err
		}
		return msg, true, nil
	default:
		return nil, true, nil
	}
}

func (n *NTLMInitiator) Sum(data []byte) []byte {
	mac := hmac.New(md5.New, n.sessionBaseKey)
	mac.Write(data)
	return mac.Sum(nil)
}

func (n *NTLMInitiator) SessionKey() []byte {
	if len(n.sessionBaseKey) < 16 {
		return n.sessionBaseKey
	}
	return n.sessionBaseKey[:16]
}

func (n *NTLMInitiator) negotiateMessage() []byte {
	flags := flagNegotiateUnicode | flagNegotiateNTLM | flagNegotiateExtendedSec |
		flagNegotiateTargetInfo | flagNegotiate128 | flagNegotiateKeyExch | flagNegotiateAlwaysSign

	buf := new(bytes.Buffer)
	buf.WriteString(ntlmSignature)
	writeU32(buf, ntlmNegotiate)
	writeU32(buf, flags)
	buf.Write(make([]byte, 16)) // DomainNameFields + WorkstationFields, unused
	buf.Write([]byte{0x0a, 0x00, 0x63, 0x45, 0x00, 0x00, 0x00, 0x0f}) // version, informational only
	return buf.Bytes()
}

// challengeMessage is the parsed TYPE_2 NTLM_CHALLENGE_MESSAGE.
type challengeMessage struct {
	serverChallenge []byte
	targetInfo      []byte
}

func parseChallenge(token []byte) (*challengeMessage, error) {
	if len(token) < 32 || string(token[:8]) != ntlmSignature {
		return nil, fmt.Errorf("ntlm: malformed challenge message")
	}
	msgType := binary.LittleEndian.Uint32(token[8:12])
	if msgType != ntlmChallenge {
		return nil, fmt.Errorf("ntlm: expected TYPE_2 message, got %d", msgType)
	}
	c := &challengeMessage{serverChallenge: token[24:32]}
	if len(token) >= 48 {
		tiLen := binary.LittleEndian.Uint16(token[40:42])
		tiOff := binary.LittleEndian.Uint32(token[44:48])
		if int(tiOff)+int(tiLen) <= len(token) {
			c.targetInfo = token[tiOff : tiOff+uint32(tiLen)]
		}
	}
	return c, nil
}

func (n *NTLMInitiator) authenticateMessage(serverToken []byte) ([]byte, error) {
	chal, err := parseChallenge(serverToken)
	if err != nil {
		return nil, err
	}

	if n.clientChallenge == nil {
		n.clientChallenge = make([]byte, 8)
		if _, err := rand.Read(n.clientChallenge); err != nil {
			return nil, err
		}
	}

	ntHash := n.ntOWFv2()
	timestamp := fileTimeNow()
	temp := buildNTLMv2Temp(timestamp, n.clientChallenge, chal.targetInfo)

	ntProofStr := hmacMD5(ntHash, append(append([]byte{}, chal.serverChallenge...), temp...))
	ntChallengeResponse := append(append([]byte{}, ntProofStr...), temp...)
	sessionBaseKey := hmacMD5(ntHash, ntProofStr)
	n.sessionBaseKey = sessionBaseKey

	lmHash := n.lmOWFv2()
	lmChallengeResponse := append(hmacMD5(lmHash, append(append([]byte{}, chal.serverChallenge...), n.clientChallenge...)), n.clientChallenge...)

	return n.buildAuthenticateMessage(lmChallengeResponse, ntChallengeResponse), nil
}

func (n *NTLMInitiator) buildAuthenticateMessage(lmResp, ntResp []byte) []byte {
	domain := utf16LE(n.Domain)
	user := utf16LE(n.User)

	fixedLen := 8 + 4 + // sig + type
		8 + 8 + 8 + 8 + 8 + 8 + // 6 "fields" (len,maxlen,offset) = 8 bytes each
		4 + // flags
		8 // version
	off := uint32(fixedLen)

	lmField, off := fieldAt(off, len(lmResp))
	ntField, off := fieldAt(off, len(ntResp))
	domField, off := fieldAt(off, len(domain))
	userField, off := fieldAt(off, len(user))
	wsField, off := fieldAt(off, 0)
	sessKeyField, _ := fieldAt(off, 0)

	buf := new(bytes.Buffer)
	buf.WriteString(ntlmSignature)
	writeU32(buf, ntlmAuthenticate)
	buf.Write(lmField)
	buf.Write(ntField)
	buf.Write(domField)
	buf.Write(userField)
	buf.Write(wsField)
	buf.Write(sessKeyField)
	writeU32(buf, flagNegotiateUnicode|flagNegotiateNTLM|flagNegotiateExtendedSec|flagNegotiate128)
	buf.Write(make([]byte, 8)) // version

	buf.Write(lmResp)
	buf.Write(ntResp)
	buf.Write(domain)
	buf.Write(user)

	return buf.Bytes()
}

func fieldAt(offset uint32, length int) ([]byte, uint32) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint16(b[0:2], uint16(length))
	binary.LittleEndian.PutUint16(b[2:4], uint16(length))
	binary.LittleEndian.PutUint32(b[4:8], offset)
	return b, offset + uint32(length)
}

// ntOWFv2 computes NTOWFv2(Password, User, Domain) = HMAC-MD5(MD4(UTF16(Password)), UTF16(Upper(User)+Domain)).
func (n *NTLMInitiator) ntOWFv2() []byte {
	ntHash := n.Hash
	if len(ntHash) == 0 {
		h := md4.New()
		h.Write(utf16LE(n.Password))
		ntHash = h.Sum(nil)
	}
	id := utf16LE(strings.ToUpper(n.User) + n.Domain)
	return hmacMD5(ntHash, id)
}

func (n *NTLMInitiator) lmOWFv2() []byte {
	return n.ntOWFv2()
}

func hmacMD5(key, data []byte) []byte {
	mac := hmac.New(md5.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func utf16LE(s string) []byte {
	codepoints := utf16.Encode([]rune(s))
	buf := new(bytes.Buffer)
	for _, c := range codepoints {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], c)
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// fileTimeNow returns the current time as a Windows FILETIME (100ns ticks
// since 1601-01-01), little-endian encoded, as required inside the NTLMv2
// client "temp" blob.
func fileTimeNow() []byte {
	const epochDiff = 116444736000000000
	ft := uint64(time.Now().UnixNano()/100) + epochDiff
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, ft)
	return b
}

// buildNTLMv2Temp builds the NTLMv2_CLIENT_CHALLENGE "temp" structure:
// RespType(1) HiRespType(1) Reserved1(2) Reserved2(4) Time(8) ClientChallenge(8)
// Reserved3(4) AvPairs Reserved4(4).
func buildNTLMv2Temp(timestamp, clientChallenge, targetInfo []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write([]byte{0x01, 0x01, 0x00, 0x00})
	buf.Write(make([]byte, 4))
	buf.Write(timestamp)
	buf.Write(clientChallenge)
	buf.Write(make([]byte, 4))
	buf.Write(targetInfo)
	buf.Write(make([]byte, 4))
	return buf.Bytes()
}
