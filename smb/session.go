package smb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/relsmb/smb2/smb/auth"
	"github.com/relsmb/smb2/smb/crypto"
	"github.com/relsmb/smb2/smb/transform"
)

// SessionFlags, MS-SMB2 2.2.6.
const (
	SessionFlagIsGuest     uint16 = 0x0001
	SessionFlagIsNull      uint16 = 0x0002
	SessionFlagEncryptData uint16 = 0x0004
)

// Session is an authenticated SMB2 session over a Connection, grounded on
// the teacher's `session.IsAuthenticated`/`session.IsSigningSupported`
// usage contract in main.go, generalized across dialects.
type Session struct {
	conn *Connection
	id   uint64

	authenticator auth.Authenticator
	flags         uint16
	authenticated bool

	sessionKey []byte
	transformer *transform.Transformer

	trees map[uint32]*Tree
}

// NewSession starts SessionSetup against conn using initiator. It drives
// the SPNEGO round trip to completion, deriving and installing the
// session's signing/encryption keys once the final STATUS_SUCCESS arrives
// (spec.md §4.8).
func NewSession(ctx context.Context, conn *Connection, initiator auth.Initiator, allowUnsignedGuest bool) (*Session, error) {
	authr := auth.NewSPNEGOAuthenticator(initiator)

	s := &Session{
		conn:          conn,
		authenticator: authr,
		trees:         make(map[uint32]*Tree),
		transformer:   &transform.Transformer{},
	}

	var serverToken []byte
	for {
		step, err := authr.Next(serverToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
		}

		h := NewHeader(CommandSessionSetup, conn.w.NextMessageID())
		h.SessionID = s.id
		body := encodeSessionSetupRequest(step.Token, s.flags)
		msg := append(h.Encode(), body...)

		conn.FeedPreauth(msg)

		recv, err := conn.w.Send(ctx, h.msgID, h.CreditCharge, msg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransportIO, err)
		}
		raw, ok := <-recv
		if !ok {
			return nil, fmt.Errorf("%w: connection dropped during session setup", ErrConnectionDropped)
		}

		plain, err := s.transformer.Incoming(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
		}

		respHdr, err := DecodeHeader(plain)
		if err != nil {
			return nil, err
		}
		s.id = respHdr.SessionID
		s.conn.sessions[s.id] = s

		respBody := plain[HeaderSize:]
		respFlags, respToken := decodeSessionSetupResponse(respBody)
		s.flags = respFlags

		switch respHdr.Status {
		case StatusMoreProcessingRequired:
			conn.FeedPreauth(plain)
			serverToken = respToken
			continue
		case StatusSuccess:
			conn.FeedPreauth(plain)
			s.authenticated = true
			if err := s.deriveKeys(initiator); err != nil {
				return nil, err
			}
			if s.flags&(SessionFlagIsGuest|SessionFlagIsNull) != 0 && !allowUnsignedGuest {
				if conn.negResponse.IsSigningRequired() {
					return nil, fmt.Errorf("%w: guest/null session cannot satisfy required signing", ErrAuthenticationFailure)
				}
			}
			return s, nil
		default:
			return nil, &StatusError{Status: respHdr.Status, Op: "session_setup"}
		}
	}
}

// deriveKeys runs the SP800-108 KBKDF over the session key and the
// preauth hash (3.1.1) or the fixed labels (3.0.x), installing a Signer
// and AEAD pair into the session's Transformer, per spec.md §3/§4.3.
func (s *Session) deriveKeys(initiator auth.Initiator) error {
	s.sessionKey = initiator.SessionKey()
	if len(s.sessionKey) == 0 {
		// Guest/anonymous sessions may have no session key; signing and
		// encryption are then simply unavailable.
		return nil
	}

	dialect := s.conn.dialect
	var signLabel, encLabel, decLabel []byte
	if dialectAtLeast311(dialect) {
		signLabel, encLabel, decLabel = crypto.Label311Signing, crypto.Label311Encryption, crypto.Label311Decryption
	} else if dialectSupportsEncryption(dialect) {
		signLabel = crypto.Label30Signing
		encLabel = crypto.Label30Encryption
		decLabel = crypto.Label30Decryption
	} else {
		// Pre-3.0 dialects get no Signer or AEAD: HMAC-SHA256 signing is
		// not implemented, so their messages go out unsigned.
		return nil
	}

	signCtx, encCtx, decCtx := signContextFor(dialect), encContextFor(dialect), decContextFor(dialect)
	if dialectAtLeast311(dialect) && s.conn.preauth != nil {
		h := s.conn.PreauthHash()
		signCtx, encCtx, decCtx = h[:], h[:], h[:]
	}

	signKey := crypto.DeriveSessionKey(s.sessionKey, signLabel, signCtx)
	signAlg := crypto.SigningAESCMAC
	if id, ok := s.conn.negResponse.SigningID(); ok && dialectAtLeast311(dialect) {
		signAlg = signingAlgorithmFor(id)
	}
	signer, err := crypto.NewSigner(signAlg, signKey)
	if err != nil {
		return err
	}

	policy := transform.Policy{
		MustSign:             s.conn.negResponse.IsSigningRequired(),
		CompressionThreshold: s.conn.cfg.CompressionThreshold,
		MaxDecompressedSize:  s.conn.cfg.MaxDecompressedSize,
	}

	keys := &transform.Keys{Signer: signer}

	if dialectSupportsEncryption(dialect) && !s.conn.cfg.Encryption.IsDisabled() {
		cipherID, hasCipher := s.conn.negResponse.CipherID()
		cipher := crypto.CipherAES128CCM
		if hasCipher {
			cipher = cipherFor(cipherID)
		}
		encKey := crypto.DeriveSessionKey(s.sessionKey, encLabel, encCtx)
		decKey := crypto.DeriveSessionKey(s.sessionKey, decLabel, decCtx)
		enc, err := crypto.NewAEAD(cipher, encKey)
		if err != nil {
			return err
		}
		dec, err := crypto.NewAEAD(cipher, decKey)
		if err != nil {
			return err
		}
		keys.Encryptor = enc
		keys.Decryptor = dec
		keys.EncryptKey = encKey
		keys.DecryptKey = decKey
		if s.flags&SessionFlagEncryptData != 0 || s.conn.cfg.Encryption.IsRequired() {
			policy.MustEncrypt = true
		}
	}

	s.transformer = &transform.Transformer{SessionID: s.id, Keys: keys, Policy: policy}
	s.conn.sessions[s.id] = s
	return nil
}

func signContextFor(dialect uint16) []byte {
	if dialectAtLeast311(dialect) {
		return nil
	}
	return crypto.Context30Signing
}

func encContextFor(dialect uint16) []byte {
	if dialectAtLeast311(dialect) {
		return nil
	}
	return crypto.Context30Encryption
}

func decContextFor(dialect uint16) []byte {
	if dialectAtLeast311(dialect) {
		return nil
	}
	return crypto.Context30Decryption
}

// IsAuthenticated reports whether SessionSetup completed successfully.
func (s *Session) IsAuthenticated() bool { return s.authenticated }

// IsSigningRequired mirrors the teacher's session.IsSigningSupported/Required pair.
func (s *Session) IsSigningRequired() bool { return s.conn.negResponse.IsSigningRequired() }

// ID returns the negotiated session id.
func (s *Session) ID() uint64 { return s.id }

// encodeSessionSetupRequest builds the fixed 25-byte SESSION_SETUP request
// body followed by the GSS token.
func encodeSessionSetupRequest(token []byte, prevFlags uint16) []byte {
	buf := make([]byte, 24+len(token))
	binary.LittleEndian.PutUint16(buf[0:2], 25)
	buf[2] = 0 // flags: no binding
	buf[3] = 0x01
	binary.LittleEndian.PutUint32(buf[4:8], 0) // capabilities
	binary.LittleEndian.PutUint32(buf[8:12], 0)
	binary.LittleEndian.PutUint16(buf[12:14], HeaderSize+24)
	binary.LittleEndian.PutUint16(buf[14:16], uint16(len(token)))
	copy(buf[24:], token)
	return buf
}

func decodeSessionSetupResponse(buf []byte) (flags uint16, token []byte) {
	if len(buf) < 8 {
		return 0, nil
	}
	flags = binary.LittleEndian.Uint16(buf[2:4])
	off := binary.LittleEndian.Uint16(buf[4:6])
	length := binary.LittleEndian.Uint16(buf[6:8])
	start := int(off) - HeaderSize
	if start >= 0 && start+int(length) <= len(buf) {
		token = buf[start : start+int(length)]
	}
	return flags, token
}

// Logoff ends the session (spec.md §4.8's terminal state).
func (s *Session) Logoff(ctx context.Context) error {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint16(body[0:2], 4)

	_, _, err := s.roundtrip(ctx, CommandLogoff, body, "logoff")
	delete(s.conn.sessions, s.id)
	return err
}
