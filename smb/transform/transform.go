// Package transform implements the per-session outgoing/incoming message
// pipeline (component C5): sign, optionally compress, optionally encrypt
// on the way out; unframe, decrypt, decompress, verify on the way in.
package transform

import (
	"crypto/rand"
	"fmt"

	"github.com/relsmb/smb2/smb/codec"
	"github.com/relsmb/smb2/smb/crypto"
)

// Keys holds one session's derived signing/encryption/decryption keys.
type Keys struct {
	Signer     crypto.Signer
	Encryptor  crypto.AEAD
	Decryptor  crypto.AEAD
	EncryptKey []byte
	DecryptKey []byte
}

// Policy controls the optional stages of the pipeline for one session/tree.
type Policy struct {
	MustSign             bool
	MustEncrypt          bool
	CompressionThreshold int    // 0 disables outgoing compression
	MaxDecompressedSize  uint32 // 0 disables the cap (unbounded, not recommended)
}

// Transformer drives the sign/compress/encrypt (outgoing) and
// unframe/decrypt/decompress/verify (incoming) pipelines for one session,
// per spec.md §4.5's numbered steps.
type Transformer struct {
	SessionID uint64
	Keys      *Keys
	Policy    Policy
}

// HeaderSigner is the minimal view of a message header the transformer
// needs to zero/read the signature and feed crypto.HeaderInfo.
type HeaderSigner interface {
	ZeroSignature()
	Signature() [16]byte
	SetSignature([16]byte)
	MessageID() uint64
	IsServerToRedir() bool
	IsCancel() bool
	SetSignedFlag()
}

// headerSignatureOffset is the SMB2 header's fixed signature field offset
// (bytes 48..64 of the 64-byte header that always starts msg).
const headerSignatureOffset = 48

// Outgoing runs the full send-side pipeline over one already-encoded
// message (header||body bytes). sign is skipped when Keys.Signer is nil
// (pre-session-setup messages); encryption is applied only when
// Policy.MustEncrypt is set. h must be the same
// header msg was encoded from, used only to read message-id/flags for
// crypto.HeaderInfo — the computed signature is written directly into msg.
func (t *Transformer) Outgoing(h HeaderSigner, msg []byte) ([]byte, error) {
	if t.Keys != nil && t.Keys.Signer != nil && !t.Policy.MustEncrypt {
		for i := headerSignatureOffset; i < headerSignatureOffset+16; i++ {
			msg[i] = 0
		}
		sig := t.Keys.Signer.Sign(headerInfo(h), msg)
		copy(msg[headerSignatureOffset:headerSignatureOffset+16], sig[:])
		h.SetSignature(sig)
		h.SetSignedFlag()
		msg[16] |= byte(0x08) // Flags bit 3 (SMB2_FLAGS_SIGNED), little-endian byte 0 of Flags
	}

	payload := msg
	if t.Policy.CompressionThreshold > 0 {
		if env, ok := codec.CompressIfWorthwhile(msg, t.Policy.CompressionThreshold); ok {
			payload = env.Encode()
		}
	}

	if t.Policy.MustEncrypt {
		if t.Keys == nil || t.Keys.Encryptor == nil {
			return nil, fmt.Errorf("transform: encryption required but no key installed")
		}
		return t.encrypt(payload)
	}

	return payload, nil
}

func (t *Transformer) encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, t.Keys.Encryptor.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("transform: nonce generation: %w", err)
	}
	env := &codec.EncryptedEnvelope{
		OriginalLen: uint32(len(plaintext)),
		SessionID:   t.SessionID,
	}
	copy(env.Nonce[:], nonce)

	aad := env.Encode()[20:52] // nonce(16) || original_len(4) || reserved(2) || flags(2) || session_id(8), minus signature
	ciphertext, tag, err := t.Keys.Encryptor.Seal(nonce, aad, plaintext)
	if err != nil {
		return nil, err
	}
	env.Signature = tag
	env.Ciphertext = ciphertext
	return env.Encode(), nil
}

// Incoming runs the full receive-side pipeline over one raw wire message
// (possibly transform-enveloped and/or compressed) and returns the
// verified plaintext SMB2 message bytes.
func (t *Transformer) Incoming(buf []byte, verify func(plain []byte) error) ([]byte, error) {
	kind := codec.Sniff(buf)

	switch kind {
	case codec.KindEncrypted:
		if t.Keys == nil || t.Keys.Decryptor == nil {
			return nil, fmt.Errorf("transform: received encrypted message with no decryption key")
		}
		env, err := codec.DecodeEncrypted(buf)
		if err != nil {
			return nil, err
		}
		if env.SessionID != t.SessionID {
			return nil, fmt.Errorf("transform: encrypted envelope session id mismatch")
		}
		nonceSize := t.Keys.Decryptor.NonceSize()
		for _, b := range env.Nonce[nonceSize:] {
			if b != 0 {
				return nil, fmt.Errorf("transform: encrypted envelope nonce padding is non-zero")
			}
		}
		nonce := env.Nonce[:nonceSize]
		aad := buf[20:52]
		plain, err := t.Keys.Decryptor.Open(nonce, aad, env.Ciphertext, env.Signature)
		if err != nil {
			return nil, err
		}
		return t.maybeDecompress(plain)
	case codec.KindCompressed:
		return t.maybeDecompress(buf)
	case codec.KindPlain:
		if verify != nil {
			if err := verify(buf); err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("transform: unrecognized message magic")
	}
}

func (t *Transformer) maybeDecompress(buf []byte) ([]byte, error) {
	if codec.Sniff(buf) != codec.KindCompressed {
		return buf, nil
	}
	env, err := codec.DecodeCompressedUnchained(buf)
	if err != nil {
		return nil, err
	}
	return env.Decompress(t.Policy.MaxDecompressedSize)
}

func headerInfo(h HeaderSigner) crypto.HeaderInfo {
	return crypto.HeaderInfo{
		MessageID:   h.MessageID(),
		IsServer:    h.IsServerToRedir(),
		IsCancelCmd: h.IsCancel(),
	}
}
