package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// ErrAEADAuthFailed is returned when CCM/GCM tag verification fails.
var ErrAEADAuthFailed = errors.New("crypto: aead authentication failed")

// EncryptionCipher identifies the negotiated AEAD for message encryption.
type EncryptionCipher int

const (
	CipherAES128CCM EncryptionCipher = iota
	CipherAES128GCM
)

// AEADTagSize is the 16-byte SMB2 encryption signature/tag size.
const AEADTagSize = 16

// AEAD encrypts/decrypts one SMB2 message per spec.md §4.3/§4.4: nonce is
// the wire field's significant prefix (11 bytes for CCM, 12 for GCM), AAD is
// the 20 header bytes following the signature field.
type AEAD interface {
	NonceSize() int
	// Seal encrypts plaintext into a newly allocated ciphertext and returns
	// it with the 16-byte tag.
	Seal(nonce, aad, plaintext []byte) (ciphertext []byte, tag [AEADTagSize]byte, err error)
	// Open decrypts ciphertext and verifies tag over aad.
	Open(nonce, aad, ciphertext []byte, tag [AEADTagSize]byte) (plaintext []byte, err error)
}

// NewAEAD constructs the negotiated AEAD implementation for a 16-byte key.
func NewAEAD(c EncryptionCipher, key []byte) (AEAD, error) {
	switch c {
	case CipherAES128CCM:
		return newCCM(key)
	case CipherAES128GCM:
		return newGCMAEAD(key)
	default:
		return nil, fmt.Errorf("crypto: unsupported encryption cipher %d", c)
	}
}

// --- AES-128-GCM, stdlib crypto/cipher (see DESIGN.md: the whole retrieval
// pack relies on crypto/cipher.NewGCM wherever GCM appears; there is no
// ecosystem replacement to prefer over it). ---

type gcmAEAD struct {
	aead cipher.AEAD
}

func newGCMAEAD(key []byte) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmAEAD{aead: aead}, nil
}

func (g *gcmAEAD) NonceSize() int { return 12 }

func (g *gcmAEAD) Seal(nonce, aad, plaintext []byte) ([]byte, [AEADTagSize]byte, error) {
	sealed := g.aead.Seal(nil, nonce, plaintext, aad)
	ct := sealed[:len(sealed)-AEADTagSize]
	var tag [AEADTagSize]byte
	copy(tag[:], sealed[len(sealed)-AEADTagSize:])
	return ct, tag, nil
}

func (g *gcmAEAD) Open(nonce, aad, ciphertext []byte, tag [AEADTagSize]byte) ([]byte, error) {
	sealed := append(append([]byte{}, ciphertext...), tag[:]...)
	pt, err := g.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: gcm: %v", ErrAEADAuthFailed, err)
	}
	return pt, nil
}

// --- AES-128-CCM (RFC 3610), hand-rolled over crypto/aes's raw block
// cipher since no CCM package exists in the retrieval pack (see DESIGN.md).
// Parameters fixed to spec.md §4.3: tag 16 bytes, nonce 11 bytes. ---

type ccmAEAD struct {
	block cipher.Block
}

func newCCM(key []byte) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &ccmAEAD{block: block}, nil
}

func (c *ccmAEAD) NonceSize() int { return 11 }

const ccmNonceSize = 11

func (c *ccmAEAD) Seal(nonce, aad, plaintext []byte) ([]byte, [AEADTagSize]byte, error) {
	if len(nonce) != ccmNonceSize {
		return nil, [AEADTagSize]byte{}, fmt.Errorf("crypto: ccm nonce must be %d bytes", ccmNonceSize)
	}
	mac := ccmComputeMAC(c.block, nonce, aad, plaintext)
	ciphertext := ccmCTRCrypt(c.block, nonce, plaintext)
	tag := ccmMaskTag(c.block, nonce, mac)
	return ciphertext, tag, nil
}

func (c *ccmAEAD) Open(nonce, aad, ciphertext []byte, tag [AEADTagSize]byte) ([]byte, error) {
	if len(nonce) != ccmNonceSize {
		return nil, fmt.Errorf("crypto: ccm nonce must be %d bytes", ccmNonceSize)
	}
	macUnmasked := ccmMaskTag(c.block, nonce, tag)
	plaintext := ccmCTRCrypt(c.block, nonce, ciphertext)
	want := ccmComputeMAC(c.block, nonce, aad, plaintext)
	if !constantTimeEq(want[:], macUnmasked[:]) {
		return nil, fmt.Errorf("%w: ccm tag mismatch", ErrAEADAuthFailed)
	}
	return plaintext, nil
}

// ccmCTRCrypt implements CCM's counter-mode data encryption with counter
// block A_i = flags(Adata=0,M'=0,L'=3) || nonce || counter(4 bytes BE),
// starting at A_1 per RFC 3610 (A_0 is reserved for masking the MAC, see
// ccmMaskTag, and must never be reused for payload keystream).
func ccmCTRCrypt(block cipher.Block, nonce, in []byte) []byte {
	out := make([]byte, len(in))
	counter := make([]byte, aes.BlockSize)
	counter[0] = 0x03 // flags: Adata=0, M'=0, L'=L-1=3 (L=4 bytes, 11-byte nonce)
	copy(counter[1:1+len(nonce)], nonce)

	keystreamBlock := make([]byte, aes.BlockSize)
	for i := 0; i*aes.BlockSize < len(in); i++ {
		setCCMCounter(counter, uint32(i+1))
		block.Encrypt(keystreamBlock, counter)
		start := i * aes.BlockSize
		end := start + aes.BlockSize
		if end > len(in) {
			end = len(in)
		}
		for j := start; j < end; j++ {
			out[j] = in[j] ^ keystreamBlock[j-start]
		}
	}
	return out
}

// ccmMaskTag XORs mac with S_0, the keystream block for counter 0 (A_0),
// per RFC 3610. XOR is its own inverse, so this both masks (Seal) and
// unmasks (Open) the tag.
func ccmMaskTag(block cipher.Block, nonce []byte, mac [AEADTagSize]byte) [AEADTagSize]byte {
	counter := make([]byte, aes.BlockSize)
	counter[0] = 0x03
	copy(counter[1:1+len(nonce)], nonce)
	setCCMCounter(counter, 0)

	s0 := make([]byte, aes.BlockSize)
	block.Encrypt(s0, counter)

	var out [AEADTagSize]byte
	for i := range out {
		out[i] = mac[i] ^ s0[i]
	}
	return out
}

func setCCMCounter(block []byte, ctr uint32) {
	block[13] = byte(ctr >> 16)
	block[14] = byte(ctr >> 8)
	block[15] = byte(ctr)
}

// ccmComputeMAC implements RFC 3610's CBC-MAC over B_0 || AAD length-prefix
// block(s) || AAD || payload, with the 16-byte tag truncated by the caller
// (full 16 bytes used here since spec.md requires a 16-byte tag).
func ccmComputeMAC(block cipher.Block, nonce, aad, payload []byte) [AEADTagSize]byte {
	// RFC 3610 flags octet: Adata bit | M' (=(M-2)/2, M=16) | L' (=L-1, L=4
	// for an 11-byte nonce).
	b0 := make([]byte, aes.BlockSize)
	var flags byte
	if len(aad) > 0 {
		flags |= 0x40
	}
	flags |= byte((AEADTagSize-2)/2) << 3
	flags |= 0x03 // L' = L-1 = 3
	b0[0] = flags
	copy(b0[1:1+len(nonce)], nonce)
	setCCMCounter(b0, uint32(len(payload)))

	mac := make([]byte, aes.BlockSize)
	cbcMACBlock(block, mac, b0)

	if len(aad) > 0 {
		aadLenPrefix := ccmEncodeAADLength(len(aad))
		buf := append(aadLenPrefix, aad...)
		for len(buf)%aes.BlockSize != 0 {
			buf = append(buf, 0)
		}
		for i := 0; i < len(buf); i += aes.BlockSize {
			cbcMACBlock(block, mac, buf[i:i+aes.BlockSize])
		}
	}

	padded := append([]byte{}, payload...)
	for len(padded)%aes.BlockSize != 0 {
		padded = append(padded, 0)
	}
	for i := 0; i < len(padded); i += aes.BlockSize {
		cbcMACBlock(block, mac, padded[i:i+aes.BlockSize])
	}

	var out [AEADTagSize]byte
	copy(out[:], mac)
	return out
}

func cbcMACBlock(block cipher.Block, mac, data []byte) {
	x := xorBytes(mac, data)
	block.Encrypt(mac, x)
}

func ccmEncodeAADLength(n int) []byte {
	if n < 0xff00 {
		b := make([]byte, 2)
		b[0] = byte(n >> 8)
		b[1] = byte(n)
		return b
	}
	b := make([]byte, 6)
	b[0] = 0xff
	b[1] = 0xfe
	b[2] = byte(n >> 24)
	b[3] = byte(n >> 16)
	b[4] = byte(n >> 8)
	b[5] = byte(n)
	return b
}

func constantTimeEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
