package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"
)

// SignatureSize is the 16-byte SMB2 signature field size.
const SignatureSize = 16

// SigningAlgorithm identifies the negotiated message-signing algorithm.
type SigningAlgorithm int

const (
	SigningAESCMAC SigningAlgorithm = iota
	SigningAESGMAC
)

// Signer computes and verifies the 16-byte SMB2 message signature. Two
// implementations exist — AES-CMAC-128 (pre-3.1.1 default) and AES-GMAC-128
// (3.1.1) — matching spec.md §4.3 and grounded on
// original_source/smb/src/crypto/signing.rs's SigningAlgo trait
// (start/update/finalize) and
// marmos91-dittofs/internal/adapter/smb/signing/cmac_signer.go's intent to
// build AES-CMAC directly on crypto/aes (no third-party CMAC package exists
// anywhere in the retrieval pack; see DESIGN.md).
type Signer interface {
	// Sign computes the signature over data (header-with-zeroed-signature
	// bytes followed by the body bytes). header is needed separately by
	// GMAC to derive its nonce from message-id/flags/command.
	Sign(header HeaderInfo, data []byte) [SignatureSize]byte
}

// HeaderInfo is the subset of SMB2 header fields GMAC's nonce derivation
// needs, kept independent of the smb package's Header type to avoid an
// import cycle.
type HeaderInfo struct {
	MessageID      uint64
	IsServer       bool
	IsCancelCmd    bool
}

// NewSigner constructs a Signer for the negotiated algorithm and 16-byte key.
func NewSigner(alg SigningAlgorithm, key []byte) (Signer, error) {
	switch alg {
	case SigningAESCMAC:
		return newCMACSigner(key)
	case SigningAESGMAC:
		return newGMACSigner(key)
	default:
		return nil, fmt.Errorf("crypto: unsupported signing algorithm %d", alg)
	}
}

// Verify recomputes the signature over data (with header's signature field
// already zeroed by the caller) and compares it constant-time against want.
func Verify(s Signer, header HeaderInfo, data []byte, want [SignatureSize]byte) bool {
	got := s.Sign(header, data)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

// --- AES-CMAC-128 (RFC 4493) ---

type cmacSigner struct {
	block cipher.Block
}

func newCMACSigner(key []byte) (Signer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cmac key: %w", err)
	}
	return &cmacSigner{block: block}, nil
}

func (c *cmacSigner) Sign(_ HeaderInfo, data []byte) [SignatureSize]byte {
	var out [SignatureSize]byte
	mac := cmacSum(c.block, data)
	copy(out[:], mac)
	return out
}

// cmacSum implements RFC 4493 AES-CMAC over an AES block cipher.
func cmacSum(block cipher.Block, data []byte) []byte {
	const bs = aes.BlockSize
	k1, k2 := cmacSubkeys(block)

	n := len(data)
	var lastBlock []byte
	var complete bool
	if n == 0 {
		lastBlock = make([]byte, bs)
		lastBlock[0] = 0x80
		complete = false
	} else if n%bs == 0 {
		lastBlock = data[n-bs:]
		complete = true
	} else {
		padded := make([]byte, bs)
		rem := data[n-(n%bs):]
		copy(padded, rem)
		padded[len(rem)] = 0x80
		lastBlock = padded
		complete = false
	}

	var m1 []byte
	if complete {
		m1 = xorBytes(lastBlock, k1)
	} else {
		m1 = xorBytes(lastBlock, k2)
	}

	x := make([]byte, bs)
	numBlocks := (n + bs - 1) / bs
	if numBlocks == 0 {
		numBlocks = 1
	}
	for i := 0; i < numBlocks-1; i++ {
		block.Encrypt(x, xorBytes(x, data[i*bs:(i+1)*bs]))
	}
	y := xorBytes(x, m1)
	out := make([]byte, bs)
	block.Encrypt(out, y)
	return out
}

func cmacSubkeys(block cipher.Block) (k1, k2 []byte) {
	const rb = 0x87
	zero := make([]byte, aes.BlockSize)
	l := make([]byte, aes.BlockSize)
	block.Encrypt(l, zero)

	k1 = cmacShiftLeft(l)
	if l[0]&0x80 != 0 {
		k1[len(k1)-1] ^= rb
	}
	k2 = cmacShiftLeft(k1)
	if k1[0]&0x80 != 0 {
		k2[len(k2)-1] ^= rb
	}
	return k1, k2
}

func cmacShiftLeft(in []byte) []byte {
	out := make([]byte, len(in))
	var carry byte
	for i := len(in) - 1; i >= 0; i-- {
		out[i] = in[i]<<1 | carry
		carry = in[i] >> 7
	}
	return out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// --- AES-GMAC-128 (AES-GCM with an empty plaintext, tag-only) ---

type gmacSigner struct {
	aead cipher.AEAD
}

func newGMACSigner(key []byte) (Signer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: gmac key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gmac gcm: %w", err)
	}
	return &gmacSigner{aead: aead}, nil
}

// gmacNonce builds the 96-bit nonce spec.md §4.3 defines: low 64 bits =
// message_id, bit 64 = is_server_to_redir, bit 65 = (command == Cancel).
func gmacNonce(h HeaderInfo) []byte {
	nonce := make([]byte, 12)
	for i := 0; i < 8; i++ {
		nonce[i] = byte(h.MessageID >> (8 * i))
	}
	var flagByte byte
	if h.IsServer {
		flagByte |= 0x01
	}
	if h.IsCancelCmd {
		flagByte |= 0x02
	}
	nonce[8] = flagByte
	return nonce
}

func (g *gmacSigner) Sign(header HeaderInfo, data []byte) [SignatureSize]byte {
	var out [SignatureSize]byte
	nonce := gmacNonce(header)
	tag := g.aead.Seal(nil, nonce, nil, data)
	copy(out[:], tag)
	return out
}
