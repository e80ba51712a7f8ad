package transform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsmb/smb2/smb/crypto"
)

// fakeHeader is a minimal HeaderSigner standing in for smb.Header, avoiding
// an import of the smb package (which imports transform).
type fakeHeader struct {
	msgID    uint64
	fromSrv  bool
	isCancel bool
	signed   bool
	sig      [16]byte
}

func (h *fakeHeader) ZeroSignature()          { h.sig = [16]byte{} }
func (h *fakeHeader) Signature() [16]byte     { return h.sig }
func (h *fakeHeader) SetSignature(s [16]byte) { h.sig = s }
func (h *fakeHeader) MessageID() uint64       { return h.msgID }
func (h *fakeHeader) IsServerToRedir() bool   { return h.fromSrv }
func (h *fakeHeader) IsCancel() bool          { return h.isCancel }
func (h *fakeHeader) SetSignedFlag()          { h.signed = true }

func newTestMessage(body string) []byte {
	buf := make([]byte, 64+len(body))
	copy(buf[0:4], []byte{0xfe, 'S', 'M', 'B'})
	copy(buf[64:], body)
	return buf
}

func TestOutgoingPatchesSignatureIntoWireBytes(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, crypto.KeySize)
	signer, err := crypto.NewSigner(crypto.SigningAESCMAC, key)
	require.NoError(t, err)

	tr := &Transformer{Keys: &Keys{Signer: signer}}
	h := &fakeHeader{msgID: 7}
	msg := newTestMessage("negotiate request body")

	out, err := tr.Outgoing(h, msg)
	require.NoError(t, err)

	// The signature must be patched directly into the transmitted bytes,
	// not only set on the Header object.
	assert.NotEqual(t, [16]byte{}, [16]byte(out[48:64]))
	assert.Equal(t, h.Signature(), [16]byte(out[48:64]))
	assert.True(t, h.signed)
	assert.Equal(t, byte(0x08), out[16]&0x08)
}

func TestOutgoingSkipsSigningWithoutKeys(t *testing.T) {
	tr := &Transformer{}
	h := &fakeHeader{msgID: 1}
	msg := newTestMessage("unsigned")
	out, err := tr.Outgoing(h, msg)
	require.NoError(t, err)
	assert.Equal(t, [16]byte{}, [16]byte(out[48:64]))
	assert.False(t, h.signed)
}

func TestIncomingVerifiesPlainMessage(t *testing.T) {
	tr := &Transformer{}
	msg := newTestMessage("plain body")

	called := false
	verify := func(plain []byte) error { called = true; return nil }

	got, err := tr.Incoming(msg, verify)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
	assert.True(t, called)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, crypto.KeySize)
	aead, err := crypto.NewAEAD(crypto.CipherAES128GCM, key)
	require.NoError(t, err)

	keys := &Keys{Encryptor: aead, Decryptor: aead}
	outTr := &Transformer{SessionID: 99, Keys: keys, Policy: Policy{MustEncrypt: true}}
	inTr := &Transformer{SessionID: 99, Keys: keys, Policy: Policy{MustEncrypt: true}}

	h := &fakeHeader{msgID: 3}
	msg := newTestMessage("confidential smb2 payload")

	out, err := outTr.Outgoing(h, msg)
	require.NoError(t, err)
	assert.NotEqual(t, msg, out)

	plain, err := inTr.Incoming(out, nil)
	require.NoError(t, err)
	assert.Equal(t, msg, plain)
}

func TestIncomingRejectsSessionIDMismatch(t *testing.T) {
	key := bytes.Repeat([]byte{0x03}, crypto.KeySize)
	aead, err := crypto.NewAEAD(crypto.CipherAES128GCM, key)
	require.NoError(t, err)

	keys := &Keys{Encryptor: aead, Decryptor: aead}
	outTr := &Transformer{SessionID: 1, Keys: keys, Policy: Policy{MustEncrypt: true}}
	inTr := &Transformer{SessionID: 2, Keys: keys, Policy: Policy{MustEncrypt: true}}

	out, err := outTr.Outgoing(&fakeHeader{}, newTestMessage("x"))
	require.NoError(t, err)

	_, err = inTr.Incoming(out, nil)
	assert.Error(t, err)
}

func TestIncomingRejectsNonZeroNoncePadding(t *testing.T) {
	key := bytes.Repeat([]byte{0x04}, crypto.KeySize)
	aead, err := crypto.NewAEAD(crypto.CipherAES128GCM, key)
	require.NoError(t, err)

	keys := &Keys{Encryptor: aead, Decryptor: aead}
	outTr := &Transformer{SessionID: 5, Keys: keys, Policy: Policy{MustEncrypt: true}}
	inTr := &Transformer{SessionID: 5, Keys: keys, Policy: Policy{MustEncrypt: true}}

	out, err := outTr.Outgoing(&fakeHeader{}, newTestMessage("x"))
	require.NoError(t, err)

	// The encryptor only ever writes NonceSize() bytes; patch a byte past it
	// to simulate a peer sending non-zero padding, which must be rejected.
	out[20+aead.NonceSize()] = 0xff

	_, err = inTr.Incoming(out, nil)
	assert.Error(t, err)
}

func TestIncomingRejectsDecompressedSizeAboveCap(t *testing.T) {
	tr := &Transformer{Policy: Policy{CompressionThreshold: 64, MaxDecompressedSize: 16}}
	msg := bytes.Repeat([]byte{0x41}, 200)

	out, err := tr.Outgoing(&fakeHeader{}, msg)
	require.NoError(t, err)
	assert.NotEqual(t, msg, out)

	_, err = tr.Incoming(out, nil)
	assert.Error(t, err)
}

func TestOutgoingRequiresEncryptionKeyWhenMandated(t *testing.T) {
	tr := &Transformer{Policy: Policy{MustEncrypt: true}}
	_, err := tr.Outgoing(&fakeHeader{}, newTestMessage("x"))
	assert.Error(t, err)
}

func TestCompressionAppliesAboveThreshold(t *testing.T) {
	tr := &Transformer{Policy: Policy{CompressionThreshold: 64}}
	// CompressIfWorthwhile's Pattern_V1 path only fires for a uniform byte
	// run, so the whole wire buffer (not just a "body" tacked onto a
	// zero-filled fake header) must be one repeated byte.
	msg := bytes.Repeat([]byte{0x41}, 200)

	out, err := tr.Outgoing(&fakeHeader{}, msg)
	require.NoError(t, err)
	assert.NotEqual(t, msg, out)

	plain, err := tr.Incoming(out, nil)
	require.NoError(t, err)
	assert.Equal(t, msg, plain)
}
