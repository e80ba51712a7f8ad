package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	assert.Equal(t, KindPlain, Sniff([]byte{0xfe, 'S', 'M', 'B', 0, 0}))
	assert.Equal(t, KindCompressed, Sniff([]byte{0xfc, 'S', 'M', 'B'}))
	assert.Equal(t, KindEncrypted, Sniff([]byte{0xfd, 'S', 'M', 'B'}))
	assert.Equal(t, KindUnknown, Sniff([]byte{0x00, 0x01, 0x02}))
	assert.Equal(t, KindUnknown, Sniff(nil))
}

func TestEncryptedEnvelopeRoundTrip(t *testing.T) {
	e := &EncryptedEnvelope{
		Signature:   [16]byte{1, 2, 3},
		Nonce:       [16]byte{4, 5, 6},
		OriginalLen: 128,
		SessionID:   0xdeadbeef,
		Ciphertext:  []byte("ciphertext bytes go here"),
	}
	buf := e.Encode()
	assert.Equal(t, KindEncrypted, Sniff(buf))

	got, err := DecodeEncrypted(buf)
	require.NoError(t, err)
	assert.Equal(t, e.Signature, got.Signature)
	assert.Equal(t, e.Nonce, got.Nonce)
	assert.Equal(t, e.OriginalLen, got.OriginalLen)
	assert.Equal(t, e.SessionID, got.SessionID)
	assert.Equal(t, e.Ciphertext, got.Ciphertext)
	assert.Equal(t, uint16(1), got.Flags)
}

func TestDecodeEncryptedShort(t *testing.T) {
	_, err := DecodeEncrypted([]byte{0xfd, 'S', 'M', 'B'})
	assert.Error(t, err)
}

func TestDecodeEncryptedRejectsZeroSessionID(t *testing.T) {
	e := &EncryptedEnvelope{SessionID: 0, Ciphertext: []byte("ct")}
	_, err := DecodeEncrypted(e.Encode())
	assert.Error(t, err)
}
