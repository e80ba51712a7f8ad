package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeHeader(body string) []byte {
	buf := make([]byte, 64+len(body))
	copy(buf[64:], body)
	return buf
}

func TestJoinSplitCompoundRoundTrip(t *testing.T) {
	msgs := [][]byte{fakeHeader("first"), fakeHeader("second-msg"), fakeHeader("third")}
	joined := JoinCompound(msgs)

	split, err := SplitCompound(joined)
	require.NoError(t, err)
	require.Len(t, split, 3)
	for i, m := range split {
		want := padTo8(msgs[i])
		if i < len(msgs)-1 {
			binary.LittleEndian.PutUint32(want[headerNextCommandOffset:headerNextCommandOffset+4], uint32(len(want)))
		}
		assert.Equal(t, want, m)
	}
}

func TestSplitCompoundSingleMessage(t *testing.T) {
	msg := fakeHeader("solo")
	split, err := SplitCompound(msg)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{msg}, split)
}

func TestSplitCompoundMisalignedOffset(t *testing.T) {
	buf := fakeHeader("x")
	buf[headerNextCommandOffset] = 3 // not 8-byte aligned, non-zero
	_, err := SplitCompound(buf)
	assert.Error(t, err)
}

func TestPadTo8(t *testing.T) {
	assert.Equal(t, 8, len(padTo8(make([]byte, 5))))
	assert.Equal(t, 8, len(padTo8(make([]byte, 8))))
	assert.Equal(t, 16, len(padTo8(make([]byte, 9))))
}
