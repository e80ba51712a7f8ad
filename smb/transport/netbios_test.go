package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNetBIOSNameHalfASCII(t *testing.T) {
	encoded := encodeNetBIOSName("*SMBSERVER", 0x20)
	assert.Len(t, encoded, 32)
	// 'A'-'P' alphabet: high/low nibbles of '*' (0x2a) are 0x2 and 0xa.
	assert.Equal(t, byte('A'+0x2), encoded[0])
	assert.Equal(t, byte('A'+0xa), encoded[1])
}

func TestNetBIOSSessionSetupPositiveResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	n := &NetBIOSTransport{tcp: &TCPTransport{conn: clientConn}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, n.sessionSetup())
	}()

	var hdr [4]byte
	_, err := serverConn.Read(hdr[:])
	require.NoError(t, err)
	assert.Equal(t, nbssSessionRequest, hdr[0])
	length := int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
	body := make([]byte, length)
	_, err = serverConn.Read(body)
	require.NoError(t, err)

	_, err = serverConn.Write([]byte{nbssPositiveSessionResp, 0, 0, 0})
	require.NoError(t, err)
	<-done
}

func TestNetBIOSSessionSetupNegativeResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	n := &NetBIOSTransport{tcp: &TCPTransport{conn: clientConn}}

	errCh := make(chan error, 1)
	go func() { errCh <- n.sessionSetup() }()

	var hdr [4]byte
	_, err := serverConn.Read(hdr[:])
	require.NoError(t, err)
	length := int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
	body := make([]byte, length)
	_, err = serverConn.Read(body)
	require.NoError(t, err)

	_, err = serverConn.Write([]byte{nbssNegativeSessionResp, 0, 0, 0})
	require.NoError(t, err)
	assert.Error(t, <-errCh)
}

func TestNetBIOSTransportDefaultPort(t *testing.T) {
	assert.Equal(t, 139, NewNetBIOSTransport().DefaultPort())
}
