package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICDefaultPort is the well-known SMB-over-QUIC port, spec.md §4.1.
const QUICDefaultPort = 443

// smbALPN is the ALPN protocol id SMB-over-QUIC negotiates, MS-SMB2 2.1.
const smbALPN = "smb"

// QUICCertPolicy configures server certificate validation for the QUIC
// transport (spec.md §9's open question on platform cert validation is
// resolved here by letting the caller supply a *tls.Config directly rather
// than this client guessing a platform trust store API).
type QUICCertPolicy struct {
	InsecureSkipVerify bool
	TLSConfig          *tls.Config // takes precedence when non-nil
}

// QUICTransport carries SMB2 messages over a single QUIC bidirectional
// stream, grounded on
// original_source/smb/src/connection/transport/quic.rs's QuicTransport
// (one endpoint, one stream pair, ALPN-gated handshake) adapted from
// quinn/rustls to quic-go/crypto-tls.
type QUICTransport struct {
	certPolicy QUICCertPolicy
	conn       quic.Connection
	stream     quic.Stream
}

// NewQUICTransport returns an unconnected QUIC transport using policy for
// server certificate validation.
func NewQUICTransport(policy QUICCertPolicy) *QUICTransport {
	return &QUICTransport{certPolicy: policy}
}

func (q *QUICTransport) DefaultPort() int { return QUICDefaultPort }

func (q *QUICTransport) tlsConfig(serverName string) *tls.Config {
	if q.certPolicy.TLSConfig != nil {
		return q.certPolicy.TLSConfig
	}
	return &tls.Config{
		ServerName:         serverName,
		NextProtos:         []string{smbALPN},
		InsecureSkipVerify: q.certPolicy.InsecureSkipVerify,
	}
}

func (q *QUICTransport) Connect(ctx context.Context, addr string, timeout time.Duration) error {
	dialCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	serverName, _, err := splitHostPort(addr)
	if err != nil {
		return fmt.Errorf("transport: quic address: %w", err)
	}

	conn, err := quic.DialAddr(dialCtx, addr, q.tlsConfig(serverName), nil)
	if err != nil {
		return fmt.Errorf("transport: quic dial %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(dialCtx)
	if err != nil {
		return fmt.Errorf("transport: quic open stream: %w", err)
	}
	q.conn = conn
	q.stream = stream
	return nil
}

func splitHostPort(addr string) (host string, port string, err error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("missing port in address %q", addr)
}

// Send writes the same 4-byte big-endian length prefix the TCP transport
// uses; SMB-over-QUIC keeps direct-TCP framing on top of the QUIC stream.
func (q *QUICTransport) Send(msg []byte) error {
	if len(msg) > maxMessageSize {
		return fmt.Errorf("transport: message too large (%d bytes)", len(msg))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := q.stream.Write(hdr[:]); err != nil {
		return fmt.Errorf("transport: quic write header: %w", err)
	}
	if _, err := q.stream.Write(msg); err != nil {
		return fmt.Errorf("transport: quic write body: %w", err)
	}
	return nil
}

func (q *QUICTransport) Receive() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(q.stream, hdr[:]); err != nil {
		return nil, fmt.Errorf("transport: quic read header: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:]) & maxMessageSize
	buf := make([]byte, n)
	if _, err := io.ReadFull(q.stream, buf); err != nil {
		return nil, fmt.Errorf("transport: quic read body: %w", err)
	}
	return buf, nil
}

func (q *QUICTransport) Close() error {
	if q.stream != nil {
		q.stream.Close()
	}
	if q.conn != nil {
		return q.conn.CloseWithError(0, "")
	}
	return nil
}
