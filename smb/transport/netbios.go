package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// NetBIOSDefaultPort is the NetBIOS session service's well-known port,
// spec.md §4.1.
const NetBIOSDefaultPort = 139

const (
	nbssSessionRequest      byte = 0x81
	nbssPositiveSessionResp byte = 0x82
	nbssNegativeSessionResp byte = 0x83
	nbssRetargetSessionResp byte = 0x84
)

// NetBIOSTransport wraps a TCPTransport with the one-time NetBIOS session
// request/response handshake; once established, framing is identical to
// direct TCP, per
// original_source/smb/src/connection/transport/netbios.rs's NetBiosTransport
// ("SMB2 default transport (TCP) is actually compatible with NetBIOS, after
// setting up the session").
type NetBIOSTransport struct {
	tcp *TCPTransport
}

// NewNetBIOSTransport returns an unconnected NetBIOS-session transport.
func NewNetBIOSTransport() *NetBIOSTransport {
	return &NetBIOSTransport{tcp: NewTCPTransport()}
}

func (n *NetBIOSTransport) DefaultPort() int { return NetBIOSDefaultPort }

func (n *NetBIOSTransport) Connect(ctx context.Context, addr string, timeout time.Duration) error {
	if err := n.tcp.Connect(ctx, addr, timeout); err != nil {
		return err
	}
	return n.sessionSetup()
}

// encodeNetBIOSName applies the first-level NetBIOS name encoding (MS-SMB2
// calling/called names are padded to 16 bytes and half-ASCII-encoded),
// here reduced to the fixed names SMB2 clients always use.
func encodeNetBIOSName(name string, suffix byte) []byte {
	padded := make([]byte, 16)
	copy(padded, name)
	padded[15] = suffix
	out := make([]byte, 32)
	for i, b := range padded {
		out[2*i] = 'A' + (b >> 4)
		out[2*i+1] = 'A' + (b & 0x0f)
	}
	return out
}

func (n *NetBIOSTransport) sessionSetup() error {
	var body []byte
	body = append(body, 0x20) // length byte of encoded called name
	body = append(body, encodeNetBIOSName("*SMBSERVER", 0x20)...)
	body = append(body, 0x00) // null name-scope terminator
	body = append(body, 0x20)
	body = append(body, encodeNetBIOSName("SmbClient", 0x00)...)
	body = append(body, 0x00)

	// NBSS header: 1-byte type, 3-byte big-endian length.
	hdr := [4]byte{nbssSessionRequest}
	hdr[1] = byte(len(body) >> 16)
	hdr[2] = byte(len(body) >> 8)
	hdr[3] = byte(len(body))

	if err := n.tcp.SendRaw(hdr[:]); err != nil {
		return fmt.Errorf("transport: netbios session request header: %w", err)
	}
	if err := n.tcp.SendRaw(body); err != nil {
		return fmt.Errorf("transport: netbios session request body: %w", err)
	}

	var respHdr [4]byte
	if err := n.tcp.ReceiveExact(respHdr[:]); err != nil {
		return fmt.Errorf("transport: netbios session response header: %w", err)
	}
	length := binary.BigEndian.Uint32(respHdr[:]) & 0x0001ffff
	trailer := make([]byte, length)
	if length > 0 {
		if err := n.tcp.ReceiveExact(trailer); err != nil {
			return fmt.Errorf("transport: netbios session response trailer: %w", err)
		}
	}

	switch respHdr[0] {
	case nbssPositiveSessionResp:
		return nil
	case nbssNegativeSessionResp:
		return fmt.Errorf("transport: netbios session request rejected")
	case nbssRetargetSessionResp:
		return fmt.Errorf("transport: netbios session retarget not supported")
	default:
		return fmt.Errorf("transport: unexpected netbios session response type 0x%02x", respHdr[0])
	}
}

func (n *NetBIOSTransport) Send(msg []byte) error    { return n.tcp.Send(msg) }
func (n *NetBIOSTransport) Receive() ([]byte, error) { return n.tcp.Receive() }
func (n *NetBIOSTransport) Close() error             { return n.tcp.Close() }
