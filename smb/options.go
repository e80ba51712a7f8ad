package smb

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/relsmb/smb2/smb/auth"
)

// TransportKind selects the byte-stream endpoint a Connection dials.
type TransportKind int

const (
	TransportTCP TransportKind = iota
	TransportNetBIOS
	TransportQUIC
)

func (t TransportKind) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportNetBIOS:
		return "netbios"
	case TransportQUIC:
		return "quic"
	default:
		return "unknown"
	}
}

// DefaultPort returns the conventional port for the transport kind.
func (t TransportKind) DefaultPort() int {
	switch t {
	case TransportTCP:
		return 445
	case TransportNetBIOS:
		return 139
	case TransportQUIC:
		return 443
	default:
		return 445
	}
}

// EncryptionMode mirrors the original client's three-state encryption policy.
type EncryptionMode int

const (
	// EncryptionAllowed lets the server decide whether to encrypt.
	EncryptionAllowed EncryptionMode = iota
	// EncryptionRequired fails the connection if the server can't encrypt.
	EncryptionRequired
	// EncryptionDisabled never negotiates encryption.
	EncryptionDisabled
)

func (m EncryptionMode) IsRequired() bool { return m == EncryptionRequired }
func (m EncryptionMode) IsDisabled() bool { return m == EncryptionDisabled }

// ThreadingModel selects which of the two externally-equivalent Worker
// backends handles the duplex loop (see DESIGN.md Open Question 4).
type ThreadingModel int

const (
	// ThreadingCooperative runs the reader/writer as plain goroutines
	// sharing the runtime's scheduler.
	ThreadingCooperative ThreadingModel = iota
	// ThreadingPinned additionally locks the reader/writer goroutines to
	// their own OS thread via runtime.LockOSThread.
	ThreadingPinned
)

// QUICCertPolicy configures TLS certificate validation for the QUIC transport.
type QUICCertPolicy struct {
	// InsecureSkipVerify disables validation entirely (testing only).
	InsecureSkipVerify bool
	// RootCAs, when non-nil, is used unchanged as the QUIC transport's whole
	// TLS configuration in place of the default one.
	RootCAs *tls.Config
}

// ConnectionConfig configures a single Connection.
type ConnectionConfig struct {
	Transport   TransportKind
	Port        int
	Timeout     time.Duration
	MinDialect  uint16
	MaxDialect  uint16
	Encryption  EncryptionMode
	// SMB2OnlyNegotiate skips the multi-protocol SMB1 probe (spec.md §6).
	SMB2OnlyNegotiate bool
	// ClientName is sent as the NetName negotiate context when 3.1.1 is
	// offered. It is not used as the NetBIOS calling name (the NetBIOS
	// transport always sends "SmbClient") nor as an NTLM workstation name
	// (none is sent).
	ClientName string
	Threading  ThreadingModel
	QUICCert   QUICCertPolicy
	// CompressionThreshold is the minimum plain-message size, in bytes,
	// above which the Transformer attempts compression.
	CompressionThreshold int
	// MaxDecompressedSize caps the original_size/count a peer may claim in a
	// compressed envelope before the client allocates a buffer for it.
	MaxDecompressedSize uint32
}

// DefaultConnectionConfig returns the client's baseline configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Transport:            TransportTCP,
		Timeout:              30 * time.Second,
		MinDialect:           DialectSMB202,
		MaxDialect:           DialectSMB311,
		Encryption:           EncryptionAllowed,
		ClientName:           "SmbClient",
		Threading:            ThreadingCooperative,
		CompressionThreshold: 4096,
		MaxDecompressedSize:  16 << 20, // 16 MiB
	}
}

// Validate enforces the invariants spec.md §6 implies (min <= max dialect,
// port in range, transport-specific fields consistent).
func (c *ConnectionConfig) Validate() error {
	if c.MinDialect != 0 && c.MaxDialect != 0 && c.MinDialect > c.MaxDialect {
		return fmt.Errorf("%w: min_dialect > max_dialect", ErrInvalidConfiguration)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port out of range", ErrInvalidConfiguration)
	}
	return nil
}

func (c *ConnectionConfig) effectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	return c.Transport.DefaultPort()
}

// AuthMethods enables/disables individual GSS mechanisms.
type AuthMethods struct {
	NTLM      bool
	Kerberos  bool
}

// DFSResolver is the external collaborator spec.md §4.10 names: given a UNC
// path that a tree-connect rejected with STATUS_PATH_NOT_COVERED, it
// resolves the (server, share, residual path) to retry against.
type DFSResolver interface {
	Resolve(unc UNCPath) (UNCPath, error)
}

// ClientConfig configures the client surface above a Connection.
type ClientConfig struct {
	DFS         bool
	Resolver    DFSResolver
	Connection  ConnectionConfig
	Auth        AuthMethods
	// AllowUnsignedGuestAccess permits a guest/anonymous session to proceed
	// without signing, per spec.md §4.8.
	AllowUnsignedGuestAccess bool
}

// DefaultClientConfig mirrors the original client's defaults (DFS on).
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DFS:        true,
		Connection: DefaultConnectionConfig(),
		Auth:       AuthMethods{NTLM: true, Kerberos: true},
	}
}

// Options is the entrypoint configuration, generalized from the teacher's
// smb.Options{Host, Port, Initiator} literal shape.
type Options struct {
	Host      string
	Port      int
	Initiator auth.Initiator
	Config    ClientConfig
}
