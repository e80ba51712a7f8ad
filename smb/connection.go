package smb

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/jfjallid/golog"

	"github.com/relsmb/smb2/smb/codec"
	"github.com/relsmb/smb2/smb/crypto"
	"github.com/relsmb/smb2/smb/transform"
	"github.com/relsmb/smb2/smb/transport"
	"github.com/relsmb/smb2/smb/worker"
)

var log = golog.Get("smb")

// ProtocolSmb is the 4-byte magic every plain SMB2 message starts with.
const ProtocolSmb = "\xfeSMB"

// Connection is one negotiated transport connection, driving the
// multi-protocol probe and SMB2 NEGOTIATE exchange of spec.md §4.7,
// grounded on the teacher's main.go "testNegotiation" usage contract.
type Connection struct {
	cfg       ConnectionConfig
	clientGUID GUID

	t transport.Transport
	w *worker.Worker

	dialect     uint16
	negResponse *NegotiateResponse

	preauth *crypto.PreauthHashState

	sessions map[uint64]*Session
}

// Dial connects to host:port and runs the negotiate handshake per
// spec.md §4.7.
func Dial(ctx context.Context, host string, cfg ConnectionConfig) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	guid, err := NewGUID()
	if err != nil {
		return nil, fmt.Errorf("smb: client guid: %w", err)
	}

	t, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.effectivePort()))
	if err := t.Connect(ctx, addr, cfg.Timeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportIO, err)
	}

	threading := worker.Cooperative
	if cfg.Threading == ThreadingPinned {
		threading = worker.Pinned
	}

	c := &Connection{
		cfg:        cfg,
		clientGUID: guid,
		t:          t,
		w:          worker.New(t, threading, nil),
		preauth:    crypto.NewPreauthHashState(),
		sessions:   make(map[uint64]*Session),
	}
	worker.SetDecoder(c.decodeForRouting)

	if err := c.negotiate(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newTransport(cfg ConnectionConfig) (transport.Transport, error) {
	switch cfg.Transport {
	case TransportTCP:
		return transport.NewTCPTransport(), nil
	case TransportNetBIOS:
		return transport.NewNetBIOSTransport(), nil
	case TransportQUIC:
		return transport.NewQUICTransport(transport.QUICCertPolicy{
			InsecureSkipVerify: cfg.QUICCert.InsecureSkipVerify,
			TLSConfig:          cfg.QUICCert.RootCAs,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport kind", ErrInvalidConfiguration)
	}
}

// decodeForRouting extracts the fields worker.Worker needs to route a
// received message without giving it direct knowledge of the SMB2 header
// layout.
func (c *Connection) decodeForRouting(msg []byte) (messageID uint64, status uint32, isPending bool, credit uint16, isNotification bool, asyncID uint64) {
	plain, err := c.transformerFor(c.sessionIDOf(msg)).Incoming(msg, nil)
	if err != nil {
		log.Debugln("smb: failed to unframe received message:", err)
		return 0, 0, false, 0, false, 0
	}
	h, err := DecodeHeader(plain)
	if err != nil {
		return 0, 0, false, 0, false, 0
	}
	credit = binary.LittleEndian.Uint16(plain[14:16])
	isNotification = h.Command == CommandOplockBreak && h.msgID == 0xffffffffffffffff
	isPending = h.Status == StatusPending
	if isPending && h.Flags.Async() {
		asyncID = h.AsyncID
	}
	return h.msgID, h.Status, isPending, credit, isNotification, asyncID
}

// sessionIDOf peeks the session id a received message carries without
// decrypting it, so the right per-session Transformer can be looked up
// before unframing: the transform header carries it directly for
// encrypted messages, and plain messages carry it at the fixed SMB2 header
// offset. Compressed and unrecognized messages map to session 0.
func (c *Connection) sessionIDOf(msg []byte) uint64 {
	switch codec.Sniff(msg) {
	case codec.KindEncrypted:
		env, err := codec.DecodeEncrypted(msg)
		if err != nil {
			return 0
		}
		return env.SessionID
	case codec.KindPlain:
		if len(msg) < HeaderSize {
			return 0
		}
		return binary.LittleEndian.Uint64(msg[40:48])
	default:
		return 0
	}
}

// transformerFor returns the Transformer for sessionID's keys, or an
// unkeyed Transformer (pre-session-setup / unsigned) when sessionID is 0
// or unknown.
func (c *Connection) transformerFor(sessionID uint64) *transform.Transformer {
	if s, ok := c.sessions[sessionID]; ok {
		return s.transformer
	}
	return &transform.Transformer{SessionID: sessionID}
}

func (c *Connection) negotiate(ctx context.Context) error {
	if !c.cfg.SMB2OnlyNegotiate {
		if err := c.probeMultiProto(ctx); err != nil {
			return err
		}
	}
	return c.negotiateSMB2(ctx)
}

// probeMultiProto sends the one-shot SMB1 probe spec.md §4.7 step 2
// describes; a server that answers with a plain SMB2 message here still
// requires the real SMB2 NEGOTIATE exchange that follows, so failure to
// get an SMB2-flavoured answer is the only thing treated as fatal here.
func (c *Connection) probeMultiProto(ctx context.Context) error {
	req := newMultiProtoNegotiateReq()
	buf, err := req.MarshalBinary(nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailure, err)
	}
	if err := c.t.Send(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportIO, err)
	}
	resp, err := c.t.Receive()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportIO, err)
	}
	if !isSMB2WildcardResponse(resp) {
		return fmt.Errorf("%w: server did not answer with an SMB2 message", ErrNegotiationFailure)
	}
	return nil
}

func (c *Connection) negotiateSMB2(ctx context.Context) error {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailure, err)
	}

	dialects := offeredDialects(c.cfg.MinDialect, c.cfg.MaxDialect)
	req := &NegotiateRequest{
		SecurityMode:          SecurityModeSigningEnabled,
		Capabilities:          CapDFS | CapLargeMTU | CapEncryption,
		ClientGUID:            c.clientGUID,
		Dialects:              dialects,
		HashSalt:              salt,
		SupportedCiphers:      []CipherID{CipherIDAES128GCM, CipherIDAES128CCM},
		CompressionAlgorithms: []CompressionAlgorithmID{CompressionIDPatternV1, CompressionIDNone},
		SigningAlgorithms:     []SigningAlgorithmID{SigningIDAESGMAC, SigningIDAESCMAC},
		ClientName:            c.cfg.ClientName,
	}
	if c.cfg.Encryption.IsDisabled() {
		req.Capabilities &^= CapEncryption
	}

	h := NewHeader(CommandNegotiate, c.w.NextMessageID())
	body := req.Encode()
	msg := append(h.Encode(), body...)

	c.preauth.Update(msg)

	recv, err := c.w.Send(ctx, h.msgID, h.CreditCharge, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportIO, err)
	}

	raw, ok := <-recv
	if !ok {
		return fmt.Errorf("%w: connection dropped during negotiate", ErrConnectionDropped)
	}

	plain, err := c.transformerFor(0).Incoming(raw, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailure, err)
	}
	c.preauth.Update(plain)

	respHdr, err := DecodeHeader(plain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailure, err)
	}
	if respHdr.Status != StatusSuccess {
		return &StatusError{Status: respHdr.Status, Op: "negotiate"}
	}

	negResp, err := DecodeNegotiateResponse(plain[HeaderSize:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailure, err)
	}

	if negResp.dialect == DialectSMB2Wildcard {
		return fmt.Errorf("%w: server only offered the SMB2 wildcard dialect", ErrNegotiationFailure)
	}

	c.dialect = negResp.dialect
	c.negResponse = negResp

	if c.cfg.Encryption.IsRequired() && !negResp.SupportsEncryption() {
		return fmt.Errorf("%w: server does not support encryption", ErrNegotiationFailure)
	}

	return nil
}

// Dialect reports the negotiated SMB2 dialect revision.
func (c *Connection) Dialect() uint16 { return c.dialect }

// NegotiateResponse exposes the parsed NEGOTIATE response for session setup.
func (c *Connection) NegotiateResponse() *NegotiateResponse { return c.negResponse }

// PreauthHash returns the rolling preauth integrity digest accumulated so
// far (negotiate + session setup messages), consumed once by SessionSetup
// to derive the session's signing/encryption keys.
func (c *Connection) PreauthHash() [64]byte { return c.preauth.Sum() }

// FeedPreauth folds additional on-wire bytes (session setup request or
// response) into the rolling preauth hash.
func (c *Connection) FeedPreauth(data []byte) { c.preauth.Update(data) }

// Close tears down the worker and underlying transport.
func (c *Connection) Close() error { return c.w.Close() }
