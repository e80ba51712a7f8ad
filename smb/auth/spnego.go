package auth

import (
	"encoding/asn1"
	"fmt"
)

// SpnegoOid is the SPNEGO mechanism's own OID (RFC 4178).
var SpnegoOid = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 2}

// negState values for NegTokenResp, RFC 4178 §4.2.2.
const (
	negStateAcceptCompleted  = 0
	negStateAcceptIncomplete = 1
	negStateReject           = 2
	negStateRequestMIC       = 3
)

// negTokenInit is the GSS-API NegotiationToken's negTokenInit choice
// (RFC 4178 §4.2.1), DER-encoded with explicit context tags.
type negTokenInit struct {
	MechTypes    []asn1.ObjectIdentifier `asn1:"explicit,tag:0"`
	ReqFlags     asn1.BitString          `asn1:"explicit,optional,tag:1"`
	MechToken    []byte                  `asn1:"explicit,optional,tag:2"`
	MechListMIC  []byte                  `asn1:"explicit,optional,tag:3"`
}

// negTokenResp is the NegotiationToken's negTokenResp choice.
type negTokenResp struct {
	NegState      int                   `asn1:"explicit,optional,tag:0"`
	SupportedMech asn1.ObjectIdentifier `asn1:"explicit,optional,tag:1"`
	ResponseToken []byte                `asn1:"explicit,optional,tag:2"`
	MechListMIC   []byte                `asn1:"explicit,optional,tag:3"`
}

// spnegoAuthenticator drives one or more candidate Initiators through a
// SPNEGO NegTokenInit/NegTokenResp exchange.
type spnegoAuthenticator struct {
	candidates []Initiator
	chosen     Initiator
	round      int
	complete   bool
	mechName   string
}

// NewSPNEGOAuthenticator builds an Authenticator that lists each of
// candidates' mechanism OIDs in order in its NegTokenInit and runs the
// first candidate's mechanism, sending that mechanism's initial token with
// the NegTokenInit. The server's supportedMech field is not consulted: the
// exchange never switches to another candidate.
func NewSPNEGOAuthenticator(candidates ...Initiator) Authenticator {
	return &spnegoAuthenticator{candidates: candidates}
}

func (s *spnegoAuthenticator) Mechanism() string { return s.mechName }

func (s *spnegoAuthenticator) SessionKey() []byte {
	if s.chosen == nil {
		return nil
	}
	return s.chosen.SessionKey()
}

func (s *spnegoAuthenticator) Next(serverToken []byte) (Step, error) {
	defer func() { s.round++ }()

	if s.round == 0 {
		return s.firstRound(serverToken)
	}
	return s.laterRound(serverToken)
}

func (s *spnegoAuthenticator) firstRound(serverToken []byte) (Step, error) {
	if len(s.candidates) == 0 {
		return Step{}, fmt.Errorf("auth: no candidate mechanisms configured")
	}
	s.chosen = s.candidates[0]
	s.mechName = mechName(s.chosen.Oid())

	mechToken, _, err := s.chosen.AcceptSecContext(nil)
	if err != nil {
		return Step{}, fmt.Errorf("auth: initial security context: %w", err)
	}

	mechTypes := make([]asn1.ObjectIdentifier, len(s.candidates))
	for i, c := range s.candidates {
		mechTypes[i] = c.Oid()
	}

	init := negTokenInit{MechTypes: mechTypes, MechToken: mechToken}
	body, err := asn1.Marshal(init)
	if err != nil {
		return Step{}, fmt.Errorf("auth: marshal negTokenInit: %w", err)
	}

	token, err := wrapInitialToken(SpnegoOid, body)
	if err != nil {
		return Step{}, err
	}
	return Step{Token: token}, nil
}

func (s *spnegoAuthenticator) laterRound(serverToken []byte) (Step, error) {
	var resp negTokenResp
	if len(serverToken) > 0 {
		if _, err := asn1.UnmarshalWithParams(serverToken, &resp, "explicit,tag:1"); err != nil {
			// Some servers omit the outer CHOICE tag; try bare.
			if _, err2 := asn1.Unmarshal(serverToken, &resp); err2 != nil {
				return Step{}, fmt.Errorf("auth: unmarshal negTokenResp: %w", err)
			}
		}
	}

	if resp.NegState == negStateReject {
		return Step{}, ErrMechanismRejected
	}

	respToken, done, err := s.chosen.AcceptSecContext(resp.ResponseToken)
	if err != nil {
		return Step{}, fmt.Errorf("auth: accept security context: %w", err)
	}

	if len(respToken) == 0 && (done || resp.NegState == negStateAcceptCompleted) {
		s.complete = true
		return Step{Complete: true}, nil
	}

	out := negTokenResp{ResponseToken: respToken}
	body, err := asn1.Marshal(out)
	if err != nil {
		return Step{}, fmt.Errorf("auth: marshal negTokenResp: %w", err)
	}
	wrapped, err := asn1.MarshalWithParams(asn1.RawValue{FullBytes: body}, "explicit,tag:1")
	if err != nil {
		return Step{}, err
	}

	s.complete = done || resp.NegState == negStateAcceptCompleted
	return Step{Token: wrapped, Complete: s.complete && len(respToken) == 0}, nil
}

// wrapInitialToken produces the GSS-API generic token framing
// (RFC 2743 §3.1) around the first SPNEGO NegTokenInit: an APPLICATION 0
// constructed tag containing the mechanism OID followed by the inner bytes.
func wrapInitialToken(mech asn1.ObjectIdentifier, inner []byte) ([]byte, error) {
	oidBytes, err := asn1.Marshal(mech)
	if err != nil {
		return nil, err
	}
	choice, err := asn1.MarshalWithParams(asn1.RawValue{FullBytes: inner}, "explicit,tag:0")
	if err != nil {
		return nil, err
	}
	payload := append(oidBytes, choice...)
	return append(gssAppTagHeader(len(payload)), payload...), nil
}

// gssAppTagHeader encodes the ASN.1 APPLICATION 0 constructed tag/length
// header (tag byte 0x60) for a payload of the given length.
func gssAppTagHeader(payloadLen int) []byte {
	length := encodeASN1Length(payloadLen)
	return append([]byte{0x60}, length...)
}

func encodeASN1Length(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return append([]byte{0x80 | byte(len(b))}, b...)
}

func mechName(oid asn1.ObjectIdentifier) string {
	switch {
	case oid.Equal(NTLMSSPOid):
		return "NTLM"
	case oid.Equal(KerberosOid):
		return "Kerberos"
	default:
		return oid.String()
	}
}
