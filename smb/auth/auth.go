// Package auth implements the GSS/SPNEGO authentication loop (component C8)
// that drives NTLMv2 and Kerberos token exchange for SMB2/3 session setup.
package auth

import (
	"encoding/asn1"
	"errors"

	"github.com/jfjallid/golog"
)

var log = golog.Get("smb/auth")

// ErrMechanismRejected is returned when the server's SPNEGO response
// declines every mechanism the client offered.
var ErrMechanismRejected = errors.New("auth: no acceptable mechanism")

// Initiator is a single GSS mechanism's client half: it turns server tokens
// into client tokens and, once complete, yields the keys SMB2 signing and
// encryption are derived from. The shape mirrors the Initiator contracts
// used throughout the go-smb2 family (oid/initSecContext/acceptSecContext/
// sum/sessionKey).
type Initiator interface {
	// Oid identifies the GSS mechanism for the SPNEGO mechTypes list.
	Oid() asn1.ObjectIdentifier
	// InitSecContext produces the first token to send to the server.
	InitSecContext() ([]byte, error)
	// AcceptSecContext consumes the server's response token (possibly nil
	// on the first round-trip) and produces the client's next token, or nil
	// once the mechanism considers itself complete.
	AcceptSecContext(token []byte) (response []byte, done bool, err error)
	// Sum returns a MIC (message integrity code) over data, used for the
	// SPNEGO mechListMIC when the mechanism supports integrity.
	Sum(data []byte) []byte
	// SessionKey returns the 16-byte master session key once the mechanism
	// has completed; behavior before completion is undefined.
	SessionKey() []byte
}

// Step is the result of one Authenticator.Next call.
type Step struct {
	// Token is the bytes to send to the server in the next SessionSetup
	// request, or nil if nothing further needs to be sent.
	Token []byte
	// Complete is true once the Authenticator has nothing further to send
	// and is waiting only on the server's final status.
	Complete bool
}

// Authenticator drives the client side of the SPNEGO negotiation described
// in spec.md §4.8: fed the server's tokens (starting with the Negotiate
// response's initial token), it produces the tokens to send, ending with a
// 16-byte session base key.
type Authenticator interface {
	// Next advances the authentication state machine by one round.
	Next(serverToken []byte) (Step, error)
	// SessionKey returns the chosen mechanism's master session key, or nil
	// before a mechanism has been chosen. It is not gated on Complete: it
	// returns whatever key the mechanism holds at the time of the call.
	SessionKey() []byte
	// Mechanism reports which mechanism ultimately won negotiation, once
	// known (empty before the first round completes).
	Mechanism() string
}
