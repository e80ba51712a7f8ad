// Package crypto implements the preauth integrity hash, the SP800-108 KBKDF,
// and the signing/AEAD primitives SMB2/3 needs (components C2/C3).
package crypto

import "crypto/sha512"

// PreauthHashSize is the rolling SHA-512 digest size, spec.md §3.
const PreauthHashSize = 64

// PreauthHashState is the rolling preauth integrity hash described in
// spec.md §4.2 and grounded on
// original_source/smb/src/connection/preauth_hash.rs: a two-state value
// (InProgress/Finished) that panics on misuse: Update after Finish and a
// second Finish both panic. Sum does not check the state and returns the
// current digest whether or not Finish has been called.
type PreauthHashState struct {
	digest   [PreauthHashSize]byte
	finished bool
}

// NewPreauthHashState returns a fresh state seeded with 64 zero bytes.
func NewPreauthHashState() *PreauthHashState {
	return &PreauthHashState{}
}

// Update folds the on-wire bytes of one negotiate/session-setup message into
// the running hash: H := SHA-512(H || data).
func (p *PreauthHashState) Update(data []byte) {
	if p.finished {
		panic("crypto: preauth hash updated after Finish")
	}
	h := sha512.New()
	h.Write(p.digest[:])
	h.Write(data)
	copy(p.digest[:], h.Sum(nil))
}

// Finish transitions the state to Finished; further Update calls panic.
func (p *PreauthHashState) Finish() {
	if p.finished {
		panic("crypto: preauth hash finished twice")
	}
	p.finished = true
}

// Finished reports whether Finish has been called.
func (p *PreauthHashState) Finished() bool { return p.finished }

// Sum returns the current (or final) 64-byte digest.
func (p *PreauthHashState) Sum() [PreauthHashSize]byte {
	return p.digest
}
