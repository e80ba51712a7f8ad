package smb

import "crypto/rand"

// GUID is a 16-byte identifier, used for the client GUID generated once per
// client (spec.md §4.7 step 3) and for server GUIDs in NegotiatedProperties.
type GUID [16]byte

// NewGUID generates a random client GUID via crypto/rand, matching spec.md's
// "Client GUID is randomly generated once per client."
func NewGUID() (GUID, error) {
	var g GUID
	_, err := rand.Read(g[:])
	return g, err
}
