package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// opaqueTokenBytes gives 256 bits of entropy, well above the floor needed
// for a single-use bearer credential.
const opaqueTokenBytes = 32

// NewOpaqueToken returns a cryptographically random, URL-safe token used
// as a single-use bearer credential (email verification or password
// reset). Tokens encode nothing; all state is looked up by value.
func NewOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
