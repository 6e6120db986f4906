// Package commitments implements a binding commitment to request parameters.
package commitments

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Size is the length of a commitment in bytes.
const Size = sha256.Size

// Commit returns a commitment to `body`, separated from commitments in other
// domains by `domain`.
func Commit(domain string, body []byte) [Size]byte {
	mac := hmac.New(sha256.New, []byte(domain))
	mac.Write(body)

	var out [Size]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Verify returns true if `commitment` corresponds to a commitment to `body` in
// the given domain.
func Verify(domain string, body, commitment []byte) bool {
	cand := Commit(domain, body)
	return hmac.Equal(commitment, cand[:])
}
