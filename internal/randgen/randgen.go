// Package randgen provides the single CSPRNG surface used across the stack:
// verification tags, initial TSNs, STUN transaction IDs, cookie secrets, and
// ICE credential strings all draw from it.
package randgen

import (
	"crypto/rand"

	"github.com/pion/randutil"
)

// alphanumeric is the 62-symbol alphabet spec.md §4.2 requires for ICE
// ufrag/password generation.
const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Uint32 returns a cryptographically random 32-bit value, used for SCTP
// verification tags and initial TSNs.
func Uint32() (uint32, error) {
	v, err := randutil.CryptoUint64()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// Bytes fills b with cryptographically random bytes.
func Bytes(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// TransactionID returns a fresh 12-byte STUN transaction ID.
func TransactionID() ([12]byte, error) {
	var id [12]byte
	err := Bytes(id[:])
	return id, err
}

// AlphaNumeric returns a random string of length n drawn uniformly from the
// 62-symbol alphanumeric alphabet.
//
// Rejection sampling, not randutil's big.Int-modulo approach: a random byte
// b is kept only if b < 248 (4*62), then mapped by b%62. 248 is the largest
// multiple of 62 that fits in a byte, so every kept byte maps onto the
// alphabet with exactly uniform probability; without the rejection, byte
// values 248-255 would land on the first eight letters slightly more often.
func AlphaNumeric(n int) (string, error) {
	const rejectAt = 248 // largest multiple of len(alphanumeric) <= 256

	out := make([]byte, n)
	buf := make([]byte, 1)
	for i := 0; i < n; {
		if err := Bytes(buf); err != nil {
			return "", err
		}
		if buf[0] >= rejectAt {
			continue
		}
		out[i] = alphanumeric[int(buf[0])%len(alphanumeric)]
		i++
	}
	return string(out), nil
}
