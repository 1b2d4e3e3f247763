// Package crypto is the thin facade of spec.md §4.2/§4.4/§9: SHA1/SHA256,
// AES-IGE, Telegram-padded RSA, DH helpers, PQ factorization and CSPRNG —
// all standard-library primitives composed the protocol-specific way
// Telegram's MTProto 1.0 demands. See DESIGN.md for why none of this is
// sourced from a third-party crypto library.
package crypto

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // required by the MTProto 1.0 wire format
	"crypto/sha256"

	"github.com/ansel1/merry/v2"
)

// SHA1 hashes the concatenation of parts, matching the repeated
// "concat several fields, then SHA1" shapes spec.md §4.2/§4.4 use.
func SHA1(parts ...[]byte) [20]byte {
	h := sha1.New() //nolint:gosec
	for _, p := range parts {
		h.Write(p)
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SHA256 hashes the concatenation of parts. Nothing in this module calls
// it; no 2FA password flow is implemented here.
func SHA256(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SecureRandom returns n cryptographically secure random bytes, used for
// every nonce, DH exponent and message padding byte spec.md §3 requires a
// CSPRNG for.
func SecureRandom(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(merry.Wrap(err))
	}
	return b
}

// Zeroize overwrites b with zeros in place. Nothing in this module calls
// it yet: auth keys, DH exponents and salts are not zeroed when a client
// resets or re-keys.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
