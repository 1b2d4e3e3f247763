// Package rsakey holds the RSA public keys Telegram's servers use to
// encrypt p_q_inner_data during the handshake (spec.md §4.2 step 1/3), and
// selects among them by fingerprint the way the server's res_pq answer
// requires.
package rsakey

import (
	"crypto/x509"
	"encoding/pem"
	"math/big"

	"github.com/ansel1/merry/v2"

	"github.com/tplgy/tgl-go/internal/crypto"
	"github.com/tplgy/tgl-go/internal/tl"
)

// Key is one loaded RSA public key plus its MTProto fingerprint.
type Key struct {
	N           *big.Int
	E           *big.Int
	Fingerprint int64
}

// fingerprint is the low 64 bits of SHA1 of the TL-serialized (n, e) pair,
// per spec.md §4.2 step 1. This is also why internal/rsakey imports
// internal/tl rather than hand-rolling the same length-prefix framing.
func fingerprint(n, e *big.Int) int64 {
	enc := tl.NewEncoder(n.BitLen()/8 + e.BitLen()/8 + 16)
	enc.OutBignum(n)
	enc.OutBignum(e)
	h := crypto.SHA1(enc.Bytes())
	// low 8 bytes, little-endian, as a signed int64 the way msg fingerprints
	// are always read off the wire.
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(h[12+i]) << (8 * uint(i))
	}
	return int64(v)
}

// ParsePublicKeyPEM loads a "-----BEGIN RSA PUBLIC KEY-----" PEM block
// (the format Telegram publishes its production/test keys in) and returns
// the Key with its fingerprint computed.
func ParsePublicKeyPEM(pemData []byte) (Key, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return Key{}, merry.New("rsakey: no PEM block found")
	}

	// PKCS#1 RSAPublicKey ::= SEQUENCE { modulus INTEGER, publicExponent INTEGER },
	// exactly what Telegram's published keys contain.
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return Key{}, merry.Prepend(err, "rsakey: parse PKCS1 public key")
	}
	n := pub.N
	e := big.NewInt(int64(pub.E))
	return Key{N: n, E: e, Fingerprint: fingerprint(n, e)}, nil
}

// Registry holds every known key, indexed by fingerprint.
type Registry struct {
	keys map[int64]Key
}

// NewRegistry builds a registry from a set of loaded keys.
func NewRegistry(keys ...Key) *Registry {
	reg := &Registry{keys: make(map[int64]Key, len(keys))}
	for _, k := range keys {
		reg.keys[k.Fingerprint] = k
	}
	return reg
}

// Add registers an additional key, overwriting any existing entry with the
// same fingerprint.
func (r *Registry) Add(k Key) {
	r.keys[k.Fingerprint] = k
}

// Select returns the first key in fingerprints that the registry knows
// about, per spec.md §4.2 step 1's "pick the first known fingerprint from
// the server's list."
func (r *Registry) Select(fingerprints []int64) (Key, bool) {
	for _, fp := range fingerprints {
		if k, ok := r.keys[fp]; ok {
			return k, true
		}
	}
	return Key{}, false
}
