package crypto

import (
	"math/big"

	"github.com/ansel1/merry/v2"
)

// RSAEncrypt implements the non-standard RSA padding spec.md §4.2 step 3
// requires for p_q_inner_data: not PKCS1v1.5 but "SHA1(data) + data,
// zero-padded/left-aligned into 255 bytes, reject and retry with extra
// random padding if the resulting number is >= the RSA modulus." Go's
// crypto/rsa only speaks PKCS1v1.5/OAEP, so this operates directly on
// math/big the way the original C++ client's rsa_pad does.
func RSAEncrypt(data []byte, n, e *big.Int) ([]byte, error) {
	if len(data) > 144 {
		return nil, merry.Errorf("crypto: RSAEncrypt data too long (%d bytes)", len(data))
	}

	for attempt := 0; attempt < 16; attempt++ {
		hash := SHA1(data)
		padded := make([]byte, 255)
		copy(padded[0:20], hash[:])
		copy(padded[20:], data)
		// Remaining bytes are random padding; the high byte must keep the
		// resulting integer strictly less than the modulus.
		rest := padded[20+len(data):]
		copy(rest, SecureRandom(len(rest)))

		m := new(big.Int).SetBytes(padded)
		if m.Cmp(n) >= 0 {
			continue
		}

		c := new(big.Int).Exp(m, e, n)
		out := c.Bytes()
		if len(out) < 256 {
			buf := make([]byte, 256)
			copy(buf[256-len(out):], out)
			out = buf
		}
		return out, nil
	}
	return nil, merry.New("crypto: RSAEncrypt: failed to find a valid padding after 16 attempts")
}
