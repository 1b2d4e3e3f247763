package crypto

import (
	"math/big"

	"github.com/ansel1/merry/v2"
)

// GenerateDHPrivate returns a random exponent in [2, dhPrime-2], the range
// spec.md §4.2 step 4 requires for both the server's and client's DH
// secret.
func GenerateDHPrivate(dhPrime *big.Int) *big.Int {
	limit := new(big.Int).Sub(dhPrime, big.NewInt(2))
	for {
		b := SecureRandom(256)
		x := new(big.Int).SetBytes(b)
		if x.Cmp(big.NewInt(1)) > 0 && x.Cmp(limit) <= 0 {
			return x
		}
	}
}

// ModExp computes base^exp mod mod.
func ModExp(base, exp, mod *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, mod)
}

// IsSafePrime reports whether p looks like one of Telegram's well-known
// 2048-bit safe DH primes: p and (p-1)/2 both pass a probabilistic
// primality test. spec.md §4.2 step 4 requires the client reject any
// server-supplied prime that fails this check before ever using it as a
// modulus.
func IsSafePrime(p *big.Int) bool {
	if !p.ProbablyPrime(30) {
		return false
	}
	q := new(big.Int).Sub(p, big.NewInt(1))
	q.Rsh(q, 1)
	return q.ProbablyPrime(30)
}

// ValidGAOrder reports whether g_a lies in the open interval (1, p-1), the
// bound spec.md §4.2 step 4 requires to rule out small-subgroup values
// that would degenerate the shared secret.
func ValidGAOrder(ga, p *big.Int) bool {
	one := big.NewInt(1)
	pMinusOne := new(big.Int).Sub(p, one)
	return ga.Cmp(one) > 0 && ga.Cmp(pMinusOne) < 0
}

// ValidGenerator checks g against the short list of generators Telegram's
// servers are known to pair with specific well-known primes (spec.md §4.2
// step 4's "validate (g, dh_prime) against the known-good pairs").
func ValidGenerator(g int32) bool {
	switch g {
	case 2, 3, 4, 5, 6, 7:
		return true
	default:
		return false
	}
}

// CheckDHParams runs the full set of sanity checks spec.md §4.2 step 4
// requires on server-supplied DH parameters before they are trusted.
func CheckDHParams(g int32, dhPrime, ga *big.Int) error {
	if !ValidGenerator(g) {
		return merry.Errorf("crypto: DH: unexpected generator %d", g)
	}
	if dhPrime.BitLen() != 2048 {
		return merry.Errorf("crypto: DH: dh_prime is not 2048 bits (got %d)", dhPrime.BitLen())
	}
	if !IsSafePrime(dhPrime) {
		return merry.New("crypto: DH: dh_prime failed safe-prime check")
	}
	if !ValidGAOrder(ga, dhPrime) {
		return merry.New("crypto: DH: g_a out of valid range")
	}
	return nil
}
