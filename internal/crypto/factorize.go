package crypto

import "math/big"

// FactorizePQ splits the server-supplied pq into its two prime factors p
// and q (p < q) using Pollard's rho method, since pq is always the
// product of exactly two ~32-bit primes and trial division over that
// range is too slow for a handshake's latency budget. Cycles are detected
// with Floyd's tortoise-and-hare step (x advances once and y twice per
// iteration); Brent's cycle-detection variant is not used.
func FactorizePQ(pq *big.Int) (p, q *big.Int) {
	if pq.Bit(0) == 0 {
		two := big.NewInt(2)
		return two, new(big.Int).Div(pq, two)
	}

	g := pollardBrent(pq)
	other := new(big.Int).Div(pq, g)
	if g.Cmp(other) < 0 {
		return g, other
	}
	return other, g
}

// pollardBrent finds a nontrivial factor of n, retrying with a different
// pseudo-random sequence parameter whenever a run degenerates to n itself.
func pollardBrent(n *big.Int) *big.Int {
	if n.Bit(0) == 0 {
		return big.NewInt(2)
	}

	one := big.NewInt(1)
	for c := int64(1); ; c++ {
		cc := big.NewInt(c)
		if g := pollardBrentAttempt(n, cc); g != nil && g.Cmp(one) > 0 && g.Cmp(n) < 0 {
			return g
		}
	}
}

func pollardBrentAttempt(n, c *big.Int) *big.Int {
	f := func(x *big.Int) *big.Int {
		r := new(big.Int).Mul(x, x)
		r.Add(r, c)
		r.Mod(r, n)
		return r
	}

	x := big.NewInt(2)
	y := big.NewInt(2)
	d := big.NewInt(1)
	one := big.NewInt(1)

	diff := new(big.Int)
	for d.Cmp(one) == 0 {
		x = f(x)
		y = f(f(y))
		diff.Sub(x, y)
		diff.Abs(diff)
		if diff.Sign() == 0 {
			return nil
		}
		d = new(big.Int).GCD(nil, nil, diff, n)
	}
	if d.Cmp(n) == 0 {
		return nil
	}
	return d
}
