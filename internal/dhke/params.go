// Package dhke implements the iterated Diffie-Hellman exchange: a per-user
// base exponent that is fixed at the first handshake and shifted by an
// iteration counter on every following one.
package dhke

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	minPrimeBits = 16
	primeRounds  = 20
)

var (
	ErrPrimeTooSmall   = errors.New("prime size too small")
	ErrNotPrime        = errors.New("modulus is not prime")
	ErrNotPrimitive    = errors.New("generator is not a primitive root")
	ErrNoPrimitiveRoot = errors.New("no primitive root found")

	one = big.NewInt(1)
	two = big.NewInt(2)
)

// Parameters are the public group parameters. P is a safe prime, so the
// factorization of P-1 is known and the order of G can be checked.
type Parameters struct {
	P       *big.Int
	G       *big.Int
	Factors []*big.Int
}

// GenerateParameters samples a safe prime p = 2q+1 of the given size and picks
// the smallest primitive root modulo p.
func GenerateParameters(random io.Reader, bits int) (*Parameters, error) {
	if bits < minPrimeBits {
		return nil, fmt.Errorf("%w: %d bits", ErrPrimeTooSmall, bits)
	}

	if random == nil {
		random = rand.Reader
	}

	for {
		q, err := rand.Prime(random, bits-1)
		if err != nil {
			return nil, fmt.Errorf("failed to sample prime: %w", err)
		}

		p := new(big.Int).Lsh(q, 1)
		p.Add(p, one)
		if !p.ProbablyPrime(primeRounds) {
			continue
		}

		params := &Parameters{P: p, Factors: []*big.Int{two, q}}
		if params.G, err = params.smallestPrimitiveRoot(); err != nil {
			return nil, err
		}

		if err = params.Verify(); err != nil {
			return nil, err
		}

		return params, nil
	}
}

// Verify checks that P is prime and that G has order P-1.
func (that *Parameters) Verify() error {
	if that.P == nil || !that.P.ProbablyPrime(primeRounds) {
		return ErrNotPrime
	}

	if that.G == nil || !that.isPrimitiveRoot(that.G) {
		return ErrNotPrimitive
	}

	return nil
}

func (that *Parameters) isPrimitiveRoot(g *big.Int) bool {
	pMinusOne := new(big.Int).Sub(that.P, one)
	if g.Cmp(one) <= 0 || g.Cmp(pMinusOne) >= 0 {
		return false
	}

	// the factors must describe P-1 completely
	rest := new(big.Int).Set(pMinusOne)
	for _, factor := range that.Factors {
		if !factor.ProbablyPrime(primeRounds) {
			return false
		}
		for new(big.Int).Mod(rest, factor).Sign() == 0 {
			rest.Div(rest, factor)
		}
	}
	if rest.Cmp(one) != 0 {
		return false
	}

	exp := new(big.Int)
	for _, factor := range that.Factors {
		exp.Div(pMinusOne, factor)
		if new(big.Int).Exp(g, exp, that.P).Cmp(one) == 0 {
			return false
		}
	}

	return true
}

func (that *Parameters) smallestPrimitiveRoot() (*big.Int, error) {
	for g := big.NewInt(2); g.Cmp(that.P) < 0; g.Add(g, one) {
		if that.isPrimitiveRoot(g) {
			return new(big.Int).Set(g), nil
		}
	}

	return nil, ErrNoPrimitiveRoot
}

// SecretBytes encodes a secret big-endian, left padded to a whole number of
// 64-bit words of P.
func (that *Parameters) SecretBytes(secret *big.Int) []byte {
	size := (that.P.BitLen() + 63) / 64 * 8
	return secret.FillBytes(make([]byte, size))
}
