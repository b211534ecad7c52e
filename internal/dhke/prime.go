package dhke

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

var ErrLimitTooSmall = errors.New("limit must be greater than 2")

// RandomPrime draws a uniform integer in [2, limit) and returns the first prime
// at or above it. The result is biased towards primes that follow long gaps
// and may exceed limit.
func RandomPrime(random io.Reader, limit *big.Int) (*big.Int, error) {
	if limit.Cmp(two) <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrLimitTooSmall, limit)
	}

	if random == nil {
		random = rand.Reader
	}

	n, err := rand.Int(random, new(big.Int).Sub(limit, two))
	if err != nil {
		return nil, fmt.Errorf("failed to sample integer: %w", err)
	}

	return NextPrime(n.Add(n, two)), nil
}

// NextPrime returns the smallest prime >= n.
func NextPrime(n *big.Int) *big.Int {
	if n.Cmp(two) <= 0 {
		return big.NewInt(2)
	}

	candidate := new(big.Int).Set(n)
	if candidate.Bit(0) == 0 {
		candidate.Add(candidate, one)
	}

	for !candidate.ProbablyPrime(primeRounds) {
		candidate.Add(candidate, two)
	}

	return candidate
}
