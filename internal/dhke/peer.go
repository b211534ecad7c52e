package dhke

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

var ErrInvalidHandshake = errors.New("invalid handshake")

// Continuation is the peer's answer to a Handshake.
type Continuation struct {
	Secret *big.Int
	GB     *big.Int
	// Base is the peer's b0, to be passed back on the next round.
	Base *big.Int
}

// ContinueHandshake computes the peer side for h. cachedBase is reused when
// set, otherwise a fresh base exponent is sampled like the server does.
func ContinueHandshake(random io.Reader, h Handshake, cachedBase *big.Int) (*Continuation, error) {
	if h.P == nil || h.G == nil || h.GA == nil || h.I < 0 {
		return nil, ErrInvalidHandshake
	}

	base := cachedBase
	if base == nil {
		var err error
		if base, err = RandomPrime(random, new(big.Int).Sub(h.P, one)); err != nil {
			return nil, fmt.Errorf("failed to sample exponent: %w", err)
		}
	}

	b := effective(base, h.I)

	return &Continuation{
		Secret: new(big.Int).Exp(h.GA, b, h.P),
		GB:     new(big.Int).Exp(h.G, b, h.P),
		Base:   base,
	}, nil
}
