package dhke

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
)

type State string

const (
	StateNoExchange State = "no_exchange"
	StateInitiated  State = "initiated"
	StateCompleted  State = "completed"
)

// SecretStore keeps the latest shared secret per username. Get must return an
// error wrapping apperror.ErrNotFound when there is none.
type SecretStore interface {
	Save(ctx context.Context, username string, secret *big.Int) error
	Get(ctx context.Context, username string) (*big.Int, error)
}

// Handshake is the public half sent to the peer.
type Handshake struct {
	P  *big.Int
	G  *big.Int
	GA *big.Int
	I  int64
}

type exponentState struct {
	base      *big.Int
	iteration int64
	completed bool
}

type Option func(*Exchange)

// WithRandom replaces crypto/rand as the source for base exponents.
func WithRandom(random io.Reader) Option {
	return func(that *Exchange) {
		that.random = random
	}
}

// Exchange is the server side of the handshake. Exponent state lives only in
// memory and is lost on restart.
type Exchange struct {
	mu     sync.Mutex
	params *Parameters
	store  SecretStore
	random io.Reader
	states map[string]*exponentState
}

func NewExchange(params *Parameters, store SecretStore, opts ...Option) *Exchange {
	exchange := &Exchange{
		params: params,
		store:  store,
		random: rand.Reader,
		states: make(map[string]*exponentState),
	}

	for _, opt := range opts {
		opt(exchange)
	}

	return exchange
}

func (that *Exchange) Parameters() *Parameters {
	return that.params
}

// Initiate advances the counter for username and returns g^(a0+i) mod p with
// the new counter. The base exponent a0 is sampled on the first call only.
func (that *Exchange) Initiate(_ context.Context, username string) (Handshake, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	state, ok := that.states[username]
	if !ok {
		base, err := RandomPrime(that.random, new(big.Int).Sub(that.params.P, one))
		if err != nil {
			return Handshake{}, fmt.Errorf("failed to sample exponent: %w", err)
		}

		state = &exponentState{base: base}
		that.states[username] = state
	}

	state.iteration++
	state.completed = false

	return Handshake{
		P:  that.params.P,
		G:  that.params.G,
		GA: new(big.Int).Exp(that.params.G, effective(state.base, state.iteration), that.params.P),
		I:  state.iteration,
	}, nil
}

// Complete stores gb^(a0+i) mod p as the secret for username. The caller's i
// is trusted as given, so an earlier round can be replayed.
func (that *Exchange) Complete(ctx context.Context, username string, gb *big.Int, i int64) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	state, ok := that.states[username]
	if !ok {
		return fmt.Errorf("%w for %q", apperror.ErrHandshakeNotStarted, username)
	}

	if i < 0 {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidIteration, i)
	}

	if gb == nil {
		return apperror.ErrInvalidPublicValue
	}

	public := new(big.Int).Mod(gb, that.params.P)
	if public.Sign() == 0 {
		return apperror.ErrInvalidPublicValue
	}

	secret := public.Exp(public, effective(state.base, i), that.params.P)
	if err := that.store.Save(ctx, username, secret); err != nil {
		return fmt.Errorf("failed to save secret: %w", err)
	}

	state.completed = true

	return nil
}

// SharedSecret returns the latest stored secret for username in wire form.
func (that *Exchange) SharedSecret(ctx context.Context, username string) ([]byte, error) {
	secret, err := that.store.Get(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("%w for %q", apperror.ErrHandshakeNotCompleted, username)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	return that.params.SecretBytes(secret), nil
}

func (that *Exchange) Status(username string) State {
	that.mu.Lock()
	defer that.mu.Unlock()

	state, ok := that.states[username]
	switch {
	case !ok:
		return StateNoExchange
	case state.completed:
		return StateCompleted
	default:
		return StateInitiated
	}
}

func effective(base *big.Int, iteration int64) *big.Int {
	return new(big.Int).Add(base, big.NewInt(iteration))
}
