package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
)

var ErrSecretNotFound = fmt.Errorf("%w: secret", apperror.ErrNotFound)

type SecretRepository interface {
	Save(ctx context.Context, username string, secret *big.Int) error
	Get(ctx context.Context, username string) (*big.Int, error)
}

type memSecret struct {
	mu      sync.RWMutex
	secrets map[string]*big.Int
}

func NewMemorySecretRepository() SecretRepository {
	return &memSecret{secrets: make(map[string]*big.Int)}
}

func (that *memSecret) Save(_ context.Context, username string, secret *big.Int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.secrets[username] = new(big.Int).Set(secret)

	return nil
}

func (that *memSecret) Get(_ context.Context, username string) (*big.Int, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	secret, ok := that.secrets[username]
	if !ok {
		return nil, ErrSecretNotFound
	}

	return new(big.Int).Set(secret), nil
}

type dbSecret struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisSecretRepository stores secrets under "secret:<namespace>:<username>".
// A zero ttl keeps them until overwritten.
func NewRedisSecretRepository(client *redis.Client, namespace string, ttl time.Duration) SecretRepository {
	return &dbSecret{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (that *dbSecret) Save(ctx context.Context, username string, secret *big.Int) error {
	if err := that.client.Set(ctx, that.key(username), secret.Text(16), that.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set secret: %w", err)
	}

	return nil
}

func (that *dbSecret) Get(ctx context.Context, username string) (*big.Int, error) {
	response, err := that.client.Get(ctx, that.key(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSecretNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	secret, ok := new(big.Int).SetString(response, 16)
	if !ok {
		return nil, fmt.Errorf("malformed secret for %q", username)
	}

	return secret, nil
}

func (that *dbSecret) key(username string) string {
	return "secret:" + that.namespace + ":" + username
}
