// Package service holds boot-time helpers for identities and process state.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrInvalidLength = errors.New("length must be positive")

// GeneratePassword returns length characters drawn uniformly from [a-zA-Z0-9].
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	limit := big.NewInt(int64(len(alphanumeric)))
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		password[i] = alphanumeric[n.Int64()]
	}

	return string(password), nil
}

// NewBootID identifies one process lifetime. Storage keys are scoped by it so
// that secrets from an earlier run are never picked up.
func NewBootID() (string, error) {
	id := make([]byte, 8)
	if _, err := rand.Read(id); err != nil {
		return "", fmt.Errorf("failed to generate boot id: %w", err)
	}

	return hex.EncodeToString(id), nil
}
