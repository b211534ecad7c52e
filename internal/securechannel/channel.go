// Package securechannel seals command payloads under a key derived from a DH
// secret. It provides confidentiality only: the IV is fixed, nothing is
// authenticated and the username on an envelope is not bound to its content.
package securechannel

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
)

const KeySize = 32

var zeroIV = make([]byte, aes.BlockSize)

// DeriveKey runs HKDF-SHA256 over the secret with no salt and no info.
func DeriveKey(secret []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, nil), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// Encrypt pads plaintext with PKCS#7 and encrypts it with AES-256-CBC under a zero IV.
func Encrypt(plaintext, secret []byte) ([]byte, error) {
	block, err := newCipher(secret)
	if err != nil {
		return nil, err
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

// Decrypt reverses Encrypt. Every failure is reported as apperror.ErrDecryption
// without saying which stage failed.
func Decrypt(ciphertext, secret []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, apperror.ErrDecryption
	}

	block, err := newCipher(secret)
	if err != nil {
		return nil, apperror.ErrDecryption
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(padded, ciphertext)

	plaintext, ok := unpad(padded, aes.BlockSize)
	if !ok {
		return nil, apperror.ErrDecryption
	}

	return plaintext, nil
}

// Seal marshals v, encrypts it and wraps it in an envelope for username.
func Seal(v any, username string, secret []byte) (entity.EncryptedRequest, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return entity.EncryptedRequest{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	ciphertext, err := Encrypt(plaintext, secret)
	if err != nil {
		return entity.EncryptedRequest{}, err
	}

	return entity.EncryptedRequest{
		Username:      username,
		EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Open decodes, decrypts and unmarshals an envelope payload into v.
func Open(encoded string, secret []byte, v any) error {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return apperror.ErrDecryption
	}

	plaintext, err := Decrypt(ciphertext, secret)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(plaintext, v); err != nil {
		return apperror.ErrDecryption
	}

	return nil
}

func newCipher(secret []byte) (cipher.Block, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return block, nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, bool) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}

	return data[:len(data)-n], true
}
