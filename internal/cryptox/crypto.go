// Package cryptox implements the amount cipher: AES-GCM over the decimal
// text of a monetary amount, keyed by argon2id from process configuration.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/argon2"
)

// blobPrefix versions the stored format so a later key scheme can coexist.
const blobPrefix = "v1:"

// Cipher is what balance-touching code depends on.
type Cipher interface {
	Encrypt(amount decimal.Decimal) (models.EncryptedAmount, error)
	Decrypt(blob models.EncryptedAmount) (decimal.Decimal, error)
}

// AmountCipher is safe for concurrent use.
type AmountCipher struct {
	aead cipher.AEAD
}

// DeriveKey stretches the configured secret and salt into a 256-bit AES key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// NewAmountCipher derives the key once. An empty secret or salt is a
// configuration error and callers treat it as fatal at startup.
func NewAmountCipher(secret, salt []byte) (*AmountCipher, error) {
	if len(secret) == 0 || len(salt) == 0 {
		return nil, errors.New("cipher key and salt are required")
	}
	key := DeriveKey(secret, salt)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AmountCipher{aead: aead}, nil
}

// Encrypt seals amount with a fresh random nonce, so two encryptions of the
// same value never produce the same blob.
func (c *AmountCipher) Encrypt(amount decimal.Decimal) (models.EncryptedAmount, error) {
	nonce := common.GenerateRandByteArray(c.aead.NonceSize())
	sealed := c.aead.Seal(nonce, nonce, []byte(amount.String()), nil)
	return models.EncryptedAmount(blobPrefix + base64.RawURLEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens a blob produced by Encrypt. Every failure, including an
// empty or foreign blob, wraps common.ErrDecryption and never yields zero.
func (c *AmountCipher) Decrypt(blob models.EncryptedAmount) (decimal.Decimal, error) {
	s, ok := strings.CutPrefix(string(blob), blobPrefix)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown format", common.ErrDecryption)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return decimal.Zero, fmt.Errorf("%w: blob too short", common.ErrDecryption)
	}
	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	amount, err := decimal.NewFromString(string(plaintext))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return amount, nil
}

// Zero is encrypt(0), used when a piggy bank is provisioned or reset.
func (c *AmountCipher) Zero() (models.EncryptedAmount, error) {
	return c.Encrypt(decimal.Zero)
}
