package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates a random hexadecimal string from size random
// bytes, so the result is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns n bytes from crypto/rand. It panics if the
// system source fails, which only happens on a broken host.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites b with zeros. Used for key material.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NewAccessCode returns an upper-case code suitable for sharing with a guest.
func NewAccessCode() (string, error) {
	s, err := MakeRandHexString(AccessCodeSize)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}

// NormalizeCode trims and upper-cases a user-entered pairing or access code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
