package utils

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// RandomID returns an upper-case base32 string carrying n random bytes.
func RandomID(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(idEncoding.EncodeToString(b)), nil
}

// TicketID returns a 26-character identifier carrying 128 random bits.
func TicketID() (string, error) {
	return RandomID(16)
}

// EventCode returns an 8-character event identifier (40 random bits).
// Uniqueness is enforced by the events primary key.
func EventCode() (string, error) {
	return RandomID(5)
}
