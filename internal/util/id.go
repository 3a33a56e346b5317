package util

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrMalformedID = errors.New("malformed id")

// NewID returns a random UUID string. Every persisted entity uses this form.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates and canonicalizes an identifier supplied by a client.
func ParseID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrMalformedID
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", ErrMalformedID
	}
	return parsed.String(), nil
}

// NewToken returns a random hex token of n bytes, optionally prefixed.
func NewToken(prefix string, n int) string {
	bytes := make([]byte, n)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
