package utils

import (
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	lowerAlphanumeric = "0123456789abcdefghijklmnopqrstuvwxyz"
	digits            = "0123456789"
)

// GenerateRequestToken returns an opaque token suitable as a provider-side
// request id (conference creation, idempotency keys).
func GenerateRequestToken() string {
	id, err := gonanoid.Generate(lowerAlphanumeric, 21)
	if err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return id
}

// GenerateNumericSuffix returns n random digits.
func GenerateNumericSuffix(n int) string {
	id, err := gonanoid.Generate(digits, n)
	if err != nil {
		return strings.Repeat("0", n)
	}
	return id
}
