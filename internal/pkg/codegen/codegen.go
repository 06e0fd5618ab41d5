package codegen

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// MaxAttempts bounds uniqueness retries. Exhaustion surfaces as a retryable
// error instead of looping on collisions.
const MaxAttempts = 10

// ErrExhausted is returned when the retry budget runs out before a free code
// is found.
var ErrExhausted = errors.New("Code generation retry budget exhausted")

const suffixLen = 6

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate produces a code of the form <PREFIX>-<year>-<6 random base36
// chars>, e.g. FARM-2025-X1Y2Z3.
func Generate(prefix string) string {
	b := make([]byte, suffixLen)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Year(), string(b))
}

// Unique generates codes until taken reports one free, up to MaxAttempts.
func Unique(prefix string, taken func(code string) (bool, error)) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		code := Generate(prefix)
		exists, err := taken(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrExhausted
}
