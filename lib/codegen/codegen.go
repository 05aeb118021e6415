// Package codegen issues one-time verification codes for pending bindings.
//
// A code is a random (version 4) UUID rendered as 32 upper-case hex characters.
// It carries 122 random bits from crypto/rand and has no relation to the user or
// channel it is issued for.
package codegen

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CodeLength is the length of every code returned by New
const CodeLength = 32

// Generator returns a fresh unguessable code on every call
type Generator func() (string, error)

// New is the default Generator
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(id[:])), nil
}

// Fixed returns a Generator that hands out the given codes in order and then fails.
// It is meant for tests and deterministic tooling.
func Fixed(codes ...string) Generator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(codes) {
			return "", fmt.Errorf("no more fixed codes (%d issued)", len(codes))
		}
		code := codes[i]
		i++
		return code, nil
	}
}
