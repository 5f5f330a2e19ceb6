package game

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// joinCodeAlphabet is uppercase A-Z and 0-9 without O, 0, I and 1.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultJoinCodeLength   = 6
	defaultJoinCodeAttempts = 10
)

// codeChecker reports whether a join code is taken by a live session.
type codeChecker func(ctx context.Context, code string) (bool, error)

// JoinCodeGenerator produces short human-enterable codes, growing the length by one
// on every collision.
type JoinCodeGenerator struct {
	length      int
	maxAttempts int
}

// NewJoinCodeGenerator creates a generator; non-positive values use the defaults.
func NewJoinCodeGenerator(length, maxAttempts int) *JoinCodeGenerator {
	if length <= 0 {
		length = defaultJoinCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultJoinCodeAttempts
	}
	return &JoinCodeGenerator{length: length, maxAttempts: maxAttempts}
}

// Generate returns a code not currently in use. skip lists codes to treat as taken
// (codes that lost an insert race).
func (g *JoinCodeGenerator) Generate(ctx context.Context, inUse codeChecker, skip map[string]struct{}) (string, error) {
	length := g.length
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}
		if _, taken := skip[code]; !taken {
			taken, err = inUse(ctx, code)
			if err != nil {
				return "", fmt.Errorf("check join code: %w", err)
			}
			if !taken {
				return code, nil
			}
		}
		length++
	}
	return "", ErrJoinCodeExhausted
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random join code: %w", err)
		}
		buf[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
