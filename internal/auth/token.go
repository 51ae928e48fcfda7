// AngelaMos | 2026
// token.go

package auth

import (
	"crypto/rand"
	"encoding/hex"
)

const tokenBytes = 40

type TokenSource interface {
	Next() string
}

// RandomTokenSource yields 40 random bytes as an 80 character hex string.
type RandomTokenSource struct{}

func (RandomTokenSource) Next() string {
	b := make([]byte, tokenBytes)
	//nolint:errcheck // crypto/rand.Read never returns an error; it aborts the process on entropy failure
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
