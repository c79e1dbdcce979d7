// internal/lobby/code.go
package lobby

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// codeAlphabet avoids characters that are easy to misread when typed from
// another participant's screen (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a join code.
const CodeLength = 6

// codeAttempts bounds allocation retries before giving up with
// ErrCodeSpaceExhausted.
const codeAttempts = 10

// NormalizeCode upper-cases and validates a caller-supplied join code.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != CodeLength {
		return "", ErrInvalidCode
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}

// allocateCode draws random codes until one passes the inUse predicate.
// Codes come from a CSPRNG, not a counter, so live codes cannot be guessed
// by enumerating.
func allocateCode(inUse func(string) bool) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := gonanoid.Generate(codeAlphabet, CodeLength)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		if !inUse(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
