package normalize

import "math/rand/v2"

// IDGenerator supplies identifiers for records that carry none upstream.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

// NewID calls f.
func (f IDGeneratorFunc) NewID() string { return f() }

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomIDGenerator returns 5 or 6 character lowercase alphanumeric tokens.
// Tokens are neither unique nor stable across fetches; they only key rows
// for display.
type RandomIDGenerator struct{}

// NewID returns a fresh random token.
func (RandomIDGenerator) NewID() string {
	n := 5 + rand.IntN(2)
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}
