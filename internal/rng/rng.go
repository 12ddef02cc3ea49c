// Package rng provides the on-board password generator used by
// store_credential when the host supplies no password (spec §4.5).
// The original firmware's RNG/rng.c feeds a hardware entropy pool from
// accelerometer noise; that collection mechanism is explicitly out of
// scope (spec §1), so this package draws from crypto/rand, the
// cryptographic-quality source spec §4.3 requires for DRBG seeding
// and key generation generally.
package rng

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Policy controls generated-password shape (spec §4.5: "generates one
// on-board from the RNG with a policy (length/charset in settings)").
type Policy struct {
	Length  int
	Charset string
}

// DefaultPolicy matches common password-manager defaults: 20
// alphanumeric-plus-symbol characters.
var DefaultPolicy = Policy{
	Length:  20,
	Charset: "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*-_=+",
}

// GeneratePassword draws Length characters uniformly from Charset.
func (p Policy) GeneratePassword() (string, error) {
	if p.Length <= 0 {
		return "", fmt.Errorf("rng: policy length must be positive")
	}
	if len(p.Charset) == 0 {
		return "", fmt.Errorf("rng: policy charset must be non-empty")
	}
	out := make([]byte, p.Length)
	max := big.NewInt(int64(len(p.Charset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("rng: %w", err)
		}
		out[i] = p.Charset[n.Int64()]
	}
	return string(out), nil
}

// Bytes returns n cryptographic-quality random bytes, used to seed the
// HMAC-DRBG and to generate per-user nonces.
func Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("rng: %w", err)
	}
	return buf, nil
}
