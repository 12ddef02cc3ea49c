// Package totp implements RFC 6238 TOTP over SHA-1 only (spec §4.3:
// "TOTP: RFC 6238 with SHA-1 only, 6-8 digits, time step 1-99 s"). No
// example repo in the corpus ships a TOTP implementation, so this is
// built directly on crypto/hmac + crypto/sha1 per RFC 4226's dynamic
// truncation, the same stdlib-first approach the corpus takes for
// every other small crypto primitive (see
// barnettlynn-nfctools/pkg/ntag424/crypto.go's hand-built CMAC).
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// MinDigits, MaxDigits, MinStep, MaxStep bound the parameters accepted
// by store_totp (spec §4.5).
const (
	MinDigits = 6
	MaxDigits = 8
	MinStep   = 1
	MaxStep   = 99
)

// Code is a generated TOTP result: the formatted digit string and the
// number of seconds remaining in the current step (spec §4.3).
type Code struct {
	Digits          string
	SecondsRemaining int
}

// Generate computes the TOTP code for secret at unixTime using digits
// output digits and a step-second time step. T0 is always 0 per spec
// §8 I9 ("RFC 6238 test vectors for step=30, T0=0").
func Generate(secret []byte, unixTime int64, digits, step int) (Code, error) {
	if digits < MinDigits || digits > MaxDigits {
		return Code{}, fmt.Errorf("totp: digits must be in [%d,%d]", MinDigits, MaxDigits)
	}
	if step < MinStep || step > MaxStep {
		return Code{}, fmt.Errorf("totp: step must be in [%d,%d]", MinStep, MaxStep)
	}

	counter := uint64(unixTime) / uint64(step)
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	truncated := (uint32(sum[offset])&0x7F)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	mod := pow10(digits)
	code := truncated % mod

	remaining := step - int(uint64(unixTime)%uint64(step))
	return Code{
		Digits:          fmt.Sprintf("%0*d", digits, code),
		SecondsRemaining: remaining,
	}, nil
}

func pow10(n int) uint32 {
	v := uint32(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
