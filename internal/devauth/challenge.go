// Package devauth implements the device authentication challenge (spec
// §4.3 "Device authentication challenge" and concrete scenario 4): an
// AES-CTR exchange under a device-operations key, a strictly-greater
// counter check with a lockout sentinel, constant-time plaintext
// comparison, and a fixed base delay plus jitter before every attempt.
// C3 owns this algorithm; C7 (internal/dispatch) owns the request/
// response framing.
package devauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"
)

// BaseDelay and JitterMax implement spec §4.3: "A 2-second plus random
// jitter delay precedes every attempt."
const (
	BaseDelay = 2 * time.Second
	JitterMax = 500 * time.Millisecond
)

// Lockout is the sentinel stored-counter value spec §4.3 calls out as
// "stored_auth_counter == UINT32_MAX (lockout)". Per invariant I7 the
// accept condition is "C > stored_counter OR stored_counter ==
// UINT32_MAX" — read literally that is a bootstrap sentinel (a fresh
// device that has never completed a challenge starts at UINT32_MAX and
// accepts its first counter value unconditionally), not a one-way
// permanent lock: once any challenge succeeds, stored_counter becomes a
// real value and the strictly-greater rule applies from then on. See
// DESIGN.md for this reading of an otherwise self-contradictory name.
const Lockout uint32 = 0xFFFFFFFF

// Sleep is the delay hook, overridable in tests.
var Sleep = time.Sleep

// Engine holds the device-operations AES key (unrelated to any user
// key) and the platform serial used in the challenge plaintext.
type Engine struct {
	block  cipher.Block
	serial uint32
}

// NewEngine constructs an Engine from the 32-byte device-operations key
// and the platform serial number.
func NewEngine(key []byte, platformSerial uint32) (*Engine, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("devauth: %w", err)
	}
	return &Engine{block: block, serial: platformSerial}, nil
}

func (e *Engine) ctrIV(tag byte, counter uint32) []byte {
	iv := make([]byte, 16)
	iv[1] = tag
	binary.BigEndian.PutUint32(iv[12:], counter)
	return iv
}

func (e *Engine) crypt(iv, data []byte) []byte {
	out := make([]byte, len(data))
	cipher.NewCTR(e.block, iv).XORKeyStream(out, data)
	return out
}

func jitter() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(JitterMax)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// delay blocks for the mandatory base+jitter period before every
// attempt, win or lose, so accept/reject take observably similar time.
func (e *Engine) delay() {
	Sleep(BaseDelay + jitter())
}

// Attempt validates a challenge of suggestedCounter/ciphertext against
// storedCounter, and on success returns the response ciphertext and the
// new stored counter. ok=false on any rejection (bad counter ordering,
// wrong ciphertext length, or plaintext mismatch); the caller NACKs without
// distinguishing which per spec §7 CryptoFailed handling for comparison
// failures.
func (e *Engine) Attempt(suggestedCounter, storedCounter uint32, ciphertext []byte) (ok bool, response []byte, newStoredCounter uint32) {
	e.delay()

	if storedCounter != Lockout && suggestedCounter <= storedCounter {
		return false, nil, storedCounter
	}
	// storedCounter == Lockout: bootstrap sentinel, any counter value
	// passes this check; the plaintext comparison below still applies.
	if len(ciphertext) != 16 {
		return false, nil, storedCounter
	}

	reqIV := e.ctrIV(0x02, suggestedCounter)
	plain := e.crypt(reqIV, ciphertext)

	want := make([]byte, 16)
	binary.BigEndian.PutUint32(want[0:4], suggestedCounter)
	binary.BigEndian.PutUint32(want[4:8], e.serial)
	// remaining 8 bytes are zero, matching plaintext = be32(C) || be32(serial)

	if subtle.ConstantTimeCompare(plain, want) != 1 {
		return false, nil, storedCounter
	}

	respIV := e.ctrIV(0x03, suggestedCounter)
	resp := e.crypt(respIV, want)
	return true, resp, suggestedCounter
}
