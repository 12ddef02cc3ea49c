// Package smartcard defines the card-session interface the credential
// store's C2/C3 engines depend on for their card-native key material,
// mirroring the connect/transmit/disconnect lifecycle of
// barnettlynn-nfctools/pkg/ntag424's card sessions (pkg/ntag424/card.go,
// pkg/ntag424/auth.go) without importing a PCSC driver directly: ISO7816
// signalling and physical card presence are out of scope per spec §1.
// A real implementation can satisfy Session against actual hardware
// (e.g. via github.com/ebfe/scard, as the reference tool does); the
// Stub here exists only to give the rest of the core a realistic call
// shape to build and test against.
package smartcard

import (
	"errors"
	"fmt"
)

// ErrNoCard is returned by Session methods when no card is present.
var ErrNoCard = errors.New("smartcard: no card present")

// ErrAuthFailed is returned when PIN verification fails.
var ErrAuthFailed = errors.New("smartcard: authentication failed")

// Session is the lifecycle contract the device/user state machine (C6)
// and the AES-CTR engine's card-native key path (C2) depend on.
type Session interface {
	// Present reports whether a card is currently inserted.
	Present() bool
	// VerifyPIN authenticates the cardholder; on success the card's
	// 256-bit key and CPZ become readable via Key/CPZ.
	VerifyPIN(pin []byte) error
	// Key returns the card-resident 256-bit AES key. Valid only after a
	// successful VerifyPIN.
	Key() ([32]byte, error)
	// CPZ returns the card's 16-byte code-protected-zone identifier.
	CPZ() ([16]byte, error)
	// Disconnect tears down the session and wipes any cached key
	// material, mirroring logout's "wiping keys" requirement (spec §1).
	Disconnect()
}

// Stub is an in-memory Session standing in for real PCSC hardware; it
// is what cmd/provision.go and the dispatcher's tests use.
type Stub struct {
	inserted   bool
	verified   bool
	key        [32]byte
	cpz        [16]byte
	pin        []byte
}

// NewStub constructs a Stub "card" preloaded with key/cpz/pin, as an
// operator provisioning tool would bind them.
func NewStub(key [32]byte, cpz [16]byte, pin []byte) *Stub {
	return &Stub{inserted: true, key: key, cpz: cpz, pin: pin}
}

func (s *Stub) Present() bool { return s.inserted }

func (s *Stub) VerifyPIN(pin []byte) error {
	if !s.inserted {
		return ErrNoCard
	}
	if len(pin) != len(s.pin) {
		return ErrAuthFailed
	}
	mismatch := 0
	for i := range pin {
		if pin[i] != s.pin[i] {
			mismatch++
		}
	}
	if mismatch != 0 {
		return ErrAuthFailed
	}
	s.verified = true
	return nil
}

func (s *Stub) Key() ([32]byte, error) {
	if !s.verified {
		return [32]byte{}, fmt.Errorf("smartcard: %w", ErrAuthFailed)
	}
	return s.key, nil
}

func (s *Stub) CPZ() ([16]byte, error) {
	if !s.inserted {
		return [16]byte{}, ErrNoCard
	}
	return s.cpz, nil
}

func (s *Stub) Disconnect() {
	s.verified = false
	s.key = [32]byte{}
}

// Remove simulates physical card withdrawal, used by tests driving the
// device/user state machine's card-removal transitions.
func (s *Stub) Remove() {
	s.inserted = false
	s.Disconnect()
}
