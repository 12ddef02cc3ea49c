package policy

import (
	"crypto/subtle"
	"fmt"

	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/store"
)

// ErrThrottled is returned by CheckCredential when the per-user
// CHECK_PASSWORD_TIMER_VAL rate limit has not yet elapsed (spec §8 I8).
var ErrThrottled = fmt.Errorf("policy: check_password throttled")

// ErrModeViolation is returned when a caller attempts an operation the
// device's current mode forbids (spec §7).
var ErrModeViolation = fmt.Errorf("policy: operation not permitted in current mode")

// StoreCredential creates (or overwrites, if addr already names a
// child under parentAddr with the same login) a credential. If
// password is empty, one is generated on-board from the configured
// rng.Policy (spec §4.5: "StoreCredential... on-board password
// generation via internal/rng when no password is supplied").
func (p *Policy) StoreCredential(userID uint32, engine *aesctr.Engine, parentAddr, childAddr, contAddr store.Addr, login, description, password string) (*node.Credential, string, error) {
	if password == "" {
		generated, err := p.rngPolicy.GeneratePassword()
		if err != nil {
			return nil, "", err
		}
		password = generated
	}

	plain := []byte(password)
	ciphertext := make([]byte, node.MaxPasswordBytes)
	copy(ciphertext, plain)
	ctr, err := engine.Encrypt(ciphertext)
	if err != nil {
		return nil, "", err
	}

	cred := &node.Credential{
		Addr: childAddr, Parent: parentAddr, Next: store.AddrNull,
		Login: login, Description: description,
		EncryptedPassword: ciphertext, CTR: ctr,
	}
	if err := p.nodes.WriteCredential(cred, contAddr, userID); err != nil {
		return nil, "", err
	}
	if _, err := p.nodes.BumpCredChangeNumber(userID); err != nil {
		return nil, "", err
	}
	return cred, password, nil
}

// ChangeNodePassword re-encrypts cred in place with newPassword.
// simpleModeAllowed gates the operation per spec §4.5
// ("ChangeNodePassword: simple-mode-only gate"): advanced-mode
// credentials with multiple logins sharing a parent must be changed
// through StoreCredential instead.
func (p *Policy) ChangeNodePassword(userID uint32, engine *aesctr.Engine, cred *node.Credential, contAddr store.Addr, newPassword string, simpleModeAllowed bool) error {
	if !simpleModeAllowed {
		return ErrModeViolation
	}
	plain := []byte(newPassword)
	ciphertext := make([]byte, node.MaxPasswordBytes)
	copy(ciphertext, plain)
	ctr, err := engine.Encrypt(ciphertext)
	if err != nil {
		return err
	}
	cred.EncryptedPassword = ciphertext
	cred.CTR = ctr
	cred.PrevGen = false
	if err := p.nodes.WriteCredential(cred, contAddr, userID); err != nil {
		return err
	}
	_, err = p.nodes.BumpCredChangeNumber(userID)
	return err
}

// CheckCredential validates candidate against cred's stored password
// in constant time, gated by the per-user CHECK_PASSWORD rate limiter
// (spec §4.5, I8, concrete scenario 2). The limiter consumes a token
// on every call regardless of outcome, so the timer resets on ACK and
// NACK alike per the resolved Open Question (DESIGN.md).
func (p *Policy) CheckCredential(userID uint32, engine *aesctr.Engine, cred *node.Credential, candidate string) (bool, error) {
	if !p.limiterFor(userID).Allow() {
		return false, ErrThrottled
	}

	plain := make([]byte, len(cred.EncryptedPassword))
	copy(plain, cred.EncryptedPassword)
	if err := engine.Decrypt(plain, cred.CTR, cred.PrevGen); err != nil {
		return false, err
	}
	stored := []byte(trimNull(plain))
	want := []byte(candidate)

	if len(stored) != len(want) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(stored, want) == 1, nil
}
