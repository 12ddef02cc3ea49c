package policy

import (
	"fmt"

	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/totp"
)

// ErrMalformedTOTP is returned when store_totp's field parameters fall
// outside the RFC 6238 bounds the device enforces (spec §4.5).
var ErrMalformedTOTP = fmt.Errorf("policy: totp parameters out of range")

// StoreTOTP validates and attaches a TOTP secret to an existing
// credential, encrypting the secret under engine the same way a
// password is encrypted.
func (p *Policy) StoreTOTP(userID uint32, engine *aesctr.Engine, cred *node.Credential, contAddr store.Addr, secret []byte, digits, step, shaVer int) error {
	if digits < totp.MinDigits || digits > totp.MaxDigits {
		return ErrMalformedTOTP
	}
	if step < totp.MinStep || step > totp.MaxStep {
		return ErrMalformedTOTP
	}
	if len(secret) == 0 || len(secret) > node.MaxTOTPSecretBytes {
		return ErrMalformedTOTP
	}

	ciphertext := make([]byte, len(secret))
	copy(ciphertext, secret)
	ctr, err := engine.Encrypt(ciphertext)
	if err != nil {
		return err
	}

	cred.TOTP = &node.TOTPField{Secret: ciphertext, Digits: digits, TimeStep: step, ShaVer: shaVer, CTR: ctr}
	if err := p.nodes.WriteCredential(cred, contAddr, userID); err != nil {
		return err
	}
	_, err = p.nodes.BumpCredChangeNumber(userID)
	return err
}

// GenerateTOTP decrypts cred's TOTP secret and computes the current
// code at unixTime.
func (p *Policy) GenerateTOTP(engine *aesctr.Engine, cred *node.Credential, unixTime int64) (totp.Code, error) {
	if cred.TOTP == nil {
		return totp.Code{}, fmt.Errorf("policy: credential has no TOTP field")
	}
	secret := make([]byte, len(cred.TOTP.Secret))
	copy(secret, cred.TOTP.Secret)
	if err := engine.Decrypt(secret, cred.TOTP.CTR, false); err != nil {
		return totp.Code{}, err
	}
	return totp.Generate(secret, unixTime, cred.TOTP.Digits, cred.TOTP.TimeStep)
}
