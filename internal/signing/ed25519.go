package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// GenerateEd25519Key returns a fresh Ed25519 key pair. Spec §4.3:
// "Ed25519 keys are raw random bytes" — no DRBG derivation, unlike the
// ECDSA path.
func GenerateEd25519Key() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("signing: generate ed25519 key: %w", err)
	}
	return pub, priv, nil
}

// SignEd25519 signs msg with priv, staging the key in a transient copy
// that is wiped before return, and checks the produced signature's
// length against the fixed Ed25519 size.
func SignEd25519(priv ed25519.PrivateKey, msg []byte) ([]byte, error) {
	transient := make(ed25519.PrivateKey, len(priv))
	copy(transient, priv)
	defer zero(transient)

	sig := ed25519.Sign(transient, msg)
	if len(sig) != Ed25519SigLen {
		RebootHook("ed25519 signature length mismatch")
		return nil, fmt.Errorf("signing: unreachable after reboot hook")
	}
	return sig, nil
}
