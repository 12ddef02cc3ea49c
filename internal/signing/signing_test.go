package signing

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"math/big"
	"testing"
)

func TestECDSASignVerify(t *testing.T) {
	drbg, err := NewDRBG([]byte("0123456789abcdef0123456789abcdef"), []byte("test"))
	if err != nil {
		t.Fatalf("NewDRBG: %v", err)
	}
	s := NewECDSASigner()
	key, err := s.GenerateECDSAKey(drbg)
	if err != nil {
		t.Fatalf("GenerateECDSAKey: %v", err)
	}
	digest := Digest([]byte("hello world"))
	r, sBytes, err := s.SignECDSA(key, digest[:])
	if err != nil {
		t.Fatalf("SignECDSA: %v", err)
	}
	if len(r) != 32 || len(sBytes) != 32 {
		t.Fatalf("unexpected signature component length: %d %d", len(r), len(sBytes))
	}

	bigR := new(big.Int).SetBytes(r)
	bigS := new(big.Int).SetBytes(sBytes)
	if !ecdsa.Verify(&key.PublicKey, digest[:], bigR, bigS) {
		t.Fatalf("signature failed to verify")
	}
}

func TestEd25519SignVerify(t *testing.T) {
	pub, priv, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key: %v", err)
	}
	msg := []byte("sign me")
	sig, err := SignEd25519(priv, msg)
	if err != nil {
		t.Fatalf("SignEd25519: %v", err)
	}
	if len(sig) != Ed25519SigLen {
		t.Fatalf("unexpected sig length: %d", len(sig))
	}
	if !ed25519.Verify(pub, msg, sig) {
		t.Fatalf("signature failed to verify")
	}
}

func TestDRBGDeterministic(t *testing.T) {
	seed := []byte("fixed-entropy-for-deterministic-test")
	d1, _ := NewDRBG(seed, nil)
	d2, _ := NewDRBG(seed, nil)
	b1 := make([]byte, 32)
	b2 := make([]byte, 32)
	d1.Read(b1)
	d2.Read(b2)
	for i := range b1 {
		if b1[i] != b2[i] {
			t.Fatalf("expected identical DRBG output for identical seed")
		}
	}
}
