package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// DRBG is a minimal HMAC-DRBG (NIST SP 800-90A, HMAC_DRBG with
// SHA-256), seeded once at construction from a cryptographic-quality
// random source and then used as an io.Reader for deterministic
// key-generation draws (spec §4.3). No third-party HMAC-DRBG
// implementation is present anywhere in the reference corpus, so this
// is hand-built directly on crypto/hmac + crypto/sha256 — see
// DESIGN.md for why the stdlib primitives, not an external DRBG
// package, are used here.
type DRBG struct {
	k []byte
	v []byte
}

// NewDRBG seeds a DRBG from entropy (at least 32 bytes recommended) and
// an optional personalization string.
func NewDRBG(entropy, personalization []byte) (*DRBG, error) {
	if len(entropy) < 16 {
		return nil, fmt.Errorf("signing: drbg seed too short")
	}
	d := &DRBG{
		k: make([]byte, sha256.Size),
		v: make([]byte, sha256.Size),
	}
	for i := range d.v {
		d.v[i] = 0x01
	}
	seedMaterial := append(append([]byte{}, entropy...), personalization...)
	d.update(seedMaterial)
	return d, nil
}

func (d *DRBG) hmacWithKey(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func (d *DRBG) update(providedData []byte) {
	d.k = d.hmacWithKey(d.k, append(append(d.v, 0x00), providedData...))
	d.v = d.hmacWithKey(d.k, d.v)
	if len(providedData) == 0 {
		return
	}
	d.k = d.hmacWithKey(d.k, append(append(d.v, 0x01), providedData...))
	d.v = d.hmacWithKey(d.k, d.v)
}

// Read fills p with DRBG output, satisfying io.Reader so a DRBG can be
// passed directly to ecdsa.GenerateKey.
func (d *DRBG) Read(p []byte) (int, error) {
	out := make([]byte, 0, len(p))
	for len(out) < len(p) {
		d.v = d.hmacWithKey(d.k, d.v)
		out = append(out, d.v...)
	}
	copy(p, out[:len(p)])
	d.update(nil)
	return len(p), nil
}
