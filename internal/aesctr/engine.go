// Package aesctr implements the per-user AES-256-CTR engine (spec
// §4.2, C2): a monotonic 24-bit counter combined with a 16-byte
// per-user nonce into a 128-bit CTR IV, amortised flash writes of the
// persisted counter bound, and the legacy prev_gen decrypt variant.
//
// Grounded on crypto/aes + crypto/cipher the way
// barnettlynn-nfctools/pkg/ntag424/crypto.go builds its CBC/ECB/CMAC
// primitives directly on crypto/aes/crypto/cipher; no example repo
// ships a ready-made AES-CTR with this split add/xor counter
// construction, so the block-level logic is hand-built against the
// same stdlib primitives the corpus itself reaches for.
package aesctr

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// FlashMinIncr is the number of blocks the persisted CTR bound is
// advanced by each time it is amortised (spec §4.2).
const FlashMinIncr = 32

// BoundStore persists the per-user CTR upper bound across boots
// (invariant I2). Implementations back this with the user's profile
// row in internal/store.
type BoundStore interface {
	CTRBound() uint32
	SetCTRBound(v uint32) error
}

// Engine is one user's AES-256-CTR context: the block cipher, the
// 16-byte nonce, the in-RAM next-CTR value, and the persisted bound.
type Engine struct {
	block   cipher.Block
	nonce   [16]byte
	nextCTR uint32 // 24-bit logical value
	bound   BoundStore
}

// ErrKeySize is returned when a non-32-byte key is supplied.
var ErrKeySize = fmt.Errorf("aesctr: key must be %d bytes", 32)

// NewFromCardKey initialises an Engine directly from the 256-bit key
// read from the smartcard (spec §4.2 "card-native key" path).
func NewFromCardKey(key []byte, nonce [16]byte, startCTR uint32, bound BoundStore) (*Engine, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aesctr: %w", err)
	}
	return &Engine{block: block, nonce: nonce, nextCTR: startCTR, bound: bound}, nil
}

// NewFromProvisionedKey decrypts encryptedKey (the CPZ-LUT-resident
// provisioned key, AES-256-CTR under IV=0 with cardKey) and
// initialises an Engine from the result (spec §4.2 "provisioned key"
// path, for fleet-managed accounts).
func NewFromProvisionedKey(cardKey, encryptedKey []byte, nonce [16]byte, startCTR uint32, bound BoundStore) (*Engine, error) {
	if len(cardKey) != 32 || len(encryptedKey) != 32 {
		return nil, ErrKeySize
	}
	cardBlock, err := aes.NewCipher(cardKey)
	if err != nil {
		return nil, fmt.Errorf("aesctr: %w", err)
	}
	decrypted := make([]byte, 32)
	zeroIV := make([]byte, aes.BlockSize)
	cipher.NewCTR(cardBlock, zeroIV).XORKeyStream(decrypted, encryptedKey)
	defer zero(decrypted)

	block, err := aes.NewCipher(decrypted)
	if err != nil {
		return nil, fmt.Errorf("aesctr: %w", err)
	}
	return &Engine{block: block, nonce: nonce, nextCTR: startCTR, bound: bound}, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// counterIV returns the 128-bit CTR IV for logical counter value ctr:
// the big-endian 3-byte ctr added into the nonce's low 3 bytes (spec
// §4.2 "add_vectors_big_endian").
func (e *Engine) counterIV(ctr uint32) [16]byte {
	var iv [16]byte
	copy(iv[:], e.nonce[:])
	ctrBytes := []byte{byte(ctr >> 16), byte(ctr >> 8), byte(ctr)}
	copy(iv[13:], AddVectorsBigEndian(iv[13:16], ctrBytes))
	return iv
}

// reserve ensures next_ctr+nBlocks does not cross the persisted bound,
// amortising a flash write by FlashMinIncr blocks at a time (spec
// §4.2, invariant I2, concrete scenario 3).
func (e *Engine) reserve(nBlocks uint32) error {
	if e.nextCTR+nBlocks <= e.bound.CTRBound() {
		return nil
	}
	newBound := e.bound.CTRBound() + FlashMinIncr
	for e.nextCTR+nBlocks > newBound {
		newBound += FlashMinIncr
	}
	if err := e.bound.SetCTRBound(newBound); err != nil {
		return fmt.Errorf("aesctr: advancing ctr bound: %w", err)
	}
	return nil
}

// Encrypt encrypts data in place using the next available CTR value(s)
// and returns the CTR value used for the first block, for storage
// alongside the ciphertext so Decrypt can be called later.
func (e *Engine) Encrypt(data []byte) (outCTR uint32, err error) {
	nBlocks := uint32((len(data) + aes.BlockSize - 1) / aes.BlockSize)
	if nBlocks == 0 {
		return e.nextCTR, nil
	}
	if err := e.reserve(nBlocks); err != nil {
		zero(data)
		return 0, err
	}
	startCTR := e.nextCTR
	iv := e.counterIV(startCTR)
	stream := cipher.NewCTR(e.block, iv[:])
	stream.XORKeyStream(data, data)
	e.nextCTR += nBlocks
	return startCTR, nil
}

// Decrypt decrypts data in place given the per-record CTR it was
// encrypted under. prevGen selects the legacy variant (spec §4.2): the
// CTR is XORed with the nonce rather than added, and steps by 2 every
// 32 bytes instead of 1 every 16 — modeled here by constructing the
// legacy keystream block-by-block rather than via cipher.NewCTR, since
// the legacy increment does not match CTR mode's standard big-endian
// +1-per-block semantics.
func (e *Engine) Decrypt(data []byte, ctr uint32, prevGen bool) error {
	if !prevGen {
		iv := e.counterIV(ctr)
		stream := cipher.NewCTR(e.block, iv[:])
		stream.XORKeyStream(data, data)
		return nil
	}
	return e.decryptLegacy(data, ctr)
}

func (e *Engine) decryptLegacy(data []byte, ctr uint32) error {
	for off := 0; off < len(data); off += 32 {
		end := off + 32
		if end > len(data) {
			end = len(data)
		}
		var iv [16]byte
		copy(iv[:], e.nonce[:])
		iv[13] ^= byte(ctr >> 16)
		iv[14] ^= byte(ctr >> 8)
		iv[15] ^= byte(ctr)

		keystream := make([]byte, 32)
		e.block.Encrypt(keystream[0:16], iv[:])
		var iv2 [16]byte
		copy(iv2[:], iv[:])
		incrementBigEndian(iv2[:], 1)
		e.block.Encrypt(keystream[16:32], iv2[:])

		chunk := data[off:end]
		for i := range chunk {
			chunk[i] ^= keystream[i]
		}
		ctr += 2
	}
	return nil
}

func incrementBigEndian(b []byte, by uint64) {
	carry := by
	for i := len(b) - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(b[i]) + carry
		b[i] = byte(sum)
		carry = sum >> 8
	}
}

// XorVectors XORs a and b into a new slice of len(a) (spec §4.2
// "xor_vectors" primitive). Panics if len(a) != len(b).
func XorVectors(a, b []byte) []byte {
	if len(a) != len(b) {
		panic("aesctr: XorVectors length mismatch")
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// AddVectorsBigEndian treats a and b as big-endian integers of equal
// length and returns their sum modulo 2^(8*len(a)) (spec §4.2
// "add_vectors_big_endian" primitive).
func AddVectorsBigEndian(a, b []byte) []byte {
	if len(a) != len(b) {
		panic("aesctr: AddVectorsBigEndian length mismatch")
	}
	out := make([]byte, len(a))
	var carry uint16
	for i := len(a) - 1; i >= 0; i-- {
		sum := uint16(a[i]) + uint16(b[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}

// Wipe zeroes the engine's key schedule by replacing it with a cipher
// over an all-zero key, and clears the nonce; used on logout so the
// user's key material does not linger in the device context (spec §1
// "wiping keys on logout").
func (e *Engine) Wipe() {
	zero(e.nonce[:])
	zeroKey := make([]byte, 32)
	if b, err := aes.NewCipher(zeroKey); err == nil {
		e.block = b
	}
	e.nextCTR = 0
}
