package node

import (
	"encoding/binary"
	"fmt"

	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/wire"
)

// Fixed field widths (in UTF-16 code units / bytes) for the node
// records, matching spec §3's "fixed-length UTF-16-style array" and
// "fixed max length" password field.
const (
	MaxServiceUnits     = 32
	MaxLoginUnits       = 32
	MaxDescUnits        = 24
	MaxThirdUnits       = 24
	MaxPasswordBytes    = 136 // ciphertext, block-aligned upper bound
	MaxTOTPSecretBytes  = 64
	CredentialIDBytes   = 16
	UserHandleMaxBytes  = 64
)

// Kind distinguishes the two physical node sizes and their semantic
// type (spec §3).
type Kind uint8

const (
	KindParentCredential Kind = iota
	KindParentData
	KindChildCredential
	KindChildData
)

func (k Kind) storeKind() store.NodeKind {
	switch k {
	case KindParentCredential:
		return store.NodeKindParentCredential
	case KindParentData:
		return store.NodeKindParentData
	case KindChildCredential:
		return store.NodeKindChildCredential
	default:
		return store.NodeKindChildData
	}
}

// CredentialType distinguishes standard password credentials from
// WebAuthn credentials stored in a child node.
type CredentialType uint8

const (
	CredentialStandard CredentialType = iota
	CredentialWebAuthn
)

// Parent is a service/file/note parent node: a doubly-linked sibling
// list entry plus the head of its child list (spec §3).
type Parent struct {
	Addr       store.Addr
	Kind       Kind // KindParentCredential or KindParentData
	Service    string
	Category   uint8
	Flags      byte
	Prev, Next store.Addr
	FirstChild store.Addr
}

// TOTPField is the optional TOTP material attached to a credential
// child node (spec §3).
type TOTPField struct {
	Secret    []byte
	Digits    int
	TimeStep  int
	ShaVer    int
	CTR       uint32
}

// WebAuthnField is the optional WebAuthn material attached to a
// credential child node of CredentialWebAuthn type (spec §3).
type WebAuthnField struct {
	UserHandle   []byte
	CredentialID [CredentialIDBytes]byte
	KeyType      uint8
	SignCounter  uint32
}

// Credential is a credential child node (spec §3).
type Credential struct {
	Addr              store.Addr
	Parent            store.Addr
	Next              store.Addr
	Login             string
	Description       string
	Third             string
	EncryptedPassword []byte
	CTR               uint32
	PrevGen           bool
	CredType          CredentialType
	TOTP              *TOTPField
	WebAuthn          *WebAuthnField
}

// DataChunk is one link of an opaque data/note chain (spec §3).
type DataChunk struct {
	Addr       store.Addr
	Parent     store.Addr
	Next       store.Addr
	CTR        uint32
	Ciphertext []byte
}

// --- Parent encoding ---

func encodeParent(p *Parent) ([]byte, error) {
	svc, err := wire.EncodeUTF16String(p.Service, MaxServiceUnits)
	if err != nil {
		return nil, fmt.Errorf("node: encode parent service: %w", err)
	}
	buf := make([]byte, 0, len(svc)+8)
	buf = append(buf, svc...)
	buf = append(buf, p.Category, p.Flags)
	buf = appendAddr(buf, p.Prev)
	buf = appendAddr(buf, p.Next)
	buf = appendAddr(buf, p.FirstChild)
	return buf, nil
}

func decodeParent(addr store.Addr, kind Kind, raw []byte) (*Parent, error) {
	if len(raw) < MaxServiceUnits*2+2+3*2 {
		return nil, fmt.Errorf("node: parent record too short")
	}
	svc, err := wire.DecodeUTF16String(raw, MaxServiceUnits)
	if err != nil {
		return nil, fmt.Errorf("node: decode parent service: %w", err)
	}
	off := MaxServiceUnits * 2
	category, flags := raw[off], raw[off+1]
	off += 2
	prev := readAddr(raw, off)
	off += 2
	next := readAddr(raw, off)
	off += 2
	firstChild := readAddr(raw, off)
	return &Parent{
		Addr: addr, Kind: kind, Service: svc, Category: category, Flags: flags,
		Prev: prev, Next: next, FirstChild: firstChild,
	}, nil
}

func appendAddr(buf []byte, a store.Addr) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], a.Pack())
	return append(buf, b[:]...)
}

func readAddr(buf []byte, off int) store.Addr {
	return store.UnpackAddr(binary.LittleEndian.Uint16(buf[off : off+2]))
}

// --- Credential encoding ---

func encodeCredential(c *Credential) ([]byte, []byte, error) {
	login, err := wire.EncodeUTF16String(c.Login, MaxLoginUnits)
	if err != nil {
		return nil, nil, fmt.Errorf("node: encode login: %w", err)
	}
	desc, err := wire.EncodeUTF16String(c.Description, MaxDescUnits)
	if err != nil {
		return nil, nil, fmt.Errorf("node: encode description: %w", err)
	}
	third, err := wire.EncodeUTF16String(c.Third, MaxThirdUnits)
	if err != nil {
		return nil, nil, fmt.Errorf("node: encode third field: %w", err)
	}

	first := make([]byte, 0, len(login)+4)
	first = appendAddr(first, c.Parent)
	first = appendAddr(first, c.Next)
	first = append(first, login...)
	first = append(first, desc...)
	first = append(first, byte(c.CredType))
	var prevGenByte byte
	if c.PrevGen {
		prevGenByte = 1
	}
	first = append(first, prevGenByte)
	first = append(first, byte(c.CTR>>16), byte(c.CTR>>8), byte(c.CTR))

	second := make([]byte, 0, len(third)+MaxPasswordBytes+64)
	second = append(second, third...)
	pwd := make([]byte, MaxPasswordBytes)
	copy(pwd, c.EncryptedPassword)
	second = append(second, pwd...)

	if c.TOTP != nil {
		second = append(second, 1)
		secret := make([]byte, MaxTOTPSecretBytes)
		copy(secret, c.TOTP.Secret)
		second = append(second, secret...)
		second = append(second, byte(len(c.TOTP.Secret)))
		second = append(second, byte(c.TOTP.Digits), byte(c.TOTP.TimeStep), byte(c.TOTP.ShaVer))
		second = append(second, byte(c.TOTP.CTR>>16), byte(c.TOTP.CTR>>8), byte(c.TOTP.CTR))
	} else {
		second = append(second, 0)
	}

	if c.WebAuthn != nil {
		second = append(second, 1)
		uh := make([]byte, UserHandleMaxBytes)
		copy(uh, c.WebAuthn.UserHandle)
		second = append(second, uh...)
		second = append(second, c.WebAuthn.CredentialID[:]...)
		second = append(second, c.WebAuthn.KeyType)
		var sc [4]byte
		binary.BigEndian.PutUint32(sc[:], c.WebAuthn.SignCounter)
		second = append(second, sc[:]...)
	} else {
		second = append(second, 0)
	}

	return first, second, nil
}

func decodeCredential(addr store.Addr, first, second []byte) (*Credential, error) {
	if len(first) < 4+MaxLoginUnits*2+MaxDescUnits*2+5 {
		return nil, fmt.Errorf("node: credential first half too short")
	}
	parentAddr := readAddr(first, 0)
	next := readAddr(first, 2)
	off := 4
	login, err := wire.DecodeUTF16String(first[off:], MaxLoginUnits)
	if err != nil {
		return nil, fmt.Errorf("node: decode login: %w", err)
	}
	off += MaxLoginUnits * 2
	desc, err := wire.DecodeUTF16String(first[off:], MaxDescUnits)
	if err != nil {
		return nil, fmt.Errorf("node: decode description: %w", err)
	}
	off += MaxDescUnits * 2
	credType := CredentialType(first[off])
	prevGen := first[off+1] != 0
	ctr := uint32(first[off+2])<<16 | uint32(first[off+3])<<8 | uint32(first[off+4])

	if len(second) < MaxThirdUnits*2+MaxPasswordBytes+1 {
		return nil, fmt.Errorf("node: credential second half too short")
	}
	soff := 0
	third, err := wire.DecodeUTF16String(second[soff:], MaxThirdUnits)
	if err != nil {
		return nil, fmt.Errorf("node: decode third field: %w", err)
	}
	soff += MaxThirdUnits * 2
	pwd := make([]byte, MaxPasswordBytes)
	copy(pwd, second[soff:soff+MaxPasswordBytes])
	soff += MaxPasswordBytes

	c := &Credential{
		Addr: addr, Parent: parentAddr, Next: next,
		Login: login, Description: desc, Third: third,
		EncryptedPassword: pwd, CTR: ctr, PrevGen: prevGen, CredType: credType,
	}

	if soff < len(second) && second[soff] == 1 {
		soff++
		secret := make([]byte, MaxTOTPSecretBytes)
		copy(secret, second[soff:soff+MaxTOTPSecretBytes])
		soff += MaxTOTPSecretBytes
		secretLen := int(second[soff])
		soff++
		digits := int(second[soff])
		step := int(second[soff+1])
		shaVer := int(second[soff+2])
		soff += 3
		totpCTR := uint32(second[soff])<<16 | uint32(second[soff+1])<<8 | uint32(second[soff+2])
		soff += 3
		c.TOTP = &TOTPField{Secret: secret[:secretLen], Digits: digits, TimeStep: step, ShaVer: shaVer, CTR: totpCTR}
	} else if soff < len(second) {
		soff++
	}

	if soff < len(second) && second[soff] == 1 {
		soff++
		uh := make([]byte, UserHandleMaxBytes)
		copy(uh, second[soff:soff+UserHandleMaxBytes])
		soff += UserHandleMaxBytes
		var credID [CredentialIDBytes]byte
		copy(credID[:], second[soff:soff+CredentialIDBytes])
		soff += CredentialIDBytes
		keyType := second[soff]
		soff++
		signCounter := binary.BigEndian.Uint32(second[soff : soff+4])
		c.WebAuthn = &WebAuthnField{UserHandle: trimTrailingZeros(uh), CredentialID: credID, KeyType: keyType, SignCounter: signCounter}
	}

	return c, nil
}

func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	out := make([]byte, end)
	copy(out, b[:end])
	return out
}

// --- Data chunk encoding ---

func encodeDataChunk(d *DataChunk) ([]byte, []byte) {
	first := make([]byte, 0, 11)
	first = appendAddr(first, d.Parent)
	first = appendAddr(first, d.Next)
	first = append(first, byte(d.CTR>>16), byte(d.CTR>>8), byte(d.CTR))
	return first, d.Ciphertext
}

func decodeDataChunk(addr store.Addr, first, second []byte) (*DataChunk, error) {
	if len(first) < 7 {
		return nil, fmt.Errorf("node: data chunk header too short")
	}
	parent := readAddr(first, 0)
	next := readAddr(first, 2)
	ctr := uint32(first[4])<<16 | uint32(first[5])<<8 | uint32(first[6])
	ct := make([]byte, len(second))
	copy(ct, second)
	return &DataChunk{Addr: addr, Parent: parent, Next: next, CTR: ctr, Ciphertext: ct}, nil
}
