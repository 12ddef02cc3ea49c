package dispatch

import (
	"encoding/binary"
	"fmt"

	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/wire"
)

func decodeAddr(b []byte) (store.Addr, error) {
	if len(b) < 2 {
		return store.Addr{}, ErrMalformedRequest
	}
	return store.UnpackAddr(binary.LittleEndian.Uint16(b)), nil
}

func encodeAddr(a store.Addr) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, a.Pack())
	return b
}

func decodeTwoAddrs(b []byte) (store.Addr, store.Addr, error) {
	if len(b) < 4 {
		return store.Addr{}, store.Addr{}, ErrMalformedRequest
	}
	a, _ := decodeAddr(b[0:2])
	c, _ := decodeAddr(b[2:4])
	return a, c, nil
}

func decodeUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrMalformedRequest
	}
	return binary.LittleEndian.Uint32(b), nil
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func decodeUint16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, ErrMalformedRequest
	}
	return binary.LittleEndian.Uint16(b), nil
}

func encodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func decodeFixedString(b []byte, maxUnits int) (string, error) {
	s, err := wire.DecodeUTF16String(b, maxUnits)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return s, nil
}

func encodeFixedString(s string, maxUnits int) ([]byte, error) {
	enc, err := wire.EncodeUTF16String(s, maxUnits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return enc, nil
}
