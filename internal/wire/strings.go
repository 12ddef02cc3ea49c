package wire

import (
	"encoding/binary"
	"errors"
)

// ErrUnterminated is returned when a fixed-length string field has no
// NUL terminator within its allowed buffer length.
var ErrUnterminated = errors.New("wire: string missing NUL terminator within buffer")

// ErrBadOffsetOrder is returned when a multi-string payload's offset
// table is not strictly increasing by the previous substring's length.
var ErrBadOffsetOrder = errors.New("wire: string offsets not sequential")

// NullIndex is the sentinel used for an absent optional offset/address field.
const NullIndex = 0xFFFF

// DecodeUTF16String reads a little-endian UTF-16 code-unit buffer of at
// most maxUnits units and returns the Go string up to (not including)
// the first NUL. It is an error for no NUL to appear within maxUnits.
func DecodeUTF16String(buf []byte, maxUnits int) (string, error) {
	if len(buf) < maxUnits*2 {
		return "", ErrUnterminated
	}
	units := make([]uint16, 0, maxUnits)
	terminated := false
	for i := 0; i < maxUnits; i++ {
		u := binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
		if u == 0 {
			terminated = true
			break
		}
		units = append(units, u)
	}
	if !terminated {
		return "", ErrUnterminated
	}
	return decodeUTF16Units(units), nil
}

// EncodeUTF16String writes s as NUL-terminated little-endian UTF-16 code
// units into a buffer of exactly maxUnits units, zero-padding the
// remainder. It fails if s (plus its terminator) does not fit.
func EncodeUTF16String(s string, maxUnits int) ([]byte, error) {
	units := encodeUTF16Units(s)
	if len(units)+1 > maxUnits {
		return nil, ErrUnterminated
	}
	out := make([]byte, maxUnits*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	// out[len(units)*2:] is already zero, which doubles as the NUL terminator.
	return out, nil
}

func decodeUTF16Units(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			lo := units[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r := (rune(u-0xD800) << 10) + rune(lo-0xDC00) + 0x10000
				runes = append(runes, r)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}

func encodeUTF16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}

// MultiString is a decoded concatenated_strings region: one or more
// NUL-terminated UTF-16 substrings, each starting at the offset (in
// bytes) recorded in the index table.
type MultiString struct {
	Values []string
}

// DecodeMultiString validates and decodes a concatenated_strings region
// given a list of byte offsets into it. Offsets must be strictly
// increasing by the previous substring's encoded length (in bytes,
// including its terminator) plus nothing else — the "sequential-order
// check" from spec §6. A NullIndex offset marks a missing optional field
// and yields an empty string at that position without consuming bytes.
func DecodeMultiString(region []byte, offsets []uint16, maxUnitsEach int) (MultiString, error) {
	out := MultiString{Values: make([]string, len(offsets))}
	expected := uint16(0)
	first := true
	for i, off := range offsets {
		if off == NullIndex {
			out.Values[i] = ""
			continue
		}
		if !first && off != expected {
			return MultiString{}, ErrBadOffsetOrder
		}
		if off < expected && !first {
			return MultiString{}, ErrBadOffsetOrder
		}
		if int(off) > len(region) {
			return MultiString{}, ErrUnterminated
		}
		s, err := DecodeUTF16String(region[off:], maxUnitsEach)
		if err != nil {
			return MultiString{}, err
		}
		out.Values[i] = s
		consumedUnits := len([]uint16(encodeUTF16Units(s))) + 1
		expected = off + uint16(consumedUnits*2)
		first = false
	}
	return out, nil
}

// EncodeMultiString serialises values into a concatenated_strings region
// and returns the region together with the matching offset table.
func EncodeMultiString(values []string, maxUnitsEach int) ([]byte, []uint16, error) {
	var region []byte
	offsets := make([]uint16, len(values))
	for i, v := range values {
		if v == "" {
			offsets[i] = NullIndex
			continue
		}
		offsets[i] = uint16(len(region))
		enc, err := EncodeUTF16String(v, maxUnitsEach)
		if err != nil {
			return nil, nil, err
		}
		// Trim trailing zero padding beyond the terminator so the region
		// stays tightly packed: keep up to and including the terminator.
		units := encodeUTF16Units(v)
		tight := enc[:(len(units)+1)*2]
		region = append(region, tight...)
	}
	return region, offsets, nil
}
