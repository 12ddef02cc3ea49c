// Package settings implements the C8 typed accessors over the
// custom-storage area and CPZ-LUT (spec §4.8, §3): device settings as
// a key/value table, device flags as a bitmask, and CPZ-LUT-resident
// per-user language/keyboard-layout ids and the power-consumption log
// slot supplemented from original_source.
package settings

import (
	"encoding/binary"
	"fmt"

	"github.com/keysafe/corectl/internal/store"
)

// Settings is the C8 accessor over device-wide settings and flags.
type Settings struct {
	custom *store.Custom
	cpzlut *store.CPZLUT
}

// New constructs a Settings accessor.
func New(custom *store.Custom, cpzlut *store.CPZLUT) *Settings {
	return &Settings{custom: custom, cpzlut: cpzlut}
}

// record layout within SlotDeviceSettings: a flat sequence of
// (key uint16, length uint16, value []byte) entries, terminated by the
// end of the slot. Keys are device-defined config parameters (e.g.
// password-gen policy length, lock timeout) the host can read/write in
// management mode.
type entry struct {
	key   uint16
	value []byte
}

func decodeEntries(blob []byte) []entry {
	var out []entry
	off := 0
	for off+4 <= len(blob) {
		key := binary.LittleEndian.Uint16(blob[off : off+2])
		length := binary.LittleEndian.Uint16(blob[off+2 : off+4])
		off += 4
		if off+int(length) > len(blob) {
			break
		}
		val := make([]byte, length)
		copy(val, blob[off:off+int(length)])
		out = append(out, entry{key: key, value: val})
		off += int(length)
	}
	return out
}

func encodeEntries(entries []entry) []byte {
	var out []byte
	for _, e := range entries {
		var head [4]byte
		binary.LittleEndian.PutUint16(head[0:2], e.key)
		binary.LittleEndian.PutUint16(head[2:4], uint16(len(e.value)))
		out = append(out, head[:]...)
		out = append(out, e.value...)
	}
	return out
}

// GetSetting returns the raw value stored for key, or (nil, false) if
// unset.
func (s *Settings) GetSetting(key uint16) ([]byte, bool, error) {
	blob, err := s.custom.GetSlot(store.SlotDeviceSettings)
	if err != nil {
		return nil, false, err
	}
	for _, e := range decodeEntries(blob) {
		if e.key == key {
			return e.value, true, nil
		}
	}
	return nil, false, nil
}

// SetSetting writes (or overwrites) the value for key.
func (s *Settings) SetSetting(key uint16, value []byte) error {
	blob, err := s.custom.GetSlot(store.SlotDeviceSettings)
	if err != nil {
		return err
	}
	entries := decodeEntries(blob)
	replaced := false
	for i := range entries {
		if entries[i].key == key {
			entries[i].value = value
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry{key: key, value: value})
	}
	return s.custom.SetSlot(store.SlotDeviceSettings, encodeEntries(entries))
}

// DumpAll returns every configured setting, for a management-mode bulk
// export (spec §4.8 DumpAll/RestoreAll).
func (s *Settings) DumpAll() (map[uint16][]byte, error) {
	blob, err := s.custom.GetSlot(store.SlotDeviceSettings)
	if err != nil {
		return nil, err
	}
	out := make(map[uint16][]byte)
	for _, e := range decodeEntries(blob) {
		out[e.key] = e.value
	}
	return out, nil
}

// RestoreAll overwrites the entire settings table from a previously
// dumped map, used to restore a device from a host-side backup.
func (s *Settings) RestoreAll(values map[uint16][]byte) error {
	entries := make([]entry, 0, len(values))
	for k, v := range values {
		entries = append(entries, entry{key: k, value: v})
	}
	return s.custom.SetSlot(store.SlotDeviceSettings, encodeEntries(entries))
}

// GetFlag reports whether bit is set in the device flags bitmask
// (SlotDeviceFlags).
func (s *Settings) GetFlag(bit uint) (bool, error) {
	blob, err := s.custom.GetSlot(store.SlotDeviceFlags)
	if err != nil {
		return false, err
	}
	var mask uint32
	if len(blob) >= 4 {
		mask = binary.LittleEndian.Uint32(blob)
	}
	if bit >= 32 {
		return false, fmt.Errorf("settings: flag bit %d out of range", bit)
	}
	return mask&(1<<bit) != 0, nil
}

// SetFlag sets or clears bit in the device flags bitmask.
func (s *Settings) SetFlag(bit uint, on bool) error {
	if bit >= 32 {
		return fmt.Errorf("settings: flag bit %d out of range", bit)
	}
	blob, err := s.custom.GetSlot(store.SlotDeviceFlags)
	if err != nil {
		return err
	}
	buf := make([]byte, 4)
	if len(blob) >= 4 {
		copy(buf, blob)
	}
	mask := binary.LittleEndian.Uint32(buf)
	if on {
		mask |= 1 << bit
	} else {
		mask &^= 1 << bit
	}
	binary.LittleEndian.PutUint32(buf, mask)
	return s.custom.SetSlot(store.SlotDeviceFlags, buf)
}
