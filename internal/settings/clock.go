package settings

import (
	"encoding/binary"

	"github.com/keysafe/corectl/internal/store"
)

// Time-calibration slot, supplemented from original_source: the host's
// SET_DATE opcode persists a reference Unix timestamp the device
// clock is calibrated against on next boot. Actually driving an RTC is
// out of scope (spec §1); this is just the persisted calibration value
// a diagnostics tool can read back.

// GetClockCalibration returns the last SET_DATE value, or (0, false)
// if never set.
func (s *Settings) GetClockCalibration() (int64, bool, error) {
	blob, err := s.custom.GetSlot(store.SlotTimeCalibration)
	if err != nil {
		return 0, false, err
	}
	if len(blob) < 8 {
		return 0, false, nil
	}
	return int64(binary.LittleEndian.Uint64(blob)), true, nil
}

// SetClockCalibration persists unixTime as the calibration reference.
func (s *Settings) SetClockCalibration(unixTime int64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(unixTime))
	return s.custom.SetSlot(store.SlotTimeCalibration, buf)
}
