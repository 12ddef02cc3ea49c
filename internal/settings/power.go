package settings

import "github.com/keysafe/corectl/internal/store"

// Power-consumption log slot, supplemented from original_source
// (custom_fs.h's battery/power log area). Battery/ADC scheduling
// itself is out of scope (spec §1); this is just the opaque append-log
// storage slot that a host-side diagnostics tool can dump.
const maxPowerLogBytes = 256

// DumpPowerLog returns the raw power-log slot contents.
func (s *Settings) DumpPowerLog() ([]byte, error) {
	return s.custom.GetSlot(store.SlotPowerLog)
}

// AppendPowerLog appends entry to the power log, truncating from the
// front if the fixed-size slot would overflow (ring-buffer
// behaviour, matching a bounded on-device log).
func (s *Settings) AppendPowerLog(entry []byte) error {
	existing, err := s.custom.GetSlot(store.SlotPowerLog)
	if err != nil {
		return err
	}
	combined := append(existing, entry...)
	if len(combined) > maxPowerLogBytes {
		combined = combined[len(combined)-maxPowerLogBytes:]
	}
	return s.custom.SetSlot(store.SlotPowerLog, combined)
}
