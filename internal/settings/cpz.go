package settings

import (
	"fmt"

	"github.com/keysafe/corectl/internal/store"
)

// Device language/keyboard-layout accessors over the CPZ-LUT entry,
// supplemented from original_source (spec §3 data model names these
// fields; GET/SET_DEVICE_LANG_ID is already in spec §4.7's opcode
// list, but the distillation left its CPZ-LUT-resident storage
// implicit).

// GetLangID returns userID's configured language id.
func (s *Settings) GetLangID(userID uint32) (uint16, error) {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	return row.LangID, nil
}

// SetLangID updates userID's configured language id.
func (s *Settings) SetLangID(userID uint32, langID uint16) error {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	row.LangID = langID
	return s.cpzlut.Update(*row)
}

// GetUSBKeyboardID / SetUSBKeyboardID and their BLE equivalents mirror
// GetLangID/SetLangID for the USB and BLE HID keyboard layout ids.
func (s *Settings) GetUSBKeyboardID(userID uint32) (uint16, error) {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	return row.USBKeyboardID, nil
}

func (s *Settings) SetUSBKeyboardID(userID uint32, id uint16) error {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	row.USBKeyboardID = id
	return s.cpzlut.Update(*row)
}

func (s *Settings) GetBLEKeyboardID(userID uint32) (uint16, error) {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	return row.BLEKeyboardID, nil
}

func (s *Settings) SetBLEKeyboardID(userID uint32, id uint16) error {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	row.BLEKeyboardID = id
	return s.cpzlut.Update(*row)
}

// ResolveCPZ returns the user id bound to a 16-byte CPZ value, used by
// DEV_AUTH_CHALLENGE to find which card/user a challenge belongs to
// before any session is logged in.
func (s *Settings) ResolveCPZ(cpz []byte) (uint32, error) {
	row, err := s.cpzlut.FindByCPZ(cpz)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("settings: no CPZ-LUT entry for cpz")
	}
	return row.UserID, nil
}

// CPZFor returns the 16-byte CPZ bound to userID, used by
// GET_CUR_CARD_CPZ.
func (s *Settings) CPZFor(userID uint32) ([]byte, error) {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	return row.CPZ, nil
}

// AuthCounter returns userID's persisted device-auth-challenge counter
// (devauth.Lockout until the first successful challenge).
func (s *Settings) AuthCounter(userID uint32) (uint32, error) {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	return row.AuthCounter, nil
}

// SetAuthCounter persists the new counter value after a successful
// DEV_AUTH_CHALLENGE attempt.
func (s *Settings) SetAuthCounter(userID uint32, v uint32) error {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	row.AuthCounter = v
	return s.cpzlut.Update(*row)
}

// CountFreeUsers reports how many of the fixed user-slot budget remain
// unprovisioned (GET_NB_FREE_USERS).
func (s *Settings) CountFreeUsers(maxSlots uint32) (uint32, error) {
	return s.cpzlut.CountFree(maxSlots)
}

// Entry returns the full CPZ-LUT row for userID (GET_CPZ_LUT_ENTRY).
func (s *Settings) Entry(userID uint32) (*store.CPZLUTRow, error) {
	row, err := s.cpzlut.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("settings: no CPZ-LUT entry for user %d", userID)
	}
	return row, nil
}
