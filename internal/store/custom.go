package store

import (
	"fmt"

	"gorm.io/gorm"
)

// Custom-storage slot ids (spec §6: "slots include settings, device
// flags, the CPZ-LUT, time-calibration data, and power-consumption
// log"). The CPZ-LUT and user profiles get their own tables
// (CPZLUTRow, UserProfileRow) since they are naturally relational;
// everything else addressed by a bare SlotID is a 256-byte opaque
// record.
const (
	SlotDeviceSettings  uint16 = 1
	SlotDeviceFlags     uint16 = 2
	SlotTimeCalibration uint16 = 3
	SlotPowerLog        uint16 = 4
	SlotBundleBackup    uint16 = 5
)

// Custom is the C8 custom-storage accessor: raw 256-byte slot
// read/write, independent of the node flash.
type Custom struct {
	db *State
}

// NewCustom constructs a Custom store over an opened State.
func NewCustom(s *State) *Custom {
	return &Custom{db: s}
}

// GetSlot returns a copy of slotID's bytes, or (nil, nil) if the slot
// has never been written.
func (c *Custom) GetSlot(slotID uint16) ([]byte, error) {
	var row CustomSlot
	err := c.db.DB.First(&row, "slot_id = ?", slotID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	out := make([]byte, len(row.Data))
	copy(out, row.Data)
	return out, nil
}

// SetSlot writes data (copied) into slotID.
func (c *Custom) SetSlot(slotID uint16, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	row := CustomSlot{SlotID: slotID, Data: buf}
	if err := c.db.DB.Save(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}

// CPZLUTRow is a persisted CPZ-LUT entry (spec §3): maps a 16-byte CPZ
// to a user id, nonce, flags, optional provisioned key, language id,
// and keyboard layout ids.
type CPZLUTRow struct {
	CPZ            []byte `gorm:"primaryKey"`
	UserID         uint32 `gorm:"uniqueIndex"`
	Nonce          []byte
	Flags          uint16
	ProvisionedKey []byte
	LangID         uint16
	USBKeyboardID  uint16
	BLEKeyboardID  uint16
	// AuthCounter is the device-auth-challenge monotonic counter (spec
	// §4.3 I7), card-resident in the original firmware and kept beside
	// the rest of the card's CPZ-LUT entry here. devauth.Lockout is the
	// bootstrap sentinel before a card ever completes a challenge.
	AuthCounter uint32
}

func (CPZLUTRow) TableName() string { return "cpz_lut" }

// CPZLUT is the C8 CPZ-resident-key lookup table.
type CPZLUT struct {
	db *State
}

// NewCPZLUT constructs a CPZLUT accessor. Its table is migrated as part
// of InitDB's AllModels set.
func NewCPZLUT(s *State) *CPZLUT {
	return &CPZLUT{db: s}
}

// FindByCPZ looks up the entry for a given 16-byte CPZ value.
func (l *CPZLUT) FindByCPZ(cpz []byte) (*CPZLUTRow, error) {
	var row CPZLUTRow
	err := l.db.DB.First(&row, "cpz = ?", cpz).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return &row, nil
}

// FindByUserID looks up the entry bound to userID.
func (l *CPZLUT) FindByUserID(userID uint32) (*CPZLUTRow, error) {
	var row CPZLUTRow
	err := l.db.DB.First(&row, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return &row, nil
}

// Store inserts a new CPZ-LUT entry. Invariant I6 (at most one entry
// per user id and per CPZ) is enforced by the table's unique index on
// user_id together with the CPZ primary key.
func (l *CPZLUT) Store(row CPZLUTRow) error {
	if err := l.db.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}

// Update overwrites an existing entry in place.
func (l *CPZLUT) Update(row CPZLUTRow) error {
	if err := l.db.DB.Save(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}

// EraseByUserID deletes the entry for userID, part of ERASE_USER (I6).
func (l *CPZLUT) EraseByUserID(userID uint32) error {
	if err := l.db.DB.Delete(&CPZLUTRow{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}

// CountFree returns how many of MaxUserSlots user ids are unused.
func (l *CPZLUT) CountFree(maxSlots uint32) (uint32, error) {
	var count int64
	if err := l.db.DB.Model(&CPZLUTRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	if uint32(count) >= maxSlots {
		return 0, nil
	}
	return maxSlots - uint32(count), nil
}
