package store

import (
	"fmt"

	"gorm.io/gorm"
)

// Profiles is the per-user profile accessor (spec §3 "User profile").
type Profiles struct {
	db *State
}

// NewProfiles constructs a Profiles accessor.
func NewProfiles(s *State) *Profiles {
	return &Profiles{db: s}
}

// Get returns userID's profile row, or (nil, nil) if never formatted.
func (p *Profiles) Get(userID uint32) (*UserProfileRow, error) {
	var row UserProfileRow
	err := p.db.DB.First(&row, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return &row, nil
}

// Save inserts or updates row.
func (p *Profiles) Save(row UserProfileRow) error {
	if err := p.db.DB.Save(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}

// Erase deletes userID's profile, part of ERASE_USER (I6).
func (p *Profiles) Erase(userID uint32) error {
	if err := p.db.DB.Delete(&UserProfileRow{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}

// EraseUserNodes deletes every flash node owned by userID, as part of
// ERASE_USER.
func (p *Profiles) EraseUserNodes(userID uint32) error {
	if err := p.db.DB.Delete(&FlashNode{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return nil
}
