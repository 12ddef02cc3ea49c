package devstate

import "github.com/keysafe/corectl/internal/store"

// Per-user security flag bits packed into UserProfileRow.SecurityFlags
// (spec §4.6): surfaced by GET_USER_SETTINGS, mutated only while in
// management mode.
const (
	FlagAdvancedMenu       uint16 = 1 << 0
	FlagLoginConfirmation  uint16 = 1 << 1
	FlagPINForMMM          uint16 = 1 << 2
	FlagBLEEnabled         uint16 = 1 << 3
	FlagCredSavePromptMMM  uint16 = 1 << 4
	FlagKnockDetectDisabled uint16 = 1 << 5
)

// UserFlags is the per-user security-flag accessor, backed by the
// node manager's profile store.
type UserFlags struct {
	profiles *store.Profiles
}

// NewUserFlags constructs a UserFlags accessor.
func NewUserFlags(profiles *store.Profiles) *UserFlags {
	return &UserFlags{profiles: profiles}
}

// Get returns whether bit is set for userID.
func (u *UserFlags) Get(userID uint32, bit uint16) (bool, error) {
	row, err := u.profiles.Get(userID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, store.ErrNotFound
	}
	return row.SecurityFlags&bit != 0, nil
}

// Set sets or clears bit for userID.
func (u *UserFlags) Set(userID uint32, bit uint16, on bool) error {
	row, err := u.profiles.Get(userID)
	if err != nil {
		return err
	}
	if row == nil {
		return store.ErrNotFound
	}
	if on {
		row.SecurityFlags |= bit
	} else {
		row.SecurityFlags &^= bit
	}
	return u.profiles.Save(*row)
}

// All returns every flag bit for userID as a single bitmask, for
// GET_USER_SETTINGS to return in one shot.
func (u *UserFlags) All(userID uint32) (uint16, error) {
	row, err := u.profiles.Get(userID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, store.ErrNotFound
	}
	return row.SecurityFlags, nil
}
