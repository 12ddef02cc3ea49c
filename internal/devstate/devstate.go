// Package devstate implements the C6 device/user state machine (spec
// §4.6): the boolean device-wide state table and per-user security
// flags, owned by the dispatch loop as single mutable device context
// (spec §9 design note).
package devstate

import "sync"

// DeviceState is the device-wide boolean state table of spec §4.6.
// It is shared by exactly one dispatch loop; callers serialize access
// through the dispatcher's single-consumer design, and the mutex here
// additionally makes reads from any other goroutine safe.
type DeviceState struct {
	mu sync.Mutex

	smartcardUnlocked   bool
	managementMode      bool
	bundleUploadAllowed bool
	userToBeLoggedOff   bool
	settingsChanged     bool
	computerLockedState bool

	currentUserID uint32
	hasUser       bool

	pendingCardCPZ []byte
}

// New constructs a DeviceState with every flag cleared (power-on
// default).
func New() *DeviceState {
	return &DeviceState{}
}

func (d *DeviceState) SmartcardUnlocked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.smartcardUnlocked
}

func (d *DeviceState) SetSmartcardUnlocked(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.smartcardUnlocked = v
}

func (d *DeviceState) ManagementMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.managementMode
}

func (d *DeviceState) SetManagementMode(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.managementMode = v
}

func (d *DeviceState) BundleUploadAllowed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bundleUploadAllowed
}

func (d *DeviceState) SetBundleUploadAllowed(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bundleUploadAllowed = v
}

func (d *DeviceState) UserToBeLoggedOff() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userToBeLoggedOff
}

func (d *DeviceState) SetUserToBeLoggedOff(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userToBeLoggedOff = v
}

func (d *DeviceState) SettingsChanged() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settingsChanged
}

func (d *DeviceState) SetSettingsChanged(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settingsChanged = v
}

func (d *DeviceState) ComputerLockedState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.computerLockedState
}

func (d *DeviceState) SetComputerLockedState(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.computerLockedState = v
}

// CurrentUser returns the logged-in user id and whether any user is
// currently logged in.
func (d *DeviceState) CurrentUser() (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentUserID, d.hasUser
}

// Login marks userID as the active user (post smartcard-unlock +
// device-auth success).
func (d *DeviceState) Login(userID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentUserID = userID
	d.hasUser = true
}

// Logout clears the active-user and smartcard-unlocked state, mirroring
// the "wiping keys" requirement on logout (spec §1).
func (d *DeviceState) Logout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasUser = false
	d.currentUserID = 0
	d.smartcardUnlocked = false
	d.managementMode = false
	d.userToBeLoggedOff = false
}

// SetPendingCardCPZ records an unbonded card's CPZ as the pending bond
// candidate (ADD_UNKNOWN_CARD_ID), surfaced to the host's bonding UI
// until the next RESET_UNKNOWN_CARD or a successful bond consumes it.
func (d *DeviceState) SetPendingCardCPZ(cpz []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingCardCPZ = append([]byte(nil), cpz...)
}

// PendingCardCPZ returns the current pending-bond CPZ, if any.
func (d *DeviceState) PendingCardCPZ() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingCardCPZ == nil {
		return nil, false
	}
	return append([]byte(nil), d.pendingCardCPZ...), true
}

// ResetPendingCardCPZ clears the pending-bond candidate
// (RESET_UNKNOWN_CARD).
func (d *DeviceState) ResetPendingCardCPZ() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingCardCPZ = nil
}
