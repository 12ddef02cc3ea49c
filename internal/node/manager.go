// Package node implements the node manager (spec §4.4, C4): typed
// parent/child records over the flash node store, sibling-list and
// child-list search, favorites, change numbers, category filtering,
// and free-slot allocation. It is the one package standing between
// the raw store.Flash byte slots and every higher-level family
// (policy, settings, dispatch) that needs to reason about credentials
// and data notes as structured nodes.
package node

import (
	"fmt"

	"github.com/keysafe/corectl/internal/store"
)

// Manager is the C4 node manager.
type Manager struct {
	flash    *store.Flash
	profiles *store.Profiles
}

// NewManager constructs a Manager over an opened flash store and
// profile accessor.
func NewManager(flash *store.Flash, profiles *store.Profiles) *Manager {
	return &Manager{flash: flash, profiles: profiles}
}

// ReadParent reads and decodes the parent node at addr.
func (m *Manager) ReadParent(addr store.Addr) (*Parent, error) {
	kind, raw, err := m.flash.ReadRaw(addr)
	if err != nil {
		return nil, err
	}
	var k Kind
	switch kind {
	case store.NodeKindParentCredential:
		k = KindParentCredential
	case store.NodeKindParentData:
		k = KindParentData
	default:
		return nil, fmt.Errorf("node: %w at %s", ErrWrongKind, addr)
	}
	return decodeParent(addr, k, raw)
}

// ReadCredential reads and decodes the two-slot credential child node
// at addr.
func (m *Manager) ReadCredential(addr store.Addr) (*Credential, error) {
	kind, first, err := m.flash.ReadRaw(addr)
	if err != nil {
		return nil, err
	}
	if kind != store.NodeKindChildCredential {
		return nil, fmt.Errorf("node: %w at %s", ErrWrongKind, addr)
	}
	_, second, err := m.flash.ReadContinuation(addr)
	if err != nil {
		return nil, err
	}
	return decodeCredential(addr, first, second)
}

// ReadDataChunk reads and decodes the two-slot data/note chunk at addr.
func (m *Manager) ReadDataChunk(addr store.Addr) (*DataChunk, error) {
	kind, first, err := m.flash.ReadRaw(addr)
	if err != nil {
		return nil, err
	}
	if kind != store.NodeKindChildData {
		return nil, fmt.Errorf("node: %w at %s", ErrWrongKind, addr)
	}
	_, second, err := m.flash.ReadContinuation(addr)
	if err != nil {
		return nil, err
	}
	return decodeDataChunk(addr, first, second)
}

// WriteParent encodes and persists p, owned by userID.
func (m *Manager) WriteParent(p *Parent, userID uint32) error {
	raw, err := encodeParent(p)
	if err != nil {
		return err
	}
	return m.flash.WriteRaw(p.Addr, store.AddrNull, p.Kind.storeKind(), userID, raw, nil)
}

// WriteCredential encodes and persists c across its own Addr and
// contAddr (the paired continuation slot), owned by userID.
func (m *Manager) WriteCredential(c *Credential, contAddr store.Addr, userID uint32) error {
	first, second, err := encodeCredential(c)
	if err != nil {
		return err
	}
	return m.flash.WriteRaw(c.Addr, contAddr, store.NodeKindChildCredential, userID, first, second)
}

// WriteDataChunk encodes and persists d across its own Addr and
// contAddr, owned by userID.
func (m *Manager) WriteDataChunk(d *DataChunk, contAddr store.Addr, userID uint32) error {
	first, second := encodeDataChunk(d)
	return m.flash.WriteRaw(d.Addr, contAddr, store.NodeKindChildData, userID, first, second)
}

// EraseNode deletes the node (and its continuation slot, if any) at
// addr.
func (m *Manager) EraseNode(addr store.Addr) error {
	return m.flash.EraseNode(addr)
}

// CheckUserPermission reports whether addr belongs to userID, and its
// kind if it exists at all (spec §4.4 check_user_permission / I5).
func (m *Manager) CheckUserPermission(addr store.Addr, userID uint32) (bool, store.NodeKind, error) {
	return m.flash.CheckOwner(addr, userID)
}

// AllocateFreeSlots returns up to want free addresses, excluding
// exclude, resuming the page walk from cursor. Callers that need a
// resumable search across many calls own the returned Cursor
// themselves (spec §4.1 design note: "the search is resumable").
func (m *Manager) AllocateFreeSlots(cursor store.Cursor, want int, exclude store.Addr) ([]store.Addr, store.Cursor, error) {
	return m.flash.AllocateFreeSlots(cursor, want, exclude)
}

// ScanNodeUsage rebuilds/validates free-space accounting, called on
// management-mode enter/exit (spec §4.4).
func (m *Manager) ScanNodeUsage() (store.Usage, error) {
	return m.flash.ScanNodeUsage()
}

// Profile returns userID's profile row, or ErrNoProfile if the user
// has never been formatted.
func (m *Manager) Profile(userID uint32) (*store.UserProfileRow, error) {
	row, err := m.profiles.Get(userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNoProfile
	}
	return row, nil
}

func saveProfile(m *Manager, row *store.UserProfileRow) error {
	return m.profiles.Save(*row)
}

// StartParents returns userID's sibling-list head addresses for both
// the credential and data/notes chains (GET_START_PARENTS).
func (m *Manager) StartParents(userID uint32) (cred, data store.Addr, err error) {
	row, err := m.Profile(userID)
	if err != nil {
		return store.Addr{}, store.Addr{}, err
	}
	return store.UnpackAddr(row.CredStartParent), store.UnpackAddr(row.DataStartParent), nil
}

// SetCredStartParent overwrites userID's credential sibling-list head.
func (m *Manager) SetCredStartParent(userID uint32, addr store.Addr) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	row.CredStartParent = addr.Pack()
	return saveProfile(m, row)
}

// SetDataStartParent overwrites userID's data/notes sibling-list head.
func (m *Manager) SetDataStartParent(userID uint32, addr store.Addr) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	row.DataStartParent = addr.Pack()
	return saveProfile(m, row)
}

// SetStartParents overwrites both sibling-list heads at once, used by
// a host-side restore to repoint both chains in a single call.
func (m *Manager) SetStartParents(userID uint32, cred, data store.Addr) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	row.CredStartParent = cred.Pack()
	row.DataStartParent = data.Pack()
	return saveProfile(m, row)
}
