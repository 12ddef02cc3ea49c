package node

// ProfileBound adapts a user's persisted CTRBound field to the
// aesctr.BoundStore interface, letting the AES-CTR engine amortise its
// flash writes through the same profile row the node manager already
// owns (spec §4.2 invariant I2).
type ProfileBound struct {
	m      *Manager
	userID uint32
}

// NewBoundStore constructs a ProfileBound for userID.
func (m *Manager) NewBoundStore(userID uint32) *ProfileBound {
	return &ProfileBound{m: m, userID: userID}
}

// CTRBound implements aesctr.BoundStore.
func (b *ProfileBound) CTRBound() uint32 {
	row, err := b.m.Profile(b.userID)
	if err != nil {
		return 0
	}
	return row.CTRBound
}

// SetCTRBound implements aesctr.BoundStore.
func (b *ProfileBound) SetCTRBound(v uint32) error {
	row, err := b.m.Profile(b.userID)
	if err != nil {
		return err
	}
	row.CTRBound = v
	return saveProfile(b.m, row)
}
