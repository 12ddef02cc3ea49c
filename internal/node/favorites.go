package node

import (
	"encoding/binary"

	"github.com/keysafe/corectl/internal/store"
)

// MaxFavorites mirrors wire.MaxFavorites without importing wire into
// every call site that only needs the bound.
const MaxFavorites = 16

// Favorite is one (parent, child) pointer pair stored in a user's
// favorites slot table (spec §3/§4.4).
type Favorite struct {
	Parent store.Addr
	Child  store.Addr
}

func decodeFavorites(blob []byte) [MaxFavorites]Favorite {
	var out [MaxFavorites]Favorite
	for i := 0; i < MaxFavorites; i++ {
		off := i * 4
		if off+4 > len(blob) {
			out[i] = Favorite{Parent: store.AddrNull, Child: store.AddrNull}
			continue
		}
		out[i] = Favorite{
			Parent: store.UnpackAddr(binary.LittleEndian.Uint16(blob[off : off+2])),
			Child:  store.UnpackAddr(binary.LittleEndian.Uint16(blob[off+2 : off+4])),
		}
	}
	return out
}

func encodeFavorites(favs [MaxFavorites]Favorite) []byte {
	out := make([]byte, MaxFavorites*4)
	for i, f := range favs {
		off := i * 4
		binary.LittleEndian.PutUint16(out[off:off+2], f.Parent.Pack())
		binary.LittleEndian.PutUint16(out[off+2:off+4], f.Child.Pack())
	}
	return out
}

// Favorites returns userID's full favorite-slot table, in slot order.
func (m *Manager) Favorites(userID uint32) ([MaxFavorites]Favorite, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return [MaxFavorites]Favorite{}, err
	}
	return decodeFavorites(row.FavoritesBlob), nil
}

// SetFavorite writes slot (0-based, < MaxFavorites) of userID's
// favorite table.
func (m *Manager) SetFavorite(userID uint32, slot int, fav Favorite) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	favs := decodeFavorites(row.FavoritesBlob)
	if slot < 0 || slot >= MaxFavorites {
		return ErrNoMatch
	}
	favs[slot] = fav
	row.FavoritesBlob = encodeFavorites(favs)
	return saveProfile(m, row)
}

// GetFavorite returns a single favorite slot.
func (m *Manager) GetFavorite(userID uint32, slot int) (Favorite, error) {
	favs, err := m.Favorites(userID)
	if err != nil {
		return Favorite{}, err
	}
	if slot < 0 || slot >= MaxFavorites {
		return Favorite{}, ErrNoMatch
	}
	return favs[slot], nil
}

// CredChangeNumber returns the current credential change-tracking
// counter, used by hosts to detect out-of-band database changes
// between sync passes.
func (m *Manager) CredChangeNumber(userID uint32) (uint32, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return 0, err
	}
	return row.CredChangeNumber, nil
}

// DataChangeNumber is the data/notes equivalent of CredChangeNumber.
func (m *Manager) DataChangeNumber(userID uint32) (uint32, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return 0, err
	}
	return row.DataChangeNumber, nil
}

// BumpCredChangeNumber increments and persists the credential change
// number, called by every mutating credential operation (store, change
// password, store TOTP).
func (m *Manager) BumpCredChangeNumber(userID uint32) (uint32, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return 0, err
	}
	row.CredChangeNumber++
	if err := saveProfile(m, row); err != nil {
		return 0, err
	}
	return row.CredChangeNumber, nil
}

// BumpDataChangeNumber is the data/notes equivalent of BumpCredChangeNumber.
func (m *Manager) BumpDataChangeNumber(userID uint32) (uint32, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return 0, err
	}
	row.DataChangeNumber++
	if err := saveProfile(m, row); err != nil {
		return 0, err
	}
	return row.DataChangeNumber, nil
}

// SetChangeNumbers overwrites both counters directly, used by the host
// after a full database restore to resynchronise.
func (m *Manager) SetChangeNumbers(userID uint32, cred, data uint32) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	row.CredChangeNumber = cred
	row.DataChangeNumber = data
	return saveProfile(m, row)
}

// SetCredChangeNumber overwrites only the credential change counter.
func (m *Manager) SetCredChangeNumber(userID uint32, v uint32) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	row.CredChangeNumber = v
	return saveProfile(m, row)
}

// SetDataChangeNumber overwrites only the data/notes change counter.
func (m *Manager) SetDataChangeNumber(userID uint32, v uint32) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	row.DataChangeNumber = v
	return saveProfile(m, row)
}
