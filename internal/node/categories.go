package node

import (
	"github.com/keysafe/corectl/internal/wire"
)

// NBMaxCategories resolves spec.md's Open Question (DESIGN.md): fixed
// at 16, matching wire.NBMaxCategories.
const NBMaxCategories = wire.NBMaxCategories

// MaxCategoryUnits bounds each category label's UTF-16 length.
const MaxCategoryUnits = 24

// CategoryNone is the "no filter" / "all categories visible" sentinel
// for both a node's Category field and a profile's current-category
// filter.
const CategoryNone uint8 = 0

// CategoryStrings returns userID's configured category labels, in
// slot order. Unset slots decode as "".
func (m *Manager) CategoryStrings(userID uint32) ([NBMaxCategories]string, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return [NBMaxCategories]string{}, err
	}
	var out [NBMaxCategories]string
	blob := row.CategoryStringsBlob
	unit := MaxCategoryUnits * 2
	for i := 0; i < NBMaxCategories; i++ {
		off := i * unit
		if off+unit > len(blob) {
			continue
		}
		s, err := wire.DecodeUTF16String(blob[off:off+unit], MaxCategoryUnits)
		if err == nil {
			out[i] = s
		}
	}
	return out, nil
}

// SetCategoryString writes a single category label (index < NBMaxCategories).
func (m *Manager) SetCategoryString(userID uint32, index int, label string) error {
	if index < 0 || index >= NBMaxCategories {
		return ErrNoMatch
	}
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	unit := MaxCategoryUnits * 2
	blob := make([]byte, NBMaxCategories*unit)
	copy(blob, row.CategoryStringsBlob)
	enc, err := wire.EncodeUTF16String(label, MaxCategoryUnits)
	if err != nil {
		return err
	}
	copy(blob[index*unit:(index+1)*unit], enc)
	row.CategoryStringsBlob = blob
	return saveProfile(m, row)
}

// CurrentCategory returns userID's active category filter
// (CategoryNone meaning "no filter").
func (m *Manager) CurrentCategory(userID uint32) (uint8, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return CategoryNone, err
	}
	return row.CategoryFilter, nil
}

// SetCurrentCategory implements SET_CUR_CATEGORY's resolved
// latch-once semantics (DESIGN.md): the filter only takes effect while
// no category is currently selected (CategoryFilter == CategoryNone).
// Once set, only an explicit ClearCurrentCategory (or passing
// CategoryNone here) opens it back up for a new selection; repeated
// SET_CUR_CATEGORY calls with the filter already latched are silently
// ignored rather than erroring, matching the host's fire-and-forget
// use of the opcode.
func (m *Manager) SetCurrentCategory(userID uint32, category uint8) error {
	row, err := m.Profile(userID)
	if err != nil {
		return err
	}
	if category == CategoryNone {
		row.CategoryFilter = CategoryNone
		return saveProfile(m, row)
	}
	if row.CategoryFilter != CategoryNone {
		return nil // latched; explicit clear required first
	}
	row.CategoryFilter = category
	return saveProfile(m, row)
}

// ClearCurrentCategory is SetCurrentCategory(userID, CategoryNone).
func (m *Manager) ClearCurrentCategory(userID uint32) error {
	return m.SetCurrentCategory(userID, CategoryNone)
}
