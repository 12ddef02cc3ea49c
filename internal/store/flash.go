package store

import (
	"fmt"

	"gorm.io/gorm"
)

// Flash is the node flash store (C1): read/write of fixed-size node
// slots, free-slot allocation, and the usage rebuild scan. It never
// returns a long-lived reference into the database; every read copies
// out a fresh byte slice (spec §9: "borrow-style read/write").
type Flash struct {
	db *State

	// pagesTotal/slotsPerPage describe the address space used to drive
	// AllocateFreeSlots' resumable page walk; they do not bound what
	// addresses may already exist (a freshly migrated database has none).
	pagesTotal    uint8
	slotsPerPage  uint8
}

// NewFlash constructs a Flash store over an opened State. pagesTotal and
// slotsPerPage describe the simulated flash geometry (spec §3: "Node
// flash is page-formatted; each page holds N slots of fixed width").
func NewFlash(s *State, pagesTotal, slotsPerPage uint8) *Flash {
	return &Flash{db: s, pagesTotal: pagesTotal, slotsPerPage: slotsPerPage}
}

// ReadRaw returns a copy of the raw bytes at addr, or ErrNotFound.
func (f *Flash) ReadRaw(addr Addr) (NodeKind, []byte, error) {
	var row FlashNode
	err := f.db.DB.First(&row, "addr_key = ?", addr.key()).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	out := make([]byte, len(row.Raw))
	copy(out, row.Raw)
	return row.Kind, out, nil
}

// ReadContinuation returns the second slot's raw bytes for a two-slot
// child node, following FlashNode.Continuation.
func (f *Flash) ReadContinuation(addr Addr) (Addr, []byte, error) {
	var row FlashNode
	if err := f.db.DB.First(&row, "addr_key = ?", addr.key()).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Addr{}, nil, ErrNotFound
		}
		return Addr{}, nil, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	if row.Continuation == 0 {
		return Addr{}, nil, nil
	}
	contAddr := UnpackAddr(row.Continuation)
	_, raw, err := f.ReadRaw(contAddr)
	return contAddr, raw, err
}

// WriteRaw writes addr (and, for two-slot nodes, contAddr) as kind,
// owned by userID. contAddr may be the zero Addr to indicate a
// single-slot node.
func (f *Flash) WriteRaw(addr Addr, contAddr Addr, kind NodeKind, userID uint32, raw, contRaw []byte) error {
	return f.db.DB.Transaction(func(tx *gorm.DB) error {
		row := FlashNode{
			AddrKey: addr.key(),
			UserID:  userID,
			Kind:    kind,
			Raw:     raw,
		}
		if !contAddr.IsNull() && contRaw != nil {
			row.Continuation = contAddr.Pack()
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
		}
		if row.Continuation != 0 {
			cont := FlashNode{
				AddrKey: contAddr.key(),
				UserID:  userID,
				Kind:    kind,
				Raw:     contRaw,
			}
			if err := tx.Save(&cont).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
			}
		}
		return nil
	})
}

// EraseNode deletes addr and, if present, its continuation slot.
func (f *Flash) EraseNode(addr Addr) error {
	return f.db.DB.Transaction(func(tx *gorm.DB) error {
		var row FlashNode
		err := tx.First(&row, "addr_key = ?", addr.key()).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
		}
		if err := tx.Delete(&FlashNode{}, "addr_key = ?", addr.key()).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
		}
		if row.Continuation != 0 {
			if err := tx.Delete(&FlashNode{}, "addr_key = ?", row.Continuation).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
			}
		}
		return nil
	})
}

// CheckOwner reports whether addr exists and belongs to userID, and its
// kind if so (spec §4.4 check_user_permission).
func (f *Flash) CheckOwner(addr Addr, userID uint32) (bool, NodeKind, error) {
	var row FlashNode
	err := f.db.DB.First(&row, "addr_key = ?", addr.key()).Error
	if err == gorm.ErrRecordNotFound {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	return row.UserID == userID, row.Kind, nil
}

// Cursor is a resumable free-slot search position (spec §4.1: "the
// search is resumable").
type Cursor struct {
	Page   uint8
	Offset uint8
}

// AllocateFreeSlots returns up to `want` free addresses starting the
// walk at from, skipping exclude. It returns ErrStorageFull (with
// whatever addresses it did find) if fewer than want are available
// before exhausting the address space, letting the caller decide
// whether to keep what it got (spec: "returning an interior pointer for
// resumption").
func (f *Flash) AllocateFreeSlots(from Cursor, want int, exclude Addr) ([]Addr, Cursor, error) {
	var used []uint16
	if err := f.db.DB.Model(&FlashNode{}).Pluck("addr_key", &used).Error; err != nil {
		return nil, from, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	usedSet := make(map[uint16]bool, len(used))
	for _, k := range used {
		usedSet[k] = true
	}

	var out []Addr
	page, offset := from.Page, from.Offset
	for page < f.pagesTotal {
		for offset < f.slotsPerPage {
			cand := Addr{Page: page, Offset: offset}
			offset++
			if cand == exclude || cand.IsNull() || cand.key() == 0 {
				continue
			}
			if usedSet[cand.key()] {
				continue
			}
			out = append(out, cand)
			if len(out) == want {
				return out, Cursor{Page: page, Offset: offset}, nil
			}
		}
		offset = 0
		page++
	}
	return out, Cursor{Page: page, Offset: offset}, ErrStorageFull
}

// Usage summarises what ScanNodeUsage found, for callers that want to
// report free-space statistics after a rebuild.
type Usage struct {
	UsedSlots int
	FreeSlots int
}

// ScanNodeUsage rebuilds the free list by recomputing it from the
// flash_nodes table; with a relational backing store this is a
// consistency check rather than a reconstruction, since the table is
// always authoritative. Called on enter/exit of management mode per
// spec §4.4.
func (f *Flash) ScanNodeUsage() (Usage, error) {
	var count int64
	if err := f.db.DB.Model(&FlashNode{}).Count(&count).Error; err != nil {
		return Usage{}, fmt.Errorf("%w: %v", ErrNodeIoFailed, err)
	}
	total := int(f.pagesTotal) * int(f.slotsPerPage)
	return Usage{UsedSlots: int(count), FreeSlots: total - int(count)}, nil
}
