package store

import "time"

// NodeKind records the physical/semantic kind of a flash slot, used to
// validate reads (e.g. ReadParent against a child slot fails) before
// the caller even inspects the payload.
type NodeKind uint8

const (
	NodeKindFree NodeKind = iota
	NodeKindParentCredential
	NodeKindParentData
	NodeKindChildCredential
	NodeKindChildData
)

// FlashNode is one physical slot of the node flash, persisted as a GORM
// row. A child credential/data node occupies two consecutive slots in
// the original firmware; here that is modeled by Continuation pointing
// at the second half's own row so the pair can still be read/written
// atomically without the caller juggling raw byte offsets.
type FlashNode struct {
	AddrKey uint16 `gorm:"primaryKey"`
	UserID  uint32 `gorm:"index"`
	Kind    NodeKind
	Raw     []byte
	// Continuation is the AddrKey of the second slot for two-slot nodes,
	// or 0 (an unaddressable key, since real addrs never pack to 0 given
	// page/offset numbering starts post-header) when not applicable.
	Continuation uint16
	UpdatedAt    time.Time
}

func (FlashNode) TableName() string { return "flash_nodes" }

// CustomSlot is one 256-byte record in the custom-storage area (spec
// §6 "Persisted layouts"): settings, device flags, the time-calibration
// record, the power-consumption log and the bundle backup live here,
// distinguished by SlotID. The CPZ-LUT has its own table (CPZLUTRow).
type CustomSlot struct {
	SlotID    uint16 `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

func (CustomSlot) TableName() string { return "custom_slots" }

// UserProfileRow is the persisted per-user profile header (spec §3):
// starting addresses, CTR bound, nonce, change numbers, category
// filter. Favorites and category strings are stored as encoded blobs
// since they are small fixed-cardinality arrays the node manager
// owns the layout of.
type UserProfileRow struct {
	UserID              uint32 `gorm:"primaryKey"`
	CredStartParent     uint16
	DataStartParent     uint16
	CTRBound            uint32 // 24-bit logical value stored in 32 bits
	Nonce               []byte // 16 bytes
	FavoritesBlob       []byte
	CategoryStringsBlob []byte
	CategoryFilter      uint8
	CredChangeNumber    uint32
	DataChangeNumber    uint32
	SecurityFlags       uint16
	LangID              uint16
	USBKeyboardID       uint16
	BLEKeyboardID       uint16
	Formatted           bool
}

func (UserProfileRow) TableName() string { return "user_profiles" }

// AllModels lists every model migrated by InitDB.
func AllModels() []any {
	return []any{
		&FlashNode{},
		&CustomSlot{},
		&UserProfileRow{},
		&CPZLUTRow{},
	}
}
