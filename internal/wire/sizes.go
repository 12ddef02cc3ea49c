package wire

// Fixed cryptographic and structural sizes from spec §6.
const (
	AESKeySize     = 32
	AESBlockSize   = 16
	CPZSize        = 16
	UserNonceSize  = 16
	UserCTRSize    = 3 // 24-bit counter, stored big-endian in the low 3 bytes
	AuthCounterSize = 4

	MaxUserSlots     = 112
	NBMaxCategories  = 16 // resolved Open Question, see DESIGN.md
	MaxFavorites     = 16
	MaxCategoryStrs  = NBMaxCategories

	CTRFlashMinIncr = 32 // blocks; amortises flash writes per spec §4.2

	CheckPasswordTimerVal = 2 // seconds, spec §8 scenario 2 / I8
)
