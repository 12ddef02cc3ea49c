package settings

import "github.com/keysafe/corectl/internal/store"

// Bundle backup slot: the management-mode host uploads a full
// settings/CPZ-LUT backup bundle in 256-byte frames (START_BUNDLE_UL /
// BUNDLE_WRITE_256B / BUNDLE_UL_DONE); internal/dispatch stages the
// frames and hands the assembled blob here once complete.

// SetBundleBackup persists the assembled bundle blob.
func (s *Settings) SetBundleBackup(blob []byte) error {
	return s.custom.SetSlot(store.SlotBundleBackup, blob)
}

// GetBundleBackup returns the most recently persisted bundle blob.
func (s *Settings) GetBundleBackup() ([]byte, error) {
	return s.custom.GetSlot(store.SlotBundleBackup)
}
