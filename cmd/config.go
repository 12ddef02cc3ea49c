package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/keysafe/corectl/internal/rng"
	"github.com/keysafe/corectl/internal/store"
)

// StorageConfig selects the GORM dialect backing internal/store.
type StorageConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

func (s *StorageConfig) getState() (*store.State, error) {
	if s.DSN == "" {
		return nil, errors.New("database configuration error: dsn is required")
	}
	s.Type = strings.ToLower(s.Type)
	return store.InitDB(s.Type, s.DSN)
}

// TransportConfig toggles which physical links the server command
// binds (spec explicitly scopes physical/link-layer concerns out; this
// only gates whether a link is wired up, not how the bytes move).
type TransportConfig struct {
	USBEnabled    bool   `mapstructure:"usb_enabled"`
	USBDevicePath string `mapstructure:"usb_device_path"`
	BLEEnabled    bool   `mapstructure:"ble_enabled"`
	BLEDevicePath string `mapstructure:"ble_device_path"`
}

// CryptoConfig holds the device-held operations key, used as the
// devauth.Engine's challenge-response key.
type CryptoConfig struct {
	DeviceOpsKeyHex string `mapstructure:"device_ops_key"`
}

func (c *CryptoConfig) key() ([]byte, error) {
	if c.DeviceOpsKeyHex == "" {
		return nil, errors.New("crypto configuration error: device_ops_key is required")
	}
	key, err := hex.DecodeString(c.DeviceOpsKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto configuration error: device_ops_key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto configuration error: device_ops_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// PasswordPolicyConfig mirrors rng.Policy for config decoding.
type PasswordPolicyConfig struct {
	Length  int    `mapstructure:"length"`
	Charset string `mapstructure:"charset"`
}

func (p *PasswordPolicyConfig) toPolicy() rng.Policy {
	if p.Length == 0 && p.Charset == "" {
		return rng.DefaultPolicy
	}
	pol := rng.DefaultPolicy
	if p.Length != 0 {
		pol.Length = p.Length
	}
	if p.Charset != "" {
		pol.Charset = p.Charset
	}
	return pol
}

// DeviceConfig is the top-level configuration structure decoded from
// the config file plus bound flags, the way the teacher's
// FDOServerConfig aggregates per-concern sub-structs.
type DeviceConfig struct {
	SerialNumber uint32               `mapstructure:"serial_number"`
	PagesTotal   uint8                `mapstructure:"pages_total"`
	SlotsPerPage uint8                `mapstructure:"slots_per_page"`
	Storage      StorageConfig        `mapstructure:"storage"`
	Transport    TransportConfig      `mapstructure:"transport"`
	Crypto       CryptoConfig         `mapstructure:"crypto"`
	Policy       PasswordPolicyConfig `mapstructure:"policy"`
}

func loadDeviceConfig() (*DeviceConfig, error) {
	cfg := &DeviceConfig{
		SerialNumber: 1,
		PagesTotal:   4,
		SlotsPerPage: 16,
		Storage:      StorageConfig{Type: dbType, DSN: dbDSN},
		Transport:    TransportConfig{USBEnabled: true},
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("configuration decode failed: %w", err)
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage = StorageConfig{Type: dbType, DSN: dbDSN}
	}
	if cfg.PagesTotal == 0 {
		cfg.PagesTotal = 4
	}
	if cfg.SlotsPerPage == 0 {
		cfg.SlotsPerPage = 16
	}
	return cfg, nil
}
