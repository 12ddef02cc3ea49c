package cmd

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/keysafe/corectl/internal/rng"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
}

func TestStorageConfigRequiresDSN(t *testing.T) {
	sc := &StorageConfig{Type: "sqlite"}
	if _, err := sc.getState(); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestCryptoConfigKeyValidatesLength(t *testing.T) {
	c := &CryptoConfig{DeviceOpsKeyHex: "aabb"}
	if _, err := c.key(); err == nil {
		t.Fatal("expected error for short key")
	}

	c = &CryptoConfig{DeviceOpsKeyHex: "zz"}
	if _, err := c.key(); err == nil {
		t.Fatal("expected error for non-hex key")
	}

	valid := ""
	for i := 0; i < 32; i++ {
		valid += "ab"
	}
	c = &CryptoConfig{DeviceOpsKeyHex: valid}
	key, err := c.key()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}
}

func TestPasswordPolicyConfigDefaultsWhenEmpty(t *testing.T) {
	p := &PasswordPolicyConfig{}
	got := p.toPolicy()
	if got.Length != rng.DefaultPolicy.Length || got.Charset != rng.DefaultPolicy.Charset {
		t.Fatalf("expected default policy, got %+v", got)
	}
}

func TestPasswordPolicyConfigOverridesLengthOnly(t *testing.T) {
	p := &PasswordPolicyConfig{Length: 10}
	got := p.toPolicy()
	if got.Length != 10 {
		t.Fatalf("expected overridden length 10, got %d", got.Length)
	}
	if got.Charset != rng.DefaultPolicy.Charset {
		t.Fatalf("expected default charset preserved, got %q", got.Charset)
	}
}

func TestLoadDeviceConfigAppliesFlagDefaults(t *testing.T) {
	resetViper(t)
	dbType = "sqlite"
	dbDSN = "file::memory:"

	cfg, err := loadDeviceConfig()
	if err != nil {
		t.Fatalf("loadDeviceConfig: %v", err)
	}
	if cfg.Storage.DSN != dbDSN || cfg.Storage.Type != dbType {
		t.Fatalf("expected storage config from flag defaults, got %+v", cfg.Storage)
	}
	if cfg.PagesTotal != 4 || cfg.SlotsPerPage != 16 {
		t.Fatalf("expected default page/slot sizing, got %d/%d", cfg.PagesTotal, cfg.SlotsPerPage)
	}
}
