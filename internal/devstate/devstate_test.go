package devstate

import (
	"testing"

	"github.com/keysafe/corectl/internal/store"
)

func TestDeviceStateLoginLogout(t *testing.T) {
	d := New()
	if _, ok := d.CurrentUser(); ok {
		t.Fatalf("expected no current user initially")
	}
	d.SetSmartcardUnlocked(true)
	d.Login(42)
	uid, ok := d.CurrentUser()
	if !ok || uid != 42 {
		t.Fatalf("expected logged-in user 42, got %d ok=%v", uid, ok)
	}
	d.SetManagementMode(true)
	d.Logout()
	if _, ok := d.CurrentUser(); ok {
		t.Fatalf("expected logged out")
	}
	if d.SmartcardUnlocked() || d.ManagementMode() {
		t.Fatalf("expected smartcard/MMM state cleared on logout")
	}
}

func TestUserFlags(t *testing.T) {
	s, err := store.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	profiles := store.NewProfiles(s)
	if err := profiles.Save(store.UserProfileRow{UserID: 1, Formatted: true}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	uf := NewUserFlags(profiles)
	on, err := uf.Get(1, FlagBLEEnabled)
	if err != nil || on {
		t.Fatalf("expected BLE flag unset initially, on=%v err=%v", on, err)
	}
	if err := uf.Set(1, FlagBLEEnabled, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	on, err = uf.Get(1, FlagBLEEnabled)
	if err != nil || !on {
		t.Fatalf("expected BLE flag set, on=%v err=%v", on, err)
	}
	all, err := uf.All(1)
	if err != nil || all != FlagBLEEnabled {
		t.Fatalf("unexpected All(): %d err=%v", all, err)
	}
}
