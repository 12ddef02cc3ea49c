package settings

import (
	"testing"

	"github.com/keysafe/corectl/internal/store"
)

func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := store.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return New(store.NewCustom(s), store.NewCPZLUT(s))
}

func TestSettingRoundTrip(t *testing.T) {
	s := newTestSettings(t)
	if _, ok, err := s.GetSetting(1); err != nil || ok {
		t.Fatalf("expected unset key initially, ok=%v err=%v", ok, err)
	}
	if err := s.SetSetting(1, []byte("hello")); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	got, ok, err := s.GetSetting(1)
	if err != nil || !ok || string(got) != "hello" {
		t.Fatalf("unexpected get: got=%q ok=%v err=%v", got, ok, err)
	}
	if err := s.SetSetting(1, []byte("updated")); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	got, _, _ = s.GetSetting(1)
	if string(got) != "updated" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
}

func TestDumpAndRestoreAll(t *testing.T) {
	s := newTestSettings(t)
	if err := s.SetSetting(1, []byte("a")); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(2, []byte("bb")); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	dump, err := s.DumpAll()
	if err != nil || len(dump) != 2 {
		t.Fatalf("DumpAll: %v err %v", dump, err)
	}

	s2 := newTestSettings(t)
	if err := s2.RestoreAll(dump); err != nil {
		t.Fatalf("RestoreAll: %v", err)
	}
	got, ok, err := s2.GetSetting(2)
	if err != nil || !ok || string(got) != "bb" {
		t.Fatalf("restored value mismatch: %q ok=%v err=%v", got, ok, err)
	}
}

func TestFlags(t *testing.T) {
	s := newTestSettings(t)
	on, err := s.GetFlag(3)
	if err != nil || on {
		t.Fatalf("expected flag 3 unset initially, on=%v err=%v", on, err)
	}
	if err := s.SetFlag(3, true); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	on, err = s.GetFlag(3)
	if err != nil || !on {
		t.Fatalf("expected flag 3 set, on=%v err=%v", on, err)
	}
	// Other bits remain untouched.
	on, _ = s.GetFlag(4)
	if on {
		t.Fatalf("expected flag 4 to remain unset")
	}
	if err := s.SetFlag(3, false); err != nil {
		t.Fatalf("SetFlag clear: %v", err)
	}
	on, _ = s.GetFlag(3)
	if on {
		t.Fatalf("expected flag 3 cleared")
	}
}

func TestCPZLangAndKeyboardIDs(t *testing.T) {
	s := newTestSettings(t)
	if err := s.cpzlut.Store(store.CPZLUTRow{CPZ: []byte("0123456789abcdef"), UserID: 1, Nonce: make([]byte, 16)}); err != nil {
		t.Fatalf("seed CPZ-LUT: %v", err)
	}
	if err := s.SetLangID(1, 7); err != nil {
		t.Fatalf("SetLangID: %v", err)
	}
	got, err := s.GetLangID(1)
	if err != nil || got != 7 {
		t.Fatalf("GetLangID: got=%d err=%v", got, err)
	}
	if err := s.SetUSBKeyboardID(1, 2); err != nil {
		t.Fatalf("SetUSBKeyboardID: %v", err)
	}
	if err := s.SetBLEKeyboardID(1, 4); err != nil {
		t.Fatalf("SetBLEKeyboardID: %v", err)
	}
	usb, _ := s.GetUSBKeyboardID(1)
	ble, _ := s.GetBLEKeyboardID(1)
	if usb != 2 || ble != 4 {
		t.Fatalf("unexpected keyboard ids: usb=%d ble=%d", usb, ble)
	}
}

func TestPowerLogRingBuffer(t *testing.T) {
	s := newTestSettings(t)
	if err := s.AppendPowerLog([]byte("first-entry;")); err != nil {
		t.Fatalf("AppendPowerLog: %v", err)
	}
	big := make([]byte, maxPowerLogBytes)
	for i := range big {
		big[i] = 'x'
	}
	if err := s.AppendPowerLog(big); err != nil {
		t.Fatalf("AppendPowerLog big: %v", err)
	}
	got, err := s.DumpPowerLog()
	if err != nil {
		t.Fatalf("DumpPowerLog: %v", err)
	}
	if len(got) != maxPowerLogBytes {
		t.Fatalf("expected log capped at %d bytes, got %d", maxPowerLogBytes, len(got))
	}
}
