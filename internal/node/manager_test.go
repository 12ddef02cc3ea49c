package node

import (
	"testing"

	"github.com/keysafe/corectl/internal/store"
)

func newTestManager(t *testing.T) (*Manager, uint32) {
	t.Helper()
	s, err := store.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	flash := store.NewFlash(s, 4, 16)
	profiles := store.NewProfiles(s)

	const userID = 1
	if err := profiles.Save(store.UserProfileRow{
		UserID:          userID,
		CredStartParent: store.AddrNull.Pack(),
		DataStartParent: store.AddrNull.Pack(),
		Formatted:       true,
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return NewManager(flash, profiles), userID
}

func TestCredentialRoundTrip(t *testing.T) {
	m, user := newTestManager(t)

	parentAddr := store.Addr{Page: 0, Offset: 0}
	childAddr := store.Addr{Page: 0, Offset: 1}
	contAddr := store.Addr{Page: 0, Offset: 2}

	parent := &Parent{Addr: parentAddr, Kind: KindParentCredential, Service: "example.com", FirstChild: childAddr, Prev: store.AddrNull, Next: store.AddrNull}
	if err := m.WriteParent(parent, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}

	cred := &Credential{
		Addr: childAddr, Parent: parentAddr, Next: store.AddrNull,
		Login: "alice", Description: "work login", EncryptedPassword: []byte("ciphertext-goes-here"),
		CTR: 42,
	}
	if err := m.WriteCredential(cred, contAddr, user); err != nil {
		t.Fatalf("WriteCredential: %v", err)
	}

	got, err := m.ReadCredential(childAddr)
	if err != nil {
		t.Fatalf("ReadCredential: %v", err)
	}
	if got.Login != "alice" || got.Description != "work login" || got.CTR != 42 {
		t.Fatalf("unexpected credential: %+v", got)
	}

	row, err := m.ReadParent(parentAddr)
	if err != nil {
		t.Fatalf("ReadParent: %v", err)
	}
	if row.Service != "example.com" || row.FirstChild != childAddr {
		t.Fatalf("unexpected parent: %+v", row)
	}
}

func TestCredentialWithTOTPAndWebAuthn(t *testing.T) {
	m, user := newTestManager(t)
	addr := store.Addr{Page: 1, Offset: 0}
	cont := store.Addr{Page: 1, Offset: 1}

	var credID [CredentialIDBytes]byte
	copy(credID[:], []byte("0123456789abcdef"))

	cred := &Credential{
		Addr: addr, Parent: store.AddrNull, Next: store.AddrNull,
		Login: "bob", CredType: CredentialWebAuthn,
		EncryptedPassword: []byte("x"),
		TOTP:              &TOTPField{Secret: []byte("supersecretkey12"), Digits: 6, TimeStep: 30, ShaVer: 1, CTR: 7},
		WebAuthn:          &WebAuthnField{UserHandle: []byte("handle-bytes"), CredentialID: credID, KeyType: 1, SignCounter: 9},
	}
	if err := m.WriteCredential(cred, cont, user); err != nil {
		t.Fatalf("WriteCredential: %v", err)
	}

	got, err := m.ReadCredential(addr)
	if err != nil {
		t.Fatalf("ReadCredential: %v", err)
	}
	if got.TOTP == nil || string(got.TOTP.Secret) != "supersecretkey12" || got.TOTP.Digits != 6 {
		t.Fatalf("unexpected TOTP field: %+v", got.TOTP)
	}
	if got.WebAuthn == nil || got.WebAuthn.CredentialID != credID || got.WebAuthn.SignCounter != 9 {
		t.Fatalf("unexpected WebAuthn field: %+v", got.WebAuthn)
	}
}

func TestFindServiceAndLogin(t *testing.T) {
	m, user := newTestManager(t)

	a := store.Addr{Page: 0, Offset: 0}
	b := store.Addr{Page: 0, Offset: 1}
	child := store.Addr{Page: 0, Offset: 2}
	cont := store.Addr{Page: 0, Offset: 3}

	pa := &Parent{Addr: a, Kind: KindParentCredential, Service: "github.com", Next: b, Prev: store.AddrNull, FirstChild: child}
	pb := &Parent{Addr: b, Kind: KindParentCredential, Service: "example.com", Next: store.AddrNull, Prev: a, FirstChild: store.AddrNull}
	if err := m.WriteParent(pa, user); err != nil {
		t.Fatalf("WriteParent a: %v", err)
	}
	if err := m.WriteParent(pb, user); err != nil {
		t.Fatalf("WriteParent b: %v", err)
	}

	row, _ := m.Profile(user)
	row.CredStartParent = a.Pack()
	if err := saveProfile(m, row); err != nil {
		t.Fatalf("saveProfile: %v", err)
	}

	cred := &Credential{Addr: child, Parent: a, Next: store.AddrNull, Login: "alice", EncryptedPassword: []byte("ct")}
	if err := m.WriteCredential(cred, cont, user); err != nil {
		t.Fatalf("WriteCredential: %v", err)
	}

	found, err := m.FindService(user, KindParentCredential, "GITHUB.COM", ModeMatch, 0, false)
	if err != nil {
		t.Fatalf("FindService (match): %v", err)
	}
	if found.Addr != a {
		t.Fatalf("expected parent a, got %v", found.Addr)
	}

	if _, err := m.FindService(user, KindParentCredential, "GITHUB.COM", ModeCompare, 0, false); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch under exact compare, got %v", err)
	}

	cred2, err := m.FindLogin(a, "alice")
	if err != nil {
		t.Fatalf("FindLogin: %v", err)
	}
	if cred2.Addr != child {
		t.Fatalf("expected child addr, got %v", cred2.Addr)
	}
}

func TestCurrentCategoryLatchOnce(t *testing.T) {
	m, user := newTestManager(t)

	if err := m.SetCurrentCategory(user, 3); err != nil {
		t.Fatalf("SetCurrentCategory: %v", err)
	}
	got, err := m.CurrentCategory(user)
	if err != nil || got != 3 {
		t.Fatalf("expected category 3, got %d err %v", got, err)
	}

	// Latched: a second SET_CUR_CATEGORY is silently ignored.
	if err := m.SetCurrentCategory(user, 5); err != nil {
		t.Fatalf("SetCurrentCategory (latched): %v", err)
	}
	got, _ = m.CurrentCategory(user)
	if got != 3 {
		t.Fatalf("expected category to stay latched at 3, got %d", got)
	}

	if err := m.ClearCurrentCategory(user); err != nil {
		t.Fatalf("ClearCurrentCategory: %v", err)
	}
	if err := m.SetCurrentCategory(user, 5); err != nil {
		t.Fatalf("SetCurrentCategory after clear: %v", err)
	}
	got, _ = m.CurrentCategory(user)
	if got != 5 {
		t.Fatalf("expected category 5 after clear+set, got %d", got)
	}
}

func TestFavoritesRoundTrip(t *testing.T) {
	m, user := newTestManager(t)
	fav := Favorite{Parent: store.Addr{Page: 2, Offset: 1}, Child: store.Addr{Page: 2, Offset: 2}}
	if err := m.SetFavorite(user, 0, fav); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	got, err := m.GetFavorite(user, 0)
	if err != nil {
		t.Fatalf("GetFavorite: %v", err)
	}
	if got != fav {
		t.Fatalf("unexpected favorite: %+v", got)
	}
	if _, err := m.GetFavorite(user, MaxFavorites); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch for out-of-range slot, got %v", err)
	}
}

func TestChangeNumbers(t *testing.T) {
	m, user := newTestManager(t)
	n, err := m.BumpCredChangeNumber(user)
	if err != nil || n != 1 {
		t.Fatalf("BumpCredChangeNumber: n=%d err=%v", n, err)
	}
	n, err = m.BumpCredChangeNumber(user)
	if err != nil || n != 2 {
		t.Fatalf("BumpCredChangeNumber second call: n=%d err=%v", n, err)
	}
	if err := m.SetChangeNumbers(user, 10, 20); err != nil {
		t.Fatalf("SetChangeNumbers: %v", err)
	}
	cred, data, err := readBothChangeNumbers(m, user)
	if err != nil || cred != 10 || data != 20 {
		t.Fatalf("unexpected change numbers: cred=%d data=%d err=%v", cred, data, err)
	}
}

func readBothChangeNumbers(m *Manager, user uint32) (uint32, uint32, error) {
	c, err := m.CredChangeNumber(user)
	if err != nil {
		return 0, 0, err
	}
	d, err := m.DataChangeNumber(user)
	if err != nil {
		return 0, 0, err
	}
	return c, d, nil
}
