package policy

import (
	"testing"
	"time"

	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/store"
)

type fakeBound struct{ v uint32 }

func (f *fakeBound) CTRBound() uint32          { return f.v }
func (f *fakeBound) SetCTRBound(v uint32) error { f.v = v; return nil }

func testEngine(t *testing.T) *aesctr.Engine {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}
	e, err := aesctr.NewFromCardKey(key, [16]byte{1, 2, 3}, 0, &fakeBound{v: 1_000_000})
	if err != nil {
		t.Fatalf("NewFromCardKey: %v", err)
	}
	return e
}

func newTestPolicy(t *testing.T) (*Policy, uint32) {
	t.Helper()
	s, err := store.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	flash := store.NewFlash(s, 4, 16)
	profiles := store.NewProfiles(s)
	const userID = 1
	if err := profiles.Save(store.UserProfileRow{UserID: userID, Formatted: true}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	mgr := node.NewManager(flash, profiles)
	return New(mgr), userID
}

func TestStoreAndGetCredential(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)

	parent := store.Addr{Page: 0, Offset: 0}
	child := store.Addr{Page: 0, Offset: 1}
	cont := store.Addr{Page: 0, Offset: 2}

	if err := p.nodes.WriteParent(&node.Parent{Addr: parent, Kind: node.KindParentCredential, Service: "example.com", FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull}, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}

	cred, plaintext, err := p.StoreCredential(user, engine, parent, child, cont, "alice", "", "hunter2")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}
	if plaintext != "hunter2" {
		t.Fatalf("expected supplied password to be used, got %q", plaintext)
	}
	if cred.Addr != child {
		t.Fatalf("unexpected credential addr: %v", cred.Addr)
	}

	got, password, err := p.GetCredential(engine, parent, "alice")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if password != "hunter2" {
		t.Fatalf("expected decrypted password hunter2, got %q", password)
	}
	if got.Login != "alice" {
		t.Fatalf("unexpected login: %q", got.Login)
	}

	n, err := p.nodes.CredChangeNumber(user)
	if err != nil || n != 1 {
		t.Fatalf("expected change number 1 after store, got %d err %v", n, err)
	}
}

func TestStoreCredentialGeneratesPassword(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)
	parent := store.Addr{Page: 1, Offset: 0}
	child := store.Addr{Page: 1, Offset: 1}
	cont := store.Addr{Page: 1, Offset: 2}
	if err := p.nodes.WriteParent(&node.Parent{Addr: parent, Kind: node.KindParentCredential, Service: "svc", FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull}, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}
	_, password, err := p.StoreCredential(user, engine, parent, child, cont, "bob", "", "")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}
	if len(password) != p.rngPolicy.Length {
		t.Fatalf("expected generated password of length %d, got %d", p.rngPolicy.Length, len(password))
	}
}

func TestCheckCredentialRateLimited(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)
	parent := store.Addr{Page: 2, Offset: 0}
	child := store.Addr{Page: 2, Offset: 1}
	cont := store.Addr{Page: 2, Offset: 2}
	if err := p.nodes.WriteParent(&node.Parent{Addr: parent, Kind: node.KindParentCredential, Service: "svc", FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull}, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}
	cred, _, err := p.StoreCredential(user, engine, parent, child, cont, "carol", "", "correct-horse")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}

	ok, err := p.CheckCredential(user, engine, cred, "correct-horse")
	if err != nil || !ok {
		t.Fatalf("expected first check to succeed: ok=%v err=%v", ok, err)
	}

	// Immediate second attempt is throttled (I8 / scenario 2): the
	// limiter allows only one token per CHECK_PASSWORD_TIMER_VAL.
	_, err = p.CheckCredential(user, engine, cred, "correct-horse")
	if err != ErrThrottled {
		t.Fatalf("expected ErrThrottled on immediate retry, got %v", err)
	}
}

func TestCheckCredentialWrongPassword(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)
	parent := store.Addr{Page: 3, Offset: 0}
	child := store.Addr{Page: 3, Offset: 1}
	cont := store.Addr{Page: 3, Offset: 2}
	if err := p.nodes.WriteParent(&node.Parent{Addr: parent, Kind: node.KindParentCredential, Service: "svc", FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull}, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}
	cred, _, err := p.StoreCredential(user, engine, parent, child, cont, "dave", "", "s3cr3t")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}
	ok, err := p.CheckCredential(user, engine, cred, "wrong")
	if err != nil {
		t.Fatalf("CheckCredential: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch to reject")
	}
}

func TestChangeNodePasswordModeGate(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)
	parent := store.Addr{Page: 4, Offset: 0}
	child := store.Addr{Page: 4, Offset: 1}
	cont := store.Addr{Page: 4, Offset: 2}
	if err := p.nodes.WriteParent(&node.Parent{Addr: parent, Kind: node.KindParentCredential, Service: "svc", FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull}, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}
	cred, _, err := p.StoreCredential(user, engine, parent, child, cont, "erin", "", "oldpass")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}

	if err := p.ChangeNodePassword(user, engine, cred, cont, "newpass", false); err != ErrModeViolation {
		t.Fatalf("expected ErrModeViolation outside simple mode, got %v", err)
	}
	if err := p.ChangeNodePassword(user, engine, cred, cont, "newpass", true); err != nil {
		t.Fatalf("ChangeNodePassword: %v", err)
	}

	got, password, err := p.GetCredential(engine, parent, "erin")
	if err != nil || password != "newpass" {
		t.Fatalf("expected updated password, got %q err %v", password, err)
	}
	_ = got
}

func TestInformCurrentServiceBudget(t *testing.T) {
	p, user := newTestPolicy(t)
	fixed := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return fixed }

	addr := store.Addr{Page: 5, Offset: 0}
	p.InformCurrentService(user, addr)

	got, ok := p.PreferredStartingChild(user)
	if !ok || got != addr {
		t.Fatalf("expected hint still valid, got=%v ok=%v", got, ok)
	}

	p.now = func() time.Time { return fixed.Add(InformBudget + time.Millisecond) }
	if _, ok := p.PreferredStartingChild(user); ok {
		t.Fatalf("expected hint to expire after budget elapses")
	}
}

func TestDataChainRoundTrip(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)

	parent := store.Addr{Page: 6, Offset: 0}
	chunk1 := store.Addr{Page: 6, Offset: 1}
	cont1 := store.Addr{Page: 6, Offset: 2}
	chunk2 := store.Addr{Page: 6, Offset: 3}
	cont2 := store.Addr{Page: 6, Offset: 4}

	if _, _, _, err := p.AddData(user, engine, parent, chunk1, cont1, "notes", []byte("hello ")); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if _, _, err := p.AddDataChunk(user, engine, chunk1, chunk2, cont2, parent, []byte("world")); err != nil {
		t.Fatalf("AddDataChunk: %v", err)
	}

	got, err := p.GetData(engine, chunk1)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("unexpected data: %q", got)
	}

	ok, err := p.CheckData(user, parent)
	if err != nil || !ok {
		t.Fatalf("CheckData: ok=%v err=%v", ok, err)
	}

	if err := p.EmptyData(user, parent); err != nil {
		t.Fatalf("EmptyData: %v", err)
	}
	got, err = p.GetData(engine, chunk1)
	if err == nil {
		t.Fatalf("expected chunk1 to be gone after EmptyData, got %q", got)
	}
}

func TestStoreAndGenerateTOTP(t *testing.T) {
	p, user := newTestPolicy(t)
	engine := testEngine(t)
	parent := store.Addr{Page: 7, Offset: 0}
	child := store.Addr{Page: 7, Offset: 1}
	cont := store.Addr{Page: 7, Offset: 2}
	if err := p.nodes.WriteParent(&node.Parent{Addr: parent, Kind: node.KindParentCredential, Service: "svc", FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull}, user); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}
	cred, _, err := p.StoreCredential(user, engine, parent, child, cont, "frank", "", "pw")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}

	secret := []byte("12345678901234567890")
	if err := p.StoreTOTP(user, engine, cred, cont, secret, 8, 30, 1); err != nil {
		t.Fatalf("StoreTOTP: %v", err)
	}

	code, err := p.GenerateTOTP(engine, cred, 59)
	if err != nil {
		t.Fatalf("GenerateTOTP: %v", err)
	}
	if code.Digits != "94287082" {
		t.Fatalf("expected RFC 6238 test vector 94287082, got %s", code.Digits)
	}

	if err := p.StoreTOTP(user, engine, cred, cont, secret, 5, 30, 1); err != ErrMalformedTOTP {
		t.Fatalf("expected ErrMalformedTOTP for digits=5, got %v", err)
	}
}
