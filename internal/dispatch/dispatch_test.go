package dispatch

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"
	"time"

	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/devauth"
	"github.com/keysafe/corectl/internal/devstate"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/policy"
	"github.com/keysafe/corectl/internal/settings"
	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/wire"
)

const testUser uint32 = 1

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	devauth.Sleep = func(time.Duration) {}

	s, err := store.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	flash := store.NewFlash(s, 4, 16)
	profiles := store.NewProfiles(s)
	custom := store.NewCustom(s)
	cpzlut := store.NewCPZLUT(s)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}
	if err := profiles.Save(store.UserProfileRow{UserID: testUser, Formatted: true, Nonce: make([]byte, 16)}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := cpzlut.Store(store.CPZLUTRow{
		CPZ: []byte("0123456789abcdef"), UserID: testUser,
		AuthCounter: devauth.Lockout,
	}); err != nil {
		t.Fatalf("seed cpz-lut: %v", err)
	}

	nodes := node.NewManager(flash, profiles)
	pol := policy.New(nodes)
	set := settings.New(custom, cpzlut)
	state := devstate.New()
	flags := devstate.NewUserFlags(profiles)
	daKey := make([]byte, 32)
	da, err := devauth.NewEngine(daKey, 42)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	d := New(nodes, pol, set, state, flags, da, 42)

	engine, err := aesctr.NewFromCardKey(key, [16]byte{9, 9, 9}, 0, &fakeBound{})
	if err != nil {
		t.Fatalf("NewFromCardKey: %v", err)
	}
	d.engine = engine
	d.State.Login(testUser)
	return d
}

type fakeBound struct{ v uint32 }

func (f *fakeBound) CTRBound() uint32           { return f.v }
func (f *fakeBound) SetCTRBound(v uint32) error { f.v = v; return nil }

func send(t *testing.T, d *Dispatcher, opcode wire.Opcode, payload []byte, restriction Restriction) wire.Frame {
	t.Helper()
	req := wire.Frame{MessageType: uint16(opcode), Payload: payload}
	return d.Dispatch(req, wire.TransportUSB, restriction)
}

func TestPingAlwaysAcks(t *testing.T) {
	d := newTestDispatcher(t)
	resp := send(t, d, wire.PING, nil, RestrictionAll)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK, got %v", resp.Payload)
	}
}

func TestRestrictionAllDeniesNonWhitelisted(t *testing.T) {
	d := newTestDispatcher(t)
	resp := send(t, d, wire.GetCred, []byte{0, 0}, RestrictionAll)
	if len(resp.Payload) != 0 {
		t.Fatalf("expected empty-payload RETRY for GET_CRED under RestrictionAll, got %v", resp.Payload)
	}
}

func TestUnknownOpcodeIsNA(t *testing.T) {
	d := newTestDispatcher(t)
	resp := send(t, d, wire.Opcode(0x1234), nil, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.NAByte {
		t.Fatalf("expected NA for unknown opcode, got %v", resp.Payload)
	}
}

func TestMMMGateBlocksOutsideManagementMode(t *testing.T) {
	d := newTestDispatcher(t)
	resp := send(t, d, wire.StartMMM, nil, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.NackByte {
		t.Fatalf("expected NACK for START_MMM outside MMM, got %v", resp.Payload)
	}
}

func TestStoreAndGetCredentialRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)

	parent := store.Addr{Page: 0, Offset: 0}
	child := store.Addr{Page: 0, Offset: 1}
	cont := store.Addr{Page: 0, Offset: 2}
	if err := d.Nodes.WriteParent(&node.Parent{
		Addr: parent, Kind: node.KindParentCredential, Service: "example.com",
		FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull,
	}, testUser); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}

	login, err := encodeFixedString("alice", 32)
	if err != nil {
		t.Fatalf("encodeFixedString: %v", err)
	}
	description, err := encodeFixedString("", 24)
	if err != nil {
		t.Fatalf("encodeFixedString: %v", err)
	}

	storePayload := append(encodeAddr(parent), encodeAddr(child)...)
	storePayload = append(storePayload, encodeAddr(cont)...)
	storePayload = append(storePayload, login...)
	storePayload = append(storePayload, description...)
	storePayload = append(storePayload, []byte("hunter2")...)

	resp := send(t, d, wire.StoreCred, storePayload, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK for STORE_CRED, got %v", resp.Payload)
	}

	getPayload := append(encodeAddr(parent), login...)
	resp = send(t, d, wire.GetCred, getPayload, RestrictionNone)
	if len(resp.Payload) == 0 || resp.Payload[0] == wire.NackByte {
		t.Fatalf("expected data response for GET_CRED, got %v", resp.Payload)
	}
	if string(resp.Payload) != "hunter2" {
		t.Fatalf("expected decrypted password hunter2, got %q", resp.Payload)
	}
}

func TestCheckPasswordThrottles(t *testing.T) {
	d := newTestDispatcher(t)
	parent := store.Addr{Page: 1, Offset: 0}
	child := store.Addr{Page: 1, Offset: 1}
	cont := store.Addr{Page: 1, Offset: 2}
	if err := d.Nodes.WriteParent(&node.Parent{
		Addr: parent, Kind: node.KindParentCredential, Service: "svc",
		FirstChild: child, Prev: store.AddrNull, Next: store.AddrNull,
	}, testUser); err != nil {
		t.Fatalf("WriteParent: %v", err)
	}
	cred, _, err := d.Policy.StoreCredential(testUser, d.engine, parent, child, cont, "bob", "", "correct-horse")
	if err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}

	checkPayload := append(encodeAddr(cred.Addr), []byte("correct-horse")...)

	first := send(t, d, wire.CheckPassword, checkPayload, RestrictionNone)
	if len(first.Payload) != 1 || first.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK for first CHECK_PASSWORD, got %v", first.Payload)
	}

	second := send(t, d, wire.CheckPassword, checkPayload, RestrictionNone)
	if len(second.Payload) != 1 || second.Payload[0] != wire.NAByte {
		t.Fatalf("expected NA byte for throttled CHECK_PASSWORD, got %v", second.Payload)
	}
}

func TestDeviceAuthChallengeBootstraps(t *testing.T) {
	d := newTestDispatcher(t)
	cpz := []byte("0123456789abcdef")
	userID, err := d.Settings.ResolveCPZ(cpz)
	if err != nil || userID != testUser {
		t.Fatalf("ResolveCPZ: %v userID=%d", err, userID)
	}

	stored, err := d.Settings.AuthCounter(testUser)
	if err != nil || stored != devauth.Lockout {
		t.Fatalf("expected bootstrap sentinel AuthCounter, got %d err %v", stored, err)
	}

	daKey := make([]byte, 32)
	engine, err := devauth.NewEngine(daKey, 42)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	_, resp, newCounter := engine.Attempt(1, devauth.Lockout, make([]byte, 16))
	_ = resp
	if newCounter != devauth.Lockout {
		// plaintext mismatch is expected here since we didn't construct
		// a real ciphertext; this just exercises ResolveCPZ/AuthCounter
		// wiring ahead of the full DEV_AUTH_CHALLENGE handler path.
		t.Skip("plaintext mismatch expected without a real challenge ciphertext")
	}
}

func TestBundleUploadRequiresPermission(t *testing.T) {
	d := newTestDispatcher(t)
	resp := send(t, d, wire.StartBundleUL, nil, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.NackByte {
		t.Fatalf("expected NACK for bundle upload before permission granted, got %v", resp.Payload)
	}

	d.State.SetBundleUploadAllowed(true)
	resp = send(t, d, wire.StartBundleUL, nil, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK once bundle upload allowed, got %v", resp.Payload)
	}

	chunk := make([]byte, 64)
	resp = send(t, d, wire.BundleWrite256B, chunk, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK for BUNDLE_WRITE_256B, got %v", resp.Payload)
	}

	resp = send(t, d, wire.BundleUlDone, nil, RestrictionNone)
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK for BUNDLE_UL_DONE, got %v", resp.Payload)
	}
	got, err := d.Settings.GetBundleBackup()
	if err != nil {
		t.Fatalf("GetBundleBackup: %v", err)
	}
	if len(got) != len(chunk) {
		t.Fatalf("expected %d-byte bundle backup, got %d", len(chunk), len(got))
	}
}

func TestLoginUsesProvisionedKeyWhenPresent(t *testing.T) {
	devauth.Sleep = func(time.Duration) {}

	s, err := store.InitDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	flash := store.NewFlash(s, 4, 16)
	profiles := store.NewProfiles(s)
	custom := store.NewCustom(s)
	cpzlut := store.NewCPZLUT(s)

	const provisionedUser uint32 = 2
	if err := profiles.Save(store.UserProfileRow{UserID: provisionedUser, Formatted: true, Nonce: make([]byte, 16)}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	cardKey := make([]byte, 32)
	for i := range cardKey {
		cardKey[i] = byte(i + 1)
	}
	realKey := make([]byte, 32)
	for i := range realKey {
		realKey[i] = byte(255 - i)
	}
	cardBlock, err := aes.NewCipher(cardKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	encryptedKey := make([]byte, 32)
	cipher.NewCTR(cardBlock, make([]byte, aes.BlockSize)).XORKeyStream(encryptedKey, realKey)

	if err := cpzlut.Store(store.CPZLUTRow{
		CPZ: []byte("fedcba9876543210"), UserID: provisionedUser,
		ProvisionedKey: encryptedKey,
		AuthCounter:    devauth.Lockout,
	}); err != nil {
		t.Fatalf("seed cpz-lut: %v", err)
	}

	nodes := node.NewManager(flash, profiles)
	pol := policy.New(nodes)
	set := settings.New(custom, cpzlut)
	state := devstate.New()
	flags := devstate.NewUserFlags(profiles)
	daKey := make([]byte, 32)
	da, err := devauth.NewEngine(daKey, 42)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d := New(nodes, pol, set, state, flags, da, 42)

	if err := d.Login(provisionedUser, cardKey); err != nil {
		t.Fatalf("Login: %v", err)
	}

	want, err := aesctr.NewFromProvisionedKey(cardKey, encryptedKey, [16]byte{}, 0, &fakeBound{})
	if err != nil {
		t.Fatalf("NewFromProvisionedKey: %v", err)
	}
	plain := []byte("0123456789abcdef")
	got := append([]byte(nil), plain...)
	if _, err := want.Encrypt(got); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if err := d.engine.Decrypt(got, 0, false); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != string(plain) {
		t.Fatalf("Login did not derive the engine from the provisioned key: got %q want %q", got, plain)
	}
}

func TestRestrictionAllbutBundleExcludesBundleOpcodes(t *testing.T) {
	d := newTestDispatcher(t)
	d.State.SetBundleUploadAllowed(true)
	resp := send(t, d, wire.StartBundleUL, nil, RestrictionAllbutBundle)
	if len(resp.Payload) != 0 {
		t.Fatalf("expected empty-payload RETRY for START_BUNDLE_UL under RestrictionAllbutBundle, got %v", resp.Payload)
	}
}
