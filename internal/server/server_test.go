package server

import (
	"context"
	"testing"
	"time"

	"github.com/keysafe/corectl/internal/devauth"
	"github.com/keysafe/corectl/internal/devstate"
	"github.com/keysafe/corectl/internal/dispatch"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/policy"
	"github.com/keysafe/corectl/internal/settings"
	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/transport"
	"github.com/keysafe/corectl/internal/wire"
)

const testUser uint32 = 1

func newTestDispatcher(t *testing.T) *dispatch.Dispatcher {
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

	cardKey := make([]byte, 32)
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

	d := dispatch.New(nodes, pol, set, state, flags, da, 42)
	if err := d.Login(testUser, cardKey); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return d
}

func TestLoopRespondsOverMemoryLink(t *testing.T) {
	d := newTestDispatcher(t)
	loopEnd, hostEnd := transport.NewMemoryPair()
	defer hostEnd.Close()

	l := New(d)
	l.AddLink("test", loopEnd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	if err := hostEnd.Send(wire.Frame{MessageType: uint16(wire.PING)}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp, err := hostEnd.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(resp.Payload) != 1 || resp.Payload[0] != wire.AckByte {
		t.Fatalf("expected ACK, got %v", resp.Payload)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDefaultRestrictionPolicyLocksOutUnauthenticated(t *testing.T) {
	d := newTestDispatcher(t)
	d.Logout()
	if got := DefaultRestrictionPolicy(d); got != dispatch.RestrictionAll {
		t.Fatalf("expected RestrictionAll with no active user, got %v", got)
	}
	if err := d.Login(testUser, make([]byte, 32)); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := DefaultRestrictionPolicy(d); got != dispatch.RestrictionNone {
		t.Fatalf("expected RestrictionNone with an active user, got %v", got)
	}
}
