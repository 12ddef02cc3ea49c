package transport

import (
	"testing"

	"github.com/keysafe/corectl/internal/wire"
)

func TestMemoryPairRoundTrip(t *testing.T) {
	server, client := NewMemoryPair()
	defer server.Close()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- client.Send(wire.Frame{MessageType: uint16(wire.PING), Payload: nil})
	}()

	got, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Opcode() != uint16(wire.PING) {
		t.Fatalf("expected PING opcode, got %d", got.Opcode())
	}
	if server.Kind() != wire.TransportUSB {
		t.Fatalf("expected USB transport kind, got %v", server.Kind())
	}
}

func TestMemoryPairCarriesPayload(t *testing.T) {
	server, client := NewMemoryPair()
	defer server.Close()
	defer client.Close()

	payload := []byte("hello device")
	done := make(chan error, 1)
	go func() {
		done <- server.Send(wire.Frame{MessageType: uint16(wire.GetDeviceIntSN), Payload: payload})
	}()

	got, err := client.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("expected payload %q, got %q", payload, got.Payload)
	}
}
