package devauth

import (
	"encoding/binary"
	"testing"
	"time"
)

func init() {
	Sleep = func(time.Duration) {} // skip real delays in tests
}

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i * 3)
	}
	return k
}

// buildRequestCiphertext mirrors what a legitimate host would send:
// AES-CTR(k, ctr_req_C, be32(C)||be32(serial)||zeros).
func buildRequestCiphertext(t *testing.T, e *Engine, counter, serial uint32) []byte {
	t.Helper()
	plain := make([]byte, 16)
	binary.BigEndian.PutUint32(plain[0:4], counter)
	binary.BigEndian.PutUint32(plain[4:8], serial)
	iv := e.ctrIV(0x02, counter)
	return e.crypt(iv, plain)
}

// TestDeviceAuthAccept is spec §8 I7 / concrete scenario 4.
func TestDeviceAuthAccept(t *testing.T) {
	e, err := NewEngine(testKey(), 99)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ct := buildRequestCiphertext(t, e, 10, 99)

	ok, resp, newCounter := e.Attempt(10, 0, ct)
	if !ok {
		t.Fatalf("expected accept")
	}
	if newCounter != 10 {
		t.Fatalf("expected stored counter to become 10, got %d", newCounter)
	}

	// Response must round-trip: decrypting it under ctr_resp_10 with the
	// same engine yields be32(10)||be32(serial).
	respIV := e.ctrIV(0x03, 10)
	plain := e.crypt(respIV, resp)
	gotCounter := binary.BigEndian.Uint32(plain[0:4])
	gotSerial := binary.BigEndian.Uint32(plain[4:8])
	if gotCounter != 10 || gotSerial != 99 {
		t.Fatalf("response did not round-trip: counter=%d serial=%d", gotCounter, gotSerial)
	}

	// Resubmitting the same request must now be rejected: counter no
	// longer strictly greater than stored.
	ok2, _, _ := e.Attempt(10, newCounter, ct)
	if ok2 {
		t.Fatalf("expected replay to be rejected")
	}
}

func TestDeviceAuthBootstrapSentinelAccepts(t *testing.T) {
	e, err := NewEngine(testKey(), 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ct := buildRequestCiphertext(t, e, 5, 1)
	ok, _, newCounter := e.Attempt(5, Lockout, ct)
	if !ok {
		t.Fatalf("expected bootstrap sentinel to accept a valid first challenge")
	}
	if newCounter != 5 {
		t.Fatalf("expected stored counter to become 5, got %d", newCounter)
	}
}

func TestDeviceAuthBadPlaintext(t *testing.T) {
	e, err := NewEngine(testKey(), 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	garbage := make([]byte, 16)
	ok, _, _ := e.Attempt(5, 0, garbage)
	if ok {
		t.Fatalf("expected mismatched plaintext to reject")
	}
}
