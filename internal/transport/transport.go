// Package transport implements the two physical links the dispatch
// loop reads requests from and writes responses to (spec §2, §9): a
// USB-HID endpoint and a BLE-HID endpoint, each framed the same way at
// the wire.Frame level, plus an in-memory stand-in for tests. Per-
// transport ordering is FIFO (spec §9: "preserve per-transport request
// order"); ordering across transports is not guaranteed.
package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/keysafe/corectl/internal/wire"
)

// Link is a framed, ordered byte-stream endpoint: each Recv/Send
// exchanges one outer-length-prefixed wire.Frame. Implementations wrap
// a transport-specific io.ReadWriter (a USB-HID report pipe, a BLE-HID
// characteristic pipe, or an in-memory pipe for tests).
type Link interface {
	Kind() wire.TransportKind
	Recv() (wire.Frame, error)
	Send(wire.Frame) error
	Close() error
}

// stream implements Link generically over any io.ReadWriteCloser,
// framing with the outer transport-length prefix wire.OuterLength
// describes (spec §4.7 step 1: "payload_length + 4").
type stream struct {
	kind wire.TransportKind
	rw   io.ReadWriteCloser
	r    *bufio.Reader
	mu   sync.Mutex
}

func newStream(kind wire.TransportKind, rw io.ReadWriteCloser) *stream {
	return &stream{kind: kind, rw: rw, r: bufio.NewReaderSize(rw, wire.MaxPayload+wire.HeaderSize)}
}

func (s *stream) Kind() wire.TransportKind { return s.kind }

// Recv reads one outer-length-prefixed frame. The outer length itself
// is not part of wire.Frame; Decode is handed the declared payload
// length so it can cross-check it against the inner header (spec §4.7
// step 1).
func (s *stream) Recv() (wire.Frame, error) {
	var outerLen [2]byte
	if _, err := io.ReadFull(s.r, outerLen[:]); err != nil {
		return wire.Frame{}, fmt.Errorf("transport: read outer length: %w", err)
	}
	n := binary.LittleEndian.Uint16(outerLen[:])
	if int(n) < wire.HeaderSize {
		return wire.Frame{}, wire.ErrTruncated
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return wire.Frame{}, fmt.Errorf("transport: read frame body: %w", err)
	}
	return wire.Decode(buf, int(n)-wire.HeaderSize)
}

// Send serializes and writes f, prefixed by its outer length.
func (s *stream) Send(f wire.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	encoded, err := f.Encode()
	if err != nil {
		return err
	}
	var outerLen [2]byte
	binary.LittleEndian.PutUint16(outerLen[:], wire.OuterLength(len(f.Payload)))
	if _, err := s.rw.Write(outerLen[:]); err != nil {
		return fmt.Errorf("transport: write outer length: %w", err)
	}
	if _, err := s.rw.Write(encoded); err != nil {
		return fmt.Errorf("transport: write frame body: %w", err)
	}
	return nil
}

func (s *stream) Close() error { return s.rw.Close() }

// NewUSB wraps rw (a USB-HID report pipe opened by the platform's HID
// backend) as a USB Link.
func NewUSB(rw io.ReadWriteCloser) Link {
	return newStream(wire.TransportUSB, rw)
}

// NewBLE wraps rw (a BLE-HID characteristic pipe) as a BLE Link. Bundle
// upload (spec §4.7 RestrictionAllbutBundle family) is USB-only by
// convention; the BLE link itself carries the same frame format.
func NewBLE(rw io.ReadWriteCloser) Link {
	return newStream(wire.TransportBLE, rw)
}
