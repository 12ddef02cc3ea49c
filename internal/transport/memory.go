package transport

import (
	"net"

	"github.com/keysafe/corectl/internal/wire"
)

// NewMemoryPair returns two ends of an in-memory USB-kind Link, wired
// directly to each other via net.Pipe, for dispatch-loop tests that
// need a real Link without real hardware.
func NewMemoryPair() (server, client Link) {
	a, b := net.Pipe()
	return newStream(wire.TransportUSB, a), newStream(wire.TransportUSB, b)
}
