// Package server implements the main dispatch loop (spec §5, §9): a
// single consumer goroutine drains frames from per-transport reader
// goroutines and hands each to the C7 dispatcher, interleaved with a
// housekeeping tick, and shuts down gracefully on SIGINT/SIGTERM the
// same way the teacher's HTTP servers do.
package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/keysafe/corectl/internal/dispatch"
	"github.com/keysafe/corectl/internal/transport"
	"github.com/keysafe/corectl/internal/wire"
)

// HousekeepingInterval is how often the loop runs housekeeping between
// frames (currently the pending-logoff check in houseKeep).
const HousekeepingInterval = 250 * time.Millisecond

// RestrictionPolicy picks which of the five named restriction filters
// governs the next request, based on current device/session state
// (spec §4.7 step 3: "device/session state selects the filter").
type RestrictionPolicy func(d *dispatch.Dispatcher) dispatch.Restriction

// DefaultRestrictionPolicy applies RestrictionAll while no user is
// logged in, and RestrictionNone once a user session is active. It
// never selects the bundle-upload, serial-number, cancel or bond-store
// restrictions.
func DefaultRestrictionPolicy(d *dispatch.Dispatcher) dispatch.Restriction {
	if _, ok := d.State.CurrentUser(); !ok {
		return dispatch.RestrictionAll
	}
	return dispatch.RestrictionNone
}

// link pairs a transport.Link with the wire.TransportKind frames
// arriving on it should be tagged with.
type link struct {
	name string
	l    transport.Link
}

// incoming is one frame read off a transport, paired with the link it
// arrived on so the response can be written back to the same place.
type incoming struct {
	link link
	req  wire.Frame
	err  error
}

// Loop owns the dispatcher and the set of transports it serves. One
// Loop runs on a single goroutine; internal/dispatch.Dispatcher is not
// safe for concurrent Dispatch calls, matching spec §9's "global
// mutable state modeled as one struct, not behind a mutex; the
// dispatch loop itself is the synchronization point."
type Loop struct {
	Dispatcher  *dispatch.Dispatcher
	Restriction RestrictionPolicy

	links []link

	mu      sync.Mutex
	running bool
}

// New constructs a Loop over the given dispatcher. Transports are
// added with AddLink before Run.
func New(d *dispatch.Dispatcher) *Loop {
	return &Loop{Dispatcher: d, Restriction: DefaultRestrictionPolicy}
}

// AddLink registers a transport the loop should read requests from and
// write responses to. name is only used for logging.
func (s *Loop) AddLink(name string, l transport.Link) {
	s.links = append(s.links, link{name: name, l: l})
}

// Run starts one reader goroutine per registered link, feeding a
// shared channel that the single dispatch consumer below drains in
// arrival order, interleaved with housekeeping. Each link's own reader
// goroutine guarantees FIFO ordering per transport (spec §9); the
// shared channel does not promise cross-transport order, which the
// spec does not require.
//
// Run blocks until ctx is canceled or a SIGINT/SIGTERM arrives, then
// closes every link so blocked reads return, waits for the reader
// goroutines and returns.
func (s *Loop) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	go func() {
		select {
		case <-stop:
			slog.Info("server: shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	frames := make(chan incoming, 16)
	var wg sync.WaitGroup
	for _, lk := range s.links {
		wg.Add(1)
		go s.readLoop(ctx, lk, frames, &wg)
	}

	housekeeping := time.NewTicker(HousekeepingInterval)
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, lk := range s.links {
				lk.l.Close()
			}
			wg.Wait()
			return nil
		case in := <-frames:
			s.handle(in)
		case <-housekeeping.C:
			s.houseKeep()
		}
	}
}

func (s *Loop) readLoop(ctx context.Context, lk link, out chan<- incoming, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		req, err := lk.l.Recv()
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err != nil {
			slog.Warn("server: transport read failed", "transport", lk.name, "error", err)
			return
		}
		select {
		case out <- incoming{link: lk, req: req}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Loop) handle(in incoming) {
	restriction := s.Restriction(s.Dispatcher)
	resp := s.Dispatcher.Dispatch(in.req, in.link.l.Kind(), restriction)
	if err := in.link.l.Send(resp); err != nil {
		slog.Warn("server: transport write failed", "transport", in.link.name, "error", err)
	}
}

// houseKeep runs the work the original firmware's interrupt handlers
// did between commands: if the device state flags the current user for
// logoff, it logs the user out and clears the flag.
func (s *Loop) houseKeep() {
	if s.Dispatcher.State.UserToBeLoggedOff() {
		s.Dispatcher.Logout()
		s.Dispatcher.State.SetUserToBeLoggedOff(false)
	}
}
