// Package dispatch implements the C7 command dispatcher (spec §4.7):
// declared-length validation, AES-GCM bit accounting, the five named
// restriction filters, the management-mode opcode-range gate, and
// opcode handlers wired to C4 (internal/node), C5 (internal/policy),
// C6 (internal/devstate), and C8 (internal/settings). Table-driven per
// spec §9's design note ("a dispatch table keyed by opcode, not a
// hand-written switch per command").
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/devauth"
	"github.com/keysafe/corectl/internal/devstate"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/policy"
	"github.com/keysafe/corectl/internal/rng"
	"github.com/keysafe/corectl/internal/settings"
	"github.com/keysafe/corectl/internal/wire"
)

// Outcome classifies how a dispatched request resolved, independent of
// whatever payload bytes it carries, matching the wire-level
// ACK/NACK/RETRY/NA vocabulary (spec §7).
type Outcome uint8

const (
	OutcomeACK Outcome = iota
	OutcomeNACK
	OutcomeRetry
	OutcomeNA
	OutcomeData
)

// Result is what a handler produces: either a plain outcome or a data
// payload to be framed back at the original opcode.
type Result struct {
	Outcome Outcome
	Payload []byte
}

func ack() Result  { return Result{Outcome: OutcomeACK} }
func nack() Result { return Result{Outcome: OutcomeNACK} }
func na() Result   { return Result{Outcome: OutcomeNA} }
func data(b []byte) Result { return Result{Outcome: OutcomeData, Payload: b} }

// Errors classified at the dispatch boundary (spec §7).
var (
	ErrMalformedRequest = errors.New("dispatch: malformed request")
	ErrModeViolation    = errors.New("dispatch: mode violation")
	ErrNotFound         = errors.New("dispatch: not found")
	ErrUserDenied       = errors.New("dispatch: user denied")
	ErrThrottled        = errors.New("dispatch: throttled")
	ErrCryptoFailed     = errors.New("dispatch: crypto failed")
	ErrStorageFull      = errors.New("dispatch: storage full")
	ErrTransportBusy    = errors.New("dispatch: transport busy")
)

// handlerFunc handles one opcode's payload and returns the outcome to
// frame back.
type handlerFunc func(d *Dispatcher, payload []byte, transport wire.TransportKind) (Result, error)

// Dispatcher is the C7 command dispatcher: one instance owns the
// single active device/user context (spec §9: "global mutable state
// modeled as one struct").
type Dispatcher struct {
	Nodes    *node.Manager
	Policy   *policy.Policy
	Settings *settings.Settings
	State    *devstate.DeviceState
	Flags    *devstate.UserFlags
	DevAuth  *devauth.Engine

	Now    func() time.Time
	Serial uint32

	engine    *aesctr.Engine
	bundleBuf []byte

	handlers     map[wire.Opcode]handlerFunc
	restrictions map[Restriction]map[wire.Opcode]bool
}

// New constructs a Dispatcher wired to every C4/C5/C6/C8 subsystem.
func New(nodes *node.Manager, pol *policy.Policy, set *settings.Settings, state *devstate.DeviceState, flags *devstate.UserFlags, da *devauth.Engine, serial uint32) *Dispatcher {
	d := &Dispatcher{
		Nodes: nodes, Policy: pol, Settings: set, State: state, Flags: flags, DevAuth: da,
		Now: time.Now, Serial: serial,
	}
	d.handlers = buildHandlerTable()
	d.restrictions = buildRestrictionTables()
	return d
}

// Dispatch is the single entry point used by internal/server: it
// performs the declared-length check, resolves the GCM-bit/opcode
// split, applies the restriction filter and MMM gate, invokes the
// opcode's handler, and frames the result back (spec §4.7 steps 1-5).
func (d *Dispatcher) Dispatch(req wire.Frame, transport wire.TransportKind, restriction Restriction) wire.Frame {
	opcode := wire.Opcode(req.Opcode())

	if !d.allowedUnder(restriction, opcode) {
		slog.Warn("dispatch: opcode denied by restriction", "opcode", opcode, "restriction", restriction)
		return ackNackFrame(req.MessageType, OutcomeRetry)
	}

	if d.mmmOnly(opcode) && !d.State.ManagementMode() {
		slog.Warn("dispatch: mmm-only opcode outside management mode", "opcode", opcode)
		return ackNackFrame(req.MessageType, OutcomeNACK)
	}

	handler, ok := d.handlers[opcode]
	if !ok {
		slog.Warn("dispatch: unknown opcode", "opcode", opcode)
		return ackNackFrame(req.MessageType, OutcomeNA)
	}

	result, err := handler(d, req.Payload, transport)
	if err != nil {
		slog.Error("dispatch: handler error", "opcode", opcode, "error", err)
		return ackNackFrame(req.MessageType, classify(err))
	}

	switch result.Outcome {
	case OutcomeData:
		return wire.Frame{MessageType: req.MessageType, Payload: result.Payload}
	default:
		return ackNackFrame(req.MessageType, result.Outcome)
	}
}

// classify maps a handler error to a wire-level outcome (spec §7).
func classify(err error) Outcome {
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return OutcomeNACK
	case errors.Is(err, policy.ErrModeViolation), errors.Is(err, ErrModeViolation):
		return OutcomeNACK
	case errors.Is(err, node.ErrNoMatch), errors.Is(err, ErrNotFound):
		return OutcomeNACK
	case errors.Is(err, policy.ErrThrottled), errors.Is(err, ErrThrottled):
		return OutcomeNA
	case errors.Is(err, node.ErrLoopDetected):
		return OutcomeNACK
	case errors.Is(err, ErrTransportBusy):
		return OutcomeRetry
	default:
		return OutcomeNACK
	}
}

// ackNackFrame mirrors messageType back with the outcome's wire
// encoding: ACK/NACK/NA are single bytes, RETRY mirrors the opcode with
// an empty payload (spec §6: "RETRY mirrors back the opcode with an
// empty payload").
func ackNackFrame(messageType uint16, outcome Outcome) wire.Frame {
	if outcome == OutcomeRetry {
		return wire.Frame{MessageType: messageType, Payload: nil}
	}
	var b byte
	switch outcome {
	case OutcomeACK:
		b = wire.AckByte
	case OutcomeNA:
		b = wire.NAByte
	default:
		b = wire.NackByte
	}
	return wire.Frame{MessageType: messageType, Payload: []byte{b}}
}

// requireLogin returns the active session engine and user id, or
// ErrUserDenied if no user is currently logged in.
func (d *Dispatcher) requireLogin() (*aesctr.Engine, uint32, error) {
	userID, ok := d.State.CurrentUser()
	if !ok || d.engine == nil {
		return nil, 0, ErrUserDenied
	}
	return d.engine, userID, nil
}

// Login binds a freshly-authenticated user's session: it loads the
// profile row, constructs the per-user AES-CTR engine from either the
// card-native key or, for fleet-managed accounts whose CPZ-LUT entry
// carries a provisioned key (spec §4.2 "provisioned key" path), the
// decrypted provisioned key, and marks the user active (called by the
// server after smartcard PIN verification + DEV_AUTH_CHALLENGE
// succeed; those are themselves out of the opcode dispatch table since
// they precede it).
func (d *Dispatcher) Login(userID uint32, cardKey []byte) error {
	row, err := d.Nodes.Profile(userID)
	if err != nil {
		return fmt.Errorf("dispatch: login: %w", err)
	}
	var nonce [16]byte
	copy(nonce[:], row.Nonce)

	bound := d.Nodes.NewBoundStore(userID)
	var engine *aesctr.Engine
	if entry, entryErr := d.Settings.Entry(userID); entryErr == nil && len(entry.ProvisionedKey) == 32 {
		engine, err = aesctr.NewFromProvisionedKey(cardKey, entry.ProvisionedKey, nonce, row.CTRBound, bound)
	} else {
		engine, err = aesctr.NewFromCardKey(cardKey, nonce, row.CTRBound, bound)
	}
	if err != nil {
		return fmt.Errorf("dispatch: login: %w", err)
	}
	d.engine = engine
	d.State.Login(userID)
	return nil
}

// Logout wipes the session engine and clears device state.
func (d *Dispatcher) Logout() {
	if d.engine != nil {
		d.engine.Wipe()
		d.engine = nil
	}
	d.State.Logout()
}

// newPassword is a small helper several handlers share for on-board
// generation fallback outside the policy package's own default.
func newPassword(pol rng.Policy) (string, error) {
	return pol.GeneratePassword()
}
