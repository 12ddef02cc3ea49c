package dispatch

import (
	"github.com/keysafe/corectl/internal/rng"
	"github.com/keysafe/corectl/internal/wire"
)

// Status/identity and presence opcode family (spec §4.7). Payloads are
// this module's own wire convention, not taken from any external
// source: fixed-width little-endian scalars and the existing
// encodeFixedString/decodeFixedString helpers.

func handlePing(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return ack(), nil
}

// deviceStatus bit layout for GetDeviceStatus's response byte.
const (
	statusSmartcardUnlocked = 1 << 0
	statusManagementMode    = 1 << 1
	statusBundleUploadOK    = 1 << 2
	statusLoggedOffPending  = 1 << 3
	statusSettingsChanged   = 1 << 4
	statusComputerLocked    = 1 << 5
	statusUserLoggedIn      = 1 << 6
)

func handleGetDeviceStatus(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	var b byte
	if d.State.SmartcardUnlocked() {
		b |= statusSmartcardUnlocked
	}
	if d.State.ManagementMode() {
		b |= statusManagementMode
	}
	if d.State.BundleUploadAllowed() {
		b |= statusBundleUploadOK
	}
	if d.State.UserToBeLoggedOff() {
		b |= statusLoggedOffPending
	}
	if d.State.SettingsChanged() {
		b |= statusSettingsChanged
	}
	if d.State.ComputerLockedState() {
		b |= statusComputerLocked
	}
	userID, ok := d.State.CurrentUser()
	if ok {
		b |= statusUserLoggedIn
	}
	out := append([]byte{b}, encodeUint32(userID)...)
	return data(out), nil
}

func handlePlatInfo(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	name, err := encodeFixedString("corectl", 16)
	if err != nil {
		return Result{}, err
	}
	out := append(encodeUint32(d.Serial), name...)
	return data(out), nil
}

func handleGetDeviceIntSN(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return data(encodeUint32(d.Serial)), nil
}

func handleGetDiagData(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	usage, err := d.Nodes.ScanNodeUsage()
	if err != nil {
		return Result{}, err
	}
	out := append(encodeUint32(uint32(usage.UsedSlots)), encodeUint32(uint32(usage.FreeSlots))...)
	return data(out), nil
}

func handleImLocked(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	d.State.SetComputerLockedState(true)
	return ack(), nil
}

func handleImUnlocked(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	d.State.SetComputerLockedState(false)
	return ack(), nil
}

func handleWakeUpDevice(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return ack(), nil
}

// handleSetCurSvc and handleInformCurSvc both resolve to the same
// preferred-starting-child hint (internal/policy): SET_CUR_SVC is the
// presence-family spelling a host uses to pre-select a service before
// a GET_CRED/STORE_CRED call, INFORM_CUR_SVC is the credential-flow
// spelling used right before it. Keeping one hint avoids the two
// disagreeing about which child is "current".
func handleSetCurSvc(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return handleInformCurSvc(d, payload, t)
}

func handleGet32bRng(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	b, err := rng.Bytes(4)
	if err != nil {
		return Result{}, err
	}
	return data(b), nil
}

func handleSetDate(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < 8 {
		return Result{}, ErrMalformedRequest
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(payload[i]) << (8 * i)
	}
	if err := d.Settings.SetClockCalibration(int64(v)); err != nil {
		return Result{}, err
	}
	return ack(), nil
}
