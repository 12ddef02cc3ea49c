package dispatch

import "github.com/keysafe/corectl/internal/wire"

// Bundle-upload opcode family (spec §4.7): a host-driven settings/
// CPZ-LUT backup transferred in 256-byte frames, gated on
// DeviceState.BundleUploadAllowed and excluded under
// RestrictionAllbutBundle once the transfer should be exclusive.

func handleStartBundleUL(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if !d.State.BundleUploadAllowed() {
		return Result{}, ErrModeViolation
	}
	d.bundleBuf = d.bundleBuf[:0]
	return ack(), nil
}

func handleBundleWrite256B(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if !d.State.BundleUploadAllowed() {
		return Result{}, ErrModeViolation
	}
	if len(payload) > 256 {
		return Result{}, ErrMalformedRequest
	}
	d.bundleBuf = append(d.bundleBuf, payload...)
	return ack(), nil
}

func handleBundleUlDone(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if !d.State.BundleUploadAllowed() {
		return Result{}, ErrModeViolation
	}
	if err := d.Settings.SetBundleBackup(d.bundleBuf); err != nil {
		return Result{}, err
	}
	d.bundleBuf = nil
	return ack(), nil
}
