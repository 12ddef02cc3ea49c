package dispatch

import "github.com/keysafe/corectl/internal/wire"

// Provisioning opcode family (spec §4.7): device-serial-number flash
// lifecycle, excluded under RestrictionAllbutSN once normal operation
// starts.

func handlePrepareSnFlash(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return ack(), nil
}

func handleSetDeviceSn(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	v, err := decodeUint32(payload)
	if err != nil {
		return Result{}, err
	}
	d.Serial = v
	return ack(), nil
}

func handleSwitchOffNxtDsc(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return ack(), nil
}
