package dispatch

import (
	"encoding/binary"

	"github.com/keysafe/corectl/internal/wire"
)

// User/card lifecycle and device-auth opcode family (spec §4.3, §4.7).

func handleAddUnknownCardID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < wire.CPZSize {
		return Result{}, ErrMalformedRequest
	}
	d.State.SetPendingCardCPZ(payload[:wire.CPZSize])
	return ack(), nil
}

func handleResetUnknownCard(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	d.State.ResetPendingCardCPZ()
	return ack(), nil
}

func handleLockDevice(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	d.Logout()
	d.State.SetComputerLockedState(true)
	return ack(), nil
}

func handleGetNbFreeUsers(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	n, err := d.Settings.CountFreeUsers(wire.MaxUserSlots)
	if err != nil {
		return Result{}, err
	}
	return data(encodeUint32(n)), nil
}

func handleGetCurCardCPZ(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	cpz, err := d.Settings.CPZFor(userID)
	if err != nil {
		return Result{}, err
	}
	return data(cpz), nil
}

// handleDevAuthChallenge runs the C3 device-auth exchange ahead of full
// login: the host supplies the card's CPZ plus the challenge, the
// device resolves which user it belongs to and validates the counter
// (spec §4.3, I7).
func handleDevAuthChallenge(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < wire.CPZSize+4+wire.AESBlockSize {
		return Result{}, ErrMalformedRequest
	}
	cpz := payload[0:wire.CPZSize]
	suggestedCounter := binary.BigEndian.Uint32(payload[wire.CPZSize : wire.CPZSize+4])
	ciphertext := payload[wire.CPZSize+4 : wire.CPZSize+4+wire.AESBlockSize]

	userID, err := d.Settings.ResolveCPZ(cpz)
	if err != nil {
		return Result{}, err
	}
	storedCounter, err := d.Settings.AuthCounter(userID)
	if err != nil {
		return Result{}, err
	}

	ok, resp, newCounter := d.DevAuth.Attempt(suggestedCounter, storedCounter, ciphertext)
	if !ok {
		return nack(), nil
	}
	if err := d.Settings.SetAuthCounter(userID, newCounter); err != nil {
		return Result{}, err
	}
	return data(resp), nil
}
