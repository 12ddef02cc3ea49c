package dispatch

import (
	"github.com/keysafe/corectl/internal/wire"
)

// Credential-flow opcode family (spec §4.5 via C5/internal/policy).

func handleInformCurSvc(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	addr, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	d.Policy.InformCurrentService(userID, addr)
	return ack(), nil
}

func handleGetCred(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	engine, _, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 2 {
		return Result{}, ErrMalformedRequest
	}
	parentAddr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	login, err := decodeFixedString(payload[2:], 32)
	if err != nil {
		return Result{}, err
	}
	_, password, err := d.Policy.GetCredential(engine, parentAddr, login)
	if err != nil {
		return Result{}, err
	}
	return data([]byte(password)), nil
}

func handleStoreCred(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 6 {
		return Result{}, ErrMalformedRequest
	}
	parentAddr, childAddr, err := decodeTwoAddrs(payload[0:4])
	if err != nil {
		return Result{}, err
	}
	contAddr, err := decodeAddr(payload[4:6])
	if err != nil {
		return Result{}, err
	}
	off := 6
	loginUnits := 32 * 2
	descUnits := 24 * 2
	if len(payload) < off+loginUnits+descUnits {
		return Result{}, ErrMalformedRequest
	}
	login, err := decodeFixedString(payload[off:off+loginUnits], 32)
	if err != nil {
		return Result{}, err
	}
	off += loginUnits
	description, err := decodeFixedString(payload[off:off+descUnits], 24)
	if err != nil {
		return Result{}, err
	}
	off += descUnits
	password := string(payload[off:])

	_, _, err = d.Policy.StoreCredential(userID, engine, parentAddr, childAddr, contAddr, login, description, password)
	if err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleChangeNodePwd(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 5 {
		return Result{}, ErrMalformedRequest
	}
	childAddr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	contAddr, err := decodeAddr(payload[2:4])
	if err != nil {
		return Result{}, err
	}
	simpleModeAllowed := payload[4] != 0
	newPassword := string(payload[5:])

	cred, err := d.Nodes.ReadCredential(childAddr)
	if err != nil {
		return Result{}, err
	}
	if err := d.Policy.ChangeNodePassword(userID, engine, cred, contAddr, newPassword, simpleModeAllowed); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleCheckPassword(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 2 {
		return Result{}, ErrMalformedRequest
	}
	childAddr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	candidate := string(payload[2:])

	cred, err := d.Nodes.ReadCredential(childAddr)
	if err != nil {
		return Result{}, err
	}
	ok, err := d.Policy.CheckCredential(userID, engine, cred, candidate)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return nack(), nil
	}
	return ack(), nil
}

func handleGetTotpCode(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	engine, _, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 10 {
		return Result{}, ErrMalformedRequest
	}
	childAddr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	var unixTime int64
	for i := 0; i < 8; i++ {
		unixTime |= int64(payload[2+i]) << (8 * i)
	}
	cred, err := d.Nodes.ReadCredential(childAddr)
	if err != nil {
		return Result{}, err
	}
	code, err := d.Policy.GenerateTOTP(engine, cred, unixTime)
	if err != nil {
		return Result{}, err
	}
	out := append([]byte(code.Digits), byte(code.SecondsRemaining))
	return data(out), nil
}

func handleStoreTotpCred(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 7 {
		return Result{}, ErrMalformedRequest
	}
	childAddr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	contAddr, err := decodeAddr(payload[2:4])
	if err != nil {
		return Result{}, err
	}
	digits := int(payload[4])
	step := int(payload[5])
	shaVer := int(payload[6])
	secret := payload[7:]

	cred, err := d.Nodes.ReadCredential(childAddr)
	if err != nil {
		return Result{}, err
	}
	if err := d.Policy.StoreTOTP(userID, engine, cred, contAddr, secret, digits, step, shaVer); err != nil {
		return Result{}, err
	}
	return ack(), nil
}
