package dispatch

import (
	"github.com/keysafe/corectl/internal/wire"
)

// deviceLangSettingKey reserves a settings key outside the host's
// freely-assignable range for GET/SET_DEVICE_LANG_ID, which is
// device-wide rather than per-user (unlike GET/SET_USER_LANG_ID, which
// lives on the CPZ-LUT entry).
const deviceLangSettingKey uint16 = 0xFF01

func handleGetDeviceSettings(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	key, err := decodeUint16(payload)
	if err != nil {
		return Result{}, err
	}
	value, ok, err := d.Settings.GetSetting(key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return nack(), nil
	}
	return data(value), nil
}

func handleSetDeviceSettings(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < 2 {
		return Result{}, ErrMalformedRequest
	}
	key, _ := decodeUint16(payload[0:2])
	if err := d.Settings.SetSetting(key, payload[2:]); err != nil {
		return Result{}, err
	}
	d.State.SetSettingsChanged(true)
	return ack(), nil
}

func handleGetUserSettings(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	flags, err := d.Flags.All(userID)
	if err != nil {
		return Result{}, err
	}
	return data(encodeUint16(flags)), nil
}

func handleGetCategoriesStr(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	strs, err := d.Nodes.CategoryStrings(userID)
	if err != nil {
		return Result{}, err
	}
	var out []byte
	for _, s := range strs {
		enc, err := encodeFixedString(s, 24)
		if err != nil {
			return Result{}, err
		}
		out = append(out, enc...)
	}
	return data(out), nil
}

func handleSetCategoriesStr(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 1 {
		return Result{}, ErrMalformedRequest
	}
	index := int(payload[0])
	label, err := decodeFixedString(payload[1:], 24)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetCategoryString(userID, index, label); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetUserKeybID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	usb, err := d.Settings.GetUSBKeyboardID(userID)
	if err != nil {
		return Result{}, err
	}
	ble, err := d.Settings.GetBLEKeyboardID(userID)
	if err != nil {
		return Result{}, err
	}
	out := append(encodeUint16(usb), encodeUint16(ble)...)
	return data(out), nil
}

func handleSetUserKeybID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 4 {
		return Result{}, ErrMalformedRequest
	}
	usb, _ := decodeUint16(payload[0:2])
	ble, _ := decodeUint16(payload[2:4])
	if err := d.Settings.SetUSBKeyboardID(userID, usb); err != nil {
		return Result{}, err
	}
	if err := d.Settings.SetBLEKeyboardID(userID, ble); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetUserLangID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	id, err := d.Settings.GetLangID(userID)
	if err != nil {
		return Result{}, err
	}
	return data(encodeUint16(id)), nil
}

func handleSetUserLangID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	id, err := decodeUint16(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Settings.SetLangID(userID, id); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetDeviceLangID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	value, ok, err := d.Settings.GetSetting(deviceLangSettingKey)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return data(encodeUint16(0)), nil
	}
	return data(value), nil
}

func handleSetDeviceLangID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < 2 {
		return Result{}, ErrMalformedRequest
	}
	if err := d.Settings.SetSetting(deviceLangSettingKey, payload[0:2]); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleSetCurCategory(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 1 {
		return Result{}, ErrMalformedRequest
	}
	if err := d.Nodes.SetCurrentCategory(userID, payload[0]); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetCurCategory(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	cat, err := d.Nodes.CurrentCategory(userID)
	if err != nil {
		return Result{}, err
	}
	return data([]byte{cat}), nil
}
