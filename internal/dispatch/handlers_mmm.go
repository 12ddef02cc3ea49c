package dispatch

import (
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/wire"
)

// Management-mode (MMM) opcode family (spec §4.7 step 4, §4.4, §4.8):
// raw node read/write, free-slot allocation, start-parent and change-
// number bookkeeping, CTR-bound inspection, favorites, and the CPZ-LUT
// entry dump. Gated by Dispatcher.mmmOnly before a handler ever runs.

func handleStartMMM(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if _, err := d.Nodes.ScanNodeUsage(); err != nil {
		return Result{}, err
	}
	d.State.SetManagementMode(true)
	return ack(), nil
}

func handleEndMMM(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if _, err := d.Nodes.ScanNodeUsage(); err != nil {
		return Result{}, err
	}
	d.State.SetManagementMode(false)
	return ack(), nil
}

// Node kind byte used by READ_NODE/WRITE_NODE, independent of
// node.Kind's own numbering so the wire encoding doesn't silently
// shift if that enum grows.
const (
	wireKindParentCredential byte = iota
	wireKindParentData
	wireKindChildCredential
	wireKindChildData
)

func handleReadNode(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < 3 {
		return Result{}, ErrMalformedRequest
	}
	addr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	switch payload[2] {
	case wireKindParentCredential, wireKindParentData:
		p, err := d.Nodes.ReadParent(addr)
		if err != nil {
			return Result{}, err
		}
		svc, err := encodeFixedString(p.Service, node.MaxServiceUnits)
		if err != nil {
			return Result{}, err
		}
		out := append(encodeAddr(p.Prev), encodeAddr(p.Next)...)
		out = append(out, encodeAddr(p.FirstChild)...)
		out = append(out, p.Category, p.Flags)
		out = append(out, svc...)
		return data(out), nil
	case wireKindChildCredential:
		c, err := d.Nodes.ReadCredential(addr)
		if err != nil {
			return Result{}, err
		}
		login, err := encodeFixedString(c.Login, node.MaxLoginUnits)
		if err != nil {
			return Result{}, err
		}
		desc, err := encodeFixedString(c.Description, node.MaxDescUnits)
		if err != nil {
			return Result{}, err
		}
		var prevGen byte
		if c.PrevGen {
			prevGen = 1
		}
		out := append(encodeAddr(c.Parent), encodeAddr(c.Next)...)
		out = append(out, byte(c.CTR>>16), byte(c.CTR>>8), byte(c.CTR), prevGen)
		out = append(out, login...)
		out = append(out, desc...)
		out = append(out, c.EncryptedPassword...)
		return data(out), nil
	case wireKindChildData:
		ch, err := d.Nodes.ReadDataChunk(addr)
		if err != nil {
			return Result{}, err
		}
		out := append(encodeAddr(ch.Parent), encodeAddr(ch.Next)...)
		out = append(out, byte(ch.CTR>>16), byte(ch.CTR>>8), byte(ch.CTR))
		out = append(out, ch.Ciphertext...)
		return data(out), nil
	default:
		return Result{}, ErrMalformedRequest
	}
}

func handleWriteNode(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 5 {
		return Result{}, ErrMalformedRequest
	}
	addr, err := decodeAddr(payload[0:2])
	if err != nil {
		return Result{}, err
	}
	kind := payload[2]
	contAddr, err := decodeAddr(payload[3:5])
	if err != nil {
		return Result{}, err
	}
	body := payload[5:]

	switch kind {
	case wireKindParentCredential, wireKindParentData:
		if len(body) < 8+node.MaxServiceUnits*2 {
			return Result{}, ErrMalformedRequest
		}
		prev, next, err := decodeTwoAddrs(body[0:4])
		if err != nil {
			return Result{}, err
		}
		firstChild, err := decodeAddr(body[4:6])
		if err != nil {
			return Result{}, err
		}
		category, flags := body[6], body[7]
		svc, err := decodeFixedString(body[8:8+node.MaxServiceUnits*2], node.MaxServiceUnits)
		if err != nil {
			return Result{}, err
		}
		k := node.KindParentCredential
		if kind == wireKindParentData {
			k = node.KindParentData
		}
		p := &node.Parent{Addr: addr, Kind: k, Service: svc, Category: category, Flags: flags, Prev: prev, Next: next, FirstChild: firstChild}
		if err := d.Nodes.WriteParent(p, userID); err != nil {
			return Result{}, err
		}
	case wireKindChildCredential:
		loginUnits := node.MaxLoginUnits * 2
		descUnits := node.MaxDescUnits * 2
		if len(body) < 6+loginUnits+descUnits {
			return Result{}, ErrMalformedRequest
		}
		parentAddr, next, err := decodeTwoAddrs(body[0:4])
		if err != nil {
			return Result{}, err
		}
		ctr := uint32(body[4])<<16 | uint32(body[5])<<8 | uint32(body[6])
		prevGen := body[7] != 0
		off := 8
		login, err := decodeFixedString(body[off:off+loginUnits], node.MaxLoginUnits)
		if err != nil {
			return Result{}, err
		}
		off += loginUnits
		desc, err := decodeFixedString(body[off:off+descUnits], node.MaxDescUnits)
		if err != nil {
			return Result{}, err
		}
		off += descUnits
		c := &node.Credential{
			Addr: addr, Parent: parentAddr, Next: next, Login: login, Description: desc,
			EncryptedPassword: body[off:], CTR: ctr, PrevGen: prevGen,
		}
		if err := d.Nodes.WriteCredential(c, contAddr, userID); err != nil {
			return Result{}, err
		}
	case wireKindChildData:
		if len(body) < 7 {
			return Result{}, ErrMalformedRequest
		}
		parentAddr, next, err := decodeTwoAddrs(body[0:4])
		if err != nil {
			return Result{}, err
		}
		ctr := uint32(body[4])<<16 | uint32(body[5])<<8 | uint32(body[6])
		chunk := &node.DataChunk{Addr: addr, Parent: parentAddr, Next: next, CTR: ctr, Ciphertext: body[7:]}
		if err := d.Nodes.WriteDataChunk(chunk, contAddr, userID); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, ErrMalformedRequest
	}
	return ack(), nil
}

func handleGetFreeNodes(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	if len(payload) < 4 {
		return Result{}, ErrMalformedRequest
	}
	cursor := store.Cursor{Page: payload[0], Offset: payload[1]}
	want := int(payload[2])
	exclude, err := decodeAddr(payload[3:5])
	if err != nil {
		exclude = store.AddrNull
	}
	addrs, next, err := d.Nodes.AllocateFreeSlots(cursor, want, exclude)
	if err != nil && len(addrs) == 0 {
		return Result{}, err
	}
	out := []byte{byte(len(addrs))}
	for _, a := range addrs {
		out = append(out, encodeAddr(a)...)
	}
	out = append(out, next.Page, next.Offset)
	return data(out), nil
}

func handleGetStartParents(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	cred, dat, err := d.Nodes.StartParents(userID)
	if err != nil {
		return Result{}, err
	}
	return data(append(encodeAddr(cred), encodeAddr(dat)...)), nil
}

func handleSetCredStartParent(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	addr, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetCredStartParent(userID, addr); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleSetDataStartParent(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	addr, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetDataStartParent(userID, addr); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleSetStartParents(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	cred, dat, err := decodeTwoAddrs(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetStartParents(userID, cred, dat); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetCredChangeNb(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	n, err := d.Nodes.CredChangeNumber(userID)
	if err != nil {
		return Result{}, err
	}
	return data(encodeUint32(n)), nil
}

func handleSetCredChangeNb(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	v, err := decodeUint32(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetCredChangeNumber(userID, v); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetDataChangeNb(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	n, err := d.Nodes.DataChangeNumber(userID)
	if err != nil {
		return Result{}, err
	}
	return data(encodeUint32(n)), nil
}

func handleSetDataChangeNb(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	v, err := decodeUint32(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetDataChangeNumber(userID, v); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetCtrValue(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	return data(encodeUint32(d.Nodes.NewBoundStore(userID).CTRBound())), nil
}

func handleSetCtrValue(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	v, err := decodeUint32(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.NewBoundStore(userID).SetCTRBound(v); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetFavorite(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 1 {
		return Result{}, ErrMalformedRequest
	}
	fav, err := d.Nodes.GetFavorite(userID, int(payload[0]))
	if err != nil {
		return Result{}, err
	}
	return data(append(encodeAddr(fav.Parent), encodeAddr(fav.Child)...)), nil
}

func handleSetFavorite(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 5 {
		return Result{}, ErrMalformedRequest
	}
	slot := int(payload[0])
	parent, child, err := decodeTwoAddrs(payload[1:5])
	if err != nil {
		return Result{}, err
	}
	if err := d.Nodes.SetFavorite(userID, slot, node.Favorite{Parent: parent, Child: child}); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleGetFavorites(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	favs, err := d.Nodes.Favorites(userID)
	if err != nil {
		return Result{}, err
	}
	var out []byte
	for _, f := range favs {
		out = append(out, encodeAddr(f.Parent)...)
		out = append(out, encodeAddr(f.Child)...)
	}
	return data(out), nil
}

func handleGetCpzLutEntry(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	row, err := d.Settings.Entry(userID)
	if err != nil {
		return Result{}, err
	}
	out := append([]byte{}, row.CPZ...)
	out = append(out, encodeUint16(row.Flags)...)
	out = append(out, encodeUint16(row.LangID)...)
	out = append(out, encodeUint16(row.USBKeyboardID)...)
	out = append(out, encodeUint16(row.BLEKeyboardID)...)
	out = append(out, encodeUint32(row.AuthCounter)...)
	return data(out), nil
}
