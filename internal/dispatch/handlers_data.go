package dispatch

import (
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/wire"
)

// Data/notes opcode family (spec §4.5 via C5/internal/policy). The
// legacy FileID/NoteID opcode pairs are two host-facing names for the
// same underlying data/note chain operations (spec §4.7's "legacy
// aliases"): both map onto internal/policy's data chain family, so the
// File and Note handlers below simply share an implementation.

func testDataNode(d *Dispatcher, payload []byte) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	parentAddr, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	ok, err := d.Policy.CheckData(userID, parentAddr)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return nack(), nil
	}
	return ack(), nil
}

func handleTestFileID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return testDataNode(d, payload)
}

func createDataNode(d *Dispatcher, payload []byte) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 6+32*2 {
		return Result{}, ErrMalformedRequest
	}
	parentAddr, chunkAddr, err := decodeTwoAddrs(payload[0:4])
	if err != nil {
		return Result{}, err
	}
	contAddr, err := decodeAddr(payload[4:6])
	if err != nil {
		return Result{}, err
	}
	off := 6
	service, err := decodeFixedString(payload[off:off+32*2], 32)
	if err != nil {
		return Result{}, err
	}
	off += 32 * 2
	content := payload[off:]

	if _, _, _, err := d.Policy.AddData(userID, engine, parentAddr, chunkAddr, contAddr, service, content); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleCreateFileID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return createDataNode(d, payload)
}

func handleAddNoteID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return createDataNode(d, payload)
}

func appendDataChunk(d *Dispatcher, payload []byte) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 8 {
		return Result{}, ErrMalformedRequest
	}
	prevChunkAddr, newChunkAddr, err := decodeTwoAddrs(payload[0:4])
	if err != nil {
		return Result{}, err
	}
	contAddr, parentAddr, err := decodeTwoAddrs(payload[4:8])
	if err != nil {
		return Result{}, err
	}
	content := payload[8:]

	if _, _, err := d.Policy.AddDataChunk(userID, engine, prevChunkAddr, newChunkAddr, contAddr, parentAddr, content); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleAddFileDataID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return appendDataChunk(d, payload)
}

func handleAddNoteDataID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return appendDataChunk(d, payload)
}

func readDataChain(d *Dispatcher, payload []byte) (Result, error) {
	engine, _, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	firstChunk, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	content, err := d.Policy.GetData(engine, firstChunk)
	if err != nil {
		return Result{}, err
	}
	return data(content), nil
}

func handleGetFileDataID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return readDataChain(d, payload)
}

func handleAccessNoteID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return readDataChain(d, payload)
}

// modifyDataNode replaces a chain's content in place: the chunks
// themselves are erased and a single fresh chunk is written at the
// same chunk/continuation addresses, keeping the parent's address and
// service name intact.
func modifyDataNode(d *Dispatcher, payload []byte) (Result, error) {
	engine, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	if len(payload) < 6 {
		return Result{}, ErrMalformedRequest
	}
	parentAddr, chunkAddr, err := decodeTwoAddrs(payload[0:4])
	if err != nil {
		return Result{}, err
	}
	contAddr, err := decodeAddr(payload[4:6])
	if err != nil {
		return Result{}, err
	}
	content := payload[6:]

	parent, err := d.Nodes.ReadParent(parentAddr)
	if err != nil {
		return Result{}, err
	}
	if err := d.Policy.EmptyData(userID, parentAddr); err != nil {
		return Result{}, err
	}
	if _, _, _, err := d.Policy.AddData(userID, engine, parentAddr, chunkAddr, contAddr, parent.Service, content); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleModifyFileID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return modifyDataNode(d, payload)
}

func handleModifyNoteID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return modifyDataNode(d, payload)
}

func deleteDataNode(d *Dispatcher, payload []byte) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	parentAddr, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	if err := d.Policy.DeleteData(userID, parentAddr); err != nil {
		return Result{}, err
	}
	return ack(), nil
}

func handleDeleteFileID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return deleteDataNode(d, payload)
}

func handleDeleteNoteID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return deleteDataNode(d, payload)
}

func scanDataNode(d *Dispatcher, payload []byte) (Result, error) {
	_, userID, err := d.requireLogin()
	if err != nil {
		return Result{}, err
	}
	afterAddr, err := decodeAddr(payload)
	if err != nil {
		return Result{}, err
	}
	p, err := d.Nodes.ScanForNextParentAfter(userID, node.KindParentData, afterAddr)
	if err != nil {
		return Result{}, err
	}
	service, err := encodeFixedString(p.Service, 32)
	if err != nil {
		return Result{}, err
	}
	out := append(encodeAddr(p.Addr), service...)
	return data(out), nil
}

func handleScanFileID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return scanDataNode(d, payload)
}

func handleScanNoteID(d *Dispatcher, payload []byte, t wire.TransportKind) (Result, error) {
	return scanDataNode(d, payload)
}
