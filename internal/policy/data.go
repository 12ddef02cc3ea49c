package policy

import (
	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/store"
)

// GetData decrypts and concatenates every chunk in the data/note chain
// starting at firstChunk (spec §4.5 data/notes family).
func (p *Policy) GetData(engine *aesctr.Engine, firstChunk store.Addr) ([]byte, error) {
	var out []byte
	addr := firstChunk
	visited := make(map[store.Addr]bool)
	for !addr.IsNull() {
		if visited[addr] {
			return nil, node.ErrLoopDetected
		}
		visited[addr] = true

		chunk, err := p.nodes.ReadDataChunk(addr)
		if err != nil {
			return nil, err
		}
		plain := make([]byte, len(chunk.Ciphertext))
		copy(plain, chunk.Ciphertext)
		if err := engine.Decrypt(plain, chunk.CTR, false); err != nil {
			return nil, err
		}
		out = append(out, plain...)
		addr = chunk.Next
	}
	return out, nil
}

// AddData creates a new data parent with a single first chunk holding
// plaintext, encrypted under engine.
func (p *Policy) AddData(userID uint32, engine *aesctr.Engine, parentAddr, chunkAddr, contAddr store.Addr, service string, plaintext []byte) (*node.Parent, *node.DataChunk, uint32, error) {
	parent := &node.Parent{Addr: parentAddr, Kind: node.KindParentData, Service: service, FirstChild: chunkAddr, Prev: store.AddrNull, Next: store.AddrNull}
	if err := p.nodes.WriteParent(parent, userID); err != nil {
		return nil, nil, 0, err
	}
	chunk, ctr, err := p.writeChunk(userID, engine, chunkAddr, contAddr, store.AddrNull, parentAddr, plaintext)
	if err != nil {
		return nil, nil, 0, err
	}
	if _, err := p.nodes.BumpDataChangeNumber(userID); err != nil {
		return nil, nil, 0, err
	}
	return parent, chunk, ctr, nil
}

// AddDataChunk appends one more chunk to an existing data/note chain,
// used when the full note exceeds one chunk's payload size.
func (p *Policy) AddDataChunk(userID uint32, engine *aesctr.Engine, prevChunkAddr, newChunkAddr, contAddr, parentAddr store.Addr, plaintext []byte) (*node.DataChunk, uint32, error) {
	prev, err := p.nodes.ReadDataChunk(prevChunkAddr)
	if err != nil {
		return nil, 0, err
	}
	chunk, ctr, err := p.writeChunk(userID, engine, newChunkAddr, contAddr, store.AddrNull, parentAddr, plaintext)
	if err != nil {
		return nil, 0, err
	}
	prev.Next = newChunkAddr
	if err := p.nodes.WriteDataChunk(prev, store.AddrNull, userID); err != nil {
		return nil, 0, err
	}
	if _, err := p.nodes.BumpDataChangeNumber(userID); err != nil {
		return nil, 0, err
	}
	return chunk, ctr, nil
}

func (p *Policy) writeChunk(userID uint32, engine *aesctr.Engine, addr, contAddr, next, parentAddr store.Addr, plaintext []byte) (*node.DataChunk, uint32, error) {
	ciphertext := make([]byte, len(plaintext))
	copy(ciphertext, plaintext)
	ctr, err := engine.Encrypt(ciphertext)
	if err != nil {
		return nil, 0, err
	}
	chunk := &node.DataChunk{Addr: addr, Parent: parentAddr, Next: next, CTR: ctr, Ciphertext: ciphertext}
	if err := p.nodes.WriteDataChunk(chunk, contAddr, userID); err != nil {
		return nil, 0, err
	}
	return chunk, ctr, nil
}

// EmptyData truncates a data/note chain to zero chunks, erasing every
// link but leaving the parent (and its service name) intact.
func (p *Policy) EmptyData(userID uint32, parentAddr store.Addr) error {
	parent, err := p.nodes.ReadParent(parentAddr)
	if err != nil {
		return err
	}
	addr := parent.FirstChild
	visited := make(map[store.Addr]bool)
	for !addr.IsNull() {
		if visited[addr] {
			return node.ErrLoopDetected
		}
		visited[addr] = true
		chunk, err := p.nodes.ReadDataChunk(addr)
		if err != nil {
			return err
		}
		next := chunk.Next
		if err := p.nodes.EraseNode(addr); err != nil {
			return err
		}
		addr = next
	}
	parent.FirstChild = store.AddrNull
	if err := p.nodes.WriteParent(parent, userID); err != nil {
		return err
	}
	_, err = p.nodes.BumpDataChangeNumber(userID)
	return err
}

// DeleteData erases the entire data/note parent and its chunk chain.
func (p *Policy) DeleteData(userID uint32, parentAddr store.Addr) error {
	if err := p.EmptyData(userID, parentAddr); err != nil {
		return err
	}
	if err := p.nodes.EraseNode(parentAddr); err != nil {
		return err
	}
	_, err := p.nodes.BumpDataChangeNumber(userID)
	return err
}

// CheckData reports whether a data/note chain exists at parentAddr and
// belongs to userID, without decrypting its contents.
func (p *Policy) CheckData(userID uint32, parentAddr store.Addr) (bool, error) {
	ok, kind, err := p.nodes.CheckUserPermission(parentAddr, userID)
	if err != nil {
		return false, err
	}
	return ok && kind == store.NodeKindParentData, nil
}
