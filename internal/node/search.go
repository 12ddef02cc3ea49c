package node

import (
	"strings"

	"github.com/keysafe/corectl/internal/store"
)

// MatchMode selects how FindService compares the candidate string
// against each parent's service name (spec §4.4: "Match/Compare
// modes").
type MatchMode uint8

const (
	// ModeCompare requires an exact, case-sensitive match.
	ModeCompare MatchMode = iota
	// ModeMatch is a case-insensitive comparison, used by the host
	// when offering an auto-fill candidate for a browser-observed
	// domain.
	ModeMatch
)

func serviceMatches(mode MatchMode, candidate, want string) bool {
	if mode == ModeMatch {
		return strings.EqualFold(candidate, want)
	}
	return candidate == want
}

// startParent picks the per-kind sibling-list head from a profile row.
func startParent(row *store.UserProfileRow, kind Kind) store.Addr {
	if kind == KindParentData {
		return store.UnpackAddr(row.DataStartParent)
	}
	return store.UnpackAddr(row.CredStartParent)
}

// FindService walks the sibling list of kind (credential or data)
// starting at userID's configured start parent, returning the first
// parent whose Service field matches name under mode (Match/Compare,
// spec §4.4). A visited-set loop-guard satisfies I4 against
// corrupted/cyclic next pointers.
func (m *Manager) FindService(userID uint32, kind Kind, name string, mode MatchMode, category uint8, honourCategory bool) (*Parent, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return nil, err
	}
	addr := startParent(row, kind)
	visited := make(map[store.Addr]bool)
	steps := 0
	for !addr.IsNull() {
		if visited[addr] || steps >= maxChainWalk {
			return nil, ErrLoopDetected
		}
		visited[addr] = true
		steps++

		p, err := m.ReadParent(addr)
		if err != nil {
			return nil, err
		}
		if (!honourCategory || p.Category == category) && serviceMatches(mode, p.Service, name) {
			return p, nil
		}
		addr = p.Next
	}
	return nil, ErrNoMatch
}

// ScanForNextParentAfter continues a sibling-list walk after afterAddr,
// for hosts paging through more services than fit in one response
// message (spec §4.4).
func (m *Manager) ScanForNextParentAfter(userID uint32, kind Kind, afterAddr store.Addr) (*Parent, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return nil, err
	}
	addr := startParent(row, kind)
	visited := make(map[store.Addr]bool)
	steps := 0
	found := afterAddr.IsNull()
	for !addr.IsNull() {
		if visited[addr] || steps >= maxChainWalk {
			return nil, ErrLoopDetected
		}
		visited[addr] = true
		steps++

		if found {
			return m.ReadParent(addr)
		}
		p, err := m.ReadParent(addr)
		if err != nil {
			return nil, err
		}
		if addr == afterAddr {
			found = true
		}
		addr = p.Next
	}
	return nil, ErrNoMatch
}

// FindLogin walks parentAddr's child list, returning the first
// credential whose Login matches exactly.
func (m *Manager) FindLogin(parentAddr store.Addr, login string) (*Credential, error) {
	parent, err := m.ReadParent(parentAddr)
	if err != nil {
		return nil, err
	}
	addr := parent.FirstChild
	visited := make(map[store.Addr]bool)
	steps := 0
	for !addr.IsNull() {
		if visited[addr] || steps >= maxChainWalk {
			return nil, ErrLoopDetected
		}
		visited[addr] = true
		steps++

		c, err := m.ReadCredential(addr)
		if err != nil {
			return nil, err
		}
		if c.Login == login {
			return c, nil
		}
		addr = c.Next
	}
	return nil, ErrNoMatch
}

// FindByUserHandle scans every credential parent's child list owned by
// userID for a WebAuthn credential whose stored user handle matches,
// used by the WebAuthn assertion/registration opcodes.
func (m *Manager) FindByUserHandle(userID uint32, userHandle []byte) (*Credential, error) {
	return m.scanWebAuthn(userID, func(c *Credential) bool {
		return c.WebAuthn != nil && string(c.WebAuthn.UserHandle) == string(userHandle)
	})
}

// FindByCredentialID scans the same space for a matching credential id.
func (m *Manager) FindByCredentialID(userID uint32, credentialID [CredentialIDBytes]byte) (*Credential, error) {
	return m.scanWebAuthn(userID, func(c *Credential) bool {
		return c.WebAuthn != nil && c.WebAuthn.CredentialID == credentialID
	})
}

func (m *Manager) scanWebAuthn(userID uint32, match func(*Credential) bool) (*Credential, error) {
	row, err := m.Profile(userID)
	if err != nil {
		return nil, err
	}
	parentAddr := store.UnpackAddr(row.CredStartParent)
	visitedParents := make(map[store.Addr]bool)
	parentSteps := 0
	for !parentAddr.IsNull() {
		if visitedParents[parentAddr] || parentSteps >= maxChainWalk {
			return nil, ErrLoopDetected
		}
		visitedParents[parentAddr] = true
		parentSteps++

		parent, err := m.ReadParent(parentAddr)
		if err != nil {
			return nil, err
		}
		childAddr := parent.FirstChild
		visitedChildren := make(map[store.Addr]bool)
		childSteps := 0
		for !childAddr.IsNull() {
			if visitedChildren[childAddr] || childSteps >= maxChainWalk {
				return nil, ErrLoopDetected
			}
			visitedChildren[childAddr] = true
			childSteps++

			c, err := m.ReadCredential(childAddr)
			if err != nil {
				return nil, err
			}
			if match(c) {
				return c, nil
			}
			childAddr = c.Next
		}
		parentAddr = parent.Next
	}
	return nil, ErrNoMatch
}
