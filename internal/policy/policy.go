// Package policy implements the C5 credential access policy (spec
// §4.5): credential get/store/check/change, the preferred-starting-
// child hint fed by INFORM_CURRENT_SERVICE, the data/notes family, and
// TOTP field validation. It sits above internal/node (structure) and
// internal/aesctr (per-user encryption); its operations are called
// from internal/dispatch, and cmd/serve only constructs it.
package policy

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keysafe/corectl/internal/aesctr"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/rng"
	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/wire"
)

// InformBudget is the window within which a preceding
// INFORM_CURRENT_SERVICE hint remains valid for the next GET/STORE
// credential call (spec §4.5: "100ms budget").
const InformBudget = 100 * time.Millisecond

// Policy is the C5 credential access policy.
type Policy struct {
	nodes     *node.Manager
	rngPolicy rng.Policy
	now       func() time.Time

	mu       sync.Mutex
	pending  map[uint32]pendingService
	limiters map[uint32]*rate.Limiter
}

type pendingService struct {
	addr  store.Addr
	until time.Time
}

// New constructs a Policy over nodes, using the default password
// generation policy.
func New(nodes *node.Manager) *Policy {
	return &Policy{
		nodes:     nodes,
		rngPolicy: rng.DefaultPolicy,
		now:       time.Now,
		pending:   make(map[uint32]pendingService),
		limiters:  make(map[uint32]*rate.Limiter),
	}
}

// SetPasswordPolicy overrides the on-board password generation policy,
// e.g. from DeviceConfig.Policy.
func (p *Policy) SetPasswordPolicy(pol rng.Policy) {
	p.rngPolicy = pol
}

// InformCurrentService records parentAddr as userID's preferred
// starting child for the next credential operation, valid for
// InformBudget (spec §4.5).
func (p *Policy) InformCurrentService(userID uint32, parentAddr store.Addr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[userID] = pendingService{addr: parentAddr, until: p.now().Add(InformBudget)}
}

// PreferredStartingChild returns the still-valid INFORM_CURRENT_SERVICE
// hint for userID, if any.
func (p *Policy) PreferredStartingChild(userID uint32) (store.Addr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.pending[userID]
	if !ok || p.now().After(ps.until) {
		return store.AddrNull, false
	}
	return ps.addr, true
}

func (p *Policy) limiterFor(userID uint32) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(wire.CheckPasswordTimerVal*time.Second), 1)
		p.limiters[userID] = l
	}
	return l
}

// GetCredential decrypts and returns the password for login under
// parentAddr, using engine (the session's live AES-CTR engine).
func (p *Policy) GetCredential(engine *aesctr.Engine, parentAddr store.Addr, login string) (*node.Credential, string, error) {
	cred, err := p.nodes.FindLogin(parentAddr, login)
	if err != nil {
		return nil, "", err
	}
	plain := make([]byte, len(cred.EncryptedPassword))
	copy(plain, cred.EncryptedPassword)
	if err := engine.Decrypt(plain, cred.CTR, cred.PrevGen); err != nil {
		return nil, "", err
	}
	return cred, trimNull(plain), nil
}

func trimNull(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
