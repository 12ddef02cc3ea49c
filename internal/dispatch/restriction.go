package dispatch

import "github.com/keysafe/corectl/internal/wire"

// Restriction selects which of the five named filters (spec §4.7 step
// 3) gates the current request. The dispatch loop picks a Restriction
// based on device/session state (e.g. RestrictionAll while no user is
// logged in) and passes it into Dispatch.
type Restriction = wire.Restriction

const (
	RestrictionNone        = wire.RestrictionNone
	RestrictionAll         = wire.RestrictionAll
	RestrictionAllbutSN    = wire.RestrictionAllbutSN
	RestrictionAllbutBundle = wire.RestrictionAllbutBundle
	RestrictionAllbutCancel = wire.RestrictionAllbutCancel
	RestrictionAllbutBondStore = wire.RestrictionAllbutBondStore
)

// always-allowed opcodes under every restriction: status/presence
// checks a host needs regardless of login state.
var alwaysAllowed = []wire.Opcode{
	wire.PING,
	wire.GetDeviceStatus,
	wire.PlatInfo,
	wire.ImLocked,
	wire.ImUnlocked,
	wire.WakeUpDevice,
}

func buildRestrictionTables() map[Restriction]map[wire.Opcode]bool {
	all := allOpcodes()
	tables := map[Restriction]map[wire.Opcode]bool{
		RestrictionNone: setOf(all...),
		RestrictionAll:  setOf(alwaysAllowed...),
		RestrictionAllbutSN: subtract(all, []wire.Opcode{
			wire.PrepareSnFlash, wire.SetDeviceSn, wire.SwitchOffNxtDsc,
		}),
		RestrictionAllbutBundle: subtract(all, []wire.Opcode{
			wire.StartBundleUL, wire.BundleWrite256B, wire.BundleUlDone,
		}),
		RestrictionAllbutCancel: subtract(all, []wire.Opcode{
			wire.DevAuthChallenge,
		}),
		RestrictionAllbutBondStore: subtract(all, []wire.Opcode{
			wire.AddUnknownCardID, wire.ResetUnknownCard,
		}),
	}
	return tables
}

func setOf(opcodes ...wire.Opcode) map[wire.Opcode]bool {
	out := make(map[wire.Opcode]bool, len(opcodes))
	for _, o := range opcodes {
		out[o] = true
	}
	return out
}

func subtract(all, excluded []wire.Opcode) map[wire.Opcode]bool {
	excludeSet := setOf(excluded...)
	out := make(map[wire.Opcode]bool)
	for _, o := range all {
		if !excludeSet[o] {
			out[o] = true
		}
	}
	return out
}

func allOpcodes() []wire.Opcode {
	out := make([]wire.Opcode, 0, int(wire.LastCmdForMMM))
	for op := wire.PING; op < wire.CancelReq; op++ {
		if _, ok := opcodeNames[op]; !ok {
			continue
		}
		out = append(out, op)
	}
	return out
}

func (d *Dispatcher) allowedUnder(r Restriction, opcode wire.Opcode) bool {
	table, ok := d.restrictions[r]
	if !ok {
		return false
	}
	return table[opcode]
}

// mmmOnly reports whether opcode falls in the management-mode-only
// range (spec §4.7 step 4).
func (d *Dispatcher) mmmOnly(opcode wire.Opcode) bool {
	return opcode >= wire.FirstCmdForMMM && opcode <= wire.LastCmdForMMM
}
