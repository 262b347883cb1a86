package progress

type GateState string

const (
	GateLocked     GateState = "locked"
	GateUnlockable GateState = "unlockable"
	GateCompleted  GateState = "completed"
)

// Gate is the completion state machine. A completion that is still waiting for the portal
// reports GateCompleted but can be aborted back to GateUnlockable; a confirmed one is
// terminal. Gate is not safe for concurrent use; Tracker serialises access.
type Gate struct {
	state   GateState
	pending bool
}

func NewGate(alreadyComplete bool) Gate {
	if alreadyComplete {
		return Gate{state: GateCompleted}
	}
	return Gate{state: GateLocked}
}

func (g *Gate) State() GateState { return g.state }

// Pending reports a completion that has not been confirmed by the portal yet.
func (g *Gate) Pending() bool { return g.pending }

// Unlock moves locked to unlockable and reports whether it did.
func (g *Gate) Unlock() bool {
	if g.state != GateLocked {
		return false
	}
	g.state = GateUnlockable
	return true
}

// Begin starts a completion. started is false when the gate is already completed,
// which callers treat as success.
func (g *Gate) Begin() (started bool, err error) {
	switch g.state {
	case GateLocked:
		return false, ErrGateLocked
	case GateCompleted:
		return false, nil
	default:
		g.state = GateCompleted
		g.pending = true
		return true, nil
	}
}

func (g *Gate) Confirm() {
	g.pending = false
}

// Abort rolls a pending completion back to unlockable. Confirmed completions stay put.
func (g *Gate) Abort() {
	if !g.pending {
		return
	}
	g.pending = false
	g.state = GateUnlockable
}
