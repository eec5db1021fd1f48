// Package watch turns file-change events into debounced rebuilds.
//
// The debounce/build cycle is the three-state Machine below. Coordinator
// drives it from a single goroutine, so the machine itself needs no locking.
package watch

// State is the coordinator state.
type State int

const (
	Idle State = iota
	Debouncing
	Building
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Building:
		return "building"
	default:
		return "unknown"
	}
}

// Action is what the driver must do after a transition.
type Action int

const (
	ActionNone Action = iota
	// ActionArmTimer (re)starts the settle timer.
	ActionArmTimer
	// ActionStartBuild starts exactly one build.
	ActionStartBuild
)

func (a Action) String() string {
	switch a {
	case ActionArmTimer:
		return "arm_timer"
	case ActionStartBuild:
		return "start_build"
	default:
		return "none"
	}
}

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	State   State
	Pending bool
}

// Machine is the debounce state machine. The zero value is Idle.
type Machine struct {
	state   State
	pending bool
}

// Change handles a source change.
func (m *Machine) Change() Action {
	switch m.state {
	case Idle, Debouncing:
		m.state = Debouncing
		return ActionArmTimer
	case Building:
		m.pending = true
	}
	return ActionNone
}

// TimerFired handles expiry of the settle timer. A timer firing outside
// Debouncing is stale and ignored.
func (m *Machine) TimerFired() Action {
	if m.state != Debouncing {
		return ActionNone
	}
	m.state = Building
	return ActionStartBuild
}

// BuildDone handles completion of the running build, whatever its outcome.
// Changes seen during the build lead to a new settle window.
func (m *Machine) BuildDone() Action {
	if m.state != Building {
		return ActionNone
	}
	if m.pending {
		m.pending = false
		m.state = Debouncing
		return ActionArmTimer
	}
	m.state = Idle
	return ActionNone
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{State: m.state, Pending: m.pending}
}
