package combat

// Phase tracks an encounter through its lifecycle. Transitions only move
// forward: forming encounters activate, active encounters conclude when one
// side falls, and concluded encounters close once the wrap-up narration is
// delivered.
type Phase int

const (
	// PhaseForming is an encounter being assembled before initiative.
	PhaseForming Phase = iota
	// PhaseActive is an encounter with a running initiative order.
	PhaseActive
	// PhaseConcluding is an encounter whose outcome is decided but whose
	// closing narration is still pending.
	PhaseConcluding
	// PhaseClosed is a finished encounter.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseForming:
		return "forming"
	case PhaseActive:
		return "active"
	case PhaseConcluding:
		return "concluding"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ValidTransition reports whether an encounter may move between two phases.
func ValidTransition(from, to Phase) bool {
	return to == from+1 && to <= PhaseClosed
}
