package authclient

// phaseMachine validates session phase changes. Loading/error are overlays
// on top of the phase, not phases themselves, so they never appear in the
// graph.
type phaseMachine struct {
	transitions map[Phase]map[Phase]struct{}
}

func newPhaseMachine() *phaseMachine {
	return &phaseMachine{
		transitions: map[Phase]map[Phase]struct{}{
			PhaseInitializing: {
				PhaseUnauthenticated: {},
				PhaseAuthenticated:   {},
			},
			PhaseUnauthenticated: {
				PhaseAuthenticated: {},
			},
			PhaseAuthenticated: {
				PhaseUnauthenticated: {},
			},
		},
	}
}

// CanTransition reports whether from -> to is allowed. Same-phase commits
// are always allowed; they carry overlay changes only.
func (m *phaseMachine) CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	allowed, ok := m.transitions[from]
	if !ok {
		return false
	}
	_, exists := allowed[to]
	return exists
}

// Check returns ErrInvalidTransition with metadata when the change is not
// allowed.
func (m *phaseMachine) Check(from, to Phase) error {
	if to == "" {
		return decorate(ErrInvalidTransition, map[string]any{
			"reason": "target phase is empty",
		})
	}
	if !m.CanTransition(from, to) {
		return decorate(ErrInvalidTransition, map[string]any{
			"from": from,
			"to":   to,
		})
	}
	return nil
}
