package authclient

import (
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseMachineTransitions(t *testing.T) {
	m := newPhaseMachine()

	cases := []struct {
		from    Phase
		to      Phase
		allowed bool
	}{
		{PhaseInitializing, PhaseUnauthenticated, true},
		{PhaseInitializing, PhaseAuthenticated, true},
		{PhaseUnauthenticated, PhaseAuthenticated, true},
		{PhaseAuthenticated, PhaseUnauthenticated, true},
		{PhaseUnauthenticated, PhaseInitializing, false},
		{PhaseAuthenticated, PhaseInitializing, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, m.CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPhaseMachineSamePhaseAlwaysAllowed(t *testing.T) {
	m := newPhaseMachine()

	for _, phase := range []Phase{PhaseInitializing, PhaseUnauthenticated, PhaseAuthenticated} {
		assert.True(t, m.CanTransition(phase, phase))
		assert.NoError(t, m.Check(phase, phase))
	}
}

func TestPhaseMachineCheckReturnsError(t *testing.T) {
	m := newPhaseMachine()

	err := m.Check(PhaseAuthenticated, PhaseInitializing)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPhaseMachineCheckLeavesSentinelClean(t *testing.T) {
	m := newPhaseMachine()

	first := m.Check(PhaseAuthenticated, PhaseInitializing)
	second := m.Check(PhaseUnauthenticated, "")
	require.Error(t, first)
	require.Error(t, second)

	// Metadata lives on the returned errors; the shared sentinel never
	// accumulates call-site detail.
	assert.Nil(t, ErrInvalidTransition.Metadata)

	var firstErr *errors.Error
	require.ErrorAs(t, first, &firstErr)
	assert.Equal(t, PhaseInitializing, firstErr.Metadata["to"])

	var secondErr *errors.Error
	require.ErrorAs(t, second, &secondErr)
	assert.Equal(t, "target phase is empty", secondErr.Metadata["reason"])
}
