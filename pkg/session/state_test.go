package session

import "testing"

func TestStateTransitions(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateNew, StateAwaitingSetup},
		{StateAwaitingSetup, StateAwaitingSetupComplete},
		{StateAwaitingSetupComplete, StateActive},
		{StateActive, StateDraining},
		{StateActive, StateClosed},
		{StateDraining, StateClosed},
		{StateNew, StateFailed},
		{StateActive, StateFailed},
		{StateDraining, StateFailed},
	}
	for _, tc := range allowed {
		if !validTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be legal", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to State }{
		{StateNew, StateActive},
		{StateAwaitingSetup, StateActive},
		{StateActive, StateAwaitingSetup},
		{StateDraining, StateActive},
		{StateClosed, StateActive},
		{StateClosed, StateFailed},
		{StateFailed, StateClosed},
		{StateFailed, StateActive},
	}
	for _, tc := range forbidden {
		if validTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestStateStrings(t *testing.T) {
	states := map[State]string{
		StateNew:                   "new",
		StateAwaitingSetup:         "awaiting_setup",
		StateAwaitingSetupComplete: "awaiting_setup_complete",
		StateActive:                "active",
		StateDraining:              "draining",
		StateClosed:                "closed",
		StateFailed:                "failed",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
	if !StateClosed.Terminal() || !StateFailed.Terminal() {
		t.Error("terminal states not reported terminal")
	}
	if StateActive.Terminal() || StateDraining.Terminal() {
		t.Error("live states reported terminal")
	}
}
