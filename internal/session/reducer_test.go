package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allActions() []Action {
	user := &Identity{ID: "1", Email: "a@b.com"}
	slice := State{User: user, IsAuthenticated: true}.Slice()
	pending := State{PendingEmail: "a@b.com", IsMFARequired: true, ForcePasswordReset: true}.Slice()
	return []Action{
		LoginStarted{},
		RequestStarted{},
		RequestSettled{},
		LoggedIn{User: user},
		MFAChallenged{Email: "a@b.com"},
		MFAChallenged{Email: "a@b.com", ForcePasswordReset: true},
		ResetChallenged{Email: "a@b.com"},
		LoginFailed{Message: "Invalid email or password"},
		ChallengeFailed{Message: "Invalid code"},
		ResetCompleted{},
		LoggedOut{},
		Rehydrated{},
		Rehydrated{Slice: &slice},
		Rehydrated{Slice: &pending},
		ErrorCleared{},
	}
}

// Every state reachable through any two actions satisfies the invariants
func TestReduce_PreservesInvariants(t *testing.T) {
	actions := allActions()
	for _, first := range actions {
		s1 := Reduce(State{}, first)
		require.NoError(t, s1.Check(), "%T", first)
		for _, second := range actions {
			s2 := Reduce(s1, second)
			require.NoError(t, s2.Check(), "%T then %T", first, second)

			authenticated := s2.User != nil && !s2.IsMFARequired && !s2.ForcePasswordReset
			assert.Equal(t, authenticated, s2.IsAuthenticated, "%T then %T", first, second)
		}
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	in := State{User: &Identity{ID: "1"}, IsAuthenticated: true}
	_ = Reduce(in, ErrorCleared{})
	out := Reduce(in, LoggedOut{})

	assert.True(t, in.IsAuthenticated)
	assert.Equal(t, "1", in.User.ID)
	assert.False(t, out.IsAuthenticated)
}

func TestReduce_LoginStartedClearsChallenge(t *testing.T) {
	s := State{PendingEmail: "a@b.com", IsMFARequired: true, Error: "old"}
	s = Reduce(s, LoginStarted{})

	assert.True(t, s.IsLoading)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.PendingEmail)
	assert.False(t, s.IsMFARequired)
}

func TestReduce_ChallengeFailedKeepsPendingEmail(t *testing.T) {
	s := Reduce(State{}, MFAChallenged{Email: "a@b.com"})
	s = Reduce(s, RequestStarted{})
	s = Reduce(s, ChallengeFailed{Message: "Invalid code"})

	assert.Equal(t, PhaseMFAPending, s.Phase())
	assert.Equal(t, "a@b.com", s.PendingEmail)
	assert.Equal(t, "Invalid code", s.Error)
	assert.False(t, s.IsLoading)
}

func TestReduce_RehydrateAuthenticatedClearsTransientFields(t *testing.T) {
	slice := Persisted{User: &Identity{ID: "7"}, IsAuthenticated: true}
	s := Reduce(State{IsLoading: true, Error: "stale"}, Rehydrated{Slice: &slice})

	assert.Equal(t, PhaseAuthenticated, s.Phase())
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.Error)
}

func TestReduce_RehydrateRejectsInconsistentSlice(t *testing.T) {
	slice := Persisted{IsAuthenticated: true} // no user
	s := Reduce(State{}, Rehydrated{Slice: &slice})
	assert.Equal(t, State{}, s)
}

func TestPhase_MFABeforeReset(t *testing.T) {
	s := Reduce(State{}, MFAChallenged{Email: "a@b.com", ForcePasswordReset: true})
	assert.Equal(t, PhaseMFAPending, s.Phase())
	assert.True(t, s.ForcePasswordReset)
}

func TestState_Check(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  error
	}{
		{"empty", State{}, nil},
		{"authenticated", State{User: &Identity{ID: "1"}, IsAuthenticated: true}, nil},
		{"auth without user", State{IsAuthenticated: true}, errAuthWithoutUser},
		{"auth with pending email", State{User: &Identity{ID: "1"}, IsAuthenticated: true, PendingEmail: "a@b.com"}, errAuthWithChallenge},
		{"user without auth", State{User: &Identity{ID: "1"}}, errUserWithoutAuth},
		{"mfa without email", State{IsMFARequired: true}, errChallengeWithoutUser},
		{"reset without email", State{ForcePasswordReset: true}, errChallengeWithoutUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Check())
		})
	}
}
