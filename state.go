package authclient

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
)

// AuthState is the in-memory auth state owned by a single Controller.
// Subscribers always receive value copies; the token never appears in logs
// or error messages.
type AuthState struct {
	User    *AuthUser
	Token   string
	Phase   Phase
	Loading bool
	// Err is the user-facing error message, empty when there is none.
	// Silent logouts (expiry, revocation) never populate it.
	Err string
}

// IsAuthenticated reports whether the session is established. True implies
// both User and Token are set.
func (s AuthState) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// clone returns a snapshot safe to hand to subscribers.
func (s AuthState) clone() AuthState {
	cp := s
	cp.User = s.User.Clone()
	return cp
}

// newInitialState is the state every Controller starts from.
func newInitialState() AuthState {
	return AuthState{
		Phase:   PhaseInitializing,
		Loading: true,
	}
}
