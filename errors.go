package authclient

import "github.com/goliatone/go-errors"

const (
	TextCodeNoSession      = "auth_client_no_session"
	TextCodeTokenMalformed = "auth_client_token_malformed"
	TextCodeTokenExpired   = "auth_client_token_expired"
	TextCodeTokenRejected  = "auth_client_token_rejected"
	TextCodeServerDown     = "auth_client_server_unreachable"
	TextCodeActionInFlight = "auth_client_action_in_flight"
	TextCodeBadTransition  = "auth_client_invalid_transition"
	TextCodeEmptySession   = "auth_client_empty_session"
)

// MsgServerUnreachable is the only message shown for transport-level
// failures. Raw transport errors are logged, never surfaced.
const MsgServerUnreachable = "Unable to reach the server. Please try again."

// ErrNoSession is returned when no token is persisted.
var ErrNoSession = errors.New("no stored session", errors.CategoryNotFound).
	WithTextCode(TextCodeNoSession).
	WithCode(errors.CodeNotFound)

// ErrTokenMalformed is returned when a stored token fails structural decode.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a stored token is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRejected is returned when the backend refuses a locally valid token.
var ErrTokenRejected = errors.New("token rejected by server", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRejected).
	WithCode(errors.CodeUnauthorized)

// ErrServerUnreachable wraps transport-level failures talking to the backend.
var ErrServerUnreachable = errors.New("authentication server unreachable", errors.CategoryOperation).
	WithTextCode(TextCodeServerDown)

// ErrActionInFlight is returned when a login or registration is submitted
// while a previous one is still pending.
var ErrActionInFlight = errors.New("authentication action already in flight", errors.CategoryConflict).
	WithTextCode(TextCodeActionInFlight).
	WithCode(errors.CodeConflict)

// ErrInvalidTransition is returned when a requested phase change is not allowed.
var ErrInvalidTransition = errors.New("invalid session phase transition", errors.CategoryConflict).
	WithTextCode(TextCodeBadTransition).
	WithCode(errors.CodeConflict)

// ErrEmptySession is returned when an authenticated commit is attempted
// without both a user and a token.
var ErrEmptySession = errors.New("authenticated session requires user and token", errors.CategoryValidation).
	WithTextCode(TextCodeEmptySession).
	WithCode(errors.CodeBadRequest)

// decorate attaches call-site metadata to a clone of a shared sentinel. The
// clone keeps the sentinel as its source so errors.Is still matches.
func decorate(base *errors.Error, metadata map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(metadata)
}
