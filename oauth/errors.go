package oauth

import "github.com/goliatone/go-errors"

const (
	TextCodeClientNotConfigured = "oauth_client_not_configured"
	TextCodeStateMismatch       = "oauth_state_mismatch"
	TextCodeMissingParams       = "oauth_missing_params"
	TextCodeExchangeFail        = "oauth_exchange_failed"
	TextCodeProviderDenied      = "oauth_provider_denied"
)

// ErrClientNotConfigured is returned when the provider client id is absent.
// It is an actionable configuration error, raised before any redirect.
var ErrClientNotConfigured = errors.New("oauth client id is not configured", errors.CategoryValidation).
	WithTextCode(TextCodeClientNotConfigured).
	WithCode(errors.CodeBadRequest)

// ErrStateMismatch is returned when the callback state does not match the
// nonce this client issued. Security relevant: it is never downgraded to a
// silent success.
var ErrStateMismatch = errors.New("oauth state mismatch, possible CSRF", errors.CategoryAuth).
	WithTextCode(TextCodeStateMismatch).
	WithCode(errors.CodeForbidden)

// ErrMissingParams is returned when the callback lacks code or state.
var ErrMissingParams = errors.New("oauth callback missing code or state", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingParams).
	WithCode(errors.CodeBadRequest)

// ErrExchangeFailed is returned when the backend code exchange fails.
var ErrExchangeFailed = errors.New("oauth code exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrProviderDenied is returned when the provider reports an error on
// callback (e.g. the user cancelled the consent screen).
var ErrProviderDenied = errors.New("oauth provider reported an error", errors.CategoryAuth).
	WithTextCode(TextCodeProviderDenied).
	WithCode(errors.CodeUnauthorized)

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
