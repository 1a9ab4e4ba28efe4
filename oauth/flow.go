package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-authclient"
	"github.com/goliatone/go-errors"
)

const codeAuditPrefixLen = 8

// AuthRedirect is the outcome of BeginLogin: the URL the user agent must
// visit, plus the state the callback has to echo.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// ExchangeResult is a committed-ready session produced by the code
// exchange.
type ExchangeResult struct {
	Token string
	User  *authclient.AuthUser
}

// CodeExchanger trades an authorization code for a session. Production
// implementations go through the backend; tests may short-circuit.
type CodeExchanger interface {
	Exchange(ctx context.Context, provider, code string) (*ExchangeResult, error)
}

// FlowCoordinator drives the redirect-based OAuth login: nonce issuance,
// authorize URL construction, and CSRF-checked callback completion.
type FlowCoordinator struct {
	provider   ProviderConfig
	nonces     NonceStore
	exchanger  CodeExchanger
	redirector Redirector
	logger     authclient.Logger
	sink       authclient.ActivitySink
	now        func() time.Time
}

// FlowOption customizes FlowCoordinator construction.
type FlowOption func(*FlowCoordinator)

// WithLogger overrides the logger.
func WithLogger(logger authclient.Logger) FlowOption {
	return func(f *FlowCoordinator) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithActivitySink sets the sink receiving oauth audit events.
func WithActivitySink(sink authclient.ActivitySink) FlowOption {
	return func(f *FlowCoordinator) {
		if sink != nil {
			f.sink = sink
		}
	}
}

// WithRedirector overrides how the user agent is sent to the provider. The
// default opens the system browser.
func WithRedirector(redirector Redirector) FlowOption {
	return func(f *FlowCoordinator) {
		if redirector != nil {
			f.redirector = redirector
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) FlowOption {
	return func(f *FlowCoordinator) {
		if clock != nil {
			f.now = clock
		}
	}
}

// NewFlowCoordinator wires the flow against a provider, a transient nonce
// store, and a code exchanger.
func NewFlowCoordinator(provider ProviderConfig, nonces NonceStore, exchanger CodeExchanger, opts ...FlowOption) *FlowCoordinator {
	f := &FlowCoordinator{
		provider:   provider,
		nonces:     nonces,
		exchanger:  exchanger,
		redirector: BrowserRedirector{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// BeginLogin issues a fresh CSRF nonce, persists it for the redirect
// round-trip, and sends the user agent to the provider authorization URL.
// Fails before any redirect when the client id is not configured.
func (f *FlowCoordinator) BeginLogin(ctx context.Context) (*AuthRedirect, error) {
	if f.provider.ClientID == "" {
		return nil, decorate(ErrClientNotConfigured, map[string]any{
			"provider": f.provider.Name,
		})
	}

	nonce := newStateNonce()
	if err := f.nonces.Put(nonce); err != nil {
		return nil, err
	}

	redirect := &AuthRedirect{
		URL:      f.provider.AuthCodeURL(nonce),
		State:    nonce,
		Provider: f.provider.Name,
	}

	if err := f.redirector.Redirect(redirect.URL); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to open provider authorization url")
	}

	return redirect, nil
}

// CompleteCallback validates the echoed state against the issued nonce and
// exchanges the authorization code for a session. The nonce is consumed on
// entry, before any comparison: a second callback with the same state fails
// whatever the first one did.
func (f *FlowCoordinator) CompleteCallback(ctx context.Context, code, receivedState string) (*ExchangeResult, error) {
	issued, err := f.nonces.Take()
	if err != nil {
		f.warn("failed to consume oauth state: %v", err)
		issued = ""
	}

	if issued == "" || issued != receivedState {
		f.recordRejected(ctx, "state_mismatch")
		return nil, ErrStateMismatch
	}

	if code == "" {
		f.recordRejected(ctx, "missing_code")
		return nil, ErrMissingParams
	}

	result, err := f.exchanger.Exchange(ctx, f.provider.Name, code)
	if err != nil {
		f.recordRejected(ctx, "exchange_failed")
		return nil, errors.Wrap(err, errors.CategoryAuth, "oauth code exchange failed").
			WithTextCode(TextCodeExchangeFail).
			WithCode(errors.CodeUnauthorized)
	}

	if result.User != nil {
		result.User.OAuth = &authclient.OAuthProvenance{
			Provider:   f.provider.Name,
			Authorized: true,
			Code:       truncateCode(code),
			Timestamp:  f.now(),
		}
	}

	f.record(ctx, authclient.ActivityEventOAuthCompleted, map[string]any{
		"provider": f.provider.Name,
	})

	return result, nil
}

func (f *FlowCoordinator) recordRejected(ctx context.Context, reason string) {
	f.record(ctx, authclient.ActivityEventOAuthRejected, map[string]any{
		"provider": f.provider.Name,
		"reason":   reason,
	})
}

func (f *FlowCoordinator) record(ctx context.Context, eventType authclient.ActivityEventType, metadata map[string]any) {
	if f.sink == nil {
		return
	}
	err := f.sink.Record(ctx, authclient.ActivityEvent{
		EventType:  eventType,
		Actor:      authclient.ActorRef{ID: f.provider.Name, Type: "provider"},
		Metadata:   metadata,
		OccurredAt: f.now(),
	})
	if err != nil {
		f.warn("activity sink record error: %v", err)
	}
}

func (f *FlowCoordinator) warn(format string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(format, args...)
	}
}

// truncateCode keeps a short audit prefix of the authorization code.
func truncateCode(code string) string {
	if len(code) <= codeAuditPrefixLen {
		return code
	}
	return code[:codeAuditPrefixLen]
}

// BackendExchanger performs the code exchange through the platform backend,
// which owns the provider client secret.
type BackendExchanger struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// NewBackendExchanger builds the production CodeExchanger from client
// configuration.
func NewBackendExchanger(cfg authclient.Config) *BackendExchanger {
	return &BackendExchanger{
		baseURL:    strings.TrimRight(cfg.GetBaseURL(), "/"),
		path:       "/auth/oauth/exchange",
		httpClient: &http.Client{Timeout: cfg.GetHTTPTimeout()},
	}
}

// WithHTTPClient overrides the transport.
func (e *BackendExchanger) WithHTTPClient(client *http.Client) *BackendExchanger {
	if client != nil {
		e.httpClient = client
	}
	return e
}

type exchangeEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    *struct {
		Token string               `json:"token"`
		User  *authclient.AuthUser `json:"user"`
	} `json:"data,omitempty"`
}

// Exchange implements CodeExchanger.
func (e *BackendExchanger) Exchange(ctx context.Context, provider, code string) (*ExchangeResult, error) {
	body, err := json.Marshal(map[string]string{
		"provider": provider,
		"code":     code,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode exchange payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build exchange request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "exchange request failed")
	}
	defer resp.Body.Close()

	env := &exchangeEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode exchange response")
	}

	if env.Status != "success" || env.Data == nil || env.Data.Token == "" {
		return nil, decorate(ErrExchangeFailed, map[string]any{
			"provider": provider,
			"message":  env.Message,
		})
	}

	return &ExchangeResult{
		Token: env.Data.Token,
		User:  env.Data.User,
	}, nil
}
