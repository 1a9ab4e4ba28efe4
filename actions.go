package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const (
	defaultLoginPath       = "/auth/login"
	defaultRegisterPath    = "/auth/register"
	defaultCurrentUserPath = "/users/me"
)

const msgAuthenticationFailed = "Authentication failed"

// apiEnvelope is the backend response shape shared by the auth endpoints.
type apiEnvelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    *apiSessionData   `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type apiSessionData struct {
	Token string    `json:"token"`
	User  *AuthUser `json:"user"`
}

// ActionResult is the uniform outcome of a login or registration attempt.
// Exactly one of Success, Message, or FieldErrors carries the outcome.
type ActionResult struct {
	Success     bool
	Token       string
	User        *AuthUser
	Message     string
	FieldErrors map[string]string
}

// Actions performs the network calls behind login and registration and maps
// backend response shapes into ActionResult. It never retries; retry policy
// is a caller concern.
type Actions struct {
	baseURL         string
	httpClient      *http.Client
	logger          Logger
	loginPath       string
	registerPath    string
	currentUserPath string
}

// NewActions returns an Actions bound to the backend in cfg.
func NewActions(cfg Config) *Actions {
	return &Actions{
		baseURL:         strings.TrimRight(cfg.GetBaseURL(), "/"),
		httpClient:      &http.Client{Timeout: cfg.GetHTTPTimeout()},
		logger:          defLogger{},
		loginPath:       defaultLoginPath,
		registerPath:    defaultRegisterPath,
		currentUserPath: defaultCurrentUserPath,
	}
}

func (a *Actions) WithLogger(logger Logger) *Actions {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithHTTPClient overrides the transport (useful for tests and custom
// timeouts).
func (a *Actions) WithHTTPClient(client *http.Client) *Actions {
	if client != nil {
		a.httpClient = client
	}
	return a
}

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone_number,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidPhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// Login calls the backend login endpoint. Validation failures surface as
// FieldErrors without touching the network; transport failures collapse to
// MsgServerUnreachable so raw transport errors are never shown to the user.
func (a *Actions) Login(ctx context.Context, req LoginRequest) *ActionResult {
	if err := req.Validate(); err != nil {
		return &ActionResult{FieldErrors: FormatValidationErrorToMap(err)}
	}

	env, err := a.postJSON(ctx, a.loginPath, req)
	if err != nil {
		a.logger.Warn("login transport failure: %v", err)
		return &ActionResult{Message: MsgServerUnreachable}
	}

	return a.resultFromEnvelope(env)
}

// Register calls the backend registration endpoint. Identical contract and
// shape as Login.
func (a *Actions) Register(ctx context.Context, req RegisterRequest) *ActionResult {
	if err := req.Validate(); err != nil {
		return &ActionResult{FieldErrors: FormatValidationErrorToMap(err)}
	}

	env, err := a.postJSON(ctx, a.registerPath, req)
	if err != nil {
		a.logger.Warn("register transport failure: %v", err)
		return &ActionResult{Message: MsgServerUnreachable}
	}

	return a.resultFromEnvelope(env)
}

// CurrentUser fetches the authenticated profile with the stored bearer
// token. Any rejection maps to ErrTokenRejected; the caller treats it as a
// silent logout, not a user-facing failure.
func (a *Actions) CurrentUser(ctx context.Context, token string) (*AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+a.currentUserPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build current user request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "current user request failed").
			WithTextCode(TextCodeServerDown)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decorate(ErrTokenRejected, map[string]any{
			"status": resp.StatusCode,
		})
	}

	// The profile endpoint may answer with the standard envelope or a bare
	// profile object.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode current user response")
	}

	env := &apiEnvelope{}
	if err := json.Unmarshal(raw, env); err == nil && env.Data != nil && env.Data.User != nil {
		return env.Data.User, nil
	}

	user := &AuthUser{}
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode current user profile")
	}
	return user, nil
}

func (a *Actions) postJSON(ctx context.Context, path string, payload any) (*apiEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "request failed").
			WithTextCode(TextCodeServerDown)
	}
	defer resp.Body.Close()

	// Error responses are still structured envelopes (e.g. 401 with
	// status:"error"), so the status code is not consulted here. A body that
	// fails to decode is indistinguishable from a broken transport.
	env := &apiEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode response").
			WithTextCode(TextCodeServerDown)
	}

	return env, nil
}

func (a *Actions) resultFromEnvelope(env *apiEnvelope) *ActionResult {
	if env.Status == "success" && env.Data != nil && env.Data.Token != "" {
		user := env.Data.User.Clone()
		if user == nil {
			user = &AuthUser{}
		}

		// The token is the source of truth for display identity; its
		// derived fields win over the server-supplied ones.
		if ident := DisplayIdentityFromToken(env.Data.Token); ident != nil {
			user.Email = ident.Email
			user.Username = ident.Username
		}

		return &ActionResult{
			Success: true,
			Token:   env.Data.Token,
			User:    user,
		}
	}

	result := &ActionResult{
		Message:     env.Message,
		FieldErrors: env.Errors,
	}
	if result.Message == "" && len(result.FieldErrors) == 0 {
		result.Message = msgAuthenticationFailed
	}
	return result
}

// ValidPhoneNumber is an ozzo rule accepting empty or valid phone numbers.
func ValidPhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return stderrors.New("must be a valid phone number")
	}
	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return stderrors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map; non-field errors land under "form".
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
