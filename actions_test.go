package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	baseURL    string
	storageDir string
}

func (c testConfig) GetBaseURL() string            { return c.baseURL }
func (c testConfig) GetHTTPTimeout() time.Duration { return 5 * time.Second }
func (c testConfig) GetStorageDir() string         { return c.storageDir }
func (c testConfig) GetOAuthProvider() string      { return "github" }
func (c testConfig) GetOAuthClientID() string      { return "test-client" }
func (c testConfig) GetOAuthRedirectURI() string   { return "http://127.0.0.1:8572/auth/callback" }
func (c testConfig) GetOAuthScope() string         { return "user:email" }
func (c testConfig) GetOAuthAuthURL() string {
	return "https://github.com/login/oauth/authorize"
}

func sessionEnvelope(t *testing.T, token string, user *authclient.AuthUser) map[string]any {
	t.Helper()
	return map[string]any{
		"status": "success",
		"data": map[string]any{
			"token": token,
			"user":  user,
		},
	}
}

func TestLoginSuccess(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "jane@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(sessionEnvelope(t, token, &authclient.AuthUser{
			ID:    "42",
			Email: "server@example.com",
			Name:  "Jane Doe",
		}))
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	result := actions.Login(context.Background(), authclient.LoginRequest{
		Email:    "jane@example.com",
		Password: "hunter2hunter2",
	})

	require.True(t, result.Success)
	assert.Equal(t, "/auth/login", gotPath)
	assert.Equal(t, "jane@example.com", gotBody["email"])
	assert.Equal(t, token, result.Token)

	// Identity derived from the token wins over the server profile.
	require.NotNil(t, result.User)
	assert.Equal(t, "jane@example.com", result.User.Email)
	assert.Equal(t, "jane", result.User.Username)
	assert.Equal(t, "Jane Doe", result.User.Name)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "Invalid credentials",
		})
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	result := actions.Login(context.Background(), authclient.LoginRequest{
		Email:    "jane@example.com",
		Password: "wrong-password",
	})

	assert.False(t, result.Success)
	assert.Equal(t, "Invalid credentials", result.Message)
	assert.Empty(t, result.Token)
}

func TestLoginValidationSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	result := actions.Login(context.Background(), authclient.LoginRequest{
		Email: "not-an-email",
	})

	assert.False(t, called)
	assert.False(t, result.Success)
	assert.Contains(t, result.FieldErrors, "email")
	assert.Contains(t, result.FieldErrors, "password")
}

func TestLoginServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	result := actions.Login(context.Background(), authclient.LoginRequest{
		Email:    "jane@example.com",
		Password: "hunter2hunter2",
	})

	assert.False(t, result.Success)
	assert.Equal(t, authclient.MsgServerUnreachable, result.Message)
	assert.Empty(t, result.FieldErrors)
}

func TestRegisterFieldErrorsFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "error",
			"errors": map[string]string{
				"email": "already registered",
			},
		})
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	result := actions.Register(context.Background(), authclient.RegisterRequest{
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "jane@example.com",
		Password:        "hunter2hunter2",
		ConfirmPassword: "hunter2hunter2",
	})

	assert.False(t, result.Success)
	assert.Equal(t, "already registered", result.FieldErrors["email"])
}

func TestRegisterValidation(t *testing.T) {
	actions := authclient.NewActions(testConfig{baseURL: "http://127.0.0.1:1"})

	result := actions.Register(context.Background(), authclient.RegisterRequest{
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "jane@example.com",
		Phone:           "not-a-phone",
		Password:        "hunter2hunter2",
		ConfirmPassword: "different-password",
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.FieldErrors, "phone_number")
	assert.Contains(t, result.FieldErrors, "confirm_password")
}

func TestResultFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"status": "error"})
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	result := actions.Login(context.Background(), authclient.LoginRequest{
		Email:    "jane@example.com",
		Password: "hunter2hunter2",
	})

	assert.False(t, result.Success)
	assert.Equal(t, "Authentication failed", result.Message)
}

func TestCurrentUserWithEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer the-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/users/me", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"token": "the-token",
				"user":  map[string]any{"id": 42, "email": "jane@example.com"},
			},
		})
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	user, err := actions.CurrentUser(context.Background(), "the-token")
	require.NoError(t, err)
	assert.Equal(t, authclient.FlexID("42"), user.ID)
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestCurrentUserWithBareProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "u-7",
			"email": "jane@example.com",
		})
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	user, err := actions.CurrentUser(context.Background(), "the-token")
	require.NoError(t, err)
	assert.Equal(t, authclient.FlexID("u-7"), user.ID)
}

func TestCurrentUserRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	actions := authclient.NewActions(testConfig{baseURL: srv.URL})

	_, err := actions.CurrentUser(context.Background(), "stale-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, authclient.ErrTokenRejected)

	// The rejection status rides on the returned error, not the sentinel.
	assert.Nil(t, authclient.ErrTokenRejected.Metadata)
}

func TestFormatValidationErrorToMap(t *testing.T) {
	err := authclient.LoginRequest{}.Validate()
	require.Error(t, err)

	m := authclient.FormatValidationErrorToMap(err)
	assert.Contains(t, m, "email")
	assert.Contains(t, m, "password")
}
