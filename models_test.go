package authclient_test

import (
	"encoding/json"
	"testing"

	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthUserAcceptsNumericAndStringIDs(t *testing.T) {
	user := &authclient.AuthUser{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42, "email": "jane@example.com"}`), user))
	assert.Equal(t, authclient.FlexID("42"), user.ID)

	user = &authclient.AuthUser{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": "a1b2c3", "avatar": "https://cdn.example.com/a.png"}`), user))
	assert.Equal(t, authclient.FlexID("a1b2c3"), user.ID)
	assert.Equal(t, "https://cdn.example.com/a.png", user.AvatarURL)
}

func TestAuthUserClone(t *testing.T) {
	var nilUser *authclient.AuthUser
	assert.Nil(t, nilUser.Clone())

	user := &authclient.AuthUser{
		ID:    "42",
		Email: "jane@example.com",
		OAuth: &authclient.OAuthProvenance{Provider: "github", Authorized: true},
	}

	clone := user.Clone()
	require.NotNil(t, clone)
	require.NotSame(t, user, clone)
	require.NotSame(t, user.OAuth, clone.OAuth)

	clone.OAuth.Provider = "google"
	assert.Equal(t, "github", user.OAuth.Provider)
}
