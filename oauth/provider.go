package oauth

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-authclient"
)

// ProviderConfig describes the external authorization endpoint. The client
// never talks to the provider's token endpoint; the authorization code is
// exchanged through the backend.
type ProviderConfig struct {
	Name        string
	ClientID    string
	RedirectURI string
	Scope       string
	AuthURL     string
}

// ProviderFromConfig builds a ProviderConfig from client configuration.
func ProviderFromConfig(cfg authclient.Config) ProviderConfig {
	return ProviderConfig{
		Name:        cfg.GetOAuthProvider(),
		ClientID:    cfg.GetOAuthClientID(),
		RedirectURI: cfg.GetOAuthRedirectURI(),
		Scope:       cfg.GetOAuthScope(),
		AuthURL:     cfg.GetOAuthAuthURL(),
	}
}

// AuthCodeURL returns the provider authorization URL carrying the CSRF
// state.
func (p ProviderConfig) AuthCodeURL(state string) string {
	v := url.Values{}
	v.Set("client_id", p.ClientID)
	v.Set("redirect_uri", p.RedirectURI)
	v.Set("scope", p.Scope)
	v.Set("state", state)

	sep := "?"
	if strings.Contains(p.AuthURL, "?") {
		sep = "&"
	}
	return p.AuthURL + sep + v.Encode()
}
