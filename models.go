package authclient

import (
	"encoding/json"
	"strconv"
	"time"
)

// FlexID tolerates backends that serialize ids either as JSON strings or
// numbers.
type FlexID string

func (id FlexID) String() string { return string(id) }

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id FlexID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(id))), nil
}

// OAuthProvenance records how an OAuth-created user entered the system.
// Informational only.
type OAuthProvenance struct {
	Provider   string    `json:"provider"`
	Authorized bool      `json:"authorized"`
	// Code keeps a truncated prefix of the authorization code for audit
	// display, never the full value.
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthUser identifies the signed-in principal for display purposes only.
// It is never an input to authorization decisions; the bearer token is the
// authority.
type AuthUser struct {
	ID        FlexID           `json:"id"`
	Email     string           `json:"email"`
	Username  string           `json:"username"`
	Name      string           `json:"name,omitempty"`
	AvatarURL string           `json:"avatar,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
	OAuth     *OAuthProvenance `json:"oauth,omitempty"`
}

// Clone returns a deep copy so state snapshots never share mutable data.
func (u *AuthUser) Clone() *AuthUser {
	if u == nil {
		return nil
	}
	cp := *u
	if u.OAuth != nil {
		oa := *u.OAuth
		cp.OAuth = &oa
	}
	return &cp
}
