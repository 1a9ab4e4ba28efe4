package authclient

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// StorageChange describes an external mutation of the persisted session.
type StorageChange struct {
	// Token is the new persisted value, empty when the session was cleared.
	Token   string
	Cleared bool
}

// SessionStore persists the bearer token across restarts and processes.
// Implementations guarantee single-key atomicity only, and must not deliver
// change notifications for writes performed through the same instance.
type SessionStore interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	// OnExternalChange subscribes to mutations performed by other processes
	// sharing the same storage area. The returned func cancels the
	// subscription.
	OnExternalChange(fn func(StorageChange)) (func(), error)
	Close() error
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetHTTPTimeout() time.Duration
	GetStorageDir() string
	GetOAuthProvider() string
	GetOAuthClientID() string
	GetOAuthRedirectURI() string
	GetOAuthScope() string
	GetOAuthAuthURL() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHCLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
