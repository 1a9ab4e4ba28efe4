package oauth

import (
	"context"
	stderrors "errors"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authclient"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// SessionCommitter installs an exchanged session into the client state, and
// surfaces failed attempts as user-facing errors. *authclient.Controller
// satisfies it through CommitOAuthSession and CommitOAuthFailure.
type SessionCommitter interface {
	CommitOAuthSession(ctx context.Context, token string, user *authclient.AuthUser) error
	CommitOAuthFailure(ctx context.Context, message string)
}

// HTTPConfig configures the callback controller.
type HTTPConfig struct {
	// CallbackPath for the provider redirect (default: "/auth/callback")
	CallbackPath string

	// SuccessBody is the page shown after a completed login
	SuccessBody string

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController receives the provider redirect on a loopback HTTP server,
// completes the flow, and hands the session to the committer. The outcome is
// surfaced once through AwaitResult so callers can block until the browser
// round-trip finishes.
type HTTPController struct {
	flow      *FlowCoordinator
	committer SessionCommitter
	config    HTTPConfig
	outcome   chan error
}

// NewHTTPController creates a callback controller for a coordinated flow.
func NewHTTPController(flow *FlowCoordinator, committer SessionCommitter, cfg HTTPConfig) *HTTPController {
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/auth/callback"
	}
	if cfg.SuccessBody == "" {
		cfg.SuccessBody = "Login complete. You can close this window."
	}

	return &HTTPController{
		flow:      flow,
		committer: committer,
		config:    cfg,
		outcome:   make(chan error, 1),
	}
}

// RegisterRoutes registers the callback route.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get(c.config.CallbackPath, c.Callback)
}

// Callback handles the provider redirect.
func (c *HTTPController) Callback(ctx router.Context) error {
	if errCode := ctx.Query("error"); errCode != "" {
		err := decorate(ErrProviderDenied, map[string]any{
			"error":       errCode,
			"description": ctx.Query("error_description"),
		})
		return c.fail(ctx, err)
	}

	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		return c.fail(ctx, ErrMissingParams)
	}

	result, err := c.flow.CompleteCallback(ctx.Context(), code, state)
	if err != nil {
		return c.fail(ctx, err)
	}

	if err := c.committer.CommitOAuthSession(ctx.Context(), result.Token, result.User); err != nil {
		return c.fail(ctx, err)
	}

	c.settle(nil)
	return ctx.Status(router.StatusOK).SendString(c.config.SuccessBody)
}

// fail routes a callback failure to all three consumers: the auth state,
// the awaited result, and the HTTP response.
func (c *HTTPController) fail(ctx router.Context, err error) error {
	c.committer.CommitOAuthFailure(ctx.Context(), failureMessage(err))
	c.settle(err)
	return c.handleError(ctx, err)
}

// failureMessage maps a callback failure to the message shown in the auth
// state. Raw error detail stays in logs and the awaited result.
func failureMessage(err error) string {
	switch {
	case stderrors.Is(err, ErrStateMismatch):
		return "Sign-in could not be verified. Please start over."
	case stderrors.Is(err, ErrProviderDenied):
		return "The provider rejected the sign-in request."
	case stderrors.Is(err, ErrMissingParams):
		return "The provider response was incomplete. Please start over."
	default:
		return "Social sign-in failed. Please try again."
	}
}

// AwaitResult blocks until the callback has been handled once, or the
// context ends.
func (c *HTTPController) AwaitResult(ctx context.Context) error {
	select {
	case err := <-c.outcome:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle records the first callback outcome. Later callbacks still get an
// HTTP response but no longer change the awaited result.
func (c *HTTPController) settle(err error) {
	select {
	case c.outcome <- err:
	default:
	}
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}
	return ctx.Status(router.StatusBadRequest).SendString("Login failed: " + err.Error())
}

// Loopback is a minimal localhost HTTP server hosting the callback route
// for redirect-based logins in native processes.
type Loopback struct {
	srv router.Server[*fiber.App]
	app *fiber.App
}

// NewLoopback builds a quiet fiber-backed server and registers the
// controller's routes on it.
func NewLoopback(controller *HTTPController) *Loopback {
	lb := &Loopback{}

	lb.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		created := router.DefaultFiberOptions(fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}))
		lb.app = created
		return created
	})

	controller.RegisterRoutes(lb.srv.Router())

	return lb
}

// App exposes the underlying fiber application, mainly for in-process
// request testing.
func (l *Loopback) App() *fiber.App {
	return l.app
}

// Serve starts listening on addr. It blocks like the underlying server.
func (l *Loopback) Serve(addr string) error {
	return l.srv.Serve(addr)
}

// Shutdown stops the listener.
func (l *Loopback) Shutdown(ctx context.Context) error {
	if l.app == nil {
		return nil
	}
	return l.app.ShutdownWithContext(ctx)
}
