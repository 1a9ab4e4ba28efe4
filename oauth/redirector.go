package oauth

import (
	"os/exec"
	"runtime"

	"github.com/goliatone/go-errors"
)

// Redirector sends the user agent to the provider authorize URL. The
// native-client stand-in for a full-page browser redirect.
type Redirector interface {
	Redirect(url string) error
}

// RedirectorFunc adapts a function to the Redirector interface.
type RedirectorFunc func(url string) error

func (f RedirectorFunc) Redirect(url string) error {
	return f(url)
}

// BrowserRedirector opens the URL in the system default browser.
type BrowserRedirector struct{}

var _ Redirector = BrowserRedirector{}

func (BrowserRedirector) Redirect(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to open system browser")
	}
	return nil
}
