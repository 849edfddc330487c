package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// browserCommands maps GOOS to the launcher and its leading arguments.
var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// startCommand is replaced in tests.
var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenBrowser opens rawURL in the default browser without waiting for it to exit.
//
// Only http and https URLs are accepted; the authorization URL is the only caller.
func OpenBrowser(rawURL string) error {
	return openBrowserOn(runtime.GOOS, rawURL)
}

func openBrowserOn(goos, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: not a web url: %q", ErrInvalidArgument, rawURL)
	}

	launcher, ok := browserCommands[goos]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", goos)
	}
	args := append(launcher[1:len(launcher):len(launcher)], u.String())
	if err := startCommand(launcher[0], args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
