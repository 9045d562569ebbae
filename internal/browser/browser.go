// Package browser opens URLs in the user's default web browser and falls back to the
// clipboard when no browser can be launched.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens url in the default browser. It tries open-golang first and then the
// platform's own launcher.
func OpenURL(url string) error {
	err := open.Run(url)
	if err == nil {
		log.Debug("Successfully opened URL using open-golang library")
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)

	cmd, err := platformCommand(url)
	if err != nil {
		return err
	}
	log.Debugf("Running command: %s %v", cmd.Path, cmd.Args[1:])
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

// IsAvailable reports whether a browser launcher exists on this system.
func IsAvailable() bool {
	_, err := launcherName()
	return err == nil
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// Present opens url in a browser unless noBrowser is set or no browser is available. When the
// browser is not used, the URL is printed and copied to the clipboard where possible.
// It reports whether a browser was launched.
func Present(url string, noBrowser bool) bool {
	if !noBrowser && IsAvailable() {
		fmt.Println("Opening browser for Google sign-in")
		err := OpenURL(url)
		if err == nil {
			return true
		}
		log.Warnf("Failed to open browser automatically: %v", err)
	} else if !noBrowser {
		log.Warn("No browser available; please open the URL manually")
	}

	fmt.Printf("Visit the following URL to continue authentication:\n%s\n", url)
	if err := CopyToClipboard(url); err != nil {
		log.Debugf("clipboard unavailable: %v", err)
	} else {
		fmt.Println("(The URL has been copied to your clipboard.)")
	}
	return false
}

func launcherName() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return lookPath("open")
	case "windows":
		return lookPath("rundll32")
	case "linux", "freebsd", "openbsd", "netbsd":
		for _, candidate := range linuxBrowsers {
			if name, err := lookPath(candidate); err == nil {
				return name, nil
			}
		}
		return "", fmt.Errorf("no suitable browser found on %s system", runtime.GOOS)
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func lookPath(name string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", err
	}
	return name, nil
}

func platformCommand(url string) (*exec.Cmd, error) {
	name, err := launcherName()
	if err != nil {
		return nil, err
	}
	if name == "rundll32" {
		return exec.Command(name, "url.dll,FileProtocolHandler", url), nil
	}
	return exec.Command(name, url), nil
}
