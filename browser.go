package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// systemBrowser opens URLs with the platform's default handler.
type systemBrowser struct {
	goos string
	// start launches the command without waiting for it. Tests replace it.
	start func(name string, args ...string) error
}

func newSystemBrowser() *systemBrowser {
	return &systemBrowser{goos: runtime.GOOS, start: startDetached}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	// Reap the child so it does not linger as a zombie.
	go cmd.Wait() //nolint:errcheck // exit status of the opener is irrelevant

	return nil
}

// OpenURL implements procore.BrowserOpener.
func (b *systemBrowser) OpenURL(rawURL string) error {
	name, args := browserCommand(b.goos, rawURL)

	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("launching %s: %w", name, err)
	}

	return nil
}

func browserCommand(goos, rawURL string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{rawURL}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return "xdg-open", []string{rawURL}
	}
}
