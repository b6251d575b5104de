// Package browser hands generated pages to the host's browser.
package browser

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Open launches the page at path in a browser. An empty command falls back on
// the platform opener, which dispatches to whatever the user set as default.
func Open(path, command string) error {

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to resolve path to open: %w", err)
	}

	if len(command) == 0 {
		switch runtime.GOOS {
		case "windows":
			command = "explorer"
		case "darwin":
			command = "open"
		case "linux":
			command = "xdg-open"
		default:
			return fmt.Errorf("unable to open '%s': no default browser command for %s", abs, runtime.GOOS)
		}
	}

	if err := exec.Command(command, abs).Start(); err != nil {
		return fmt.Errorf("unable to open '%s' with '%s': %w", abs, command, err)
	}
	return nil
}
