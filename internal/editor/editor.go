package editor

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

func Executable() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	} else if e := os.Getenv("VISUAL"); e != "" {
		return e
	}

	switch runtime.GOOS {
	case "windows":
		return "notepad"
	case "linux":
		if path, err := exec.LookPath("editor"); err == nil {
			return path
		}
	}

	return "vi"
}

// Command returns the command editing path. The editor setting may carry
// arguments (e.g. "code --wait").
func Command(path string) *exec.Cmd {
	fields := strings.Fields(Executable())
	if len(fields) == 0 {
		fields = []string{"vi"}
	}
	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd
}

// Open edits path and blocks until the editor exits.
func Open(path string) error {
	if err := Command(path).Run(); err != nil {
		return fmt.Errorf("%s: %w", Executable(), err)
	}
	return nil
}
