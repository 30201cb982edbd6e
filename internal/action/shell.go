package action

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// DefaultShell runs action command lines.
const DefaultShell = "bash"

// Shell runs command lines with "<Path> -c". Commands are not tied to the
// caller's lifetime: cancelling ctx does not kill a started command.
type Shell struct {
	Path string
	Env  []string
}

// NewShell returns a Shell using path, or DefaultShell when empty.
func NewShell(path string) *Shell {
	if path == "" {
		path = DefaultShell
	}
	return &Shell{Path: path}
}

// Exec runs line and waits for it to exit.
func (s *Shell) Exec(ctx context.Context, line string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	cmd := exec.Command(s.Path, "-c", line)
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", s.Path, err)
	}

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("wait %s: %w", s.Path, err)
	}
	return 0, nil
}
