// Package action executes the commands bound to recognised gestures.
//
// An action string is either a shell command line, run with "<shell> -c",
// or "mpris:<Method>", which calls a MediaPlayer2 method on the session
// bus. Execution never blocks the caller; outcomes are logged and
// optionally recorded.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the executor for an action.
type Kind string

// Kinds.
const (
	KindShell  Kind = "shell"
	KindMPRIS  Kind = "mpris"
	KindDryRun Kind = "dry-run"
)

// MPRISPrefix marks an action handled by the MPRIS executor.
const MPRISPrefix = "mpris:"

// ErrUnknownMethod is returned for an mpris: action naming an unsupported method.
var ErrUnknownMethod = errors.New("action: unknown MPRIS method")

var mprisMethods = map[string]bool{
	"Play":      true,
	"Pause":     true,
	"PlayPause": true,
	"Next":      true,
	"Previous":  true,
	"Stop":      true,
}

// Parse splits an action into its executor kind and argument.
func Parse(action string) (Kind, string, error) {
	if rest, ok := strings.CutPrefix(action, MPRISPrefix); ok {
		method := strings.TrimSpace(rest)
		if !mprisMethods[method] {
			return KindMPRIS, method, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
		}
		return KindMPRIS, method, nil
	}
	return KindShell, action, nil
}

// Executor runs one action argument to completion.
type Executor interface {
	Exec(ctx context.Context, arg string) (exitCode int, err error)
}

// Result is the outcome of one action.
type Result struct {
	Action   string
	Kind     Kind
	At       time.Time
	Duration time.Duration
	ExitCode int
	Err      error
}

// OK reports whether the action succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Recorder persists results.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}
