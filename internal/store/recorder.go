package store

import (
	"context"

	"gestured/internal/action"
)

var _ action.Recorder = (*Store)(nil)

// Record stores an action result.
func (s *Store) Record(ctx context.Context, r action.Result) error {
	a := Activation{
		RunID:    s.run,
		FiredAt:  r.At,
		Action:   r.Action,
		Executor: string(r.Kind),
		ExitCode: r.ExitCode,
		Duration: r.Duration,
	}
	if r.Err != nil {
		a.Error = r.Err.Error()
	}
	_, err := s.Insert(ctx, a)
	return err
}
