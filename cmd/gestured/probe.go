package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"gestured/internal/action"
	"gestured/internal/config"
	"gestured/internal/hci"
	"gestured/internal/health"
	"gestured/internal/store"
)

// newProbes registers a check for every external dependency cfg uses. Only
// the frame source is critical: without it nothing is recognised.
func newProbes(cfg *config.Config) *health.Checker {
	c := health.NewChecker()

	c.RegisterFunc("hci-socket", true, func(context.Context) (string, error) {
		ch, err := hci.ParseChannel(cfg.Device.Channel)
		if err != nil {
			return "", err
		}
		sock, err := hci.OpenSocket(cfg.Device.Index, ch)
		if err != nil {
			return "", err
		}
		sock.Close()
		return fmt.Sprintf("device %d, %s channel", cfg.Device.Index, ch), nil
	})

	if cfg.History.Enabled {
		c.RegisterFunc("history", false, func(ctx context.Context) (string, error) {
			s, err := store.Open(cfg.History.Path)
			if err != nil {
				return "", err
			}
			defer s.Close()
			if err := s.Ping(ctx); err != nil {
				return "", err
			}
			n, err := s.Count(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%d entries)", cfg.History.Path, n), nil
		})
	}

	if usesMPRIS(cfg) {
		c.RegisterFunc("mpris", false, func(ctx context.Context) (string, error) {
			m := action.NewMPRIS(cfg.Actions.MPRISPlayer)
			defer m.Close()
			return m.Resolve(ctx)
		})
	}

	return c
}

func usesMPRIS(cfg *config.Config) bool {
	for _, g := range cfg.Gestures {
		if kind, _, err := action.Parse(g.Action); err == nil && kind == action.KindMPRIS {
			return true
		}
	}
	return false
}

func printProbes(w io.Writer, results []health.CheckResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDETAIL")
	for _, r := range results {
		detail := r.Message
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Status, detail)
	}
	tw.Flush()
}
