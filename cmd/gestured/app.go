package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"gestured/internal/action"
	"gestured/internal/config"
	"gestured/internal/gesture"
	"gestured/internal/logging"
	"gestured/internal/metrics"
	"gestured/internal/store"
)

// shutdownGrace bounds how long running actions may delay exit.
const shutdownGrace = 5 * time.Second

// app is the wired recogniser shared by listen and replay.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	log     *slog.Logger
	tree    *gesture.Tree
	matcher *gesture.Matcher
	actions *action.Dispatcher
	mpris   *action.MPRIS
	history *store.Store
	metrics *metrics.GesturedMetrics
}

// loadConfig resolves, loads and validates the configuration, exiting on
// any failure. The recogniser cannot start without it.
func loadConfig(path string) *config.Config {
	resolved, err := config.Resolve(path)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintf(os.Stderr, "Invalid configuration %s:\n", resolved)
			for _, v := range verrs {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", v.Field, v.Message)
			}
			os.Exit(1)
		}
		fatalf("%v", err)
	}
	return cfg
}

func setupLogging(cfg *config.Config) *logging.Logger {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		fatalf("logging: %v", err)
	}
	logger, err := logging.New(lc)
	if err != nil {
		fatalf("logging: %v", err)
	}
	logging.SetDefault(logger)
	return logger
}

// newApp wires the matcher to the action dispatcher. History is only
// opened when record is set and the configuration enables it.
func newApp(cfg *config.Config, record bool, onCommit func(gesture.Commit)) (*app, error) {
	logger := setupLogging(cfg)
	runID := uuid.NewString()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		log:     logger.WithComponent("gestured").With("run", runID),
		tree:    gesture.Build(cfg.GestureSpecs()),
		metrics: metrics.NewGesturedMetrics(metrics.NewRegistry("gestured")),
	}

	var recorder action.Recorder
	if record && cfg.History.Enabled {
		s, err := store.Open(cfg.History.Path)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		s.SetRun(runID)
		a.history = s
		recorder = s

		if cfg.History.RetentionDays > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			n, err := s.Prune(ctx, time.Now().Add(-cfg.History.Retention()))
			cancel()
			if err != nil {
				a.log.Warn("prune history", "error", err)
			} else if n > 0 {
				a.log.Info("pruned history", "removed", n)
			}
		}
	}

	a.mpris = action.NewMPRIS(cfg.Actions.MPRISPlayer)
	a.actions = action.NewDispatcher(action.Config{
		Shell:    action.NewShell(cfg.Actions.Shell),
		MPRIS:    a.mpris,
		DryRun:   cfg.Actions.DryRun,
		Recorder: recorder,
		Logger:   logger.WithComponent("action"),
		OnResult: a.metrics.RecordResult,
	})

	mc := cfg.MatcherConfig()
	mc.Logger = logger.WithComponent("gesture")
	mc.OnCommit = func(c gesture.Commit) {
		a.metrics.RecordCommit(c)
		if onCommit != nil {
			onCommit(c)
		}
	}
	a.matcher = gesture.NewMatcher(a.tree, a.actions, mc)

	return a, nil
}

// close stops the matcher without firing a pending gesture, waits briefly
// for running actions and releases everything else.
func (a *app) close() {
	a.matcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	if err := a.actions.Close(ctx); err != nil {
		a.log.Warn("actions still running at exit", "error", err)
	}
	cancel()

	if err := a.mpris.Close(); err != nil {
		a.log.Debug("close session bus", "error", err)
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("close history", "error", err)
		}
	}

	a.logSummary()
	a.logger.Close()
}

func (a *app) logSummary() {
	snap := a.metrics.Registry().Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]any, 0, 2*len(names))
	for _, name := range names {
		attrs = append(attrs, name, snap[name])
	}
	a.log.Info("summary", attrs...)
}
