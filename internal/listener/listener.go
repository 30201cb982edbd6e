// Package listener runs the packet loop: frames from a source are
// classified and the resulting symbols are fed to the gesture matcher in
// arrival order.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gestured/internal/gesture"
	"gestured/internal/hci"
	"gestured/internal/input"
	"gestured/internal/metrics"
)

// SymbolHandler receives classified symbols. *gesture.Matcher implements it.
type SymbolHandler interface {
	OnSymbol(sym input.Symbol, now time.Time)
}

// Config configures a Loop.
type Config struct {
	Classifier *input.Classifier
	Handler    SymbolHandler
	Clock      gesture.Clock
	Logger     *slog.Logger
	Metrics    *metrics.GesturedMetrics
	// OnCancel runs once as soon as ctx is cancelled, without waiting for
	// the blocked read to return. Run does not return before it finishes.
	OnCancel func()
}

// Loop consumes a Source until it ends or is cancelled.
type Loop struct {
	src hci.Source
	cfg Config
	log *slog.Logger
}

// New returns a Loop reading from src. A nil Classifier starts at the
// default volume and a nil Clock uses wall time.
func New(src hci.Source, cfg Config) *Loop {
	if cfg.Classifier == nil {
		cfg.Classifier = input.NewClassifier(input.DefaultVolume)
	}
	if cfg.Clock == nil {
		cfg.Clock = gesture.WallClock()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loop{src: src, cfg: cfg, log: log}
}

// Run reads frames until ctx is cancelled or the source is exhausted, both
// of which return nil. Any other read error ends the loop and is returned.
// No symbol is delivered once ctx is done. Run does not close the source
// or stop the handler; use OnCancel for that.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.OnCancel != nil {
		var once sync.Once
		onCancel := func() { once.Do(l.cfg.OnCancel) }
		stop := context.AfterFunc(ctx, onCancel)
		defer func() {
			stop()
			if ctx.Err() != nil {
				onCancel()
			}
		}()
	}

	for {
		frame, err := l.src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		res := l.cfg.Classifier.Inspect(frame)
		if l.cfg.Metrics != nil {
			l.cfg.Metrics.RecordClassification(res)
		}

		if res.Suppressed {
			l.log.Debug("keep-alive suppressed", "symbol", res.Raw)
			continue
		}
		if res.Symbol == input.None {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		l.log.Debug("symbol", "symbol", res.Symbol, "len", len(frame))
		l.cfg.Handler.OnSymbol(res.Symbol, l.cfg.Clock.Now())
	}
}
