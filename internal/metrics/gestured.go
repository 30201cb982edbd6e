package metrics

import (
	"gestured/internal/action"
	"gestured/internal/gesture"
	"gestured/internal/input"
)

// GesturedMetrics holds the daemon's counters.
type GesturedMetrics struct {
	registry *Registry

	FramesRead        *Counter
	FramesFiltered    *Counter
	KeepAlives        *Counter
	Symbols           *Counter
	GesturesCommitted *Counter
	GestureTimeouts   *Counter
	ActionsRun        *Counter
	ActionsFailed     *Counter
	ActionDuration    *Histogram
}

// NewGesturedMetrics registers the daemon's metrics on registry.
func NewGesturedMetrics(registry *Registry) *GesturedMetrics {
	return &GesturedMetrics{
		registry:          registry,
		FramesRead:        registry.RegisterCounter("frames_read_total", "Frames read from the source"),
		FramesFiltered:    registry.RegisterCounter("frames_filtered_total", "Frames dropped by the packet type filter"),
		KeepAlives:        registry.RegisterCounter("keepalives_suppressed_total", "Play or pause repeats dropped as keep-alives"),
		Symbols:           registry.RegisterCounter("symbols_total", "Frames classified as an actionable symbol"),
		GesturesCommitted: registry.RegisterCounter("gestures_committed_total", "Recognised gestures"),
		GestureTimeouts:   registry.RegisterCounter("gesture_timeouts_total", "Gestures committed by deadline"),
		ActionsRun:        registry.RegisterCounter("actions_total", "Actions executed"),
		ActionsFailed:     registry.RegisterCounter("actions_failed_total", "Actions that failed or exited non-zero"),
		ActionDuration:    registry.RegisterHistogram("action_duration_seconds", "Action execution time", DurationBuckets),
	}
}

// Registry returns the underlying registry.
func (m *GesturedMetrics) Registry() *Registry {
	return m.registry
}

// RecordClassification counts one classified frame.
func (m *GesturedMetrics) RecordClassification(r input.Result) {
	m.FramesRead.Inc()
	if r.Suppressed {
		m.KeepAlives.Inc()
	}
	if r.Symbol != input.None {
		m.Symbols.Inc()
	}
}

// RecordCommit is a gesture.Config.OnCommit hook.
func (m *GesturedMetrics) RecordCommit(c gesture.Commit) {
	m.GesturesCommitted.Inc()
	if c.Timeout {
		m.GestureTimeouts.Inc()
	}
}

// RecordResult is an action.Config.OnResult hook.
func (m *GesturedMetrics) RecordResult(r action.Result) {
	m.ActionsRun.Inc()
	if !r.OK() {
		m.ActionsFailed.Inc()
	}
	m.ActionDuration.ObserveDuration(r.Duration)
}
