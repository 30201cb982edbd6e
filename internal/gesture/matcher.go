package gesture

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"gestured/internal/input"
)

// Default commit delays.
const (
	// DefaultSingleDelay is how long a node directly below the root waits
	// for a continuation before committing.
	DefaultSingleDelay = 800 * time.Millisecond
	// DefaultComboDelay is the wait for deeper nodes.
	DefaultComboDelay = 2000 * time.Millisecond
)

// Sink receives committed actions. Run must not block.
type Sink interface {
	Run(action string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(action string)

// Run calls f(action).
func (f SinkFunc) Run(action string) { f(action) }

// Commit describes one recognised gesture.
type Commit struct {
	Path    []input.Symbol
	Action  string
	At      time.Time
	Timeout bool
}

// Name renders the path as "Next+Next".
func (c Commit) Name() string {
	return pathName(c.Path)
}

// Config holds matcher options.
type Config struct {
	SingleDelay time.Duration
	ComboDelay  time.Duration
	Clock       Clock
	Logger      *slog.Logger
	// OnCommit, if set, is called after every commit, including commits of
	// nodes without an action.
	OnCommit func(Commit)
}

// DefaultConfig returns the stock delays and the wall clock.
func DefaultConfig() Config {
	return Config{
		SingleDelay: DefaultSingleDelay,
		ComboDelay:  DefaultComboDelay,
		Clock:       WallClock(),
	}
}

// Snapshot is a point-in-time view of the matcher.
type Snapshot struct {
	Path        []input.Symbol
	Pending     bool
	LastAdvance time.Time
}

// Matcher walks a Tree. OnSymbol and timer expiry may run on different
// goroutines; every transition happens under one lock and each armed
// timer carries a generation so that a timer that lost the race does
// nothing.
type Matcher struct {
	tree *Tree
	sink Sink
	cfg  Config
	log  *slog.Logger

	mu          sync.Mutex
	current     *Node
	path        []input.Symbol
	lastAdvance time.Time
	timer       Timer
	gen         uint64
	stopped     bool
}

// NewMatcher returns a matcher positioned at the root of tree.
func NewMatcher(tree *Tree, sink Sink, cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.SingleDelay <= 0 {
		cfg.SingleDelay = def.SingleDelay
	}
	if cfg.ComboDelay <= 0 {
		cfg.ComboDelay = def.ComboDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Matcher{
		tree:    tree,
		sink:    sink,
		cfg:     cfg,
		log:     log,
		current: tree.Root(),
	}
}

// OnSymbol advances the walk by one symbol received at now.
func (m *Matcher) OnSymbol(sym input.Symbol, now time.Time) {
	if sym == input.None {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.cancelLocked()

	next := m.current.Child(sym)
	if next == nil && sym.IsTransport() {
		next = m.current.Child(input.PlayPause)
	}

	var commit *Commit
	switch {
	case next == nil:
		if !m.current.IsRoot() {
			m.log.Debug("sequence broken", "path", pathName(m.path), "symbol", sym)
		}
		m.resetLocked()
	case next.IsLeaf():
		c := Commit{Path: append(m.path, next.Symbol), Action: next.Action, At: now}
		commit = &c
		m.resetLocked()
	default:
		m.current = next
		m.path = append(m.path, next.Symbol)
		m.armLocked(m.delayFor(next))
	}
	m.lastAdvance = now
	m.mu.Unlock()

	if commit != nil {
		m.commit(*commit)
	}
}

// OnTimeout commits the current node if a deadline is pending. It is a
// no-op when the walk is idle at the root.
func (m *Matcher) OnTimeout() {
	m.mu.Lock()
	c, ok := m.expireLocked()
	m.mu.Unlock()
	if ok {
		m.commit(c)
	}
}

// Stop cancels any pending deadline without committing and makes the
// matcher ignore further input.
func (m *Matcher) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
	m.resetLocked()
	m.stopped = true
}

// Snapshot returns the current walk state.
func (m *Matcher) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := make([]input.Symbol, len(m.path))
	copy(path, m.path)
	return Snapshot{Path: path, Pending: m.timer != nil, LastAdvance: m.lastAdvance}
}

// delayFor picks the deadline for an interior node.
func (m *Matcher) delayFor(n *Node) time.Duration {
	if n.Depth == 1 {
		return m.cfg.SingleDelay
	}
	return m.cfg.ComboDelay
}

func (m *Matcher) armLocked(d time.Duration) {
	gen := m.gen
	m.timer = m.cfg.Clock.AfterFunc(d, func() { m.expire(gen) })
}

// cancelLocked stops the pending timer and invalidates its generation.
func (m *Matcher) cancelLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Matcher) resetLocked() {
	m.current = m.tree.Root()
	m.path = nil
}

func (m *Matcher) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	c, ok := m.expireLocked()
	m.mu.Unlock()
	if ok {
		m.commit(c)
	}
}

func (m *Matcher) expireLocked() (Commit, bool) {
	if m.stopped || m.timer == nil {
		return Commit{}, false
	}
	c := Commit{
		Path:    m.path,
		Action:  m.current.Action,
		At:      m.cfg.Clock.Now(),
		Timeout: true,
	}
	m.timer = nil
	m.gen++
	m.resetLocked()
	return c, true
}

// commit runs outside the lock.
func (m *Matcher) commit(c Commit) {
	if c.Action != "" {
		m.log.Info("gesture recognized", "gesture", c.Name(), "action", c.Action, "timeout", c.Timeout)
		m.sink.Run(c.Action)
	} else {
		m.log.Debug("gesture recognized without action", "gesture", c.Name())
	}
	if m.cfg.OnCommit != nil {
		m.cfg.OnCommit(c)
	}
}

func pathName(path []input.Symbol) string {
	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.String()
	}
	return strings.Join(parts, "+")
}
