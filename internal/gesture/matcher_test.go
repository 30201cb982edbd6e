package gesture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestured/internal/input"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due callbacks outside the lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()

	for _, f := range due {
		f()
	}
}

// armed returns the callbacks of timers that have not been stopped or fired.
func (c *fakeClock) armed() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.f)
		}
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	actions []string
}

func (s *recordingSink) Run(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

func (s *recordingSink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

func newTestMatcher(t *testing.T, specs []Spec) (*Matcher, *recordingSink, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.Clock = clock
	m := NewMatcher(Build(specs), sink, cfg)
	t.Cleanup(m.Stop)
	return m, sink, clock
}

var comboSpecs = []Spec{
	{Sequence: []string{"Next", "Next"}, Action: "A"},
	{Sequence: []string{"Next"}, Action: "B"},
}

func TestMatcher_SingleWaitsForSingleDelay(t *testing.T) {
	m, sink, clock := newTestMatcher(t, comboSpecs)

	m.OnSymbol(input.Next, clock.Now())
	assert.Empty(t, sink.got())
	assert.True(t, m.Snapshot().Pending)

	clock.Advance(DefaultSingleDelay - time.Millisecond)
	assert.Empty(t, sink.got())

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"B"}, sink.got())

	snap := m.Snapshot()
	assert.False(t, snap.Pending)
	assert.Empty(t, snap.Path)
}

func TestMatcher_ComboBeatsShorterGesture(t *testing.T) {
	m, sink, clock := newTestMatcher(t, comboSpecs)

	m.OnSymbol(input.Next, clock.Now())
	clock.Advance(500 * time.Millisecond)
	m.OnSymbol(input.Next, clock.Now())

	assert.Equal(t, []string{"A"}, sink.got())

	clock.Advance(10 * DefaultComboDelay)
	assert.Equal(t, []string{"A"}, sink.got(), "the shorter gesture never fires")
}

func TestMatcher_DeepInteriorUsesComboDelay(t *testing.T) {
	m, sink, clock := newTestMatcher(t, []Spec{
		{Sequence: []string{"Up", "Up"}, Action: "double"},
		{Sequence: []string{"Up", "Up", "Up"}, Action: "triple"},
	})

	m.OnSymbol(input.VolumeUp, clock.Now())
	clock.Advance(100 * time.Millisecond)
	m.OnSymbol(input.VolumeUp, clock.Now())

	clock.Advance(DefaultSingleDelay)
	assert.Empty(t, sink.got(), "depth two waits for the combo delay")

	clock.Advance(DefaultComboDelay - DefaultSingleDelay)
	assert.Equal(t, []string{"double"}, sink.got())
}

func TestMatcher_LeafCommitsImmediately(t *testing.T) {
	m, sink, clock := newTestMatcher(t, []Spec{
		{Sequence: []string{"Prev"}, Action: "one"},
		{Sequence: []string{"Up", "Down", "Up"}, Action: "three"},
	})

	m.OnSymbol(input.Prev, clock.Now())
	assert.Equal(t, []string{"one"}, sink.got())
	assert.False(t, m.Snapshot().Pending)

	m.OnSymbol(input.VolumeUp, clock.Now())
	m.OnSymbol(input.VolumeDown, clock.Now())
	m.OnSymbol(input.VolumeUp, clock.Now())
	assert.Equal(t, []string{"one", "three"}, sink.got())
	assert.False(t, m.Snapshot().Pending)
	assert.Empty(t, clock.armed())
}

func TestMatcher_PlayPauseAlias(t *testing.T) {
	for _, sym := range []input.Symbol{input.Play, input.Pause} {
		t.Run(sym.String(), func(t *testing.T) {
			m, sink, clock := newTestMatcher(t, []Spec{{Sequence: []string{"PlayPause"}, Action: "C"}})
			m.OnSymbol(sym, clock.Now())
			assert.Equal(t, []string{"C"}, sink.got())
		})
	}
}

func TestMatcher_ExactEdgeBeatsAlias(t *testing.T) {
	m, sink, clock := newTestMatcher(t, []Spec{
		{Sequence: []string{"PlayPause"}, Action: "toggle"},
		{Sequence: []string{"Play"}, Action: "play"},
	})

	m.OnSymbol(input.Play, clock.Now())
	m.OnSymbol(input.Pause, clock.Now())
	assert.Equal(t, []string{"play", "toggle"}, sink.got())
}

func TestMatcher_AliasDoesNotApplyToOtherSymbols(t *testing.T) {
	m, sink, clock := newTestMatcher(t, []Spec{{Sequence: []string{"PlayPause"}, Action: "C"}})

	m.OnSymbol(input.Next, clock.Now())
	clock.Advance(time.Minute)
	assert.Empty(t, sink.got())
}

func TestMatcher_NoMatchAtRoot(t *testing.T) {
	m, sink, clock := newTestMatcher(t, comboSpecs)

	m.OnSymbol(input.Prev, clock.Now())
	clock.Advance(time.Minute)

	assert.Empty(t, sink.got())
	snap := m.Snapshot()
	assert.Empty(t, snap.Path)
	assert.False(t, snap.Pending)
}

func TestMatcher_BrokenSequenceIsAbandoned(t *testing.T) {
	m, sink, clock := newTestMatcher(t, comboSpecs)

	m.OnSymbol(input.Next, clock.Now())
	m.OnSymbol(input.Prev, clock.Now())
	clock.Advance(time.Minute)

	assert.Empty(t, sink.got(), "no partial action fires")

	// The breaking symbol is not retried from the root.
	m.OnSymbol(input.Next, clock.Now())
	clock.Advance(DefaultSingleDelay)
	assert.Equal(t, []string{"B"}, sink.got())
}

func TestMatcher_EmptyActionSkipsSink(t *testing.T) {
	var commits []Commit
	clock := newFakeClock()
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.Clock = clock
	cfg.OnCommit = func(c Commit) { commits = append(commits, c) }
	m := NewMatcher(Build([]Spec{
		{Sequence: []string{"Next"}, Action: ""},
		{Sequence: []string{"Next", "Prev"}, Action: "x"},
	}), sink, cfg)
	defer m.Stop()

	m.OnSymbol(input.Next, clock.Now())
	clock.Advance(DefaultSingleDelay)

	assert.Empty(t, sink.got())
	require.Len(t, commits, 1)
	assert.True(t, commits[0].Timeout)
	assert.Equal(t, "Next", commits[0].Name())
}

func TestMatcher_NoneIsIgnored(t *testing.T) {
	m, sink, clock := newTestMatcher(t, []Spec{{Sequence: []string{"Nxt"}, Action: "typo"}})

	m.OnSymbol(input.None, clock.Now())
	assert.Empty(t, sink.got())
	assert.Empty(t, m.Snapshot().Path)
}

func TestMatcher_OnTimeoutIdleIsNoop(t *testing.T) {
	m, sink, _ := newTestMatcher(t, comboSpecs)
	m.OnTimeout()
	assert.Empty(t, sink.got())
}

func TestMatcher_OnTimeoutCommitsPending(t *testing.T) {
	m, sink, clock := newTestMatcher(t, comboSpecs)

	m.OnSymbol(input.Next, clock.Now())
	m.OnTimeout()
	assert.Equal(t, []string{"B"}, sink.got())

	clock.Advance(time.Minute)
	assert.Equal(t, []string{"B"}, sink.got(), "the superseded timer is a no-op")
}

func TestMatcher_StaleTimerIsNoop(t *testing.T) {
	m, sink, clock := newTestMatcher(t, []Spec{
		{Sequence: []string{"Next"}, Action: "B"},
		{Sequence: []string{"Next", "Next", "Next"}, Action: "A"},
	})

	m.OnSymbol(input.Next, clock.Now())
	stale := clock.armed()
	require.Len(t, stale, 1)

	m.OnSymbol(input.Next, clock.Now())

	// A callback that already left the timer queue must not commit the
	// state set up by the newer symbol.
	stale[0]()
	assert.Empty(t, sink.got())
	assert.Len(t, m.Snapshot().Path, 2)
}

func TestMatcher_StopCancelsPending(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.Clock = clock
	m := NewMatcher(Build(comboSpecs), sink, cfg)

	m.OnSymbol(input.Next, clock.Now())
	pending := clock.armed()
	m.Stop()

	for _, f := range pending {
		f()
	}
	clock.Advance(time.Minute)
	m.OnSymbol(input.Next, clock.Now())
	m.OnSymbol(input.Next, clock.Now())

	assert.Empty(t, sink.got())
}

func TestMatcher_RecordsLastAdvance(t *testing.T) {
	m, _, clock := newTestMatcher(t, comboSpecs)

	at := clock.Now().Add(time.Second)
	m.OnSymbol(input.Next, at)
	assert.Equal(t, at, m.Snapshot().LastAdvance)
}

func TestMatcher_CustomDelays(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	m := NewMatcher(Build(comboSpecs), sink, Config{
		SingleDelay: 50 * time.Millisecond,
		ComboDelay:  100 * time.Millisecond,
		Clock:       clock,
	})
	defer m.Stop()

	m.OnSymbol(input.Next, clock.Now())
	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"B"}, sink.got())
}

// A timer firing at the same moment as a continuing symbol must produce
// exactly one commit for that gesture.
func TestMatcher_TimeoutRacesSymbol(t *testing.T) {
	for i := 0; i < 500; i++ {
		m, sink, clock := newTestMatcher(t, comboSpecs)

		m.OnSymbol(input.Next, clock.Now())
		pending := clock.armed()
		require.Len(t, pending, 1)

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			pending[0]()
		}()
		go func() {
			defer wg.Done()
			<-start
			m.OnSymbol(input.Next, clock.Now())
		}()
		close(start)
		wg.Wait()

		got := sink.got()
		require.Len(t, got, 1, "iteration %d: %v", i, got)
		assert.Contains(t, []string{"A", "B"}, got[0])
	}
}

func TestMatcher_WallClock(t *testing.T) {
	if testing.Short() {
		t.Skip("uses real timers")
	}

	done := make(chan string, 1)
	m := NewMatcher(Build(comboSpecs), SinkFunc(func(a string) { done <- a }), Config{
		SingleDelay: 20 * time.Millisecond,
		ComboDelay:  40 * time.Millisecond,
	})
	defer m.Stop()

	m.OnSymbol(input.Next, time.Now())

	select {
	case got := <-done:
		assert.Equal(t, "B", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never committed")
	}
}
