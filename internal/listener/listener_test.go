package listener

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestured/internal/gesture"
	"gestured/internal/hci"
	"gestured/internal/input"
	"gestured/internal/metrics"
)

// sliceSource yields frames, then err (io.EOF if nil).
type sliceSource struct {
	frames [][]byte
	err    error
}

func (s *sliceSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frames) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error { return nil }

// blockingSource blocks until ctx is cancelled.
type blockingSource struct{}

func (blockingSource) ReadFrame(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) Close() error { return nil }

// heldSource yields frames, then blocks until ctx is cancelled.
type heldSource struct {
	frames [][]byte
}

func (s *heldSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if len(s.frames) > 0 && ctx.Err() == nil {
		f := s.frames[0]
		s.frames = s.frames[1:]
		return f, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *heldSource) Close() error { return nil }

type recordingHandler struct {
	mu   sync.Mutex
	syms []input.Symbol
}

func (h *recordingHandler) OnSymbol(sym input.Symbol, _ time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syms = append(h.syms, sym)
}

func button(op byte) []byte {
	f := make([]byte, input.ButtonFrameLen)
	f[0] = hci.PacketACLRx
	f[len(f)-2] = op
	return f
}

func volume(level byte) []byte {
	f := make([]byte, input.VolumeFrameLen)
	f[0] = hci.PacketACLRx
	f[len(f)-1] = level
	return f
}

func TestRun_ForwardsSymbolsInOrder(t *testing.T) {
	src := &sliceSource{frames: [][]byte{
		button(0x4B), // Next
		{0x05, 0x01}, // short, ignored
		volume(100),  // Up
		volume(100),  // repeat, None
		button(0x46), // Pause
		button(0x46), // keep-alive
		button(0x44), // Play
		volume(90),   // Down
		button(0x4C), // Prev
	}}
	h := &recordingHandler{}
	m := metrics.NewGesturedMetrics(metrics.NewRegistry("gestured"))

	err := New(src, Config{Handler: h, Metrics: m}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []input.Symbol{
		input.Next, input.VolumeUp, input.Pause, input.Play, input.VolumeDown, input.Prev,
	}, h.syms)

	snap := m.Registry().Snapshot()
	assert.Equal(t, uint64(9), snap["gestured_frames_read_total"])
	assert.Equal(t, uint64(6), snap["gestured_symbols_total"])
	assert.Equal(t, uint64(1), snap["gestured_keepalives_suppressed_total"])
}

func TestRun_TransportErrorIsReturned(t *testing.T) {
	boom := errors.New("device gone")
	src := &sliceSource{frames: [][]byte{button(0x4B)}, err: boom}
	h := &recordingHandler{}

	err := New(src, Config{Handler: h}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []input.Symbol{input.Next}, h.syms)
}

func TestRun_CancelUnblocksRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(blockingSource{}, Config{Handler: &recordingHandler{}}).Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_NoSymbolsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &recordingHandler{}
	src := &sliceSource{frames: [][]byte{button(0x4B)}}
	require.NoError(t, New(src, Config{Handler: h}).Run(ctx))
	assert.Empty(t, h.syms)
}

func TestRun_DrivesMatcher(t *testing.T) {
	tree := gesture.Build([]gesture.Spec{
		{Sequence: []string{"Next"}, Action: "B"},
		{Sequence: []string{"Next", "Next"}, Action: "A"},
	})

	var (
		mu  sync.Mutex
		got []string
	)
	sink := gesture.SinkFunc(func(action string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, action)
	})
	matcher := gesture.NewMatcher(tree, sink, gesture.DefaultConfig())
	defer matcher.Stop()

	src := &sliceSource{frames: [][]byte{button(0x4B), button(0x4B)}}
	require.NoError(t, New(src, Config{Handler: matcher}).Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A"}, got)
}

func TestRun_CancelStopsPendingGesture(t *testing.T) {
	tree := gesture.Build([]gesture.Spec{
		{Sequence: []string{"Next"}, Action: "B"},
		{Sequence: []string{"Next", "Next"}, Action: "A"},
	})

	var (
		mu  sync.Mutex
		got []string
	)
	sink := gesture.SinkFunc(func(action string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, action)
	})
	cfg := gesture.DefaultConfig()
	cfg.SingleDelay = 50 * time.Millisecond
	matcher := gesture.NewMatcher(tree, sink, cfg)
	defer matcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&heldSource{frames: [][]byte{button(0x4B)}}, Config{
			Handler:  matcher,
			OnCancel: matcher.Stop,
		}).Run(ctx)
	}()

	require.Eventually(t, func() bool { return matcher.Snapshot().Pending }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.False(t, matcher.Snapshot().Pending)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}

func TestRun_OnCancelNotCalledAtEOF(t *testing.T) {
	called := false
	src := &sliceSource{frames: [][]byte{button(0x4B)}}
	err := New(src, Config{
		Handler:  &recordingHandler{},
		OnCancel: func() { called = true },
	}).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, called)
}
