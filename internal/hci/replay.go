package hci

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// line is one parsed dump line. At most one field is set.
type line struct {
	frame []byte
	sleep time.Duration
}

// parseLine understands:
//
//	# comment
//	Read 22 bytes:
//	sleep 900ms
//	05 00 1a ...
func parseLine(s string) (line, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "", strings.HasPrefix(s, "#"), strings.HasPrefix(s, "Read "):
		return line{}, nil
	case strings.HasPrefix(s, "sleep "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "sleep ")))
		if err != nil {
			return line{}, fmt.Errorf("bad sleep directive: %w", err)
		}
		return line{sleep: d}, nil
	}

	frame, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return line{}, fmt.Errorf("bad frame: %w", err)
	}
	return line{frame: frame}, nil
}

// Replay reads frames from a dump. Sleep directives pause the replay so
// that gesture timing is reproduced.
type Replay struct {
	scanner *bufio.Scanner
	closer  io.Closer
	lineNo  int
	closed  bool
}

// NewReplay reads a dump from r.
func NewReplay(r io.Reader) *Replay {
	rp := &Replay{scanner: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		rp.closer = c
	}
	return rp
}

// OpenReplay opens a dump file.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReplay(f), nil
}

// ReadFrame returns the next frame, or io.EOF at the end of the dump.
func (r *Replay) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		if r.closed {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read replay: %w", err)
			}
			return nil, io.EOF
		}
		r.lineNo++

		l, err := parseLine(r.scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("replay line %d: %w", r.lineNo, err)
		}
		if l.sleep > 0 {
			if err := sleep(ctx, l.sleep); err != nil {
				return nil, err
			}
			continue
		}
		if l.frame != nil {
			return l.frame, nil
		}
	}
}

// Close releases the underlying reader if it is closable.
func (r *Replay) Close() error {
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
