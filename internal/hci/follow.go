package hci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow reads a dump file that another process keeps appending to, in the
// manner of tail -f. Sleep directives are ignored; frames are delivered as
// they are written.
type Follow struct {
	path    string
	f       *os.File
	rd      *bufio.Reader
	watcher *fsnotify.Watcher
	partial string
}

// OpenFollow opens path for following. When fromStart is false, existing
// content is skipped and only frames appended later are returned.
func OpenFollow(path string, fromStart bool) (*Follow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open follow: %w", err)
	}
	if !fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek follow: %w", err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so that truncate-and-recreate is seen too.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	return &Follow{
		path:    path,
		f:       f,
		rd:      bufio.NewReader(f),
		watcher: w,
	}, nil
}

// ReadFrame returns the next complete frame line, waiting for the file to
// grow when needed.
func (fl *Follow) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		s, err := fl.rd.ReadString('\n')
		fl.partial += s
		if err == nil {
			text := fl.partial
			fl.partial = ""
			l, perr := parseLine(text)
			if perr != nil {
				return nil, fmt.Errorf("follow %s: %w", fl.path, perr)
			}
			if l.frame != nil {
				return l.frame, nil
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read follow: %w", err)
		}
		if err := fl.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// wait blocks until the followed file is written or ctx ends.
func (fl *Follow) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fl.watcher.Events:
			if !ok {
				return ErrClosed
			}
			if filepath.Clean(ev.Name) != filepath.Clean(fl.path) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if err := fl.reopen(); err != nil {
					return err
				}
				return nil
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
		case err, ok := <-fl.watcher.Errors:
			if !ok {
				return ErrClosed
			}
			return fmt.Errorf("watch follow: %w", err)
		}
	}
}

func (fl *Follow) reopen() error {
	f, err := os.Open(fl.path)
	if err != nil {
		return fmt.Errorf("reopen follow: %w", err)
	}
	fl.f.Close()
	fl.f = f
	fl.rd = bufio.NewReader(f)
	fl.partial = ""
	return nil
}

// Close stops watching and closes the file.
func (fl *Follow) Close() error {
	werr := fl.watcher.Close()
	ferr := fl.f.Close()
	return errors.Join(werr, ferr)
}
