// Package hci provides frame sources for the Bluetooth control channel.
//
// The live source is a raw HCI socket (Linux only). Replay and Follow read
// the textual dump format written by FormatFrame, which lets captured
// traffic be fed through the recogniser without a radio.
package hci

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Errors.
var (
	// ErrNotSupported is returned when raw HCI sockets are unavailable.
	ErrNotSupported = errors.New("hci: raw sockets not supported on this platform")
	// ErrClosed is returned by ReadFrame after Close.
	ErrClosed = errors.New("hci: source closed")
)

// PacketACLRx is the monitor channel opcode of an incoming ACL packet. The
// headset's control frames arrive as this type.
const PacketACLRx byte = 0x05

// Source produces frames in receipt order. ReadFrame blocks until a frame
// is available, returns ctx.Err() once ctx is cancelled and io.EOF when a
// finite source is exhausted. A Source is not restartable.
type Source interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Filtered drops frames whose first byte is not packetType.
type Filtered struct {
	Source
	packetType byte
	dropped    uint64
}

// Filter wraps src so that only frames of packetType are returned.
func Filter(src Source, packetType byte) *Filtered {
	return &Filtered{Source: src, packetType: packetType}
}

// ReadFrame returns the next frame that passes the filter.
func (f *Filtered) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		frame, err := f.Source.ReadFrame(ctx)
		if err != nil {
			return nil, err
		}
		if len(frame) > 0 && frame[0] == f.packetType {
			return frame, nil
		}
		f.dropped++
	}
}

// Dropped returns the number of frames rejected so far. Only the reading
// goroutine may call it.
func (f *Filtered) Dropped() uint64 {
	return f.dropped
}

// FormatFrame renders a frame in the dump format:
//
//	Read 22 bytes:
//	05 00 00 00 10 00 ...
func FormatFrame(frame []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Read %d bytes:\n", len(frame))
	for i, c := range frame {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	b.WriteByte('\n')
	return b.String()
}
