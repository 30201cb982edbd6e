//go:build linux

package hci

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// HCI socket options not exported by x/sys.
const (
	solHCI        = 0
	hciDataDirOpt = 1
	hciFilterOpt  = 2
	hciCmsgDir    = 1
)

// Socket is a raw HCI socket. On the monitor channel it sees the traffic of
// every controller. On the raw channel it is bound to one controller with an
// all-pass filter, and frames are rewritten into monitor layout.
type Socket struct {
	f       *os.File
	conn    syscall.RawConn
	channel Channel
	device  uint16
	buf     []byte
	oob     []byte
	closed  atomic.Bool
}

// OpenSocket binds a raw HCI socket to device and channel. The monitor
// channel needs DevNone; the raw channel needs a controller index.
func OpenSocket(device uint16, channel Channel) (*Socket, error) {
	if err := checkBinding(device, channel); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("hci socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrHCI{Dev: device, Channel: uint16(channel)}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hci bind dev %d channel %s: %w", device, channel, err)
	}

	if channel == ChannelRaw {
		if err := setAllPassFilter(fd); err != nil {
			unix.Close(fd)
			return nil, err
		}
		if err := unix.SetsockoptInt(fd, solHCI, hciDataDirOpt, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("hci data direction: %w", err)
		}
	}

	// A nonblocking fd handed to os.NewFile joins the runtime poller, so
	// read deadlines can interrupt a blocked Read.
	f := os.NewFile(uintptr(fd), fmt.Sprintf("hci%d", device))
	conn, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hci socket: %w", err)
	}

	return &Socket{
		f:       f,
		conn:    conn,
		channel: channel,
		device:  device,
		buf:     make([]byte, maxFrame),
		oob:     make([]byte, unix.CmsgSpace(4)),
	}, nil
}

// setAllPassFilter accepts every packet type and event.
func setAllPassFilter(fd int) error {
	// struct hci_filter { u32 type_mask; u32 event_mask[2]; u16 opcode; }
	// padded to 16 bytes.
	var filter [16]byte
	binary.LittleEndian.PutUint32(filter[0:4], 0xffffffff)
	binary.LittleEndian.PutUint32(filter[4:8], 0xffffffff)
	binary.LittleEndian.PutUint32(filter[8:12], 0xffffffff)
	if err := unix.SetsockoptString(fd, solHCI, hciFilterOpt, string(filter[:])); err != nil {
		return fmt.Errorf("hci filter: %w", err)
	}
	return nil
}

// ReadFrame blocks for the next packet.
func (s *Socket) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		s.f.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		frame, err := s.next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if s.closed.Load() || errors.Is(err, os.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("hci read: %w", err)
		}
		if frame != nil {
			return frame, nil
		}
	}
}

// next returns a copy of one packet, or nil for one that should be skipped.
func (s *Socket) next() ([]byte, error) {
	if s.channel != ChannelRaw {
		n, err := s.f.Read(s.buf)
		if err != nil || n == 0 {
			return nil, err
		}
		frame := make([]byte, n)
		copy(frame, s.buf[:n])
		return frame, nil
	}

	var (
		n, oobn int
		rerr    error
	)
	err := s.conn.Read(func(fd uintptr) bool {
		n, oobn, _, _, rerr = unix.Recvmsg(int(fd), s.buf, s.oob, 0)
		return rerr != unix.EAGAIN
	})
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}

	frame, ok := monitorFrame(s.buf[:n], incoming(s.oob[:oobn]), s.device)
	if !ok {
		return nil, nil
	}
	return frame, nil
}

// incoming reads the HCI_CMSG_DIR control message. Frames without one are
// treated as outgoing.
func incoming(oob []byte) bool {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return false
	}
	for _, m := range msgs {
		if m.Header.Level == solHCI && m.Header.Type == hciCmsgDir && len(m.Data) >= 4 {
			return binary.NativeEndian.Uint32(m.Data) != 0
		}
	}
	return false
}

// Close closes the socket.
func (s *Socket) Close() error {
	s.closed.Store(true)
	return s.f.Close()
}
