package hci

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Channel selects the HCI socket channel.
type Channel uint16

// Channels.
const (
	ChannelRaw     Channel = 0
	ChannelMonitor Channel = 2
)

// DevNone binds to no particular controller. The monitor channel requires it
// and the raw channel rejects it.
const DevNone uint16 = 0xffff

const maxFrame = 2048

// checkBinding rejects device and channel pairs the kernel would either
// refuse or bind to no traffic.
func checkBinding(device uint16, channel Channel) error {
	switch {
	case channel == ChannelMonitor && device != DevNone:
		return fmt.Errorf("hci: monitor channel needs device %d, got %d", DevNone, device)
	case channel == ChannelRaw && device == DevNone:
		return errors.New("hci: raw channel needs a controller index")
	}
	return nil
}

// ParseChannel accepts "raw" or "monitor".
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "raw":
		return ChannelRaw, nil
	case "monitor", "":
		return ChannelMonitor, nil
	default:
		return 0, fmt.Errorf("hci: unknown channel %q", s)
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelRaw:
		return "raw"
	case ChannelMonitor:
		return "monitor"
	default:
		return fmt.Sprintf("channel(%d)", uint16(c))
	}
}

// H4 packet indicators, the first byte of a raw channel frame.
const (
	h4Command byte = 0x01
	h4ACL     byte = 0x02
	h4SCO     byte = 0x03
	h4Event   byte = 0x04
)

// Monitor channel opcodes.
const (
	monitorCommand byte = 0x02
	monitorEvent   byte = 0x03
	monitorACLTx   byte = 0x04
	monitorACLRx   byte = PacketACLRx
	monitorSCOTx   byte = 0x06
	monitorSCORx   byte = 0x07
)

// monitorHeaderLen is opcode, controller index and payload length, each a
// little-endian uint16.
const monitorHeaderLen = 6

// monitorFrame rewrites a raw channel frame (H4 indicator then payload)
// into the monitor channel layout, so both channels feed the classifier the
// same frame shapes. It reports false for packet types the monitor channel
// has no opcode for.
func monitorFrame(raw []byte, incoming bool, index uint16) ([]byte, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var op byte
	switch raw[0] {
	case h4Command:
		op = monitorCommand
	case h4Event:
		op = monitorEvent
	case h4ACL:
		op = monitorACLTx
		if incoming {
			op = monitorACLRx
		}
	case h4SCO:
		op = monitorSCOTx
		if incoming {
			op = monitorSCORx
		}
	default:
		return nil, false
	}

	payload := raw[1:]
	frame := make([]byte, monitorHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(frame[0:2], uint16(op))
	binary.LittleEndian.PutUint16(frame[2:4], index)
	binary.LittleEndian.PutUint16(frame[4:6], uint16(len(payload)))
	copy(frame[monitorHeaderLen:], payload)
	return frame, true
}
