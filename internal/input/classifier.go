package input

// Frame shapes delivered by the control channel. The meaningful byte sits
// at a fixed offset from the end of the frame.
const (
	// ButtonFrameLen is the length of an AVRCP pass-through frame; the
	// operation id is the second to last byte.
	ButtonFrameLen = 22

	// VolumeFrameLen is the length of an absolute volume frame; the level
	// (0..127) is the last byte.
	VolumeFrameLen = 29

	// DefaultVolume is the level assumed before the first volume frame.
	DefaultVolume byte = 93
)

// AVRCP pass-through operation ids.
const (
	opPlay  byte = 0x44
	opPause byte = 0x46
	opNext  byte = 0x4B
	opPrev  byte = 0x4C
)

var buttonOps = map[byte]Symbol{
	opPlay:  Play,
	opPause: Pause,
	opNext:  Next,
	opPrev:  Prev,
}

// Transport is the last observed play/pause state of the device.
type Transport uint8

const (
	// TransportUnknown means no play or pause frame has been seen yet.
	TransportUnknown Transport = iota
	TransportPlaying
	TransportPaused
)

func (t Transport) String() string {
	switch t {
	case TransportPlaying:
		return "playing"
	case TransportPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// State is the carried classifier state.
type State struct {
	Volume    byte
	Transport Transport
}

// Result describes the classification of one frame.
type Result struct {
	// Symbol is the classified symbol after keep-alive suppression.
	Symbol Symbol
	// Raw is the symbol before suppression.
	Raw Symbol
	// Suppressed is true when Raw was a keep-alive repeat.
	Suppressed bool
}

// Classifier converts frames into symbols. It carries the last volume
// level and the last transport state between calls and is not safe for
// concurrent use.
type Classifier struct {
	state State
}

// NewClassifier returns a classifier that assumes the given starting
// volume level and an unknown transport state.
func NewClassifier(initialVolume byte) *Classifier {
	return &Classifier{state: State{Volume: initialVolume}}
}

// State returns a copy of the carried state.
func (c *Classifier) State() State {
	return c.state
}

// Classify returns the symbol for frame, or None.
func (c *Classifier) Classify(frame []byte) Symbol {
	return c.Inspect(frame).Symbol
}

// Inspect classifies frame and reports whether a keep-alive was dropped.
func (c *Classifier) Inspect(frame []byte) Result {
	raw := c.raw(frame)
	res := Result{Symbol: raw, Raw: raw}

	// Suppression reads the state from before this frame, so the first
	// play or pause after start always passes.
	switch {
	case raw == Pause && c.state.Transport == TransportPaused,
		raw == Play && c.state.Transport == TransportPlaying:
		res.Symbol = None
		res.Suppressed = true
	}

	switch raw {
	case Play:
		c.state.Transport = TransportPlaying
	case Pause:
		c.state.Transport = TransportPaused
	}

	return res
}

func (c *Classifier) raw(frame []byte) Symbol {
	switch len(frame) {
	case ButtonFrameLen:
		if sym, ok := buttonOps[frame[len(frame)-2]]; ok {
			return sym
		}
		return None
	case VolumeFrameLen:
		return c.volume(frame[len(frame)-1])
	default:
		return None
	}
}

// volume compares level against the previous one and always stores it.
func (c *Classifier) volume(level byte) Symbol {
	prev := c.state.Volume
	c.state.Volume = level

	switch {
	case level > prev:
		return VolumeUp
	case level < prev:
		return VolumeDown
	default:
		return None
	}
}
