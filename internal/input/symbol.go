// Package input turns raw headset control frames into button symbols.
//
// Headphones report button presses over the Bluetooth control channel as
// AVRCP pass-through frames and report volume as an absolute level. The
// Classifier maps both onto a small closed set of Symbols and drops the
// keep-alive repeats some devices send while idle.
package input

// Symbol is one semantically classified input event.
type Symbol uint8

// Symbols. None is the zero value and never advances a gesture.
const (
	None Symbol = iota
	Play
	Pause
	PlayPause
	Next
	Prev
	VolumeUp
	VolumeDown
)

// symbolNames holds the configuration spelling of each symbol.
var symbolNames = [...]string{
	None:       "None",
	Play:       "Play",
	Pause:      "Pause",
	PlayPause:  "PlayPause",
	Next:       "Next",
	Prev:       "Prev",
	VolumeUp:   "Up",
	VolumeDown: "Down",
}

// Symbols lists every actionable symbol in declaration order.
func Symbols() []Symbol {
	return []Symbol{Play, Pause, PlayPause, Next, Prev, VolumeUp, VolumeDown}
}

// String returns the configuration name of the symbol.
func (s Symbol) String() string {
	if int(s) < len(symbolNames) {
		return symbolNames[s]
	}
	return "None"
}

// ParseSymbol maps a configuration name onto a Symbol. Names are case
// sensitive. Unknown names yield None and false.
func ParseSymbol(name string) (Symbol, bool) {
	switch name {
	case "Play":
		return Play, true
	case "Pause":
		return Pause, true
	case "PlayPause":
		return PlayPause, true
	case "Next":
		return Next, true
	case "Prev":
		return Prev, true
	case "Up", "VolumeUp":
		return VolumeUp, true
	case "Down", "VolumeDown":
		return VolumeDown, true
	default:
		return None, false
	}
}

// IsTransport reports whether s is one of the concrete play or pause
// symbols that a PlayPause binding also accepts.
func (s Symbol) IsTransport() bool {
	return s == Play || s == Pause
}
