// gestured - Headset button gestures for the desktop
//
// gestured listens to the Bluetooth control traffic of a headset, turns
// button presses and volume changes into symbols and runs the command bound
// to each recognised sequence:
//
//	gestured listen            Run the recogniser on the live HCI socket
//	gestured check             Validate the configuration and list gestures
//	gestured dump              Print raw frames in the replay format
//	gestured replay <file>     Feed a captured dump through the recogniser
//	gestured history           Show recently executed actions
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "listen", "daemon":
		cmdListen(args)
	case "check":
		cmdCheck(args)
	case "dump":
		cmdDump(args)
	case "replay":
		cmdReplay(args)
	case "history":
		cmdHistory(args)
	case "version", "-v", "--version":
		fmt.Printf("gestured %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`gestured - Headset button gestures

USAGE:
    gestured <command> [options]

COMMANDS:
    listen              Listen on the HCI socket and run bound actions
    check               Validate the configuration and list gestures
    dump                Print received frames (replay format)
    replay <file>       Run a frame dump through the recogniser
    history             Show recently executed actions
    version             Print the version
    help                Show this help message

CONFIGURATION:
    Searched as config.{toml,json,yaml,yml} in the current directory, then
    in $XDG_CONFIG_HOME/gestured. Override with -config <path>.

    [[gestures]]
    sequence = ["Next", "Next"]
    action = "mpris:Next"

SYMBOLS:
    Play Pause PlayPause Next Prev Up Down

Listening on the monitor channel usually needs CAP_NET_RAW or root.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
