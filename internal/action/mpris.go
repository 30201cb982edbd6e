package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	mprisBusPrefix = "org.mpris.MediaPlayer2."
	mprisPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayer    = "org.mpris.MediaPlayer2.Player"
)

// ErrNoPlayer is returned when no MPRIS player is on the session bus.
var ErrNoPlayer = errors.New("action: no MPRIS player found")

// MPRIS calls MediaPlayer2.Player methods. The session bus connection is
// made on first use.
type MPRIS struct {
	// Player is the bus name suffix of the target player, e.g. "spotify".
	// When empty the first player found, by name, is used.
	Player string

	connect func() (*dbus.Conn, error)

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMPRIS returns an executor targeting player.
func NewMPRIS(player string) *MPRIS {
	return &MPRIS{Player: player, connect: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() }}
}

// Exec invokes method on the player. The exit code is always 0 or -1.
func (m *MPRIS) Exec(ctx context.Context, method string) (int, error) {
	if !mprisMethods[method] {
		return -1, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	conn, err := m.session()
	if err != nil {
		return -1, err
	}

	dest, err := m.destination(ctx, conn)
	if err != nil {
		return -1, err
	}

	call := conn.Object(dest, mprisPath).CallWithContext(ctx, mprisPlayer+"."+method, 0)
	if call.Err != nil {
		return -1, fmt.Errorf("mpris %s on %s: %w", method, dest, call.Err)
	}
	return 0, nil
}

func (m *MPRIS) session() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil && m.conn.Connected() {
		return m.conn, nil
	}
	conn, err := m.connect()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	m.conn = conn
	return conn, nil
}

func (m *MPRIS) destination(ctx context.Context, conn *dbus.Conn) (string, error) {
	if m.Player != "" {
		return mprisBusPrefix + m.Player, nil
	}

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return "", fmt.Errorf("list bus names: %w", err)
	}
	players := playerNames(names)
	if len(players) == 0 {
		return "", ErrNoPlayer
	}
	return players[0], nil
}

// Resolve returns the bus name mpris: actions would be sent to.
func (m *MPRIS) Resolve(ctx context.Context) (string, error) {
	conn, err := m.session()
	if err != nil {
		return "", err
	}
	return m.destination(ctx, conn)
}

// playerNames filters and sorts MPRIS bus names.
func playerNames(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, mprisBusPrefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Close drops the bus connection.
func (m *MPRIS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
