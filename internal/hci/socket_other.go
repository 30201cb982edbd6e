//go:build !linux

package hci

import "context"

// Socket is unavailable outside Linux.
type Socket struct{}

// OpenSocket always fails with ErrNotSupported.
func OpenSocket(device uint16, channel Channel) (*Socket, error) {
	return nil, ErrNotSupported
}

// ReadFrame always fails with ErrNotSupported.
func (s *Socket) ReadFrame(ctx context.Context) ([]byte, error) {
	return nil, ErrNotSupported
}

// Close is a no-op.
func (s *Socket) Close() error {
	return nil
}
