package core

// Frame is a raw encoded event.
type Frame []byte

// ConnID identifies one live real-time connection.
type ConnID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
