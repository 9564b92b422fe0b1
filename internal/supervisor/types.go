package supervisor

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("supervisor: closed")

// Phase is the lifecycle state of the backing-store connection.
type Phase int32

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Reconnecting
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// EventKind names the asynchronous transitions a driver can report.
type EventKind int

const (
	EventDropped EventKind = iota + 1
	EventRestored
)

func (k EventKind) String() string {
	switch k {
	case EventDropped:
		return "dropped"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event is sent by a driver's Watch loop.
type Event struct {
	Kind EventKind
	Err  error
}

// Driver opens the backing store and reports its health. Connect must honor
// the deadline on ctx. Watch runs until ctx is done and sends Dropped and
// Restored events as the store's availability changes.
type Driver interface {
	Connect(ctx context.Context) error
	Watch(ctx context.Context, events chan<- Event)
	Close() error
}
