// Package transport defines the abstract connection and timer interfaces
// internal/dcclient and internal/session drive, so the protocol state
// machine never depends on net.Conn or time.Timer directly and can be
// exercised against fakes in tests (see internal/mtprototest).
package transport

import (
	"context"
	"time"
)

// Status mirrors spec.md §6.2's connection lifecycle notifications.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection is the abstract byte-stream a dcclient.Client reads framed
// messages from and writes framed messages to. Implementations own their
// own internal buffering; Read/Write here operate on whole frames, not
// raw socket bytes, since every concrete transport (TCP-intermediate,
// TCP-abridged, ...) has its own length-prefix convention.
type Connection interface {
	// Open establishes the underlying connection.
	Open(ctx context.Context) error
	// Close tears the connection down; safe to call more than once.
	Close() error
	// WriteFrame sends data as one frame; the implementation adds its own
	// length prefix.
	WriteFrame(ctx context.Context, data []byte) error
	// ReadFrame blocks until one complete frame is available.
	ReadFrame(ctx context.Context) ([]byte, error)
	// Status reports the connection's current lifecycle state.
	Status() Status
}

// Callback func invoked when a Timer fires.
type Callback func()

// Timer is the abstract one-shot/periodic timer internal/session and
// internal/dcclient schedule ack flushes, idle reaps and keepalive pings
// against, so tests can fire them synchronously instead of sleeping.
type Timer interface {
	// Start (re)arms the timer to fire Callback after d elapses. Starting
	// an already-running timer reschedules it from now.
	Start(d time.Duration)
	// Stop disarms the timer; a no-op if it is not running.
	Stop()
}

// TimerFactory builds a Timer bound to a specific callback, letting
// internal/session and internal/dcclient stay agnostic of whatever clock
// implementation backs it (real wall clock in production, a
// manually-advanced fake in tests).
type TimerFactory interface {
	NewTimer(cb Callback) Timer
}
