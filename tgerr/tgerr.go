// Package tgerr is the error taxonomy of spec.md §7: every error that
// crosses a package boundary in tgl-go is classified into one of the
// eight kinds below and carries a github.com/ansel1/merry/v2 cause, the
// same wrapping style the teacher client used for its own errors.
package tgerr

import (
	"fmt"

	"github.com/ansel1/merry/v2"
)

// Kind classifies an error per spec.md §7.
type Kind int

const (
	// Transport: connection disconnected or lost bytes. Never surfaced to
	// the host; handled by reconnect + resend.
	Transport Kind = iota
	// Handshake: bad nonce echo, bad SHA1 integrity, bad DH params, bad
	// new-nonce hash. Resets the connection and restarts the handshake.
	Handshake
	// Session: bad packet shape, bad time drift, bad SHA1 on a decrypted
	// frame. Triggers a session restart (fresh session id).
	Session
	// RPC: transient 420/500 and FLOOD_WAIT_N. Scheduled for retry.
	RPC
	// Migration: 303 errors. Switches the active DC and resends.
	Migration
	// Auth: 401 variants. Logs the client out or restarts temp auth.
	Auth
	// Protocol: nested gzip, unknown operation. Fatal for the current
	// frame only; the connection is dropped and reconnected.
	Protocol
	// Domain: 400-range errors. Propagated to the host unchanged.
	Domain
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Handshake:
		return "handshake"
	case Session:
		return "session"
	case RPC:
		return "rpc"
	case Migration:
		return "migration"
	case Auth:
		return "auth"
	case Protocol:
		return "protocol"
	case Domain:
		return "domain"
	default:
		return "unknown"
	}
}

// kindKey is the merry userInfo key used to stash a Kind on an error.
type kindKey struct{}

// Wrap classifies err as kind, wrapping it with merry so callers retain a
// stack trace and can still merry.Is against sentinels.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return merry.WrapSkipping(err, 1, merry.WithValue(kindKey{}, kind))
}

// New creates a classified error from a message.
func New(kind Kind, format string, args ...interface{}) error {
	return merry.New(fmt.Sprintf(format, args...), merry.WithValue(kindKey{}, kind))
}

// KindOf returns the Kind attached to err, or Protocol if none was attached
// (an error crossing a package boundary unclassified is itself a protocol
// bug worth flagging loudly rather than silently defaulting to Transport).
func KindOf(err error) Kind {
	if v := merry.Value(err, kindKey{}); v != nil {
		if k, ok := v.(Kind); ok {
			return k
		}
	}
	return Protocol
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RPCError is a server-reported (code, message) pair, the payload of an
// rpc_error TL object. It is the type a Query's error callback and a
// UserAgent Callback both eventually see for Domain-kind errors.
type RPCError struct {
	Code    int32
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Sentinels used across packages, in the teacher's merry.New(...) style.
var (
	ErrNoSessionData   = merry.New("no session data")
	ErrLoggingOut      = merry.New("client is logging out")
	ErrConnectionDead  = merry.New("connection is not usable")
	ErrUnknownDC       = merry.New("unknown data center id")
	ErrNestedGzip      = merry.New("nested gzip_packed is a protocol error")
	ErrBadAuthKeyID    = merry.New("auth_key_id does not match this client")
	ErrBadSessionID    = merry.New("session_id does not match the receiving session")
	ErrBadMsgKey       = merry.New("msg_key does not match SHA1 of decrypted region")
	ErrHandshakeFailed = merry.New("handshake failed")
)
