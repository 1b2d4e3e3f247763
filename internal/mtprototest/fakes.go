// Package mtprototest holds fakes shared across internal package tests:
// an in-memory transport.Connection and a synchronously-fireable
// transport.Timer.
package mtprototest

import (
	"context"
	"sync"
	"time"

	"github.com/tplgy/tgl-go/transport"
)

// FakeConn is an in-memory transport.Connection: writes land in Sent,
// reads are served from a queue fed by Push.
type FakeConn struct {
	mu       sync.Mutex
	status   transport.Status
	Sent     [][]byte
	sentPos  int
	inbox    [][]byte
	readCond chan struct{}
	sentCond chan struct{}
	closed   bool
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		status:   transport.StatusDisconnected,
		readCond: make(chan struct{}, 1),
		sentCond: make(chan struct{}, 1),
	}
}

func (c *FakeConn) Open(ctx context.Context) error {
	c.mu.Lock()
	c.status = transport.StatusConnected
	c.mu.Unlock()
	return nil
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.status = transport.StatusDisconnected
	return nil
}

func (c *FakeConn) Status() transport.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *FakeConn) WriteFrame(ctx context.Context, data []byte) error {
	c.mu.Lock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.Sent = append(c.Sent, cp)
	c.mu.Unlock()
	select {
	case c.sentCond <- struct{}{}:
	default:
	}
	return nil
}

// NextSent blocks until a frame the peer hasn't yet consumed via NextSent
// has been written, and returns it. Lets a test drive a synchronous
// request/response exchange against code that writes then blocks reading.
func (c *FakeConn) NextSent(ctx context.Context) ([]byte, error) {
	for {
		c.mu.Lock()
		if c.sentPos < len(c.Sent) {
			f := c.Sent[c.sentPos]
			c.sentPos++
			c.mu.Unlock()
			return f, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.sentCond:
		}
	}
}

// Push enqueues a frame to be returned by a future ReadFrame call.
func (c *FakeConn) Push(data []byte) {
	c.mu.Lock()
	c.inbox = append(c.inbox, data)
	c.mu.Unlock()
	select {
	case c.readCond <- struct{}{}:
	default:
	}
}

func (c *FakeConn) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		c.mu.Lock()
		if len(c.inbox) > 0 {
			f := c.inbox[0]
			c.inbox = c.inbox[1:]
			c.mu.Unlock()
			return f, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.readCond:
		}
	}
}

// FakeTimer fires its callback synchronously when the test calls its
// FakeTimerFactory's FireAll, instead of after a real time.Duration
// elapses.
type FakeTimer struct {
	mu      sync.Mutex
	cb      transport.Callback
	running bool
	last    time.Duration
}

func NewFakeTimerFactory() *FakeTimerFactory {
	return &FakeTimerFactory{}
}

type FakeTimerFactory struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

func (f *FakeTimerFactory) NewTimer(cb transport.Callback) transport.Timer {
	t := &FakeTimer{cb: cb}
	f.mu.Lock()
	f.timers = append(f.timers, t)
	f.mu.Unlock()
	return t
}

// FireAll synchronously fires every currently-running timer, simulating a
// clock jump past every pending deadline.
func (f *FakeTimerFactory) FireAll() {
	f.mu.Lock()
	timers := append([]*FakeTimer(nil), f.timers...)
	f.mu.Unlock()
	for _, t := range timers {
		t.mu.Lock()
		running := t.running
		cb := t.cb
		t.mu.Unlock()
		if running {
			cb()
		}
	}
}

func (t *FakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.last = d
}

func (t *FakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}
