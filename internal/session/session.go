// Package session implements the worker-multiplexing and ack-batching
// layer of spec.md §3/§4.8: a session owns a primary connection worker
// plus up to three secondary workers spun up to spread outbound load,
// and batches message acknowledgements behind a short flush timer.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/tplgy/tgl-go/transport"
)

const (
	// MaxSecondaryWorkers bounds how many extra connections a session may
	// open beyond its primary, per spec.md §4.8.
	MaxSecondaryWorkers = 3
	// SecondaryWorkerIdleTimeout is how long an idle secondary worker
	// survives before its connection is closed and it is evicted.
	SecondaryWorkerIdleTimeout = 15 * time.Second
	// AckFlushInterval is how long unacknowledged inbound msg_ids are
	// batched before being flushed as a single msgs_ack.
	AckFlushInterval = 1 * time.Second
	// QuiescenceTimeout is how long a session with no outstanding work may
	// sit idle before the owning client tears it down.
	QuiescenceTimeout = 5 * time.Second
)

// Worker is one physical connection a Session can route outbound messages
// through, tracking which msg_ids are currently in flight on it.
type Worker struct {
	Connection transport.Connection
	IdleTimer  transport.Timer

	mu       sync.Mutex
	workLoad map[int64]struct{}
}

func newWorker(conn transport.Connection) *Worker {
	return &Worker{Connection: conn, workLoad: make(map[int64]struct{})}
}

func (w *Worker) addWork(msgID int64) {
	w.mu.Lock()
	w.workLoad[msgID] = struct{}{}
	w.mu.Unlock()
}

func (w *Worker) removeWork(msgID int64) (remaining int) {
	w.mu.Lock()
	delete(w.workLoad, msgID)
	remaining = len(w.workLoad)
	w.mu.Unlock()
	return remaining
}

func (w *Worker) workLoadSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.workLoad)
}

func (w *Worker) tracks(msgID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.workLoad[msgID]
	return ok
}

// Session multiplexes a logical MTProto session (a session_id, seq_no
// counter and ack batch) across its primary and secondary Workers.
type Session struct {
	SessionID int64

	factory transport.TimerFactory
	dial    func() (transport.Connection, error)

	mu                sync.Mutex
	seqNo             int32
	primary           *Worker
	secondary         []*Worker
	ackSet            []int64
	ackTimer          transport.Timer
	ackTimerRunning   bool
	quiescenceTimer   transport.Timer
	onAckFlush        func(ids []int64)
	onQuiescenceTimer func()
}

// New builds a Session bound to an already-open primary connection. dial
// is used lazily to open additional secondary connections the first time
// load-spreading calls for one.
func New(sessionID int64, primaryConn transport.Connection, factory transport.TimerFactory, dial func() (transport.Connection, error)) *Session {
	s := &Session{
		SessionID: sessionID,
		factory:   factory,
		dial:      dial,
		primary:   newWorker(primaryConn),
	}
	s.ackTimer = factory.NewTimer(s.flushAcks)
	s.quiescenceTimer = factory.NewTimer(s.fireQuiescence)
	return s
}

// OnAckFlush registers the callback invoked with the batched msg_ids when
// the ack timer fires.
func (s *Session) OnAckFlush(fn func(ids []int64)) { s.onAckFlush = fn }

// OnQuiescence registers the callback invoked when the session has had no
// outstanding work for QuiescenceTimeout.
func (s *Session) OnQuiescence(fn func()) { s.onQuiescenceTimer = fn }

// NextSeqNo returns the next outbound seq_no, per spec.md §4.5: only
// content-related messages (not bare acks or containers) carry the low
// "useful" bit, and only those advance the counter by 2 — a bare ack or
// container is sent under the current value unchanged.
func (s *Session) NextSeqNo(contentMessage bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contentMessage {
		return s.seqNo
	}
	n := s.seqNo | 1
	s.seqNo += 2
	return n
}

// SelectWorker returns the worker a new outbound message should be sent
// through, per the teacher's select_best_worker: stick to the primary
// unless allowSecondary is set and the primary is already loaded, in
// which case prefer the least-loaded existing secondary, spinning up a
// fresh one if all are busy and the cap hasn't been hit.
func (s *Session) SelectWorker(allowSecondary bool) (*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := s.primary
	if !allowSecondary {
		return best, nil
	}

	minLoad := best.workLoadSize()
	for _, w := range s.secondary {
		if l := w.workLoadSize(); l < minLoad {
			minLoad = l
			best = w
		}
	}

	if minLoad != 0 && len(s.secondary) < MaxSecondaryWorkers {
		conn, err := s.dial()
		if err != nil {
			return nil, err
		}
		w := newWorker(conn)
		w.IdleTimer = s.factory.NewTimer(func() { s.reapSecondary(w) })
		s.secondary = append(s.secondary, w)
		return w, nil
	}

	if best != s.primary {
		if best.IdleTimer != nil {
			best.IdleTimer.Stop()
		}
	}
	return best, nil
}

func (s *Session) reapSecondary(w *Worker) {
	if w.workLoadSize() > 0 {
		w.IdleTimer.Start(SecondaryWorkerIdleTimeout)
		return
	}
	w.Connection.Close()

	s.mu.Lock()
	for i, sw := range s.secondary {
		if sw == w {
			s.secondary = append(s.secondary[:i], s.secondary[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// RecordSent marks msgID as outstanding on w, for work-load accounting.
func (s *Session) RecordSent(w *Worker, msgID int64) {
	w.addWork(msgID)
}

// RecordAcked removes msgID from whichever worker is tracking it and, if
// that worker is an idle secondary, re-arms its idle reap timer.
func (s *Session) RecordAcked(msgID int64) {
	s.mu.Lock()
	workers := append([]*Worker{s.primary}, s.secondary...)
	s.mu.Unlock()

	for _, w := range workers {
		if !w.tracks(msgID) {
			continue
		}
		remaining := w.removeWork(msgID)
		if w != s.primary && remaining == 0 && w.IdleTimer != nil {
			w.IdleTimer.Start(SecondaryWorkerIdleTimeout)
		}
		return
	}
}

// QueueAck adds a received msg_id to the pending ack batch, arming the
// flush timer on the first addition to an empty batch.
func (s *Session) QueueAck(msgID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ackSet) == 0 {
		s.ackTimer.Start(AckFlushInterval)
	}
	s.ackSet = append(s.ackSet, msgID)
}

func (s *Session) flushAcks() {
	s.mu.Lock()
	ids := s.ackSet
	s.ackSet = nil
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if s.onAckFlush != nil {
		s.onAckFlush(ids)
	}
}

// Touch resets the quiescence timer, called whenever the session sends or
// receives a message.
func (s *Session) Touch() {
	s.quiescenceTimer.Start(QuiescenceTimeout)
}

func (s *Session) fireQuiescence() {
	if s.onQuiescenceTimer != nil {
		s.onQuiescenceTimer()
	}
}

// Close tears down every worker connection and stops all timers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ackTimer.Stop()
	s.quiescenceTimer.Stop()
	s.primary.Connection.Close()
	for _, w := range s.secondary {
		if w.IdleTimer != nil {
			w.IdleTimer.Stop()
		}
		w.Connection.Close()
	}
	s.secondary = nil
}
