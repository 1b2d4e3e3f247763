// Package query implements the per-RPC lifecycle of spec.md §4.7: send,
// ack, alarm-driven resend/timeout, and the 303/401/420/500 error
// recovery table, grounded on the original tgl-library's query class
// (_examples/original_source/src/query/query.{h,cpp}).
package query

import (
	"context"
	"sync"
	"time"

	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/tlog"
	"github.com/tplgy/tgl-go/transport"
)

// ExecOption mirrors query::execution_option: it tells a Query which
// pending-gate checks it may bypass and how handle_error should react to
// a few auth-adjacent error codes.
type ExecOption int

const (
	OptionNormal ExecOption = iota
	OptionLogin
	OptionLogout
	OptionForce
)

func (o ExecOption) isForce() bool  { return o == OptionForce }
func (o ExecOption) isLogin() bool  { return o == OptionLogin }
func (o ExecOption) isLogout() bool { return o == OptionLogout }

// initialTimeout/ackedTimeout are query::timeout_interval()'s two values:
// a query waits longer for a reply once the server has at least acked it.
const (
	initialTimeout = 12 * time.Second
	ackedTimeout   = 24 * time.Second
)

// DCClient is the subset of dcclient.Client a Query drives requests
// through. It is an interface (rather than a concrete dependency) so
// internal/query has no import cycle back to internal/dcclient and so
// tests can substitute a fake.
type DCClient interface {
	ID() int
	Connected() bool
	Configured() bool
	LoggedIn() bool
	LoggingOut() bool
	SessionID() int64
	Authorized() bool
	SendQuery(ctx context.Context, obj tl.Object) (msgID, sessionID int64, seqNo int32, err error)
	Resend(ctx context.Context, obj tl.Object, msgID int64, seqNo int32) error
	RestartAuthorization(ctx context.Context) error
	RestartTempAuthorization(ctx context.Context) error
}

// Host is the owning user agent's side of the observer relationship
// query.cpp's query keeps via a weak_ptr<user_agent>: registering
// in-flight/pending queries, and the cross-DC/auth operations a handful
// of error codes trigger. A plain interface (rather than C++'s weak_ptr
// dance) is the idiomatic Go substitute here: Go's GC already makes a
// Query->Host pointer safe to hold without the original's manual
// lifetime workaround.
type Host interface {
	Log() tlog.Logger
	TimerFactory() transport.TimerFactory

	AddQuery(q *Query)
	RemoveQuery(q *Query)
	AddPendingQuery(q *Query)
	RemovePendingQuery(q *Query)

	// SetActiveDC switches which DC is considered primary, and
	// ActiveClient returns its DCClient, per a 303 migration.
	SetActiveDC(dcID int)
	ActiveClient() DCClient
	TransferAuthToMe(c DCClient)

	// Login-state recovery for 401 errors.
	Login()
	SetClientLoggedOut(c DCClient, loggedOut bool)
	IsPasswordLocked() bool
	SetPasswordLocked(bool)
	CheckPassword(cb func(success bool))
}

// Handler receives a Query's outcome. OnError returns true if it handled
// the error itself (query.cpp's on_error return value silences further
// generic logging of the error).
type Handler interface {
	OnResult(result tl.Object)
	OnError(errorCode int32, errorMessage string) bool
}

// Optional Handler extension points, matching query.h's overridable
// virtuals. A Handler that doesn't implement one of these gets the
// documented default.
type timeoutHandler interface{ OnTimeout() }
type retryOnTimeoutHandler interface{ ShouldRetryOnTimeout() bool }
type retryAfterErrorHandler interface{ ShouldRetryAfterRecoverFromError() bool }
type willSendHandler interface{ WillSend() }
type sentHandler interface{ Sent() }
type willBePendingHandler interface{ WillBePending() }

// Query is one in-flight (or pending, or retrying) RPC, per spec.md
// §4.7. The zero value is not usable; build one with New.
type Query struct {
	host    Host
	name    string
	body    tl.Object
	handler Handler

	msgIDOverride int64

	mu         sync.Mutex
	client     DCClient
	execOption ExecOption
	msgID      int64
	sessionID  int64
	seqNo      int32
	ackReceived bool

	timer      transport.Timer
	retryTimer transport.Timer
}

// New builds a Query for body, named name for logging (e.g.
// "messages.sendMessage"), to be driven through handler's callbacks.
// msgIDOverride, if nonzero, is what MsgID reports in place of the msg_id
// the last send was assigned; the send itself still goes out under the
// msg_id the DC client assigns.
func New(host Host, name string, body tl.Object, handler Handler, msgIDOverride int64) *Query {
	return &Query{
		host:          host,
		name:          name,
		body:          body,
		handler:       handler,
		msgIDOverride: msgIDOverride,
	}
}

// MsgID reports the override if one was set, else the last msg_id this
// query was actually sent under.
func (q *Query) MsgID() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.msgIDOverride != 0 {
		return q.msgIDOverride
	}
	return q.msgID
}

// SessionID reports which session this query's last send went out under.
func (q *Query) SessionID() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sessionID
}

// Client reports which DCClient this query last sent (or was queued to
// send) through, so a Host can key its pending-query registry by
// (client, msg_id) instead of msg_id alone. Nil until the first Execute.
func (q *Query) Client() DCClient {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.client
}

// AckReceived reports whether the server has acked this query's current
// msg_id (spec.md §4.7's ack()-driven timeout extension).
func (q *Query) AckReceived() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ackReceived
}

func (q *Query) timeoutInterval() time.Duration {
	if q.AckReceived() {
		return ackedTimeout
	}
	return initialTimeout
}

// isInTheSameSession reports whether this query's recorded session_id
// still matches its client's current session, per
// query::is_in_the_same_session. A session replacement (reconnect, new
// session_id) makes q's in-flight identity stale.
func (q *Query) isInTheSameSession() bool {
	q.mu.Lock()
	client, sid := q.client, q.sessionID
	q.mu.Unlock()
	return client != nil && sid != 0 && client.SessionID() == sid
}

// clearTimers cancels both the timeout and retry timers, per
// query::clear_timers.
func (q *Query) clearTimers() {
	q.mu.Lock()
	timer, retryTimer := q.timer, q.retryTimer
	q.timer, q.retryTimer = nil, nil
	q.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	if retryTimer != nil {
		retryTimer.Stop()
	}
}

func (q *Query) timeoutWithin(d time.Duration) {
	q.mu.Lock()
	if q.timer == nil {
		q.timer = q.host.TimerFactory().NewTimer(func() { q.timeoutAlarm(context.Background()) })
	}
	timer := q.timer
	q.mu.Unlock()
	timer.Start(d)
}

func (q *Query) retryWithin(d time.Duration) {
	q.mu.Lock()
	if q.retryTimer == nil {
		q.retryTimer = q.host.TimerFactory().NewTimer(func() { q.Alarm(context.Background()) })
	}
	timer := q.retryTimer
	q.mu.Unlock()
	timer.Start(d)
}

// checkLoggingOut reports whether the query may proceed: a DC mid-logout
// refuses every query except the logout itself (or one marked Force),
// per query::check_logging_out.
func (q *Query) checkLoggingOut() bool {
	q.mu.Lock()
	client, opt := q.client, q.execOption
	q.mu.Unlock()
	if client != nil && client.LoggingOut() && !opt.isForce() {
		q.reportError(600, "LOGGING_OUT")
		return false
	}
	return true
}

// checkPending reports whether the query may send now, queuing it on the
// host's pending list instead (and returning false) if the DC isn't
// ready yet, per query::check_pending. transferAuth mirrors the
// transfer_auth parameter execute() passes but execute_after_pending
// doesn't.
func (q *Query) checkPending(transferAuth bool) bool {
	q.mu.Lock()
	client, opt := q.client, q.execOption
	q.mu.Unlock()

	pending := !client.Connected()
	if !client.Configured() && !opt.isForce() {
		pending = true
	}
	if !client.LoggedIn() && !opt.isLogin() && !opt.isForce() {
		pending = true
		if transferAuth {
			q.host.TransferAuthToMe(client)
		}
	}

	if pending {
		if h, ok := q.handler.(willBePendingHandler); ok {
			h.WillBePending()
		}
		q.host.AddPendingQuery(q)
		q.host.Log().Debug("added query %q (msg_id=%d) to pending list", q.name, q.MsgID())
		return false
	}
	return true
}

// send transmits the query's body over q.client, per query::send.
func (q *Query) send(ctx context.Context) bool {
	q.mu.Lock()
	client := q.client
	q.ackReceived = false
	q.mu.Unlock()

	if h, ok := q.handler.(willSendHandler); ok {
		h.WillSend()
	}

	q.host.Log().Debug("sending query %q to DC %d", q.name, client.ID())

	msgID, sessionID, seqNo, err := client.SendQuery(ctx, q.body)
	if err != nil {
		q.host.Log().Error(err, "client failed to send message")
		q.HandleError(400, "client failed to send message")
		return false
	}

	q.mu.Lock()
	q.msgID, q.sessionID, q.seqNo = msgID, sessionID, seqNo
	q.mu.Unlock()

	q.host.AddQuery(q)
	q.timeoutWithin(q.timeoutInterval())

	if h, ok := q.handler.(sentHandler); ok {
		h.Sent()
	}
	return true
}

// Execute begins a fresh query against client, per query::execute.
func (q *Query) Execute(ctx context.Context, client DCClient, option ExecOption) {
	q.mu.Lock()
	q.client = client
	q.execOption = option
	q.mu.Unlock()

	if !q.checkLoggingOut() {
		return
	}
	if !q.checkPending(true) {
		return
	}
	q.send(ctx)
}

// ExecuteAfterPending retries sending a query the host pulled back off
// its pending list, per query::execute_after_pending. It returns false
// only if the query is (still) pending.
func (q *Query) ExecuteAfterPending(ctx context.Context) bool {
	if !q.checkLoggingOut() {
		return true
	}
	if !q.checkPending(false) {
		return false
	}
	q.send(ctx)
	return true
}

// Ack records the server's ack of this query's current msg_id, per
// query::ack. Acking extends the timeout from 12s to 24s since the
// server is now known to have the request, just not yet an answer.
func (q *Query) Ack() {
	q.mu.Lock()
	if q.ackReceived {
		q.mu.Unlock()
		return
	}
	q.ackReceived = true
	q.mu.Unlock()

	q.timeoutWithin(ackedTimeout)
}

// Alarm resends the query, either under its original (msg_id, seq_no)
// via DCClient.Resend if the owning session hasn't changed, or as a fresh
// send if it has, per query::alarm. Same-session reuses the identity so
// the server can dedupe (sent as a plain message, not wrapped in a
// msg_container); cross-session can't reuse an identity the now-dead
// session never saw, so it sends under a new msg_id.
func (q *Query) Alarm(ctx context.Context) {
	q.clearTimers()

	q.mu.Lock()
	msgID, client := q.msgID, q.client
	q.mu.Unlock()
	if msgID != 0 {
		q.host.RemoveQuery(q)
	}

	if !q.checkLoggingOut() {
		return
	}
	if !q.checkPending(false) {
		return
	}

	if q.isInTheSameSession() {
		q.mu.Lock()
		oldMsgID, oldSeqNo := q.msgID, q.seqNo
		q.mu.Unlock()
		if err := client.Resend(ctx, q.body, oldMsgID, oldSeqNo); err != nil {
			q.HandleError(400, "client failed to resend message")
			return
		}
		q.host.AddQuery(q)
		q.timeoutWithin(q.timeoutInterval())
		q.host.Log().Info("resent query %q (msg_id=%d) to DC %d", q.name, oldMsgID, client.ID())
		return
	}

	oldMsgID := msgID
	if !q.send(ctx) {
		return
	}
	q.host.Log().Info("resent query %q as msg_id=%d (was %d) to DC %d", q.name, q.MsgID(), oldMsgID, client.ID())
}

// Regen marks this query for a fresh retry attempt, per query::regen: if
// the query has left its original session (or the DC isn't configured
// and the query can't force past that), its session_id is cleared so
// Alarm's same-session check can't spuriously succeed against a session
// the query never actually ran under.
func (q *Query) Regen() {
	q.mu.Lock()
	q.ackReceived = false
	client, opt := q.client, q.execOption
	sameSession := q.isInTheSameSessionLocked()
	if !sameSession || (!client.Configured() && !opt.isForce()) {
		q.sessionID = 0
	}
	q.mu.Unlock()
	q.retryWithin(0)
}

// isInTheSameSessionLocked is isInTheSameSession without re-acquiring
// q.mu, for callers that already hold it.
func (q *Query) isInTheSameSessionLocked() bool {
	return q.client != nil && q.sessionID != 0 && q.client.SessionID() == q.sessionID
}

// timeoutAlarm fires when a sent query's deadline elapses with no
// answer, per query::timeout_alarm.
func (q *Query) timeoutAlarm(ctx context.Context) {
	q.clearTimers()

	if h, ok := q.handler.(timeoutHandler); ok {
		h.OnTimeout()
	}

	retry := true
	if h, ok := q.handler.(retryOnTimeoutHandler); ok {
		retry = h.ShouldRetryOnTimeout()
	}

	if !retry {
		if q.MsgID() != 0 {
			q.host.RemoveQuery(q)
		}
		q.host.RemovePendingQuery(q)
		return
	}
	q.Alarm(ctx)
}

// reportError invokes the handler's OnError without going through the
// classification table in HandleError; used for the LOGGING_OUT
// rejection. Failed local sends go through HandleError(400, ...) instead.
func (q *Query) reportError(code int32, message string) {
	q.handler.OnError(code, message)
}

// HandleResult finishes the query successfully: its timers are
// cancelled, it's unregistered from the host, and its handler is handed
// the decoded result, per query::handle_result (the gzip_packed-unwrap
// and raw TL-skip bookkeeping in the original are the internal/tl
// decoder's job in this port, not this method's).
func (q *Query) HandleResult(result tl.Object) {
	q.clearTimers()
	q.host.RemoveQuery(q)
	q.handler.OnResult(result)
}

// HandleError runs the 303/400/401/403/404/420/500 recovery table of
// query::handle_error, scheduling a retry when the error class warrants
// one and the query's own ShouldRetryAfterRecoverFromError permits it.
func (q *Query) HandleError(errorCode int32, errorMessage string) {
	q.clearTimers()

	if q.MsgID() != 0 {
		q.host.RemoveQuery(q)
	}

	retrySeconds := 0
	shouldRetry := false
	errorHandled := false

	shouldRetryAfterRecover := func() bool {
		if h, ok := q.handler.(retryAfterErrorHandler); ok {
			return h.ShouldRetryAfterRecoverFromError()
		}
		return true
	}

	switch {
	case errorCode == 303:
		if dc, ok := parseMigrationDC(errorMessage); ok && dc > 0 && dc < maxDCID {
			q.host.Log().Info("trying to handle migration error of %s", errorMessage)
			q.host.SetActiveDC(dc)
			newClient := q.host.ActiveClient()

			if !newClient.Authorized() {
				go newClient.RestartAuthorization(context.Background())
			}

			q.mu.Lock()
			q.ackReceived = false
			q.sessionID = 0
			q.client = newClient
			isLogin := q.execOption.isLogin()
			q.mu.Unlock()

			if shouldRetryAfterRecover() || isLogin {
				shouldRetry = true
			}
			errorHandled = true
		}

	case errorCode == 400:
		// bad user input; nothing to recover.

	case errorCode == 401:
		switch errorMessage {
		case "SESSION_PASSWORD_NEEDED":
			if !q.host.IsPasswordLocked() {
				q.host.SetPasswordLocked(true)
				q.host.CheckPassword(func(success bool) {
					// Password entry is an application-level flow this
					// port leaves to the host Callback
					// (spec.md §6.3); nothing further to do here once
					// it resolves.
				})
			}
			if shouldRetryAfterRecover() {
				shouldRetry = true
			}
			errorHandled = true

		case "AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID":
			q.mu.Lock()
			client := q.client
			q.mu.Unlock()
			q.host.SetClientLoggedOut(client, true)
			q.host.Login()
			if shouldRetryAfterRecover() {
				shouldRetry = true
			}
			errorHandled = true

		case "AUTH_KEY_PERM_EMPTY":
			q.mu.Lock()
			client := q.client
			q.mu.Unlock()
			go client.RestartTempAuthorization(context.Background())
			if shouldRetryAfterRecover() {
				shouldRetry = true
			}
			errorHandled = true
		}

	case errorCode == 403, errorCode == 404:
		// privacy violation / not found: nothing to recover.

	default: // 420, 500, and anything else is treated as a possibly transient failure.
		retrySeconds = parseFloodWaitSeconds(errorMessage)
		q.mu.Lock()
		q.ackReceived = false
		client, opt := q.client, q.execOption
		if !client.Configured() && !opt.isForce() {
			q.sessionID = 0
		}
		q.mu.Unlock()
		if shouldRetryAfterRecover() {
			shouldRetry = true
			errorHandled = true
		}
	}

	if shouldRetry {
		q.retryWithin(time.Duration(retrySeconds) * time.Second)
	}

	if errorHandled {
		q.host.Log().Info("error for query %q: %d %s (handled)", q.name, errorCode, errorMessage)
		return
	}

	q.handler.OnError(errorCode, errorMessage)
}
