package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tplgy/tgl-go/internal/mtprototest"
	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/tlog"
	"github.com/tplgy/tgl-go/transport"
)

// fakeClient is a minimal DCClient double: every send/resend call is
// recorded, and every gate (Connected/Configured/LoggedIn/LoggingOut) is
// a plain settable field so a test can force any check_pending branch.
type fakeClient struct {
	id int

	connected, configured, loggedIn, loggingOut, authorized bool
	sessionID                                               int64

	nextMsgID int64
	sends     []tl.Object
	resends   []struct {
		msgID int64
		seqNo int32
	}
	sendErr error

	restarted     bool
	tempRestarted bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		id: 2, connected: true, configured: true, loggedIn: true,
		authorized: true, sessionID: 7, nextMsgID: 100,
	}
}

func (c *fakeClient) ID() int          { return c.id }
func (c *fakeClient) Connected() bool  { return c.connected }
func (c *fakeClient) Configured() bool { return c.configured }
func (c *fakeClient) LoggedIn() bool   { return c.loggedIn }
func (c *fakeClient) LoggingOut() bool { return c.loggingOut }
func (c *fakeClient) SessionID() int64 { return c.sessionID }
func (c *fakeClient) Authorized() bool { return c.authorized }

func (c *fakeClient) SendQuery(ctx context.Context, obj tl.Object) (int64, int64, int32, error) {
	if c.sendErr != nil {
		return 0, 0, 0, c.sendErr
	}
	c.sends = append(c.sends, obj)
	c.nextMsgID++
	return c.nextMsgID, c.sessionID, 1, nil
}

func (c *fakeClient) Resend(ctx context.Context, obj tl.Object, msgID int64, seqNo int32) error {
	c.resends = append(c.resends, struct {
		msgID int64
		seqNo int32
	}{msgID, seqNo})
	return nil
}

func (c *fakeClient) RestartAuthorization(ctx context.Context) error {
	c.restarted = true
	return nil
}

func (c *fakeClient) RestartTempAuthorization(ctx context.Context) error {
	c.tempRestarted = true
	return nil
}

// fakeHost is a minimal Host double recording every registry call.
type fakeHost struct {
	factory *mtprototest.FakeTimerFactory
	log     tlog.Logger

	active *fakeClient

	added, removed               []*Query
	addedPending, removedPending []*Query

	loginCalled        bool
	loggedOutClient    DCClient
	passwordLocked     bool
	checkPasswordCalls int
}

func newFakeHost(active *fakeClient) *fakeHost {
	return &fakeHost{
		factory: mtprototest.NewFakeTimerFactory(),
		log:     tlog.New(tlog.NoopLogHandler{}),
		active:  active,
	}
}

func (h *fakeHost) Log() tlog.Logger                    { return h.log }
func (h *fakeHost) TimerFactory() transport.TimerFactory { return h.factory }

func (h *fakeHost) AddQuery(q *Query)           { h.added = append(h.added, q) }
func (h *fakeHost) RemoveQuery(q *Query)        { h.removed = append(h.removed, q) }
func (h *fakeHost) AddPendingQuery(q *Query)    { h.addedPending = append(h.addedPending, q) }
func (h *fakeHost) RemovePendingQuery(q *Query) { h.removedPending = append(h.removedPending, q) }

func (h *fakeHost) SetActiveDC(dcID int)          { h.active.id = dcID }
func (h *fakeHost) ActiveClient() DCClient        { return h.active }
func (h *fakeHost) TransferAuthToMe(c DCClient)   {}

func (h *fakeHost) Login()                                 { h.loginCalled = true }
func (h *fakeHost) SetClientLoggedOut(c DCClient, out bool) { h.loggedOutClient = c }
func (h *fakeHost) IsPasswordLocked() bool                  { return h.passwordLocked }
func (h *fakeHost) SetPasswordLocked(v bool)                { h.passwordLocked = v }
func (h *fakeHost) CheckPassword(cb func(bool))             { h.checkPasswordCalls++; cb(true) }

// fakeHandler records every OnResult/OnError call.
type fakeHandler struct {
	results      []tl.Object
	errs         []struct {
		code int32
		msg  string
	}
	errHandled bool
}

func (h *fakeHandler) OnResult(result tl.Object) { h.results = append(h.results, result) }
func (h *fakeHandler) OnError(code int32, msg string) bool {
	h.errs = append(h.errs, struct {
		code int32
		msg  string
	}{code, msg})
	return h.errHandled
}

func TestExecuteSendsAndRegistersQuery(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "help.getConfig", tl.MsgsAck{}, handler, 0)

	q.Execute(context.Background(), client, OptionNormal)

	require.Len(t, client.sends, 1)
	require.Len(t, host.added, 1)
	require.Same(t, q, host.added[0])
	require.Equal(t, int64(101), q.MsgID())
	require.Equal(t, int64(7), q.SessionID())
}

func TestExecuteQueuesWhenDisconnected(t *testing.T) {
	client := newFakeClient()
	client.connected = false
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "messages.sendMessage", tl.MsgsAck{}, handler, 0)

	q.Execute(context.Background(), client, OptionNormal)

	require.Empty(t, client.sends)
	require.Len(t, host.addedPending, 1)
	require.Same(t, q, host.addedPending[0])
}

func TestExecuteRejectedWhileLoggingOut(t *testing.T) {
	client := newFakeClient()
	client.loggingOut = true
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "messages.sendMessage", tl.MsgsAck{}, handler, 0)

	q.Execute(context.Background(), client, OptionNormal)

	require.Empty(t, client.sends)
	require.Len(t, handler.errs, 1)
	require.Equal(t, int32(600), handler.errs[0].code)
}

func TestAckExtendsTimeout(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	q := New(host, "help.getConfig", tl.MsgsAck{}, &fakeHandler{}, 0)
	q.Execute(context.Background(), client, OptionNormal)

	require.False(t, q.AckReceived())
	require.Equal(t, initialTimeout, q.timeoutInterval())
	q.Ack()
	require.True(t, q.AckReceived())
	require.Equal(t, ackedTimeout, q.timeoutInterval())

	// a second ack is a no-op and must not panic or re-arm twice.
	q.Ack()
	require.True(t, q.AckReceived())
}

func TestAlarmSameSessionResendsIdentity(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	q := New(host, "help.getConfig", tl.MsgsAck{}, &fakeHandler{}, 0)
	q.Execute(context.Background(), client, OptionNormal)
	sentMsgID := q.MsgID()

	q.Alarm(context.Background())

	require.Len(t, client.resends, 1)
	require.Equal(t, sentMsgID, client.resends[0].msgID)
	require.Len(t, client.sends, 1) // only the original Execute send; identity was reused
}

func TestAlarmCrossSessionSendsFresh(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	q := New(host, "help.getConfig", tl.MsgsAck{}, &fakeHandler{}, 0)
	q.Execute(context.Background(), client, OptionNormal)

	// simulate a session replacement happening underneath the query.
	client.sessionID = 99

	q.Alarm(context.Background())

	require.Empty(t, client.resends)
	require.Len(t, client.sends, 2) // the original Execute send, plus a fresh resend
}

func TestHandleErrorMigrationSwitchesActiveDC(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "help.getConfig", tl.MsgsAck{}, handler, 0)
	q.Execute(context.Background(), client, OptionNormal)

	q.HandleError(303, "PHONE_MIGRATE_5")

	require.Equal(t, 5, client.id)
	require.Empty(t, handler.errs) // handled internally, not surfaced
}

func TestHandleErrorFloodWaitParsesSeconds(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "messages.sendMessage", tl.MsgsAck{}, handler, 0)
	q.Execute(context.Background(), client, OptionNormal)

	q.HandleError(420, "FLOOD_WAIT_7")

	require.Empty(t, handler.errs)
}

func TestHandleErrorUnrecognizedCodePropagatesToHandler(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "messages.sendMessage", tl.MsgsAck{}, handler, 0)
	q.Execute(context.Background(), client, OptionNormal)

	q.HandleError(403, "PRIVACY_RESTRICTED")

	require.Len(t, handler.errs, 1)
	require.Equal(t, int32(403), handler.errs[0].code)
	require.Equal(t, "PRIVACY_RESTRICTED", handler.errs[0].msg)
}

func TestHandleResultUnregistersAndDelivers(t *testing.T) {
	client := newFakeClient()
	host := newFakeHost(client)
	handler := &fakeHandler{}
	q := New(host, "help.getConfig", tl.MsgsAck{}, handler, 0)
	q.Execute(context.Background(), client, OptionNormal)

	result := tl.MsgsAck{MsgIDs: []int64{1, 2}}
	q.HandleResult(result)

	require.Len(t, handler.results, 1)
	require.Equal(t, result, handler.results[0])
	require.Len(t, host.removed, 1)
}
