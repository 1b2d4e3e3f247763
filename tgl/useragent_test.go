package tgl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tplgy/tgl-go/internal/dcclient"
	"github.com/tplgy/tgl-go/internal/query"
	"github.com/tplgy/tgl-go/internal/rsakey"
	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/internal/updater"
	"github.com/tplgy/tgl-go/transport"
)

const waitTimeout = time.Second
const waitTick = time.Millisecond

// failDial is a dcclient dialer that's never expected to actually run in
// these tests: every Client built with it stays unauthorized, which is
// enough to exercise UserAgent's bookkeeping without a real network.
func failDial() (transport.Connection, error) {
	return nil, errors.New("dial not expected in this test")
}

func newTestClient() *dcclient.Client {
	c := dcclient.New(failDial, transport.RealTimerFactory{}, rsakey.NewRegistry(), dcclient.Callbacks{})
	return c
}

// fakeCallback records every Callback notification it receives; embedding
// NopCallback means only the methods a given test cares about need an
// override.
type fakeCallback struct {
	NopCallback

	mu          sync.Mutex
	dcUpdated   []int
	activeDC    []int
	ourID       []int64
	pts         []int32
	qts         []int32
	date        []int32
	newMessages [][]tl.Object
	connStatus  []bool
}

func (f *fakeCallback) DCUpdated(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dcUpdated = append(f.dcUpdated, id)
}

func (f *fakeCallback) ActiveDCChanged(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeDC = append(f.activeDC, id)
}

func (f *fakeCallback) OurID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ourID = append(f.ourID, id)
}

func (f *fakeCallback) PtsChanged(pts int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pts = append(f.pts, pts)
}

func (f *fakeCallback) QtsChanged(qts int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qts = append(f.qts, qts)
}

func (f *fakeCallback) DateChanged(date int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.date = append(f.date, date)
}

func (f *fakeCallback) NewMessages(objs []tl.Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newMessages = append(f.newMessages, objs)
}

func (f *fakeCallback) ConnectionStatusChanged(_ int, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connStatus = append(f.connStatus, connected)
}

func (f *fakeCallback) snapshot() fakeCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeCallback{
		dcUpdated: append([]int(nil), f.dcUpdated...),
		activeDC:  append([]int(nil), f.activeDC...),
	}
}

// noopHandler is a minimal query.Handler for tests that only need a
// *query.Query to exist, not to actually complete.
type noopHandler struct{}

func (noopHandler) OnResult(tl.Object)         {}
func (noopHandler) OnError(int32, string) bool { return false }

func newTestUserAgent(cb Callback) *UserAgent {
	return New(Config{App: AppConfig{AppID: 1}, BootstrapDC: 2}, rsakey.NewRegistry(), cb, nil)
}

func TestNewSeedsActiveAndHomeDCFromBootstrap(t *testing.T) {
	ua := newTestUserAgent(nil)
	require.Equal(t, 2, ua.activeDC)
	require.Equal(t, 2, ua.homeDC)
}

func TestNilCallbackDefaultsToNop(t *testing.T) {
	ua := newTestUserAgent(nil)
	require.NotPanics(t, func() { ua.callback.DCUpdated(1) })
}

func TestPostRunsSynchronouslyBeforeRunStarts(t *testing.T) {
	ua := newTestUserAgent(nil)
	ran := false
	ua.post(func() { ran = true })
	require.True(t, ran)
}

func TestRunProcessesPostedEventsUntilStopped(t *testing.T) {
	ua := newTestUserAgent(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		ua.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return ua.loopCtx() != context.Background()
	}, waitTimeout, waitTick)

	got := make(chan int, 1)
	ua.post(func() { got <- 42 })
	select {
	case v := <-got:
		require.Equal(t, 42, v)
	case <-time.After(waitTimeout):
		t.Fatal("posted event was never processed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Run did not exit after its context was cancelled")
	}
}

func TestStopCancelsTheLoop(t *testing.T) {
	ua := newTestUserAgent(nil)
	done := make(chan struct{})
	go func() {
		ua.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return ua.loopCtx() != context.Background()
	}, waitTimeout, waitTick)

	ua.Stop()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestClientForDCIsIdempotentAndNotifiesOnce(t *testing.T) {
	cb := &fakeCallback{}
	ua := newTestUserAgent(cb)

	c1 := ua.clientForDC(5, "1.2.3.4:443")
	c2 := ua.clientForDC(5, "1.2.3.4:443")

	require.Same(t, c1, c2)
	require.Len(t, ua.clients, 1)
	require.Equal(t, 5, c1.ID())

	snap := cb.snapshot()
	require.Equal(t, []int{5}, snap.dcUpdated)
}

func TestActiveClientReturnsNilWhenDCUnknown(t *testing.T) {
	ua := newTestUserAgent(nil)
	require.Nil(t, ua.ActiveClient())
}

func TestActiveClientReturnsTheRegisteredClient(t *testing.T) {
	ua := newTestUserAgent(nil)
	c := ua.clientForDC(2, "addr:443")
	require.Same(t, c, ua.ActiveClient())
}

func TestSetActiveDCUpdatesStateAndNotifiesCallback(t *testing.T) {
	cb := &fakeCallback{}
	ua := newTestUserAgent(cb)

	ua.SetActiveDC(7)

	ua.mu.Lock()
	active := ua.activeDC
	ua.mu.Unlock()
	require.Equal(t, 7, active)
	require.Equal(t, []int{7}, cb.snapshot().activeDC)
}

func TestResolveAddrFallsBackToStaticTable(t *testing.T) {
	ua := newTestUserAgent(nil)
	addr, ok := ua.resolveAddr(1)
	require.True(t, ok)
	require.Equal(t, productionDCEndpoints[0].IPv4, addr)
}

func TestResolveAddrFailsForUnknownDC(t *testing.T) {
	ua := newTestUserAgent(nil)
	_, ok := ua.resolveAddr(99)
	require.False(t, ok)
}

func TestLearnDCOptionsFiltersMediaOnlyAndPrefersRequestedFamily(t *testing.T) {
	ua := newTestUserAgent(nil)
	ua.learnDCOptions([]tl.DCOption{
		{ID: 4, IPAddress: "10.0.0.1", Port: 443, MediaOnly: true},
		{ID: 4, IPAddress: "10.0.0.2", Port: 443},
		{ID: 4, IPAddress: "::1", Port: 443, Ipv6: true},
	})

	addr, ok := ua.resolveAddr(4)
	require.True(t, ok)
	require.Equal(t, "10.0.0.2:443", addr)

	ua.cfg.PreferIPv6 = true
	addr, ok = ua.resolveAddr(4)
	require.True(t, ok)
	require.Equal(t, "[::1]:443", addr)
}

func TestSetActiveDCCreatesClientForUnseenDC(t *testing.T) {
	ua := newTestUserAgent(nil)
	ua.mu.Lock()
	_, before := ua.clients[1]
	ua.mu.Unlock()
	require.False(t, before)

	ua.SetActiveDC(1)

	ua.mu.Lock()
	_, after := ua.clients[1]
	active := ua.activeDC
	ua.mu.Unlock()
	require.True(t, after)
	require.Equal(t, 1, active)
}

func TestSetOurIDNotifiesCallback(t *testing.T) {
	cb := &fakeCallback{}
	ua := newTestUserAgent(cb)

	ua.SetOurID(9001)

	require.Equal(t, int64(9001), ua.OurID())
	cb.mu.Lock()
	defer cb.mu.Unlock()
	require.Equal(t, []int64{9001}, cb.ourID)
}

func TestIsPasswordLockedRoundTrips(t *testing.T) {
	ua := newTestUserAgent(nil)
	require.False(t, ua.IsPasswordLocked())
	ua.SetPasswordLocked(true)
	require.True(t, ua.IsPasswordLocked())
}

func TestDeliverFansOutToEveryRelevantCallbackMethod(t *testing.T) {
	cb := &fakeCallback{}
	ua := newTestUserAgent(cb)

	payload := tl.HelpGetConfig{}
	ua.Deliver(updater.Update{
		HasPts:  true,
		Pts:     10,
		HasQts:  true,
		Qts:     20,
		Date:    30,
		Payload: payload,
	})

	cb.mu.Lock()
	defer cb.mu.Unlock()
	require.Equal(t, []int32{10}, cb.pts)
	require.Equal(t, []int32{20}, cb.qts)
	require.Equal(t, []int32{30}, cb.date)
	require.Equal(t, [][]tl.Object{{payload}}, cb.newMessages)
}

func TestDeliverSkipsUnsetFields(t *testing.T) {
	cb := &fakeCallback{}
	ua := newTestUserAgent(cb)

	ua.Deliver(updater.Update{})

	cb.mu.Lock()
	defer cb.mu.Unlock()
	require.Empty(t, cb.pts)
	require.Empty(t, cb.qts)
	require.Empty(t, cb.date)
	require.Empty(t, cb.newMessages)
}

func TestGetChannelDifferenceIsOutOfScopeButNonFatalToCaller(t *testing.T) {
	ua := newTestUserAgent(nil)
	newPts, updates, err := ua.GetChannelDifference(context.Background(), 123, 55)
	require.Error(t, err)
	require.Equal(t, int32(55), newPts)
	require.Nil(t, updates)
}

func TestGetDifferenceFailsCleanlyWithNoActiveClient(t *testing.T) {
	ua := New(Config{}, rsakey.NewRegistry(), nil, nil) // no BootstrapDC, no clients registered
	_, err := ua.GetDifference(context.Background(), updater.Counters{})
	require.Error(t, err)
}

func TestGetStateFailsCleanlyWithNoActiveClient(t *testing.T) {
	ua := New(Config{}, rsakey.NewRegistry(), nil, nil)
	_, err := ua.GetState(context.Background())
	require.Error(t, err)
}

func TestLookupQueryKeysByClientAndMsgIDComposite(t *testing.T) {
	ua := newTestUserAgent(nil)
	c1 := newTestClient()
	c2 := newTestClient()
	q := query.New(ua, "test.method", tl.HelpGetConfig{}, noopHandler{}, 7)

	ua.queriesMu.Lock()
	ua.queries[queryKey{client: c1, msgID: 7}] = q
	ua.queriesMu.Unlock()

	require.Same(t, q, ua.lookupQuery(c1, 7))
	require.Nil(t, ua.lookupQuery(c2, 7))
	require.Nil(t, ua.lookupQuery(c1, 8))
}

func TestAddQueryIsNoopWhenQueryNeverSent(t *testing.T) {
	ua := newTestUserAgent(nil)
	q := query.New(ua, "test.method", tl.HelpGetConfig{}, noopHandler{}, 0)

	require.NotPanics(t, func() { ua.AddQuery(q) })
	require.NotPanics(t, func() { ua.RemoveQuery(q) })

	ua.queriesMu.Lock()
	defer ua.queriesMu.Unlock()
	require.Empty(t, ua.queries)
}

func TestAddPendingQueryRemovePendingQueryRoundTrip(t *testing.T) {
	ua := newTestUserAgent(nil)
	q := query.New(ua, "test.method", tl.HelpGetConfig{}, noopHandler{}, 0)

	ua.AddPendingQuery(q)
	ua.queriesMu.Lock()
	require.Len(t, ua.pending, 1)
	ua.queriesMu.Unlock()

	ua.RemovePendingQuery(q)
	ua.queriesMu.Lock()
	require.Empty(t, ua.pending)
	ua.queriesMu.Unlock()
}

func TestExecuteQueryOnUnauthorizedClientQueuesAsPending(t *testing.T) {
	ua := newTestUserAgent(nil)
	c := ua.clientForDC(2, "addr:443")

	var result tl.Object
	var gotErr bool
	ua.ExecuteQuery(context.Background(), c, "help.getConfig", tl.HelpGetConfig{}, query.OptionForce,
		func(r tl.Object) { result = r },
		func(int32, string) bool { gotErr = true; return true },
	)

	ua.queriesMu.Lock()
	defer ua.queriesMu.Unlock()
	require.Len(t, ua.pending, 1)
	require.Nil(t, result)
	require.False(t, gotErr)
}

func TestTransferAuthToMeIsNoopWithoutALoggedInHomeDC(t *testing.T) {
	ua := newTestUserAgent(nil)
	dst := ua.clientForDC(3, "addr:443")

	require.NotPanics(t, func() { ua.TransferAuthToMe(dst) })
}

func TestSecretsReturnsTheConfiguredStorage(t *testing.T) {
	ua := newTestUserAgent(nil)
	require.NotNil(t, ua.Secrets())
	ua.Secrets().Append(1, []byte("blob"))
	require.Equal(t, map[int64][]byte{1: []byte("blob")}, ua.Secrets().LoadAll())
}
