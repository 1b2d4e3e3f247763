package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tplgy/tgl-go/internal/mtprototest"
	"github.com/tplgy/tgl-go/tlog"
	"github.com/tplgy/tgl-go/transport"
)

// waitTimeout/waitTick bound require.Eventually polls for the async
// GetDifference/GetChannelDifference goroutines Updater spawns.
const (
	waitTimeout = time.Second
	waitTick    = time.Millisecond
)

// fakeHost is a minimal Host double: GetDifference/GetChannelDifference
// return whatever the test preloads, and every delivered update is
// recorded in order.
type fakeHost struct {
	factory *mtprototest.FakeTimerFactory
	log     tlog.Logger

	mu sync.Mutex

	delivered []Update

	diffResult Difference
	diffErr    error
	diffCalls  int

	channelNewPts  int32
	channelUpdates []Update
	channelErr     error
	channelCalls   int

	state    Counters
	stateErr error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		factory: mtprototest.NewFakeTimerFactory(),
		log:     tlog.New(tlog.NoopLogHandler{}),
	}
}

func (h *fakeHost) Log() tlog.Logger                     { return h.log }
func (h *fakeHost) TimerFactory() transport.TimerFactory { return h.factory }

func (h *fakeHost) GetDifference(ctx context.Context, from Counters) (Difference, error) {
	h.mu.Lock()
	h.diffCalls++
	h.mu.Unlock()
	return h.diffResult, h.diffErr
}

func (h *fakeHost) GetChannelDifference(ctx context.Context, channelID int64, fromPts int32) (int32, []Update, error) {
	h.mu.Lock()
	h.channelCalls++
	h.mu.Unlock()
	return h.channelNewPts, h.channelUpdates, h.channelErr
}

func (h *fakeHost) GetState(ctx context.Context) (Counters, error) {
	return h.state, h.stateErr
}

func (h *fakeHost) Deliver(u Update) {
	h.mu.Lock()
	h.delivered = append(h.delivered, u)
	h.mu.Unlock()
}

func (h *fakeHost) deliveredCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.delivered)
}

func (h *fakeHost) diffCallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.diffCalls
}

func TestWorkUpdateAppliesInOrderPts(t *testing.T) {
	host := newFakeHost()
	u := New(host)
	u.SetCounters(Counters{Pts: 10, Qts: 0, Seq: 0, Date: 100})

	u.WorkUpdate(context.Background(), Update{HasPts: true, Pts: 11, PtsCount: 1, Date: 101})

	require.Equal(t, int32(11), u.Counters().Pts)
	require.Equal(t, 1, host.deliveredCount())
	require.Zero(t, host.diffCallCount())
}

func TestWorkUpdateDropsDuplicatePts(t *testing.T) {
	host := newFakeHost()
	u := New(host)
	u.SetCounters(Counters{Pts: 10})

	u.WorkUpdate(context.Background(), Update{HasPts: true, Pts: 10, PtsCount: 1})

	require.Equal(t, int32(10), u.Counters().Pts)
	require.Zero(t, host.deliveredCount())
	require.Zero(t, host.diffCallCount())
}

func TestWorkUpdateGapTriggersGetDifference(t *testing.T) {
	host := newFakeHost()
	host.diffResult = Difference{Counters: Counters{Pts: 20}}
	u := New(host)
	u.SetCounters(Counters{Pts: 10})

	u.WorkUpdate(context.Background(), Update{HasPts: true, Pts: 15, PtsCount: 1})

	require.Eventually(t, func() bool { return u.Counters().Pts == 20 }, waitTimeout, waitTick)
	require.False(t, u.DiffLocked())
	require.Zero(t, host.deliveredCount())
}

func TestWorkUpdateQueuesWhileDiffLocked(t *testing.T) {
	blocked := make(chan struct{})
	host := newFakeHost()
	host.diffResult = Difference{Counters: Counters{Pts: 30}}

	// force a gap so diff_locked gets set, but hold GetDifference open
	// until we've queued a second update behind it.
	slowHost := &blockingHost{fakeHost: host, unblock: blocked}
	u := New(slowHost)
	u.SetCounters(Counters{Pts: 10})

	u.WorkUpdate(context.Background(), Update{HasPts: true, Pts: 15, PtsCount: 1})
	require.Eventually(t, func() bool { return u.DiffLocked() }, waitTimeout, waitTick)

	u.WorkUpdate(context.Background(), Update{HasPts: true, Pts: 31, PtsCount: 1})
	require.Equal(t, int32(10), u.Counters().Pts, "queued update must not apply while locked")

	close(blocked)
	require.Eventually(t, func() bool { return !u.DiffLocked() }, waitTimeout, waitTick)
	require.Eventually(t, func() bool { return u.Counters().Pts == 31 }, waitTimeout, waitTick)
}

// blockingHost wraps fakeHost so GetDifference blocks on a channel before
// returning, letting a test observe the diff_locked window deterministically.
type blockingHost struct {
	*fakeHost
	unblock chan struct{}
}

func (h *blockingHost) GetDifference(ctx context.Context, from Counters) (Difference, error) {
	<-h.unblock
	return h.fakeHost.GetDifference(ctx, from)
}

func TestWorkUpdateChannelGapTriggersChannelDifference(t *testing.T) {
	host := newFakeHost()
	host.channelNewPts = 50
	u := New(host)
	u.channelPts[42] = 10

	u.WorkUpdate(context.Background(), Update{
		HasChannelPts: true, ChannelID: 42, ChannelPts: 20, ChannelPtsCount: 1,
	})

	require.Eventually(t, func() bool {
		return u.Counters().Pts == 0 && host.channelCalls == 1
	}, waitTimeout, waitTick)
}

func TestApplyDifferenceReplaysPendingQueue(t *testing.T) {
	host := newFakeHost()
	u := New(host)
	u.SetCounters(Counters{Pts: 10})

	u.mu.Lock()
	u.diffLocked = true
	u.mu.Unlock()

	u.WorkUpdate(context.Background(), Update{HasPts: true, Pts: 21, PtsCount: 1})
	require.Equal(t, int32(10), u.Counters().Pts)

	u.ApplyDifference(context.Background(), Difference{Counters: Counters{Pts: 20}})

	require.Equal(t, int32(21), u.Counters().Pts)
	require.False(t, u.DiffLocked())
}

func TestSeqDuplicateAndGap(t *testing.T) {
	host := newFakeHost()
	u := New(host)
	u.SetCounters(Counters{Seq: 5})

	u.WorkUpdate(context.Background(), Update{HasSeq: true, Seq: 5})
	require.Zero(t, host.deliveredCount())

	u.WorkUpdate(context.Background(), Update{HasSeq: true, Seq: 6})
	require.Equal(t, 1, host.deliveredCount())
	require.Equal(t, int32(6), u.Counters().Seq)

	u.WorkUpdate(context.Background(), Update{HasSeq: true, Seq: 20})
	require.Eventually(t, func() bool { return host.diffCallCount() >= 1 }, waitTimeout, waitTick)
}

func TestStatePollDetectsDriftAndTriggersDifference(t *testing.T) {
	host := newFakeHost()
	host.state = Counters{Pts: 99}
	host.diffResult = Difference{Counters: Counters{Pts: 99}}
	u := New(host)
	u.SetCounters(Counters{Pts: 10})

	u.StartStatePoll(context.Background())
	host.factory.FireAll()

	require.Eventually(t, func() bool { return u.Counters().Pts == 99 }, waitTimeout, waitTick)
}
