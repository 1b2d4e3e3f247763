package secretchat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tplgy/tgl-go/internal/mtprototest"
	"github.com/tplgy/tgl-go/transport"
)

type fakeHost struct {
	factory *mtprototest.FakeTimerFactory

	mu        sync.Mutex
	delivered []Message
}

func newFakeHost() *fakeHost {
	return &fakeHost{factory: mtprototest.NewFakeTimerFactory()}
}

func (h *fakeHost) TimerFactory() transport.TimerFactory { return h.factory }

func (h *fakeHost) Deliver(m Message) {
	h.mu.Lock()
	h.delivered = append(h.delivered, m)
	h.mu.Unlock()
}

func (h *fakeHost) seqs() []int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int32, len(h.delivered))
	for i, m := range h.delivered {
		out[i] = m.RawOutSeqNo / 2
	}
	return out
}

// non-creator side: expects even out_seq_no from the creator's
// messages (parity 0) and sends odd in_seq_no back (parity 1).
func newNonCreatorChat(host Host) *Chat {
	c := New(host, false)
	c.SetOurOutSeqNo(100)
	return c
}

func TestHandleDeliversInOrder(t *testing.T) {
	host := newFakeHost()
	c := newNonCreatorChat(host)

	c.Handle(Message{RawOutSeqNo: 0, RawInSeqNo: 1})
	c.Handle(Message{RawOutSeqNo: 2, RawInSeqNo: 1})

	require.Equal(t, []int32{0, 1}, host.seqs())
	require.Equal(t, int32(2), c.CurrentInSeqNo())
}

func TestHandleDropsBadParity(t *testing.T) {
	host := newFakeHost()
	c := newNonCreatorChat(host)

	c.Handle(Message{RawOutSeqNo: 1, RawInSeqNo: 1}) // odd out_seq_no: wrong parity
	c.Handle(Message{RawOutSeqNo: 0, RawInSeqNo: 0}) // even in_seq_no: wrong parity

	require.Empty(t, host.seqs())
}

func TestHandleDropsDuplicate(t *testing.T) {
	host := newFakeHost()
	c := newNonCreatorChat(host)

	c.Handle(Message{RawOutSeqNo: 0, RawInSeqNo: 1})
	c.Handle(Message{RawOutSeqNo: 0, RawInSeqNo: 1})

	require.Equal(t, []int32{0}, host.seqs())
}

func TestHandleDropsWhenPeerClaimsTooMuch(t *testing.T) {
	host := newFakeHost()
	c := New(host, false)
	c.SetOurOutSeqNo(1) // peer has only seen 1 of our messages

	c.Handle(Message{RawOutSeqNo: 0, RawInSeqNo: 11}) // claims 5, we've sent 1

	require.Empty(t, host.seqs())
}

func TestHandleQueuesHoleAndDeliversOnFill(t *testing.T) {
	host := newFakeHost()
	c := newNonCreatorChat(host)

	c.Handle(Message{RawOutSeqNo: 2, RawInSeqNo: 1}) // seq 1 arrives before seq 0
	require.Empty(t, host.seqs())

	c.Handle(Message{RawOutSeqNo: 0, RawInSeqNo: 1}) // seq 0 fills the hole

	require.Equal(t, []int32{0, 1}, host.seqs())
	require.Equal(t, int32(2), c.CurrentInSeqNo())
}

func TestHoleHealsOnTimeoutAndSkipsMissing(t *testing.T) {
	host := newFakeHost()
	c := newNonCreatorChat(host)

	c.Handle(Message{RawOutSeqNo: 2, RawInSeqNo: 1}) // seq 1, seq 0 never arrives
	require.Empty(t, host.seqs())

	host.factory.FireAll()

	require.Equal(t, []int32{1}, host.seqs())
	require.Equal(t, int32(2), c.CurrentInSeqNo())
}

func TestLegacySequencingBypassesQueue(t *testing.T) {
	var got []Message
	l := NewLegacySequencing(func(m Message) { got = append(got, m) })

	l.Handle(Message{Legacy: true, RawOutSeqNo: -1, RawInSeqNo: -1})

	require.Len(t, got, 1)
}
