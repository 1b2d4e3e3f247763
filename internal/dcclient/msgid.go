package dcclient

import "sync"

// msgIDGenerator implements spec.md §4.5's msg_id algorithm:
// floor(server_time*2^32) & ~3, bumped by 4 whenever that would not
// advance past the last id handed out (clock going backwards, or two
// calls within the same tick), grounded on
// mtproto_client::generate_next_msg_id.
type msgIDGenerator struct {
	mu         sync.Mutex
	lastMsgID  int64
	serverTime func() float64 // monotonic + server clock delta
}

func newMsgIDGenerator(serverTime func() float64) *msgIDGenerator {
	return &msgIDGenerator{serverTime: serverTime}
}

func (g *msgIDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := int64(g.serverTime()*(1<<32)) &^ 3
	if next <= g.lastMsgID {
		g.lastMsgID += 4
		next = g.lastMsgID
	} else {
		g.lastMsgID = next
	}
	return next
}

// Reset re-bases the generator by forgetting the last msg_id handed out.
// dispatch calls it when the server answers with bad_msg_notification
// code 16 or 17 (msg_id too low/too high).
func (g *msgIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastMsgID = 0
}
