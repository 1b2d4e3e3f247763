package transport

import "time"

// RealTimerFactory backs Timer with the standard library's time.Timer,
// the production implementation used everywhere tests don't substitute a
// fake (see internal/mtprototest.FakeTimer).
type RealTimerFactory struct{}

func (RealTimerFactory) NewTimer(cb Callback) Timer {
	return &realTimer{cb: cb}
}

type realTimer struct {
	cb    Callback
	timer *time.Timer
}

func (t *realTimer) Start(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, t.cb)
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
