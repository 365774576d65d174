// Package round drives round progression: the deadline timer and the
// coordinator that performs the guarded advancement writes.
package round

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Key identifies one armed round deadline. Two arms with the same key are
// the same round; expiry fires at most once per key.
type Key struct {
	Code     string
	Index    int
	Deadline int64 // unix millis
}

// Timer derives remaining time from an absolute deadline on a polling
// interval. Re-arming with an unchanged key is a no-op, including after the
// key already expired, so a snapshot replaying the same deadline can never
// re-fire it. Stop cancels the running countdown.
type Timer struct {
	clock    clockwork.Clock
	interval time.Duration
	log      *zap.Logger
	onTick   func(remaining time.Duration)
	onExpire func(Key)

	mu     sync.Mutex
	key    Key
	armed  bool
	cancel context.CancelFunc
}

func NewTimer(clock clockwork.Clock, interval time.Duration, log *zap.Logger, onTick func(time.Duration), onExpire func(Key)) *Timer {
	return &Timer{
		clock:    clock,
		interval: interval,
		log:      log,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Arm starts (or keeps) the countdown for key.
func (t *Timer) Arm(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed && t.key == key {
		return
	}
	t.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	t.key = key
	t.armed = true
	t.cancel = cancel
	go t.run(ctx, key)
}

// Stop cancels any running countdown and forgets the armed key.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.key = Key{}
}

func (t *Timer) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.armed = false
}

func (t *Timer) run(ctx context.Context, key Key) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	deadline := time.UnixMilli(key.Deadline)
	for {
		if ctx.Err() != nil {
			return
		}
		remaining := deadline.Sub(t.clock.Now())
		if remaining < 0 {
			remaining = 0
		}
		t.onTick(remaining)
		if remaining == 0 {
			t.log.Debug("round deadline expired",
				zap.String("room", key.Code), zap.Int("round", key.Index))
			t.onExpire(key)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
