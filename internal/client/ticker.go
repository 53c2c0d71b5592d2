package client

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is how often disconnect timers are refreshed.
const TickInterval = time.Second

// ClockTicker supplies a fresh "now" once per interval. Missed ticks are
// dropped by the underlying ticker, never queued.
type ClockTicker struct {
	t clockwork.Ticker
}

func NewClockTicker(clock clockwork.Clock, every time.Duration) *ClockTicker {
	return &ClockTicker{t: clock.NewTicker(every)}
}

func (c *ClockTicker) C() <-chan time.Time { return c.t.Chan() }

func (c *ClockTicker) Stop() { c.t.Stop() }
