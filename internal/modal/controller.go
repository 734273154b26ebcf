package modal

import "time"

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var SystemClock Clock = ClockFunc(time.Now)

// Controller owns the session's modal State. Callers serialize access.
type Controller struct {
	clock  Clock
	window time.Duration
	state  State
}

func NewController(clock Clock, window time.Duration) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	if window <= 0 {
		window = DefaultSuppressionWindow
	}
	return &Controller{clock: clock, window: window}
}

// Show handles an explicit user action; suppression does not apply.
func (c *Controller) Show(kind Kind) {
	c.state = c.state.Show(kind)
}

func (c *Controller) ShowAutomated(kind Kind) bool {
	next, ok := c.state.ShowAutomated(kind, c.clock.Now())
	c.state = next
	return ok
}

func (c *Controller) HideAutomated() {
	c.state = c.state.HideAutomated()
}

func (c *Controller) CloseSafely() {
	c.state = c.state.CloseSafely(c.clock.Now(), c.window)
}

func (c *Controller) Suppressed() bool {
	return c.state.Suppressed(c.clock.Now())
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) View() View {
	return c.state.View(c.clock.Now())
}
