package pipeline

import "sync/atomic"

// CancelSignal is a cooperative stop flag shared between a run and its
// caller. It never interrupts an in-flight model call; stages check it
// before starting the next one.
type CancelSignal struct {
	flag atomic.Bool
}

func NewCancelSignal() *CancelSignal {
	return &CancelSignal{}
}

func (c *CancelSignal) Cancel() {
	c.flag.Store(true)
}

func (c *CancelSignal) Cancelled() bool {
	return c != nil && c.flag.Load()
}
