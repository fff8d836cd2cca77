package pipeline

import "gocv.io/x/gocv"

// event is one observer notification: a frame to display, or a status.
type event struct {
	frame  *gocv.Mat
	status Status
}

// queueStatusLocked appends the current status to the event queue.
func (c *Controller) queueStatusLocked() {
	c.pending = append(c.pending, event{status: c.statusLocked()})
}

// queueFrameLocked appends frame to the event queue, which takes ownership
// of it. A frame still waiting at the tail of the queue is replaced.
func (c *Controller) queueFrameLocked(frame *gocv.Mat) {
	if n := len(c.pending); n > 0 && c.pending[n-1].frame != nil {
		c.pending[n-1].frame.Close()
		c.pending[n-1].frame = frame
		return
	}
	c.pending = append(c.pending, event{frame: frame})
}

// publishStatus queues the current status and delivers it.
func (c *Controller) publishStatus() {
	c.mu.Lock()
	c.queueStatusLocked()
	c.mu.Unlock()
	c.flush()
}

// flush delivers queued events outside the lock, in the order they were
// queued. Only one goroutine drains at a time; a caller that finds a drain in
// progress, including an observer calling back into the controller, leaves
// its events to that drain.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true

	for len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending[0] = event{}
		c.pending = c.pending[1:]
		c.mu.Unlock()

		c.deliver(ev)

		c.mu.Lock()
	}

	c.pending = nil
	c.draining = false
	c.mu.Unlock()
}

func (c *Controller) deliver(ev event) {
	c.obsMu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.obsMu.RUnlock()

	if ev.frame != nil {
		for _, o := range observers {
			o.Display(ev.frame)
		}
		ev.frame.Close()
		return
	}
	for _, o := range observers {
		o.StatusChanged(ev.status)
	}
}
