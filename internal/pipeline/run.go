package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/haarlens/internal/capture"
	"github.com/ayusman/haarlens/internal/detector"
)

// Run drives Tick until ctx is cancelled, then releases the active source.
//
// Ticks are never reentrant: the timer is re-armed only after the previous
// tick has returned, using the cadence of the state the tick left behind.
func (c *Controller) Run(ctx context.Context) error {
	timer := time.NewTimer(c.interval())
	defer timer.Stop()

	c.log.Info("pipeline loop started")

	for {
		select {
		case <-ctx.Done():
			c.Shutdown()
			c.log.Info("pipeline loop stopped")
			return ctx.Err()
		case <-c.wake:
		case <-timer.C:
		}

		if c.State().Running() {
			if err := c.Tick(); err != nil && !errors.Is(err, ErrNotRunning) {
				c.log.WithError(err).Debug("tick failed")
			}
		}

		timer.Reset(c.interval())
	}
}

func (c *Controller) interval() time.Duration {
	if c.State() == LiveRunning {
		return c.liveInterval
	}
	return c.fileInterval
}

// Tick runs one fetch, detect, annotate and display cycle.
//
// It returns ErrNotRunning when no source is active. A lost camera moves the
// controller to Idle and re-enumerates devices. A detection error skips the
// cycle and leaves the previously displayed frame in place.
func (c *Controller) Tick() error {
	c.mu.Lock()

	if c.source == nil {
		c.mu.Unlock()
		return ErrNotRunning
	}

	frame, err := c.source.Next()
	if err != nil {
		return c.sourceLostLocked(err)
	}

	params := c.activeParamsLocked()
	boxes, err := c.classifier.Detect(frame, params)
	if err != nil {
		frame.Close()
		c.log.WithField("source", c.source.Name()).WithError(err).Warn("detection skipped")
		changed := c.detections != 0
		c.detections = 0
		c.message = "detection failed, frame skipped"
		if changed {
			c.queueStatusLocked()
		}
		c.mu.Unlock()
		c.flush()
		return err
	}

	if err := detector.Annotate(frame, boxes); err != nil {
		frame.Close()
		c.mu.Unlock()
		return err
	}

	if c.lastFrame != nil {
		c.lastFrame.Close()
	}
	kept := frame.Clone()
	c.lastFrame = &kept

	c.frames++
	if len(boxes) > c.peak {
		c.peak = len(boxes)
	}

	// Queued under the lock: observers see this frame before any later transition.
	c.queueFrameLocked(frame)

	// The first frame enables snapshots, so it is published like a count change.
	if len(boxes) != c.detections || c.frames == 1 {
		c.detections = len(boxes)
		c.log.WithFields(logrus.Fields{"detections": c.detections, "kind": c.classifier.Kind()}).Debug("detection count changed")
		c.queueStatusLocked()
	}
	c.mu.Unlock()

	c.flush()
	return nil
}

// sourceLostLocked handles a source that stopped producing frames. It
// unlocks c.mu.
func (c *Controller) sourceLostLocked(cause error) error {
	name := c.source.Name()
	wasLive := c.state == LiveRunning

	c.closeSourceLocked()
	if wasLive {
		c.refreshLocked()
		c.message = "camera disconnected"
	} else {
		c.message = "image unavailable"
	}
	c.log.WithField("source", name).WithError(cause).Warn("source lost, pipeline idle")

	c.queueStatusLocked()
	c.mu.Unlock()

	c.flush()

	if wasLive && !errors.Is(cause, capture.ErrDeviceUnavailable) {
		return errors.Wrap(capture.ErrDeviceUnavailable, cause.Error())
	}
	return cause
}
