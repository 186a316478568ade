package picker

import (
	"image"
	"time"

	"github.com/rs/zerolog/log"
)

// DeviceCell owns the live device handle. Every read and every swap goes
// through the cell's single non-reentrant lock; the raw handle is never
// exposed outside a critical section.
//
// Two acquisition disciplines share the one lock: a long, blocking
// acquisition for initialization and recovery, and a short, fail-fast
// acquisition for ordinary display writes. An in-progress reinit therefore
// cannot stall interactive updates indefinitely; they drop their frame
// instead.
type DeviceCell struct {
	sem chan struct{} // 1-slot; holding the token is holding the lock
	dev Device        // guarded by sem
}

func NewDeviceCell() *DeviceCell {
	return &DeviceCell{sem: make(chan struct{}, 1)}
}

func (c *DeviceCell) acquire(timeout time.Duration) bool {
	select {
	case c.sem <- struct{}{}:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.sem <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (c *DeviceCell) release() {
	<-c.sem
}

// With runs fn against the live handle inside a critical section, waiting
// at most timeout for the lock. Returns ErrLockUnavailable when the lock
// cannot be acquired in time and ErrNoDevice when no handle is installed.
func (c *DeviceCell) With(timeout time.Duration, fn func(Device) error) error {
	if !c.acquire(timeout) {
		return ErrLockUnavailable
	}
	defer c.release()
	if c.dev == nil {
		return ErrNoDevice
	}
	return fn(c.dev)
}

// Replace opens a fresh handle and installs it as the live one, closing any
// predecessor. Used both for first-time initialization and recovery after a
// fault.
func (c *DeviceCell) Replace(timeout time.Duration, open func() (Device, error)) error {
	if !c.acquire(timeout) {
		return ErrLockUnavailable
	}
	defer c.release()
	return c.installLocked(open)
}

// installLocked is the single inner routine shared by the startup path and
// the recovery path. The cell lock must already be held exactly once;
// re-acquiring it here would deadlock, so both entry points funnel through
// this function instead of calling each other.
func (c *DeviceCell) installLocked(open func() (Device, error)) error {
	dev, err := open()
	if err != nil {
		return err
	}
	if c.dev != nil {
		// Closing the stale handle is best-effort; it may be wedged.
		if cerr := c.dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("closing stale display handle failed")
		}
	}
	c.dev = dev
	return nil
}

// Bounds reports the live handle's geometry.
func (c *DeviceCell) Bounds(timeout time.Duration) (image.Rectangle, error) {
	var bounds image.Rectangle
	err := c.With(timeout, func(dev Device) error {
		bounds = dev.Bounds()
		return nil
	})
	return bounds, err
}

// Close shuts down and removes the live handle, if any.
func (c *DeviceCell) Close(timeout time.Duration) error {
	if !c.acquire(timeout) {
		return ErrLockUnavailable
	}
	defer c.release()
	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	return err
}
