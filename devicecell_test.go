package picker

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeDevice is a scriptable Device for pipeline and cell tests.
type fakeDevice struct {
	mu       sync.Mutex
	bounds   image.Rectangle
	displays []Waveform
	regions  []image.Rectangle
	frames   []*image.Gray
	clears   int
	closed   bool

	// displayFn, when set, replaces the default DisplayImage behavior.
	displayFn func(frame *image.Gray, wf Waveform, region image.Rectangle) error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{bounds: image.Rect(0, 0, 64, 48)}
}

func (d *fakeDevice) Bounds() image.Rectangle {
	return d.bounds
}

func (d *fakeDevice) DisplayImage(frame *image.Gray, wf Waveform, region image.Rectangle) error {
	if d.displayFn != nil {
		return d.displayFn(frame, wf, region)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.displays = append(d.displays, wf)
	d.regions = append(d.regions, region)
	d.frames = append(d.frames, frame)
	return nil
}

func (d *fakeDevice) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) waveforms() []Waveform {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Waveform, len(d.displays))
	copy(out, d.displays)
	return out
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func TestDeviceCellWithNoDevice(t *testing.T) {
	cell := NewDeviceCell()
	err := cell.With(10*time.Millisecond, func(Device) error { return nil })
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestDeviceCellReplaceClosesPredecessor(t *testing.T) {
	cell := NewDeviceCell()
	first := newFakeDevice()
	second := newFakeDevice()

	if err := cell.Replace(time.Second, func() (Device, error) { return first, nil }); err != nil {
		t.Fatalf("install first: %v", err)
	}
	if err := cell.Replace(time.Second, func() (Device, error) { return second, nil }); err != nil {
		t.Fatalf("install second: %v", err)
	}
	if !first.isClosed() {
		t.Fatal("stale handle was not closed")
	}
	if second.isClosed() {
		t.Fatal("live handle should remain open")
	}
}

func TestDeviceCellReplaceFailureKeepsOldHandle(t *testing.T) {
	cell := NewDeviceCell()
	first := newFakeDevice()
	if err := cell.Replace(time.Second, func() (Device, error) { return first, nil }); err != nil {
		t.Fatalf("install first: %v", err)
	}

	boom := errors.New("spi wedged")
	if err := cell.Replace(time.Second, func() (Device, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected open error, got %v", err)
	}
	if first.isClosed() {
		t.Fatal("failed replace must not close the working handle")
	}
	if err := cell.With(time.Second, func(Device) error { return nil }); err != nil {
		t.Fatalf("old handle should still serve: %v", err)
	}
}

func TestDeviceCellShortAcquisitionFailsFast(t *testing.T) {
	cell := NewDeviceCell()
	dev := newFakeDevice()
	if err := cell.Replace(time.Second, func() (Device, error) { return dev, nil }); err != nil {
		t.Fatalf("install: %v", err)
	}

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = cell.With(time.Second, func(Device) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	start := time.Now()
	err := cell.With(20*time.Millisecond, func(Device) error { return nil })
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("expected ErrLockUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("short acquisition blocked for %v", elapsed)
	}
	close(release)
}

// The startup path and the recovery path share one install routine that
// expects the lock to already be held. Both must complete without the lock
// being taken twice.
func TestDeviceCellInitThenRecoverNoDeadlock(t *testing.T) {
	cell := NewDeviceCell()
	done := make(chan error, 1)
	go func() {
		if err := cell.Replace(time.Second, func() (Device, error) { return newFakeDevice(), nil }); err != nil {
			done <- err
			return
		}
		done <- cell.Replace(time.Second, func() (Device, error) { return newFakeDevice(), nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sequential install/recover failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("install path deadlocked")
	}
}

func TestDeviceCellCloseRemovesHandle(t *testing.T) {
	cell := NewDeviceCell()
	dev := newFakeDevice()
	if err := cell.Replace(time.Second, func() (Device, error) { return dev, nil }); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := cell.Close(time.Second); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !dev.isClosed() {
		t.Fatal("handle not closed")
	}
	if err := cell.With(10*time.Millisecond, func(Device) error { return nil }); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice after close, got %v", err)
	}
}
