package picker

import (
	"testing"
	"time"
)

type coreFixture struct {
	core *Core
	adc  *SimulatedADC
	dev  *fakeDevice
}

func newCoreFixture(t *testing.T) *coreFixture {
	t.Helper()
	dev := newFakeDevice()
	pipeline := startPipeline(t, PipelineConfig{
		OpenDevice: func() (Device, error) { return dev, nil },
	})

	adc := NewSimulatedADC()
	hw, err := NewHW(HWConfig{ADC: adc, PollHz: 20})
	if err != nil {
		t.Fatalf("new hw: %v", err)
	}

	core, err := NewCore(CoreConfig{
		HW:             hw,
		Pipeline:       pipeline,
		OverlayTimeout: 40 * time.Millisecond,
		StartupGrace:   time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("new core: %v", err)
	}
	return &coreFixture{core: core, adc: adc, dev: dev}
}

func (f *coreFixture) settle(t *testing.T, iterations int) {
	t.Helper()
	for i := 0; i < iterations; i++ {
		if err := f.core.LoopOnce(); err != nil {
			t.Fatalf("loop iteration: %v", err)
		}
	}
}

func TestCoreKnobChangeShowsOverlay(t *testing.T) {
	f := newCoreFixture(t)
	f.settle(t, 3) // settle the mappers at zero

	f.adc.Set(0, ADCMax)
	f.settle(t, 3)

	waitUntil(t, time.Second, "overlay dispatch", func() bool {
		return len(f.dev.waveforms()) >= 1
	})
	if wfs := f.dev.waveforms(); wfs[0] != WaveformA2 {
		t.Fatalf("overlay should use the fast waveform, got %v", wfs[0])
	}
}

func TestCoreOverlayTimesOutToMainScreen(t *testing.T) {
	f := newCoreFixture(t)
	f.settle(t, 3)

	f.adc.Set(1, ADCMax)
	f.settle(t, 3)
	waitUntil(t, time.Second, "overlay dispatch", func() bool {
		return len(f.dev.waveforms()) >= 1
	})

	// No further knob activity: the overlay expires and the main screen
	// repaints with the two-pass quality mode.
	time.Sleep(60 * time.Millisecond)
	f.settle(t, 1)
	waitUntil(t, time.Second, "main screen dispatch", func() bool {
		wfs := f.dev.waveforms()
		return len(wfs) >= 3 && wfs[1] == WaveformGC16 && wfs[2] == WaveformDU
	})
}

func TestCoreGoWithoutGeneratorFlashesAck(t *testing.T) {
	f := newCoreFixture(t)
	f.settle(t, 3)

	f.adc.Set(3, ADCMax) // GO button channel
	f.settle(t, 1)

	waitUntil(t, time.Second, "ack dispatch", func() bool {
		return len(f.dev.waveforms()) >= 1
	})
	if wfs := f.dev.waveforms(); wfs[0] != WaveformA2 {
		t.Fatalf("ack should use the fast waveform, got %v", wfs[0])
	}
}

func TestCoreButtonFiresOncePerPress(t *testing.T) {
	f := newCoreFixture(t)
	f.settle(t, 3)

	// Hold GO across several polls; the action must fire exactly once.
	f.adc.Set(3, ADCMax)
	for i := 0; i < 5; i++ {
		f.settle(t, 1)
		time.Sleep(30 * time.Millisecond) // let each dispatch drain
	}
	if n := len(f.dev.waveforms()); n != 1 {
		t.Fatalf("one sustained press triggered %d dispatches; want 1", n)
	}

	// Release and press again: a fresh rising edge fires a second time.
	f.adc.Set(3, 0)
	f.settle(t, 1)
	f.adc.Set(3, ADCMax)
	f.settle(t, 1)
	waitUntil(t, time.Second, "second press dispatch", func() bool {
		return len(f.dev.waveforms()) == 2
	})
}

func TestCoreResetFiresOncePerPress(t *testing.T) {
	f := newCoreFixture(t)
	f.settle(t, 3)

	f.adc.Set(7, ADCMax) // RESET button channel
	for i := 0; i < 4; i++ {
		f.settle(t, 1)
		time.Sleep(30 * time.Millisecond)
	}
	if n := len(f.dev.waveforms()); n != 1 {
		t.Fatalf("held RESET triggered %d dispatches; want 1", n)
	}
}

func TestNewCoreValidation(t *testing.T) {
	if _, err := NewCore(CoreConfig{}); err == nil {
		t.Fatal("expected an error for missing hardware front end")
	}
}
