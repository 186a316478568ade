package picker

import (
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventSink receives pipeline events for diagnostics. Implementations must
// never block the caller for long; the pipeline calls it inline.
type EventSink interface {
	Record(kind, tag, detail string, elapsed time.Duration)
}

// PipelineConfig controls the display pipeline.
type PipelineConfig struct {
	// OpenDevice constructs a device handle. Called once at Start and again
	// on every reinitialization. Required.
	OpenDevice func() (Device, error)

	// DispatchTimeout bounds Partial and Fast dispatches.
	DispatchTimeout time.Duration
	// FullTimeout bounds Full and Auto dispatches, which run the slow GC16
	// waveform (plus a corrective pass) and legitimately take far longer
	// than an interactive update.
	FullTimeout time.Duration
	// Cooldown is how long dispatch is skipped after a fault, unless a
	// reinitialization clears it early.
	Cooldown time.Duration
	// ReinitTimeout is the long, blocking device-lock acquisition used by
	// initialization and recovery.
	ReinitTimeout time.Duration
	// WriteTimeout is the short, fail-fast device-lock acquisition used by
	// ordinary display writes.
	WriteTimeout time.Duration
	// IdleInterval is the worker's sleep when the mailbox is empty or the
	// fault gate is closed.
	IdleInterval time.Duration
	// ExecutorSlots bounds concurrently outstanding hardware calls. Must be
	// at least 2 so one hung, abandoned call cannot block every future
	// dispatch.
	ExecutorSlots int
	// Align is the partial-refresh rectangle granularity.
	Align int

	// Journal, when set, records faults and recoveries.
	Journal EventSink
	// Clock defaults to time.Now; injectable for tests.
	Clock func() time.Time
}

// Pipeline coalesces concurrent frame submissions into a single in-flight
// hardware call, bounds each call's latency, and self-heals from hung or
// failing hardware by rebuilding the device handle in the background.
type Pipeline struct {
	cfg  PipelineConfig
	cell *DeviceCell
	box  *Mailbox

	mu            sync.Mutex
	state         PipelineState
	disabledUntil time.Time
	lastFrame     *image.Gray
	lastUpdate    time.Time
	reinitBusy    bool

	slots    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	reinitWG sync.WaitGroup
}

// NewPipeline validates cfg and applies defaults. A missing OpenDevice is a
// configuration error and surfaces synchronously.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.OpenDevice == nil {
		return nil, errors.New("display pipeline: OpenDevice cannot be nil")
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 2 * time.Second
	}
	if cfg.FullTimeout <= 0 {
		cfg.FullTimeout = 12 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	if cfg.ReinitTimeout <= 0 {
		cfg.ReinitTimeout = 6 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 5 * time.Millisecond
	}
	if cfg.ExecutorSlots < 2 {
		cfg.ExecutorSlots = 2
	}
	if cfg.Align <= 0 {
		cfg.Align = DefaultAlign
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Pipeline{
		cfg:   cfg,
		cell:  NewDeviceCell(),
		box:   NewMailbox(),
		slots: make(chan struct{}, cfg.ExecutorSlots),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}, nil
}

// Start opens the device and launches the dispatch worker. A device that
// cannot be opened at startup is fatal and surfaces here.
func (p *Pipeline) Start() error {
	if err := p.cell.Replace(p.cfg.ReinitTimeout, p.cfg.OpenDevice); err != nil {
		return errors.Wrap(err, "open display device")
	}
	p.mu.Lock()
	p.state = StateReady
	p.mu.Unlock()
	go p.loop()
	return nil
}

// Stop signals the worker to exit and waits up to timeout for it. It
// returns promptly even when a dispatch is still outstanding; the hardware
// call is abandoned, not waited for.
func (p *Pipeline) Stop(timeout time.Duration) error {
	p.stopOnce.Do(func() { close(p.stop) })
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
	case <-t.C:
		return errors.New("display worker did not exit in time")
	}
	if err := p.cell.Close(p.cfg.WriteTimeout); err != nil && !errors.Is(err, ErrLockUnavailable) {
		log.Warn().Err(err).Msg("closing display device failed")
	}
	return nil
}

// Submit enqueues the desired screen state. Non-blocking: the job may later
// be superseded by a newer submission or dropped on fault.
func (p *Pipeline) Submit(tag string, frame *image.Gray, rotation Rotation, mode RefreshMode) {
	p.box.Submit(Job{
		Tag:        tag,
		Frame:      frame,
		Rotation:   rotation,
		Mode:       mode,
		EnqueuedAt: p.cfg.Clock(),
	})
}

// Clear blanks the panel immediately using the short write-lock discipline.
func (p *Pipeline) Clear() error {
	err := p.cell.With(p.cfg.WriteTimeout, func(dev Device) error {
		return dev.Clear()
	})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.lastFrame = nil
	p.lastUpdate = p.cfg.Clock()
	p.mu.Unlock()
	return nil
}

// Bounds reports the live panel geometry.
func (p *Pipeline) Bounds() (image.Rectangle, error) {
	return p.cell.Bounds(p.cfg.WriteTimeout)
}

// State returns the pipeline's current state.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// DisabledUntil returns the fault gate deadline; zero when the gate is open.
func (p *Pipeline) DisabledUntil() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabledUntil
}

// LastUpdate returns the completion time of the most recent successful
// dispatch.
func (p *Pipeline) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}

func (p *Pipeline) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if !p.gateOpen() {
			if !p.sleep(p.cfg.IdleInterval) {
				return
			}
			continue
		}
		job, ok := p.box.Take()
		if !ok {
			if !p.sleep(p.cfg.IdleInterval) {
				return
			}
			continue
		}
		p.dispatch(job)
	}
}

// sleep waits d or until Stop; false means the worker should exit.
func (p *Pipeline) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-t.C:
		return true
	}
}

// gateOpen re-checks the fault gate lazily; the cooldown elapsing on its
// own never transitions state.
func (p *Pipeline) gateOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.cfg.Clock().Before(p.disabledUntil)
}

func (p *Pipeline) deadlineFor(mode RefreshMode) time.Duration {
	switch mode {
	case ModeFull, ModeAuto:
		return p.cfg.FullTimeout
	default:
		return p.cfg.DispatchTimeout
	}
}

type renderResult struct {
	frame *image.Gray
	err   error
}

// dispatch executes one job against the hardware with a mode-aware
// deadline. The underlying call cannot be cancelled once issued, so a hung
// call is abandoned on its pool slot and its eventual result discarded; the
// pool holding >= 2 slots is what keeps later dispatches live.
func (p *Pipeline) dispatch(job Job) {
	p.setState(StateBusy)
	deadline := p.deadlineFor(job.Mode)
	start := p.cfg.Clock()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
	case <-timer.C:
		// Every slot is burned by an earlier abandoned call.
		p.fault(job, start, errors.Wrap(ErrDispatchTimeout, "no executor slot available"))
		return
	case <-p.stop:
		return
	}

	result := make(chan renderResult, 1)
	go func() {
		defer func() { <-p.slots }()
		defer func() {
			if r := recover(); r != nil {
				result <- renderResult{err: errors.Errorf("display call panicked: %v", r)}
			}
		}()
		frame, err := p.render(job)
		result <- renderResult{frame: frame, err: err}
	}()

	select {
	case res := <-result:
		elapsed := p.cfg.Clock().Sub(start)
		switch {
		case res.err == nil:
			p.complete(job, res.frame, elapsed)
		case errors.Is(res.err, ErrLockUnavailable):
			// A reinit holds the device lock. Dropping this frame beats
			// stalling; the next submission reflects newer state anyway.
			log.Debug().Str("tag", job.Tag).Msg("device lock busy; frame dropped")
			p.setState(StateReady)
		default:
			p.fault(job, start, res.err)
		}
	case <-timer.C:
		p.fault(job, start, ErrDispatchTimeout)
	case <-p.stop:
	}
}

// render runs on a pool slot. It only reads pipeline state; the shown frame
// is installed as the diff baseline by the worker, and only after success,
// so an abandoned call that limps home late can never clobber lastFrame.
func (p *Pipeline) render(job Job) (*image.Gray, error) {
	var shown *image.Gray
	err := p.cell.With(p.cfg.WriteTimeout, func(dev Device) error {
		frame := FitFrame(job.Frame, job.Rotation, dev.Bounds())
		switch job.Mode {
		case ModePartial:
			rect, changed := DiffBounds(p.baseline(), frame, p.cfg.Align)
			if !changed {
				log.Debug().Str("tag", job.Tag).Msg("frame unchanged; skipping hardware update")
				shown = frame
				return nil
			}
			if err := dev.DisplayImage(frame, WaveformDU, rect); err != nil {
				return err
			}
		case ModeFast:
			if err := dev.DisplayImage(frame, WaveformA2, frame.Bounds()); err != nil {
				return err
			}
		case ModeFull:
			if err := dev.DisplayImage(frame, WaveformGC16, frame.Bounds()); err != nil {
				return err
			}
		case ModeAuto:
			if err := dev.DisplayImage(frame, WaveformGC16, frame.Bounds()); err != nil {
				return err
			}
			// Corrective pass: the fast waveform crisps up edges left soft
			// by the grayscale paint.
			if err := dev.DisplayImage(frame, WaveformDU, frame.Bounds()); err != nil {
				return err
			}
		}
		shown = frame
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shown, nil
}

func (p *Pipeline) baseline() *image.Gray {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame
}

func (p *Pipeline) setState(s PipelineState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) complete(job Job, frame *image.Gray, elapsed time.Duration) {
	p.mu.Lock()
	p.lastFrame = frame
	p.lastUpdate = p.cfg.Clock()
	p.state = StateReady
	p.mu.Unlock()
	log.Debug().
		Str("tag", job.Tag).
		Str("mode", job.Mode.String()).
		Dur("elapsed", elapsed).
		Msg("frame dispatched")
}

// fault drops the frame, closes the gate for a cooldown, and kicks off one
// background reinitialization. The frame is not retried: the next submitted
// job reflects newer state and will be attempted once the gate reopens.
func (p *Pipeline) fault(job Job, start time.Time, err error) {
	now := p.cfg.Clock()
	elapsed := now.Sub(start)

	p.mu.Lock()
	p.state = StateDisabled
	// The gate only ever extends on faults; reinit is the one thing that
	// may pull it back.
	if until := now.Add(p.cfg.Cooldown); until.After(p.disabledUntil) {
		p.disabledUntil = until
	}
	launch := !p.reinitBusy
	if launch {
		p.reinitBusy = true
		p.reinitWG.Add(1)
	}
	p.mu.Unlock()

	log.Error().
		Err(err).
		Str("tag", job.Tag).
		Str("mode", job.Mode.String()).
		Dur("elapsed", elapsed).
		Msg("display dispatch failed; entering cooldown")
	p.record("fault", job.Tag, err.Error(), elapsed)

	if launch {
		go p.reinit()
	}
}

// reinit rebuilds the device handle in the background using the long
// blocking lock discipline. On success the fault gate clears immediately;
// recovery need not wait out the cooldown. On failure the gate stays as
// scheduled and the next fault may try again.
func (p *Pipeline) reinit() {
	defer p.reinitWG.Done()
	p.setState(StateReinitializing)
	start := p.cfg.Clock()

	err := p.cell.Replace(p.cfg.ReinitTimeout, p.cfg.OpenDevice)
	elapsed := p.cfg.Clock().Sub(start)

	p.mu.Lock()
	p.reinitBusy = false
	if err != nil {
		p.state = StateDisabled
		p.mu.Unlock()
		werr := errors.Wrap(ErrReinitFailed, err.Error())
		log.Error().Err(werr).Dur("elapsed", elapsed).Msg("display reinitialization failed")
		p.record("reinit_failed", "", werr.Error(), elapsed)
		return
	}
	p.disabledUntil = time.Time{}
	// Fresh handle, unknown panel content: the next partial must not diff
	// against a baseline the hardware no longer shows.
	p.lastFrame = nil
	p.state = StateReady
	p.mu.Unlock()

	log.Info().Dur("elapsed", elapsed).Msg("display handle rebuilt")
	p.record("reinit_ok", "", "", elapsed)
}

func (p *Pipeline) record(kind, tag, detail string, elapsed time.Duration) {
	if p.cfg.Journal != nil {
		p.cfg.Journal.Record(kind, tag, detail, elapsed)
	}
}
