package picker

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
)

// CoreConfig wires the picker event loop.
type CoreConfig struct {
	HW       *HW
	Pipeline *Pipeline
	Texts    Texts
	Face     font.Face
	Rotation Rotation

	// Generator, when set, handles the GO button by generating an image
	// from the current knob selections.
	Generator *SDClient
	// Gamma applied when staging generated images.
	Gamma float64

	// OverlayTimeout is how long a knob overlay stays up after the last
	// activity on that knob before the main screen returns.
	OverlayTimeout time.Duration
	// StartupGrace ignores knob changes right after boot, when the mappers
	// are still settling on the physical knob positions.
	StartupGrace time.Duration

	Clock func() time.Time
}

// Core polls the hardware front end, composes UI frames, and routes them to
// the display pipeline. All heavy lifting is asynchronous: knob activity
// only ever enqueues the latest desired frame.
type Core struct {
	cfg    CoreConfig
	bounds image.Rectangle // compose geometry, rotation-adjusted

	overlayCache   map[int][]*image.Gray
	overlayVisible bool
	currentKnob    int
	lastActivity   map[int]time.Time
	lastPositions  map[int]int // raw debounced positions per channel
	lastButtons    map[string]bool
	lastMain       map[int]int
	startedAt      time.Time

	genMu      sync.Mutex
	generating bool
}

// NewCore builds the event loop. The pipeline must already be started so
// the panel geometry is known.
func NewCore(cfg CoreConfig) (*Core, error) {
	if cfg.HW == nil {
		return nil, errors.New("picker core: HW cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("picker core: pipeline cannot be nil")
	}
	if cfg.Texts == nil {
		cfg.Texts = DefaultTexts()
	}
	if cfg.Face == nil {
		cfg.Face = LoadFace("", 0)
	}
	if cfg.OverlayTimeout <= 0 {
		cfg.OverlayTimeout = 1500 * time.Millisecond
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = time.Second
	}
	if cfg.Gamma <= 0 {
		cfg.Gamma = 1.0
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	panel, err := cfg.Pipeline.Bounds()
	if err != nil {
		return nil, errors.Wrap(err, "query panel geometry")
	}
	bounds := panel
	if cfg.Rotation == RotateCW || cfg.Rotation == RotateCCW {
		// Compose in the rotated orientation so frames land upright.
		bounds = image.Rect(0, 0, panel.Dy(), panel.Dx())
	}

	c := &Core{
		cfg:           cfg,
		bounds:        bounds,
		currentKnob:   -1,
		lastActivity:  map[int]time.Time{},
		lastPositions: map[int]int{},
		lastButtons:   map[string]bool{},
		lastMain:      nil,
		startedAt:     cfg.Clock(),
	}
	c.buildOverlayCache()
	return c, nil
}

// buildOverlayCache pre-renders every overlay frame so a knob tick costs a
// map lookup instead of font composition.
func (c *Core) buildOverlayCache() {
	cache := make(map[int][]*image.Gray, len(KnobChannels))
	for _, ch := range KnobChannels {
		knob, ok := c.cfg.Texts.Knob(ch)
		if !ok {
			continue
		}
		frames := make([]*image.Gray, len(knob.Values))
		for pos := range knob.Values {
			frames[pos] = ComposeOverlay(c.cfg.Face, knob.Title, knob.Values, pos, c.bounds)
		}
		cache[ch] = frames
	}
	c.overlayCache = cache
}

// Run polls the hardware until ctx is cancelled.
func (c *Core) Run(ctx context.Context) error {
	c.ShowMain()
	ticker := time.NewTicker(c.cfg.HW.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.LoopOnce(); err != nil {
				log.Error().Err(err).Msg("picker loop iteration failed")
			}
		}
	}
}

// LoopOnce runs one poll iteration: knobs, buttons, overlay timeout.
func (c *Core) LoopOnce() error {
	positions, err := c.cfg.HW.ReadPositions()
	if err != nil {
		return err
	}
	buttons, err := c.cfg.HW.ReadButtons()
	if err != nil {
		return err
	}

	for _, ch := range KnobChannels {
		reading, ok := positions[ch]
		if !ok {
			continue
		}
		c.lastPositions[ch] = reading.Position
		if reading.Changed {
			c.handleKnobChange(ch, reading.Position)
		}
	}

	// Buttons fire on the rising edge only; a held button is one press.
	if buttons["GO"] && !c.lastButtons["GO"] {
		c.handleGo()
	}
	if buttons["RESET"] && !c.lastButtons["RESET"] {
		c.handleReset()
	}
	c.lastButtons = buttons

	now := c.cfg.Clock()
	if c.overlayVisible && c.currentKnob >= 0 {
		if last, ok := c.lastActivity[c.currentKnob]; ok && now.Sub(last) > c.cfg.OverlayTimeout {
			log.Debug().Int("channel", c.currentKnob).Msg("overlay timed out; returning to main screen")
			c.ShowMain()
		}
	}
	return nil
}

// displayPos flips a raw knob position so low readings sit at the bottom of
// the menu.
func (c *Core) displayPos(ch, pos int) int {
	knob, ok := c.cfg.Texts.Knob(ch)
	if !ok || len(knob.Values) == 0 {
		return 0
	}
	dp := len(knob.Values) - 1 - pos
	if dp < 0 {
		dp = 0
	}
	if dp >= len(knob.Values) {
		dp = len(knob.Values) - 1
	}
	return dp
}

func (c *Core) handleKnobChange(ch, pos int) {
	now := c.cfg.Clock()
	if now.Sub(c.startedAt) < c.cfg.StartupGrace {
		log.Debug().Int("channel", ch).Int("pos", pos).Msg("ignoring knob change during startup grace")
		return
	}
	c.lastActivity[ch] = now

	dp := c.displayPos(ch, pos)
	var frame *image.Gray
	if cached, ok := c.overlayCache[ch]; ok && dp < len(cached) {
		frame = cached[dp]
	}
	if frame == nil {
		knob, _ := c.cfg.Texts.Knob(ch)
		frame = ComposeOverlay(c.cfg.Face, knob.Title, knob.Values, dp, c.bounds)
	}

	log.Info().Int("channel", ch).Int("pos", pos).Int("display_pos", dp).Msg("knob changed")
	c.cfg.Pipeline.Submit(fmt.Sprintf("overlay_ch%d_pos%d", ch, pos), frame, c.cfg.Rotation, ModeFast)
	c.overlayVisible = true
	c.currentKnob = ch
}

// handleGo triggers image generation from the current knob selections, or
// just flashes an acknowledgement when no generator is wired.
func (c *Core) handleGo() {
	if c.cfg.Generator == nil {
		c.cfg.Pipeline.Submit("go", ComposeMessage(c.cfg.Face, "GO!", c.bounds), c.cfg.Rotation, ModeFast)
		c.overlayVisible = false
		c.currentKnob = -1
		return
	}

	c.genMu.Lock()
	if c.generating {
		c.genMu.Unlock()
		return
	}
	c.generating = true
	c.genMu.Unlock()

	// Snapshot the selections now; the knobs may move while generating.
	selections := make(map[int]int, len(c.lastPositions))
	for ch, pos := range c.lastPositions {
		selections[ch] = c.displayPos(ch, pos)
	}
	prompt := c.cfg.Generator.BuildPrompt(c.cfg.Texts, selections)

	c.cfg.Pipeline.Submit("generating", ComposeMessage(c.cfg.Face, "GENERATING...", c.bounds), c.cfg.Rotation, ModeFast)
	c.overlayVisible = false
	c.currentKnob = -1

	go func() {
		defer func() {
			c.genMu.Lock()
			c.generating = false
			c.genMu.Unlock()
		}()
		log.Info().Str("prompt", prompt).Msg("generating image")
		img, err := c.cfg.Generator.Txt2Img(context.Background(), prompt)
		if err != nil {
			log.Error().Err(err).Msg("image generation failed")
			c.cfg.Pipeline.Submit("generation_failed",
				ComposeMessage(c.cfg.Face, "GENERATION FAILED", c.bounds), c.cfg.Rotation, ModeFast)
			return
		}
		frame := PrepareFrame(img, c.bounds, c.cfg.Gamma)
		c.cfg.Pipeline.Submit("generated", frame, c.cfg.Rotation, ModeFull)
	}()
}

func (c *Core) handleReset() {
	log.Info().Msg("reset pressed")
	c.cfg.Pipeline.Submit("reset", ComposeMessage(c.cfg.Face, "RESETTING", c.bounds), c.cfg.Rotation, ModeFast)
	c.overlayVisible = false
	c.currentKnob = -1
	c.lastMain = nil
}

// ShowMain composes the idle screen from the current selections and
// enqueues it with the high-quality two-pass mode.
func (c *Core) ShowMain() {
	positions := make(map[int]int, len(c.lastPositions))
	for ch, pos := range c.lastPositions {
		positions[ch] = c.displayPos(ch, pos)
	}
	if c.lastMain != nil && samePositions(c.lastMain, positions) && !c.overlayVisible {
		return
	}
	frame := ComposeMainScreen(c.cfg.Face, c.cfg.Texts, positions, c.bounds)
	c.cfg.Pipeline.Submit("main", frame, c.cfg.Rotation, ModeAuto)
	c.lastMain = positions
	c.overlayVisible = false
	c.currentKnob = -1
}

func samePositions(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
