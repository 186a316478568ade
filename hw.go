package picker

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// ADCMax is the full-scale reading of the 10-bit MCP3008.
const ADCMax = 1023

// KnobChannels are the ADC channels wired to rotary knobs.
var KnobChannels = []int{0, 1, 2, 4, 5, 6}

// ButtonChannels maps ADC channels wired to momentary buttons to their
// names.
var ButtonChannels = map[int]string{
	3: "GO",
	7: "RESET",
}

// ADC reads one channel of an analog-to-digital converter.
type ADC interface {
	Read(channel int) (int, error)
}

// MCP3008 reads the 10-bit MCP3008 ADC over SPI. The chip shares the SPI
// bus with the display but sits on its own chip-enable line.
type MCP3008 struct {
	conn spi.Conn
}

// NewMCP3008 connects to an MCP3008 on the given SPI port.
func NewMCP3008(p spi.Port) (*MCP3008, error) {
	c, err := p.Connect(1350*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrap(err, "connect MCP3008")
	}
	return &MCP3008{conn: c}, nil
}

// Read returns the raw 10-bit reading for a channel (0..7).
func (a *MCP3008) Read(channel int) (int, error) {
	if channel < 0 || channel > 7 {
		return 0, errors.Errorf("mcp3008: channel %d out of range", channel)
	}
	// Single-ended conversion: start bit, then SGL/DIFF + channel in the
	// top nibble of the second byte.
	w := []byte{0x01, byte(8+channel) << 4, 0x00}
	r := make([]byte, 3)
	if err := a.conn.Tx(w, r); err != nil {
		return 0, errors.Wrap(err, "mcp3008: transfer")
	}
	return int(r[1]&0x03)<<8 | int(r[2]), nil
}

// SimulatedADC is an in-memory ADC for development and tests.
type SimulatedADC struct {
	mu     sync.Mutex
	values [8]int
}

func NewSimulatedADC() *SimulatedADC {
	return &SimulatedADC{}
}

// Set changes a channel's reading, clamped to the 10-bit range.
func (a *SimulatedADC) Set(channel, value int) {
	if channel < 0 || channel > 7 {
		return
	}
	if value < 0 {
		value = 0
	}
	if value > ADCMax {
		value = ADCMax
	}
	a.mu.Lock()
	a.values[channel] = value
	a.mu.Unlock()
}

func (a *SimulatedADC) Read(channel int) (int, error) {
	if channel < 0 || channel > 7 {
		return 0, errors.Errorf("simulated adc: channel %d out of range", channel)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.values[channel], nil
}

// Calibration describes how raw ADC counts map to discrete knob positions.
type Calibration struct {
	ADCMin     int
	ADCMax     int
	Inverted   bool
	Positions  int
	Hysteresis float64 // fraction of full scale
}

// DefaultCalibration matches the factory knob wiring.
func DefaultCalibration() Calibration {
	return Calibration{
		ADCMin:     0,
		ADCMax:     ADCMax,
		Positions:  KnobPositions,
		Hysteresis: 0.015,
	}
}

// KnobMapper maps raw ADC values to debounced discrete positions. A change
// is only reported after the same new position has been observed for
// stableRequired consecutive reads, which filters electrical jitter at the
// detent boundaries.
type KnobMapper struct {
	calib          Calibration
	stableRequired int

	lastRaw     int
	lastPos     int
	stableCount int
	lastChange  time.Time
}

func NewKnobMapper(calib Calibration, stableRequired int) *KnobMapper {
	if calib.Positions <= 0 {
		calib.Positions = KnobPositions
	}
	if stableRequired < 1 {
		stableRequired = 1
	}
	return &KnobMapper{calib: calib, stableRequired: stableRequired}
}

func (m *KnobMapper) normalize(raw int) float64 {
	denom := m.calib.ADCMax - m.calib.ADCMin
	if denom < 1 {
		denom = 1
	}
	v := float64(raw-m.calib.ADCMin) / float64(denom)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if m.calib.Inverted {
		v = 1 - v
	}
	return v
}

// RawToPos converts a raw reading straight to a position without debounce.
func (m *KnobMapper) RawToPos(raw int) int {
	pos := int(m.normalize(raw) * float64(m.calib.Positions))
	if pos >= m.calib.Positions {
		pos = m.calib.Positions - 1
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// Map returns the debounced position for raw and whether the stable mapping
// advanced to a new position on this read.
func (m *KnobMapper) Map(raw int) (int, bool) {
	pos := m.RawToPos(raw)

	if pos == m.lastPos {
		m.stableCount = 0
		m.lastRaw = raw
		return pos, false
	}

	if pos == m.RawToPos(m.lastRaw) {
		m.stableCount++
	} else {
		m.stableCount = 1
		m.lastRaw = raw
	}

	if m.stableCount >= m.stableRequired {
		m.lastPos = pos
		m.stableCount = 0
		m.lastChange = time.Now()
		return pos, true
	}
	return m.lastPos, false
}

// KnobReading is one debounced sample of a knob channel.
type KnobReading struct {
	Position int
	Changed  bool
}

// HWConfig wires the ADC front end.
type HWConfig struct {
	ADC             ADC
	Calibrations    map[int]Calibration
	PollHz          int
	ButtonThreshold float64 // fraction of full scale
}

// HW is the hardware front end used by the picker core: knob positions and
// button states sampled from the ADC.
type HW struct {
	adc          ADC
	calibrations map[int]Calibration
	mappers      map[int]*KnobMapper
	threshold    float64

	// PollInterval is the sampling period derived from PollHz.
	PollInterval time.Duration
}

// NewHW builds the hardware front end, applying defaults for everything
// unset.
func NewHW(cfg HWConfig) (*HW, error) {
	if cfg.ADC == nil {
		return nil, errors.New("hw: ADC cannot be nil")
	}
	if cfg.PollHz <= 0 {
		cfg.PollHz = 80
	}
	if cfg.ButtonThreshold <= 0 {
		cfg.ButtonThreshold = 0.2
	}
	if cfg.Calibrations == nil {
		cfg.Calibrations = map[int]Calibration{}
	}
	// Faster polling needs more consecutive samples before a reading counts
	// as stable.
	stableRequired := cfg.PollHz / 20
	if stableRequired < 2 {
		stableRequired = 2
	}
	mappers := make(map[int]*KnobMapper, len(KnobChannels))
	for _, ch := range KnobChannels {
		calib, ok := cfg.Calibrations[ch]
		if !ok {
			calib = DefaultCalibration()
		}
		mappers[ch] = NewKnobMapper(calib, stableRequired)
	}
	return &HW{
		adc:          cfg.ADC,
		calibrations: cfg.Calibrations,
		mappers:      mappers,
		threshold:    cfg.ButtonThreshold,
		PollInterval: time.Second / time.Duration(cfg.PollHz),
	}, nil
}

// ReadPositions samples and debounces every knob channel.
func (h *HW) ReadPositions() (map[int]KnobReading, error) {
	out := make(map[int]KnobReading, len(KnobChannels))
	for _, ch := range KnobChannels {
		raw, err := h.adc.Read(ch)
		if err != nil {
			return nil, errors.Wrapf(err, "read knob channel %d", ch)
		}
		pos, changed := h.mappers[ch].Map(raw)
		out[ch] = KnobReading{Position: pos, Changed: changed}
	}
	return out, nil
}

// ReadButtons samples the button channels and thresholds them against full
// scale.
func (h *HW) ReadButtons() (map[string]bool, error) {
	out := make(map[string]bool, len(ButtonChannels))
	for ch, name := range ButtonChannels {
		raw, err := h.adc.Read(ch)
		if err != nil {
			return nil, errors.Wrapf(err, "read button channel %d", ch)
		}
		calib, ok := h.calibrations[ch]
		if !ok {
			calib = DefaultCalibration()
		}
		denom := calib.ADCMax - calib.ADCMin
		if denom < 1 {
			denom = 1
		}
		norm := float64(raw-calib.ADCMin) / float64(denom)
		out[name] = norm > h.threshold
	}
	return out, nil
}
