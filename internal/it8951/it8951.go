// Package it8951 controls an IT8951-based e-paper panel (e.g. the Waveshare
// 6" HD) over SPI.
//
// The IT8951 speaks a word-oriented protocol: every transaction starts with
// a 16-bit preamble selecting command, data write, or data read, and the
// HRDY line gates each transfer. Image data is loaded into the controller's
// buffer with LD_IMG_AREA and flushed to the panel with DPY_AREA using a
// waveform mode that trades refresh speed against grayscale fidelity.
package it8951

import (
	"fmt"
	"image"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Mode is an IT8951 waveform mode code.
type Mode uint16

const (
	ModeInit  Mode = 0 // panel reset flash, used by Clear
	ModeDU    Mode = 1 // fast two-level
	ModeGC16  Mode = 2 // 16-level grayscale, slowest, best quality
	ModeGL16  Mode = 3
	ModeGLR16 Mode = 4
	ModeGLD16 Mode = 5
	ModeA2    Mode = 6 // fastest, lowest fidelity
	ModeDU4   Mode = 7
)

// SPI transaction preambles.
const (
	preambleCmd   = 0x6000
	preambleWrite = 0x0000
	preambleRead  = 0x1000
)

// Controller commands.
const (
	cmdSysRun     = 0x0001
	cmdStandby    = 0x0002
	cmdSleep      = 0x0003
	cmdRegRd      = 0x0010
	cmdRegWr      = 0x0011
	cmdLdImgArea  = 0x0021
	cmdLdImgEnd   = 0x0022
	cmdDpyArea    = 0x0026
	cmdGetDevInfo = 0x0302
	cmdVCOM       = 0x0039
)

// Registers.
const (
	regI80CPCR = 0x0004 // packed-write enable
	regLUTAFSR = 0x1224 // waveform engine busy flag
)

// Opts is the configuration for an IT8951 panel.
type Opts struct {
	// VCOM is the panel's VCOM voltage, printed on its flex cable
	// (e.g. -2.06). Must be negative.
	VCOM float64

	// Hz overrides the SPI clock. Defaults to 12 MHz; the controller tops
	// out at 24 MHz.
	Hz physic.Frequency
}

// DevInfo is the controller's self-description.
type DevInfo struct {
	Width    int
	Height   int
	BufAddr  uint32
	Firmware string
	LUT      string
}

// Dev is an open IT8951 device.
type Dev struct {
	c    spi.Conn
	hrdy gpio.PinIO
	rst  gpio.PinIO
	info DevInfo
	rect image.Rectangle
	vcom float64
}

// NewSPI opens and initializes an IT8951 on the given SPI port. hrdy is the
// controller's ready line (input); rst is the optional reset line.
func NewSPI(p spi.Port, hrdy gpio.PinIO, rst gpio.PinIO, opts *Opts) (*Dev, error) {
	if opts == nil {
		return nil, errors.New("it8951: options are required")
	}
	if opts.VCOM >= 0 || opts.VCOM < -5 {
		return nil, errors.Errorf("it8951: VCOM %.2f out of range (-5, 0)", opts.VCOM)
	}
	if hrdy == nil {
		return nil, errors.New("it8951: HRDY pin is required")
	}
	hz := opts.Hz
	if hz == 0 {
		hz = 12 * physic.MegaHertz
	}
	c, err := p.Connect(hz, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrap(err, "it8951: connect SPI")
	}

	d := &Dev{c: c, hrdy: hrdy, rst: rst, vcom: opts.VCOM}
	if err := d.reset(); err != nil {
		return nil, err
	}
	if err := d.writeCommand(cmdSysRun); err != nil {
		return nil, err
	}
	info, err := d.readDeviceInfo()
	if err != nil {
		return nil, err
	}
	d.info = info
	d.rect = image.Rect(0, 0, info.Width, info.Height)

	// Enable packed pixel writes.
	if err := d.writeReg(regI80CPCR, 0x0001); err != nil {
		return nil, err
	}
	if err := d.setVCOM(opts.VCOM); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) reset() error {
	if d.rst == nil {
		return d.waitReady(time.Second)
	}
	if err := d.rst.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "it8951: pull RST low")
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return errors.Wrap(err, "it8951: pull RST high")
	}
	time.Sleep(100 * time.Millisecond)
	return d.waitReady(time.Second)
}

// waitReady blocks until HRDY goes high.
func (d *Dev) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if d.hrdy.Read() == gpio.High {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("it8951: controller busy timeout")
		}
		time.Sleep(time.Millisecond)
	}
}

func (d *Dev) writeCommand(cmd uint16) error {
	if err := d.waitReady(time.Second); err != nil {
		return err
	}
	buf := []byte{preambleCmd >> 8, preambleCmd & 0xFF, byte(cmd >> 8), byte(cmd)}
	return d.c.Tx(buf, nil)
}

func (d *Dev) writeWords(words []uint16) error {
	if err := d.waitReady(time.Second); err != nil {
		return err
	}
	buf := make([]byte, 2+2*len(words))
	buf[0] = preambleWrite >> 8
	buf[1] = preambleWrite & 0xFF
	for i, w := range words {
		buf[2+2*i] = byte(w >> 8)
		buf[3+2*i] = byte(w)
	}
	return d.c.Tx(buf, nil)
}

// writeBytes sends raw packed pixel data, chunked to stay under the SPI
// driver's transfer limit. Each chunk is its own preambled transaction.
func (d *Dev) writeBytes(data []byte) error {
	const chunk = 4096 - 2
	for len(data) > 0 {
		n := len(data)
		if n > chunk {
			n = chunk
		}
		if err := d.waitReady(time.Second); err != nil {
			return err
		}
		buf := make([]byte, 2+n)
		buf[0] = preambleWrite >> 8
		buf[1] = preambleWrite & 0xFF
		copy(buf[2:], data[:n])
		if err := d.c.Tx(buf, nil); err != nil {
			return errors.Wrap(err, "it8951: pixel transfer")
		}
		data = data[n:]
	}
	return nil
}

// readWords reads n data words. The controller emits one dummy word after
// the read preamble before real data starts.
func (d *Dev) readWords(n int) ([]uint16, error) {
	if err := d.waitReady(time.Second); err != nil {
		return nil, err
	}
	total := 2 + 2 + 2*n // preamble + dummy word + payload
	w := make([]byte, total)
	w[0] = preambleRead >> 8
	w[1] = preambleRead & 0xFF
	r := make([]byte, total)
	if err := d.c.Tx(w, r); err != nil {
		return nil, errors.Wrap(err, "it8951: read transfer")
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(r[4+2*i])<<8 | uint16(r[5+2*i])
	}
	return out, nil
}

func (d *Dev) writeReg(reg, val uint16) error {
	if err := d.writeCommand(cmdRegWr); err != nil {
		return err
	}
	return d.writeWords([]uint16{reg, val})
}

func (d *Dev) readReg(reg uint16) (uint16, error) {
	if err := d.writeCommand(cmdRegRd); err != nil {
		return 0, err
	}
	if err := d.writeWords([]uint16{reg}); err != nil {
		return 0, err
	}
	words, err := d.readWords(1)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

func (d *Dev) readDeviceInfo() (DevInfo, error) {
	if err := d.writeCommand(cmdGetDevInfo); err != nil {
		return DevInfo{}, err
	}
	words, err := d.readWords(20)
	if err != nil {
		return DevInfo{}, err
	}
	info := DevInfo{
		Width:    int(words[0]),
		Height:   int(words[1]),
		BufAddr:  uint32(words[3])<<16 | uint32(words[2]),
		Firmware: decodeWordString(words[4:12]),
		LUT:      decodeWordString(words[12:20]),
	}
	if info.Width <= 0 || info.Height <= 0 {
		return DevInfo{}, errors.Errorf("it8951: implausible geometry %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// decodeWordString unpacks the controller's little-endian ASCII words.
func decodeWordString(words []uint16) string {
	buf := make([]byte, 0, 2*len(words))
	for _, w := range words {
		lo := byte(w)
		hi := byte(w >> 8)
		if lo != 0 {
			buf = append(buf, lo)
		}
		if hi != 0 {
			buf = append(buf, hi)
		}
	}
	return string(buf)
}

func (d *Dev) setVCOM(vcom float64) error {
	if err := d.writeCommand(cmdVCOM); err != nil {
		return err
	}
	return d.writeWords([]uint16{1, uint16(-vcom * 1000)})
}

// GetVCOM reads the programmed VCOM voltage back from the controller.
func (d *Dev) GetVCOM() (float64, error) {
	if err := d.writeCommand(cmdVCOM); err != nil {
		return 0, err
	}
	if err := d.writeWords([]uint16{0}); err != nil {
		return 0, err
	}
	words, err := d.readWords(1)
	if err != nil {
		return 0, err
	}
	return -float64(words[0]) / 1000, nil
}

// Info returns the controller's self-description.
func (d *Dev) Info() DevInfo {
	return d.info
}

// Bounds returns the panel geometry.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// DrawRegion loads the given region of frame into the controller buffer and
// refreshes it with mode. On failure with a non-default waveform it retries
// once with GC16 before surfacing an error, so an unsupported fast mode
// degrades to a slow correct paint instead of a fault.
func (d *Dev) DrawRegion(frame *image.Gray, region image.Rectangle, mode Mode) error {
	err := d.drawRegion(frame, region, mode)
	if err != nil && mode != ModeGC16 {
		if rerr := d.drawRegion(frame, region, ModeGC16); rerr == nil {
			return nil
		}
	}
	return err
}

func (d *Dev) drawRegion(frame *image.Gray, region image.Rectangle, mode Mode) error {
	region = region.Intersect(d.rect)
	if region.Empty() {
		return nil
	}
	// Word packing needs an even pixel count per row.
	if region.Dx()%2 != 0 {
		if region.Max.X < d.rect.Max.X {
			region.Max.X++
		} else {
			region.Min.X--
		}
	}

	if err := d.loadImageArea(frame, region); err != nil {
		return err
	}
	return d.displayArea(region, mode)
}

func (d *Dev) loadImageArea(frame *image.Gray, region image.Rectangle) error {
	if err := d.writeCommand(cmdLdImgArea); err != nil {
		return err
	}
	// Little-endian, 8bpp, no rotation.
	args := []uint16{
		0<<8 | 3<<4 | 0,
		uint16(region.Min.X),
		uint16(region.Min.Y),
		uint16(region.Dx()),
		uint16(region.Dy()),
	}
	if err := d.writeWords(args); err != nil {
		return err
	}
	if err := d.writeBytes(packPixels(frame, region)); err != nil {
		return err
	}
	return d.writeCommand(cmdLdImgEnd)
}

// packPixels extracts the region's 8bpp pixels in the controller's
// little-endian word order (low byte first within each 16-bit word).
func packPixels(frame *image.Gray, region image.Rectangle) []byte {
	w := region.Dx()
	h := region.Dy()
	out := make([]byte, 0, w*h)
	fb := frame.Bounds()
	for y := 0; y < h; y++ {
		rowStart := (region.Min.Y-fb.Min.Y+y)*frame.Stride + (region.Min.X - fb.Min.X)
		row := frame.Pix[rowStart : rowStart+w]
		for x := 0; x+1 < len(row); x += 2 {
			out = append(out, row[x+1], row[x])
		}
	}
	return out
}

func (d *Dev) displayArea(region image.Rectangle, mode Mode) error {
	if err := d.writeCommand(cmdDpyArea); err != nil {
		return err
	}
	args := []uint16{
		uint16(region.Min.X),
		uint16(region.Min.Y),
		uint16(region.Dx()),
		uint16(region.Dy()),
		uint16(mode),
	}
	if err := d.writeWords(args); err != nil {
		return err
	}
	return d.waitDisplayReady(displayTimeout(mode))
}

func displayTimeout(mode Mode) time.Duration {
	switch mode {
	case ModeDU, ModeA2, ModeDU4:
		return 5 * time.Second
	default:
		return 20 * time.Second
	}
}

// waitDisplayReady polls the waveform engine until the refresh completes.
func (d *Dev) waitDisplayReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		v, err := d.readReg(regLUTAFSR)
		if err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("it8951: display refresh timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Clear flashes the panel to white through the INIT waveform.
func (d *Dev) Clear() error {
	white := image.NewGray(d.rect)
	for i := range white.Pix {
		white.Pix[i] = 0xFF
	}
	return d.drawRegion(white, d.rect, ModeInit)
}

// Standby puts the controller into its low-power state.
func (d *Dev) Standby() error {
	return d.writeCommand(cmdStandby)
}

func (d *Dev) String() string {
	return fmt.Sprintf("it8951.Dev{%dx%d fw=%s lut=%s}", d.rect.Dx(), d.rect.Dy(), d.info.Firmware, d.info.LUT)
}
