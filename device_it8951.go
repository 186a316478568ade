package picker

import (
	"image"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/gregm123456/picker/internal/config"
	"github.com/gregm123456/picker/internal/it8951"
)

// PanelConfig describes how to reach the IT8951 board.
type PanelConfig struct {
	// SPIDev is the SPI port name, e.g. "SPI0.0" or "/dev/spidev0.0".
	SPIDev string
	// HRDYPin and RSTPin are GPIO names understood by gpioreg, e.g. "GPIO24".
	HRDYPin string
	RSTPin  string
	// VCOM is the panel voltage from the flex cable, e.g. -2.06.
	VCOM float64
}

// PanelConfigFromEnv reads the panel wiring from the environment, with
// defaults matching the common Raspberry Pi HAT layout.
func PanelConfigFromEnv() PanelConfig {
	return PanelConfig{
		SPIDev:  config.String("SPI_DEV", "SPI0.0"),
		HRDYPin: config.String("HRDY_PIN", "GPIO24"),
		RSTPin:  config.String("RST_PIN", "GPIO17"),
		VCOM:    config.Float64("VCOM", -2.06),
	}
}

// panelDevice adapts an it8951.Dev to the Device interface and owns the
// SPI port handle.
type panelDevice struct {
	dev  *it8951.Dev
	port spi.PortCloser
}

// OpenPanel initializes the host, opens the SPI port and GPIO lines, and
// brings up the IT8951 controller. The returned Device holds the port until
// Close.
func OpenPanel(cfg PanelConfig) (Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize periph host")
	}
	port, err := spireg.Open(cfg.SPIDev)
	if err != nil {
		return nil, errors.Wrapf(err, "open SPI port %q", cfg.SPIDev)
	}
	hrdy := gpioreg.ByName(cfg.HRDYPin)
	if hrdy == nil {
		port.Close()
		return nil, errors.Errorf("no such GPIO pin %q", cfg.HRDYPin)
	}
	var rst gpio.PinIO
	if cfg.RSTPin != "" {
		if rst = gpioreg.ByName(cfg.RSTPin); rst == nil {
			port.Close()
			return nil, errors.Errorf("no such GPIO pin %q", cfg.RSTPin)
		}
	}
	dev, err := it8951.NewSPI(port, hrdy, rst, &it8951.Opts{VCOM: cfg.VCOM})
	if err != nil {
		port.Close()
		return nil, err
	}
	info := dev.Info()
	log.Info().
		Int("width", info.Width).
		Int("height", info.Height).
		Str("firmware", info.Firmware).
		Str("lut", info.LUT).
		Msg("panel up")
	return &panelDevice{dev: dev, port: port}, nil
}

func (p *panelDevice) Bounds() image.Rectangle {
	return p.dev.Bounds()
}

func (p *panelDevice) DisplayImage(frame *image.Gray, wf Waveform, region image.Rectangle) error {
	if frame.Bounds().Size() != p.dev.Bounds().Size() {
		return errors.Errorf("frame %v does not match panel %v", frame.Bounds().Size(), p.dev.Bounds().Size())
	}
	return p.dev.DrawRegion(frame, region, it8951.Mode(wf))
}

func (p *panelDevice) Clear() error {
	return p.dev.Clear()
}

func (p *panelDevice) Close() error {
	// Standby failures are not worth keeping the port open for.
	if err := p.dev.Standby(); err != nil {
		log.Warn().Err(err).Msg("panel standby failed")
	}
	return p.port.Close()
}
