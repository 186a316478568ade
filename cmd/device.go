package main

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	picker "github.com/gregm123456/picker"
	"github.com/gregm123456/picker/internal/config"
)

// Simulated panel geometry, matching the Waveshare 6" HD.
const (
	simWidth  = 1448
	simHeight = 1072
)

// openDeviceFunc returns the device constructor used by the pipeline for
// startup and every reinitialization.
func openDeviceFunc() func() (picker.Device, error) {
	if rootSimulate {
		return func() (picker.Device, error) {
			return picker.NewSimDevice(simWidth, simHeight, rootSimDir)
		}
	}
	cfg := picker.PanelConfigFromEnv()
	return func() (picker.Device, error) {
		return picker.OpenPanel(cfg)
	}
}

// openADC opens the knob ADC, or a simulated one when --simulate is set.
func openADC() (picker.ADC, error) {
	if rootSimulate {
		return picker.NewSimulatedADC(), nil
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize periph host")
	}
	dev := config.String("ADC_SPI_DEV", "SPI0.1")
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, errors.Wrapf(err, "open ADC SPI port %q", dev)
	}
	return picker.NewMCP3008(port)
}
